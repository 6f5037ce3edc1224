package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "records", Expiry: time.Hour})
	token, expires, err := svc.Issue("admin-1", models.RoleAdmin, "admin@example.edu", "Admin")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenRejectsForeignSecretAndIssuer(t *testing.T) {
	issuer := NewTokenService(TokenConfig{Secret: "other", Issuer: "records"})
	token, _, err := issuer.Issue("admin-1", models.RoleAdmin, "", "")
	require.NoError(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "records"}).ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	foreign := NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "someone-else"})
	token, _, err = foreign.Issue("admin-1", models.RoleAdmin, "", "")
	require.NoError(t, err)
	_, err = NewTokenService(TokenConfig{Secret: "s3cret", Issuer: "records"}).ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestTokenRejectsExpired(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "s3cret", Expiry: time.Minute})
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := svc.Issue("admin-1", models.RoleAdmin, "", "")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
