package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// transactor is the Persistence Gateway surface used by workflows.
type transactor interface {
	WithTransaction(ctx context.Context, fn func(q database.Querier) error) error
}

// auditRecorder writes an audit entry through the transaction's querier.
type auditRecorder interface {
	Log(ctx context.Context, q database.Querier, actorID, action, entityType, entityID, description string) error
}

// transitionObserver counts workflow outcomes.
type transitionObserver interface {
	ObserveTransition(entity, event, outcome string)
}

type clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// loadErr maps a repository read failure: missing rows become NOT_FOUND.
func loadErr(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return appErrors.Storage(err, "failed to load "+what)
}

// writeErr maps a guarded write failure: zero affected rows means another
// transaction changed the status first.
func writeErr(err error, what string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrInvalidState, what+" was modified concurrently")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrConflict, what+" already exists")
	}
	return appErrors.Storage(err, "failed to save "+what)
}

func requireActor(actorID string) error {
	if actorID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authenticated actor is required")
	}
	return nil
}

func validationErr(err error, what string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
			fmt.Sprintf("invalid %s: %s failed %s", what, verrs[0].Field(), verrs[0].Tag()))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+what)
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return appErrors.FromError(err).Code
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 200 {
		size = 50
	}
	return page, size
}
