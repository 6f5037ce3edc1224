package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func newBackSubjectFixture() (*BackSubjectService, *memDB, *transitionRecorder) {
	db := newMemDB()
	metrics := &transitionRecorder{}
	svc := NewBackSubjectService(&memTx{db: db}, memBackSubjects{db: db}, NewAuditTrail(&memAudit{db: db}, nil), metrics, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 30, 8, 0, 0, 0, time.UTC) }
	return svc, db, metrics
}

func TestAddBackSubjectIsUniquePerStudentSubject(t *testing.T) {
	svc, _, _ := newBackSubjectFixture()
	ctx := context.Background()

	bs, err := svc.AddBackSubject(ctx, "stu-1", dto.AddBackSubjectRequest{SubjectID: "chem", RequiredUnits: 3}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.BackSubjectPending, bs.Status)

	_, err = svc.AddBackSubject(ctx, "stu-1", dto.AddBackSubjectRequest{SubjectID: "chem", RequiredUnits: 2}, "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.AddBackSubject(ctx, "stu-1", dto.AddBackSubjectRequest{SubjectID: "bio", RequiredUnits: 0}, "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUpdateUnitsMovesToInProgress(t *testing.T) {
	svc, _, _ := newBackSubjectFixture()
	ctx := context.Background()
	bs, err := svc.AddBackSubject(ctx, "stu-1", dto.AddBackSubjectRequest{SubjectID: "chem", RequiredUnits: 3}, "admin-1")
	require.NoError(t, err)

	bs, err = svc.UpdateUnits(ctx, bs.ID, dto.UpdateUnitsRequest{RequiredUnits: 4, CompletedUnits: 0}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.BackSubjectPending, bs.Status)

	bs, err = svc.UpdateUnits(ctx, bs.ID, dto.UpdateUnitsRequest{RequiredUnits: 4, CompletedUnits: 1}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.BackSubjectInProgress, bs.Status)

	_, err = svc.UpdateUnits(ctx, bs.ID, dto.UpdateUnitsRequest{RequiredUnits: 4, CompletedUnits: 5}, "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCompletedBackSubjectIsFrozen(t *testing.T) {
	svc, db, metrics := newBackSubjectFixture()
	ctx := context.Background()
	bs, err := svc.AddBackSubject(ctx, "stu-1", dto.AddBackSubjectRequest{SubjectID: "chem", RequiredUnits: 3}, "admin-1")
	require.NoError(t, err)

	completed, err := svc.MarkCompleted(ctx, bs.ID, dto.MarkCompletedRequest{CompletedUnits: 3, Notes: "summer term"}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.BackSubjectCompleted, completed.Status)
	require.NotNil(t, completed.CompletionDate)
	assert.Equal(t, 2025, completed.CompletionDate.Year())

	_, err = svc.UpdateUnits(ctx, bs.ID, dto.UpdateUnitsRequest{RequiredUnits: 10, CompletedUnits: 0}, "admin-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrLocked))

	_, err = svc.MarkCompleted(ctx, bs.ID, dto.MarkCompletedRequest{CompletedUnits: 1}, "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrLocked))

	stored, err := svc.Get(ctx, bs.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.RequiredUnits)
	assert.Equal(t, 3, stored.CompletedUnits)
	assert.Equal(t, []string{
		models.AuditActionBackSubjectAdd,
		models.AuditActionBackSubjectComplete,
	}, db.auditActions())
	assert.Contains(t, metrics.events, "back subject:UPDATE_UNITS:LOCKED")
}

func TestMarkCompletedUsesProvidedDate(t *testing.T) {
	svc, _, _ := newBackSubjectFixture()
	ctx := context.Background()
	bs, err := svc.AddBackSubject(ctx, "stu-2", dto.AddBackSubjectRequest{SubjectID: "phys", RequiredUnits: 2}, "admin-1")
	require.NoError(t, err)

	on := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	done, err := svc.MarkCompleted(ctx, bs.ID, dto.MarkCompletedRequest{CompletedUnits: 2, CompletionDate: &on}, "admin-1")
	require.NoError(t, err)
	assert.True(t, on.Equal(*done.CompletionDate))

	list, err := svc.ListByStudent(ctx, "stu-2")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.Get(ctx, "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
