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

type gradeFixture struct {
	db      *memDB
	audit   *memAudit
	metrics *transitionRecorder
	svc     *GradeApprovalService
}

func newGradeFixture() *gradeFixture {
	db := newMemDB()
	f := &gradeFixture{db: db, audit: &memAudit{db: db}, metrics: &transitionRecorder{}}
	now := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	f.svc = NewGradeApprovalService(&memTx{db: db}, memGrades{db: db}, memEditRequests{db: db}, NewAuditTrail(f.audit, nil), nil, nil,
		WithGradeClock(func() time.Time { return now }), WithGradeMetrics(f.metrics))
	return f
}

func gradeValue(v float64) *float64 { return &v }

func (f *gradeFixture) submit(t *testing.T, teacherID string, value float64) *models.Grade {
	t.Helper()
	g, err := f.svc.SubmitGrade(context.Background(), dto.SubmitGradeRequest{
		StudentID: "stu-1", SubjectID: "math", TermID: "2025-1", Value: gradeValue(value),
	}, teacherID)
	require.NoError(t, err)
	return g
}

func (f *gradeFixture) approved(t *testing.T) *models.Grade {
	t.Helper()
	g := f.submit(t, "teacher-1", 78)
	g, err := f.svc.ApproveGrade(context.Background(), g.ID, "admin-1")
	require.NoError(t, err)
	return g
}

func (f *gradeFixture) grade(id string) models.Grade {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.grades[id]
}

func TestSubmitRevisesAndResubmits(t *testing.T) {
	f := newGradeFixture()
	g := f.submit(t, "teacher-1", 70)
	assert.Equal(t, models.GradeStatusSubmitted, g.ApprovalStatus)

	revised := f.submit(t, "teacher-1", 72)
	assert.Equal(t, g.ID, revised.ID)
	assert.Equal(t, 72.0, revised.Value)

	_, err := f.svc.RejectGrade(context.Background(), g.ID, "admin-1", "missing practical")
	require.NoError(t, err)
	assert.Equal(t, "missing practical", *f.grade(g.ID).RejectionReason)

	resubmitted := f.submit(t, "teacher-1", 80)
	assert.Equal(t, models.GradeStatusSubmitted, resubmitted.ApprovalStatus)
	assert.Nil(t, resubmitted.RejectionReason)

	_, err = f.svc.SubmitGrade(context.Background(), dto.SubmitGradeRequest{
		StudentID: "stu-1", SubjectID: "math", TermID: "2025-1", Value: gradeValue(90),
	}, "teacher-2")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestSubmitRejectsOutOfRangeValue(t *testing.T) {
	f := newGradeFixture()
	_, err := f.svc.SubmitGrade(context.Background(), dto.SubmitGradeRequest{
		StudentID: "stu-1", SubjectID: "math", TermID: "2025-1", Value: gradeValue(101),
	}, "teacher-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestRejectRequiresReason(t *testing.T) {
	f := newGradeFixture()
	g := f.submit(t, "teacher-1", 60)
	_, err := f.svc.RejectGrade(context.Background(), g.ID, "admin-1", "  ")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, models.GradeStatusSubmitted, f.grade(g.ID).ApprovalStatus)
}

func TestApprovedGradeIsLocked(t *testing.T) {
	f := newGradeFixture()
	g := f.approved(t)
	assert.True(t, g.Locked)

	_, err := f.svc.SubmitGrade(context.Background(), dto.SubmitGradeRequest{
		StudentID: "stu-1", SubjectID: "math", TermID: "2025-1", Value: gradeValue(99),
	}, "teacher-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrLocked))
	assert.Equal(t, 78.0, f.grade(g.ID).Value)

	_, err = f.svc.ApproveGrade(context.Background(), g.ID, "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
	_, err = f.svc.RejectGrade(context.Background(), g.ID, "admin-1", "late")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
}

func TestSubmitEditedValueWithoutApprovedRequestIsLocked(t *testing.T) {
	f := newGradeFixture()
	g := f.approved(t)

	_, err := f.svc.SubmitEditedValue(context.Background(), g.ID, "teacher-1", dto.SubmitEditedValueRequest{Value: gradeValue(85)})
	assert.True(t, errors.Is(err, appErrors.ErrLocked))

	_, err = f.svc.CreateEditRequest(context.Background(), g.ID, "teacher-1", dto.CreateEditRequest{Reason: "typo"})
	require.NoError(t, err)
	_, err = f.svc.SubmitEditedValue(context.Background(), g.ID, "teacher-1", dto.SubmitEditedValueRequest{Value: gradeValue(85)})
	assert.True(t, errors.Is(err, appErrors.ErrLocked), "pending request does not unlock the grade")
	assert.Equal(t, 78.0, f.grade(g.ID).Value)
}

func TestEditRequestLifecycle(t *testing.T) {
	f := newGradeFixture()
	ctx := context.Background()
	g := f.approved(t)

	req, err := f.svc.CreateEditRequest(ctx, g.ID, "teacher-1", dto.CreateEditRequest{Reason: "transposed digits"})
	require.NoError(t, err)
	assert.Equal(t, models.EditRequestPending, req.Status)

	_, err = f.svc.CreateEditRequest(ctx, g.ID, "teacher-1", dto.CreateEditRequest{Reason: "again"})
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateRequest))

	req, err = f.svc.ApproveRequest(ctx, req.ID, "admin-1", "ok")
	require.NoError(t, err)
	assert.Equal(t, models.EditRequestApproved, req.Status)
	assert.False(t, f.grade(g.ID).Locked)

	edited, err := f.svc.SubmitEditedValue(ctx, g.ID, "teacher-1", dto.SubmitEditedValueRequest{Value: gradeValue(87)})
	require.NoError(t, err)
	assert.Equal(t, 87.0, edited.Value)
	assert.True(t, edited.ManuallyEdited)
	assert.True(t, edited.Locked)

	f.db.mu.Lock()
	stored := f.db.editRequests[req.ID]
	f.db.mu.Unlock()
	assert.True(t, stored.EditCompleted)
	require.NotNil(t, stored.PreviousValue)
	assert.Equal(t, 78.0, *stored.PreviousValue)

	_, err = f.svc.SubmitEditedValue(ctx, g.ID, "teacher-1", dto.SubmitEditedValueRequest{Value: gradeValue(90)})
	assert.True(t, errors.Is(err, appErrors.ErrLocked), "an approval unlocks exactly one edit")

	relocked, err := f.svc.CompleteAndRelock(ctx, g.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.GradeStatusApproved, relocked.ApprovalStatus)
	assert.True(t, relocked.Locked)
	assert.Equal(t, 87.0, relocked.Value)

	_, err = f.svc.CompleteAndRelock(ctx, g.ID, "admin-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))

	// A completed request no longer blocks a new one.
	_, err = f.svc.CreateEditRequest(ctx, g.ID, "teacher-1", dto.CreateEditRequest{Reason: "second correction"})
	require.NoError(t, err)

	actions := f.db.auditActions()
	assert.Contains(t, actions, models.AuditActionEditRequestCreate)
	assert.Contains(t, actions, models.AuditActionEditRequestApprove)
	assert.Contains(t, actions, models.AuditActionGradeEdit)
	assert.Contains(t, actions, models.AuditActionGradeRelock)
}

func TestCompleteAndRelockBeforeEditIsInvalidState(t *testing.T) {
	f := newGradeFixture()
	ctx := context.Background()
	g := f.approved(t)

	_, err := f.svc.CompleteAndRelock(ctx, g.ID, "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))

	req, err := f.svc.CreateEditRequest(ctx, g.ID, "teacher-1", dto.CreateEditRequest{Reason: "typo"})
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(ctx, req.ID, "admin-1", "")
	require.NoError(t, err)

	_, err = f.svc.CompleteAndRelock(ctx, g.ID, "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState), "nothing was edited yet")
}

func TestDenyRequiresNotesAndClosesRequest(t *testing.T) {
	f := newGradeFixture()
	ctx := context.Background()
	g := f.approved(t)
	req, err := f.svc.CreateEditRequest(ctx, g.ID, "teacher-1", dto.CreateEditRequest{Reason: "typo"})
	require.NoError(t, err)

	_, err = f.svc.DenyRequest(ctx, req.ID, "admin-1", "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	denied, err := f.svc.DenyRequest(ctx, req.ID, "admin-1", "value matches the exam sheet")
	require.NoError(t, err)
	assert.Equal(t, models.EditRequestDenied, denied.Status)
	assert.True(t, f.grade(g.ID).Locked)

	_, err = f.svc.ApproveRequest(ctx, req.ID, "admin-1", "")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
}

func TestCreateEditRequestGuards(t *testing.T) {
	f := newGradeFixture()
	ctx := context.Background()
	submitted := f.submit(t, "teacher-1", 66)

	_, err := f.svc.CreateEditRequest(ctx, submitted.ID, "teacher-1", dto.CreateEditRequest{Reason: "typo"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))

	_, err = f.svc.ApproveGrade(ctx, submitted.ID, "admin-1")
	require.NoError(t, err)
	_, err = f.svc.CreateEditRequest(ctx, submitted.ID, "teacher-2", dto.CreateEditRequest{Reason: "typo"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = f.svc.CreateEditRequest(ctx, "missing", "teacher-1", dto.CreateEditRequest{Reason: "typo"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	_, err = f.svc.CreateEditRequest(ctx, submitted.ID, "teacher-1", dto.CreateEditRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestReviewRecordsTransitionMetrics(t *testing.T) {
	f := newGradeFixture()
	g := f.approved(t)
	_, _ = f.svc.ApproveGrade(context.Background(), g.ID, "admin-1")

	assert.Contains(t, f.metrics.events, "grade:APPROVE:success")
	assert.Contains(t, f.metrics.events, "grade:APPROVE:INVALID_STATE")
}
