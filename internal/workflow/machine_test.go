package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func TestApplicationMachine(t *testing.T) {
	next, err := Application.Transition(models.ApplicationStatusPending, ApplicationApprove)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, next)

	next, err = Application.Transition(models.ApplicationStatusPending, ApplicationReject)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, next)

	for _, from := range []models.ApplicationStatus{models.ApplicationStatusApproved, models.ApplicationStatusRejected} {
		for _, ev := range []ApplicationEvent{ApplicationApprove, ApplicationReject} {
			_, err := Application.Transition(from, ev)
			assert.True(t, errors.Is(err, appErrors.ErrInvalidState), "%s/%s", from, ev)
		}
	}
}

func TestGradeMachine(t *testing.T) {
	tests := []struct {
		name  string
		from  models.GradeApprovalStatus
		event GradeEvent
		want  models.GradeApprovalStatus
		err   *appErrors.Error
	}{
		{name: "approve submitted", from: models.GradeStatusSubmitted, event: GradeApprove, want: models.GradeStatusApproved},
		{name: "reject submitted", from: models.GradeStatusSubmitted, event: GradeReject, want: models.GradeStatusRejected},
		{name: "resubmit rejected", from: models.GradeStatusRejected, event: GradeResubmit, want: models.GradeStatusSubmitted},
		{name: "relock approved", from: models.GradeStatusApproved, event: GradeRelock, want: models.GradeStatusApproved},
		{name: "approve twice", from: models.GradeStatusApproved, event: GradeApprove, err: appErrors.ErrInvalidState},
		{name: "revise approved", from: models.GradeStatusApproved, event: GradeRevise, err: appErrors.ErrInvalidState},
		{name: "reject rejected", from: models.GradeStatusRejected, event: GradeReject, err: appErrors.ErrInvalidState},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Grade.Transition(tc.from, tc.event)
			if tc.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.err))
				assert.Equal(t, tc.from, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEditRequestLifecycle(t *testing.T) {
	req := models.GradeEditRequest{Status: models.EditRequestPending}

	steps := []EditEvent{EditApprove, EditRecord, EditComplete}
	for _, ev := range steps {
		next, err := EditRequest.Transition(PhaseOf(req), ev)
		require.NoError(t, err, ev)
		ApplyPhase(&req, next)
	}
	assert.Equal(t, models.EditRequestCompleted, req.Status)
	assert.True(t, req.EditCompleted)

	_, err := EditRequest.Transition(PhaseOf(req), EditComplete)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
}

func TestEditRequestCannotCompleteBeforeEdit(t *testing.T) {
	req := models.GradeEditRequest{Status: models.EditRequestApproved}
	assert.Equal(t, EditPhaseApproved, PhaseOf(req))
	assert.False(t, EditRequest.Can(PhaseOf(req), EditComplete))

	req.EditCompleted = true
	assert.Equal(t, EditPhaseEdited, PhaseOf(req))
	assert.False(t, EditRequest.Can(PhaseOf(req), EditRecord))
	assert.True(t, EditRequest.Can(PhaseOf(req), EditComplete))
}

func TestEditRequestDeny(t *testing.T) {
	req := models.GradeEditRequest{Status: models.EditRequestPending}
	next, err := EditRequest.Transition(PhaseOf(req), EditDeny)
	require.NoError(t, err)
	ApplyPhase(&req, next)
	assert.Equal(t, models.EditRequestDenied, req.Status)
	assert.False(t, EditRequest.Can(PhaseOf(req), EditApprove))
}

func TestBackSubjectMachineLocksCompleted(t *testing.T) {
	next, err := BackSubject.Transition(models.BackSubjectPending, BackSubjectStart)
	require.NoError(t, err)
	assert.Equal(t, models.BackSubjectInProgress, next)

	next, err = BackSubject.Transition(models.BackSubjectInProgress, BackSubjectComplete)
	require.NoError(t, err)
	assert.Equal(t, models.BackSubjectCompleted, next)

	for _, ev := range []BackSubjectEvent{BackSubjectUpdateUnits, BackSubjectStart, BackSubjectComplete} {
		_, err := BackSubject.Transition(models.BackSubjectCompleted, ev)
		require.Error(t, err)
		assert.True(t, errors.Is(err, appErrors.ErrLocked), ev)
	}
}

func TestEnrollmentRequestMachine(t *testing.T) {
	next, err := EnrollmentRequest.Transition(models.EnrollmentRequestApproved, EnrollmentVoid)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentRequestVoided, next)

	_, err = EnrollmentRequest.Transition(models.EnrollmentRequestApproved, EnrollmentApprove)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))

	_, err = EnrollmentRequest.Transition(models.EnrollmentRequestRejected, EnrollmentVoid)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidState))
}

func TestPeriodAcceptsApprovals(t *testing.T) {
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	base := models.EnrollmentPeriod{StartsAt: start, EndsAt: end}

	tests := []struct {
		name      string
		status    models.EnrollmentPeriodStatus
		autoClose bool
		now       time.Time
		want      bool
	}{
		{name: "upcoming inside window", status: models.EnrollmentPeriodUpcoming, now: start.Add(time.Hour), want: true},
		{name: "upcoming before window", status: models.EnrollmentPeriodUpcoming, now: start.Add(-time.Hour), want: false},
		{name: "active before window", status: models.EnrollmentPeriodActive, now: start.Add(-time.Hour), want: true},
		{name: "active after end without auto close", status: models.EnrollmentPeriodActive, now: end.Add(time.Hour), want: true},
		{name: "active after end with auto close", status: models.EnrollmentPeriodActive, autoClose: true, now: end.Add(time.Minute), want: false},
		{name: "closed inside window", status: models.EnrollmentPeriodClosed, now: start.Add(time.Hour), want: false},
		{name: "boundary end", status: models.EnrollmentPeriodUpcoming, autoClose: true, now: end, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			p.Status = tc.status
			p.AutoClose = tc.autoClose
			assert.Equal(t, tc.want, PeriodAcceptsApprovals(p, tc.now))
		})
	}
}
