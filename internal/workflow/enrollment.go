package workflow

import (
	"time"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// EnrollmentEvent drives the enrollment request machine.
type EnrollmentEvent string

const (
	EnrollmentApprove EnrollmentEvent = "APPROVE"
	EnrollmentReject  EnrollmentEvent = "REJECT"
	EnrollmentVoid    EnrollmentEvent = "VOID"
)

// EnrollmentRequest allows pending → approved | rejected and voiding of
// pending or approved requests.
var EnrollmentRequest = newMachine("enrollment request", map[models.EnrollmentRequestStatus]map[EnrollmentEvent]models.EnrollmentRequestStatus{
	models.EnrollmentRequestPending: {
		EnrollmentApprove: models.EnrollmentRequestApproved,
		EnrollmentReject:  models.EnrollmentRequestRejected,
		EnrollmentVoid:    models.EnrollmentRequestVoided,
	},
	models.EnrollmentRequestApproved: {
		EnrollmentVoid: models.EnrollmentRequestVoided,
	},
})

// PeriodAcceptsApprovals reports whether requests in p may be approved at now.
// A period past its end with auto_close set is closed regardless of its
// stored status; otherwise an ACTIVE flag or a window containing now opens it.
func PeriodAcceptsApprovals(p models.EnrollmentPeriod, now time.Time) bool {
	if p.AutoClose && now.After(p.EndsAt) {
		return false
	}
	switch p.Status {
	case models.EnrollmentPeriodClosed:
		return false
	case models.EnrollmentPeriodActive:
		return true
	}
	return !now.Before(p.StartsAt) && !now.After(p.EndsAt)
}
