package models

import "time"

// Audit actions recorded by the workflows.
const (
	AuditActionApplicationSubmit   = "APPLICATION_SUBMIT"
	AuditActionApplicationApprove  = "APPLICATION_APPROVE"
	AuditActionApplicationReject   = "APPLICATION_REJECT"
	AuditActionApplicationNotes    = "APPLICATION_NOTES"
	AuditActionRequirementReview   = "REQUIREMENT_REVIEW"
	AuditActionPaymentVerify       = "PAYMENT_VERIFY"
	AuditActionPaymentUnverify     = "PAYMENT_UNVERIFY"
	AuditActionGradeSubmit         = "GRADE_SUBMIT"
	AuditActionGradeApprove        = "GRADE_APPROVE"
	AuditActionGradeReject         = "GRADE_REJECT"
	AuditActionEditRequestCreate   = "GRADE_EDIT_REQUEST_CREATE"
	AuditActionEditRequestApprove  = "GRADE_EDIT_REQUEST_APPROVE"
	AuditActionEditRequestDeny     = "GRADE_EDIT_REQUEST_DENY"
	AuditActionGradeEdit           = "GRADE_EDIT"
	AuditActionGradeRelock         = "GRADE_RELOCK"
	AuditActionBackSubjectAdd      = "BACK_SUBJECT_ADD"
	AuditActionBackSubjectUnits    = "BACK_SUBJECT_UPDATE_UNITS"
	AuditActionBackSubjectComplete = "BACK_SUBJECT_COMPLETE"
	AuditActionPeriodCreate        = "ENROLLMENT_PERIOD_CREATE"
	AuditActionPeriodStatus        = "ENROLLMENT_PERIOD_STATUS"
	AuditActionEnrollmentSubmit    = "ENROLLMENT_REQUEST_SUBMIT"
	AuditActionEnrollmentApprove   = "ENROLLMENT_REQUEST_APPROVE"
	AuditActionEnrollmentReject    = "ENROLLMENT_REQUEST_REJECT"
	AuditActionEnrollmentVoid      = "ENROLLMENT_REQUEST_VOID"
)

// Audited entity types.
const (
	EntityApplication      = "application"
	EntityRequirement      = "requirement_submission"
	EntityPayment          = "payment"
	EntityGrade            = "grade"
	EntityGradeEditRequest = "grade_edit_request"
	EntityBackSubject      = "back_subject"
	EntityEnrollmentPeriod = "enrollment_period"
	EntityEnrollmentReq    = "enrollment_request"
)

// AuditLog is an append-only record of a state transition.
type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorID     string    `db:"actor_id" json:"actor_id"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Description string    `db:"description" json:"description"`
	RequestID   *string   `db:"request_id" json:"request_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter scopes audit log queries.
type AuditFilter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Page       int
	PageSize   int
}
