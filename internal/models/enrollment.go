package models

import "time"

// EnrollmentPeriodStatus is the administrative flag on an enrollment window.
type EnrollmentPeriodStatus string

const (
	EnrollmentPeriodUpcoming EnrollmentPeriodStatus = "UPCOMING"
	EnrollmentPeriodActive   EnrollmentPeriodStatus = "ACTIVE"
	EnrollmentPeriodClosed   EnrollmentPeriodStatus = "CLOSED"
)

// EnrollmentPeriod is a time-boxed window for a program's enrollment requests.
type EnrollmentPeriod struct {
	ID           string                 `db:"id" json:"id"`
	ProgramID    string                 `db:"program_id" json:"program_id"`
	AcademicYear string                 `db:"academic_year" json:"academic_year"`
	Semester     string                 `db:"semester" json:"semester"`
	StartsAt     time.Time              `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time              `db:"ends_at" json:"ends_at"`
	Status       EnrollmentPeriodStatus `db:"status" json:"status"`
	AutoClose    bool                   `db:"auto_close" json:"auto_close"`
	CreatedBy    string                 `db:"created_by" json:"created_by"`
	CreatedAt    time.Time              `db:"created_at" json:"created_at"`
}

// EnrollmentRequestStatus represents the lifecycle of a student's request.
type EnrollmentRequestStatus string

const (
	EnrollmentRequestPending  EnrollmentRequestStatus = "PENDING"
	EnrollmentRequestApproved EnrollmentRequestStatus = "APPROVED"
	EnrollmentRequestRejected EnrollmentRequestStatus = "REJECTED"
	EnrollmentRequestVoided   EnrollmentRequestStatus = "VOIDED"
)

// EnrollmentRequest is a student's request to enroll in a program for a period.
type EnrollmentRequest struct {
	ID              string                  `db:"id" json:"id"`
	StudentID       string                  `db:"student_id" json:"student_id"`
	ProgramID       string                  `db:"program_id" json:"program_id"`
	PeriodID        string                  `db:"period_id" json:"period_id"`
	Status          EnrollmentRequestStatus `db:"status" json:"status"`
	ReviewedBy      *string                 `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time              `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectionReason *string                 `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time               `db:"updated_at" json:"updated_at"`
}

// EnrollmentRequestFilter scopes request listings.
type EnrollmentRequestFilter struct {
	PeriodID  string
	StudentID string
	Status    EnrollmentRequestStatus
}
