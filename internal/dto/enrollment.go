package dto

import (
	"time"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// CreatePeriodRequest defines a new enrollment window.
type CreatePeriodRequest struct {
	ProgramID    string    `json:"programId" validate:"required"`
	AcademicYear string    `json:"academicYear" validate:"required"`
	Semester     string    `json:"semester" validate:"required"`
	StartsAt     time.Time `json:"startsAt" validate:"required"`
	EndsAt       time.Time `json:"endsAt" validate:"required,gtfield=StartsAt"`
	AutoClose    bool      `json:"autoClose"`
}

// SetPeriodStatusRequest changes a period's administrative flag.
type SetPeriodStatusRequest struct {
	Status models.EnrollmentPeriodStatus `json:"status" validate:"required,oneof=UPCOMING ACTIVE CLOSED"`
}

// SubmitEnrollmentRequest is a student's request to enroll for a period.
type SubmitEnrollmentRequest struct {
	ProgramID string `json:"programId" validate:"required"`
	PeriodID  string `json:"periodId" validate:"required"`
}

// ReviewEnrollmentRequest carries an optional rejection or void reason.
type ReviewEnrollmentRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}
