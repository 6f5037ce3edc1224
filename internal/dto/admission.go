package dto

import "github.com/noah-isme/academic-records-api/internal/models"

// SubmitApplicationRequest registers a new admission application.
type SubmitApplicationRequest struct {
	ApplicantName  string `json:"applicantName" validate:"required,max=200"`
	ApplicantEmail string `json:"applicantEmail" validate:"required,email"`
	ProgramID      string `json:"programId" validate:"required"`
	Notes          string `json:"notes" validate:"max=2000"`
}

// ReviewApplicationRequest carries reviewer notes for approve/reject.
type ReviewApplicationRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// UpdateNotesRequest replaces an application's notes.
type UpdateNotesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// ReviewRequirementRequest sets the status of a requirement submission.
type ReviewRequirementRequest struct {
	Status models.RequirementSubmissionStatus `json:"status" validate:"required,oneof=PENDING APPROVED"`
}

// ApplicationQuery mirrors supported listing filters.
type ApplicationQuery struct {
	Status    models.ApplicationStatus
	ProgramID string
	Page      int
	PageSize  int
}
