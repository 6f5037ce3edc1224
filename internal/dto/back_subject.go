package dto

import "time"

// AddBackSubjectRequest opens a remedial record for a student.
type AddBackSubjectRequest struct {
	SubjectID     string `json:"subjectId" validate:"required"`
	RequiredUnits int    `json:"requiredUnits" validate:"required,gt=0"`
	Notes         string `json:"notes" validate:"max=1000"`
}

// UpdateUnitsRequest replaces unit bookkeeping on an open record.
type UpdateUnitsRequest struct {
	RequiredUnits  int `json:"requiredUnits" validate:"gt=0"`
	CompletedUnits int `json:"completedUnits" validate:"gte=0"`
}

// MarkCompletedRequest freezes a record.
type MarkCompletedRequest struct {
	CompletedUnits int        `json:"completedUnits" validate:"gte=0"`
	CompletionDate *time.Time `json:"completionDate"`
	Notes          string     `json:"notes" validate:"max=1000"`
}
