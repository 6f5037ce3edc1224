package models

import "time"

// BackSubjectStatus tracks remedial progress.
type BackSubjectStatus string

const (
	BackSubjectPending    BackSubjectStatus = "PENDING"
	BackSubjectInProgress BackSubjectStatus = "IN_PROGRESS"
	BackSubjectCompleted  BackSubjectStatus = "COMPLETED"
)

// BackSubject is a remedial subject a student must retake. Units freeze once completed.
type BackSubject struct {
	ID             string            `db:"id" json:"id"`
	StudentID      string            `db:"student_id" json:"student_id"`
	SubjectID      string            `db:"subject_id" json:"subject_id"`
	RequiredUnits  int               `db:"required_units" json:"required_units"`
	CompletedUnits int               `db:"completed_units" json:"completed_units"`
	Status         BackSubjectStatus `db:"status" json:"status"`
	CompletionDate *time.Time        `db:"completion_date" json:"completion_date,omitempty"`
	Notes          *string           `db:"notes" json:"notes,omitempty"`
	CreatedBy      string            `db:"created_by" json:"created_by"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}
