package models

import "time"

// GradeApprovalStatus represents the review state of a submitted grade.
type GradeApprovalStatus string

const (
	GradeStatusSubmitted GradeApprovalStatus = "SUBMITTED"
	GradeStatusApproved  GradeApprovalStatus = "APPROVED"
	GradeStatusRejected  GradeApprovalStatus = "REJECTED"
)

// Grade is a teacher-submitted grade for a student, subject and academic term.
// Locked grades cannot be changed by their teacher.
type Grade struct {
	ID              string              `db:"id" json:"id"`
	StudentID       string              `db:"student_id" json:"student_id"`
	SubjectID       string              `db:"subject_id" json:"subject_id"`
	TeacherID       string              `db:"teacher_id" json:"teacher_id"`
	TermID          string              `db:"term_id" json:"term_id"`
	Value           float64             `db:"grade_value" json:"grade_value"`
	ApprovalStatus  GradeApprovalStatus `db:"approval_status" json:"approval_status"`
	ManuallyEdited  bool                `db:"manually_edited" json:"manually_edited"`
	Locked          bool                `db:"locked" json:"locked"`
	ReviewedBy      *string             `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time          `db:"reviewed_at" json:"reviewed_at,omitempty"`
	RejectionReason *string             `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// GradeFilter scopes grade listings.
type GradeFilter struct {
	TeacherID      string
	TermID         string
	SubjectID      string
	ApprovalStatus GradeApprovalStatus
}

// GradeEditRequestStatus is the persisted status of an edit request.
type GradeEditRequestStatus string

const (
	EditRequestPending   GradeEditRequestStatus = "PENDING"
	EditRequestApproved  GradeEditRequestStatus = "APPROVED"
	EditRequestDenied    GradeEditRequestStatus = "DENIED"
	EditRequestCompleted GradeEditRequestStatus = "COMPLETED"
)

// GradeEditRequest asks for a one-time correction of an approved grade.
type GradeEditRequest struct {
	ID            string                 `db:"id" json:"id"`
	GradeID       string                 `db:"grade_id" json:"grade_id"`
	RequestedBy   string                 `db:"requested_by" json:"requested_by"`
	Reason        string                 `db:"reason" json:"reason"`
	Status        GradeEditRequestStatus `db:"status" json:"status"`
	EditCompleted bool                   `db:"edit_completed" json:"edit_completed"`
	PreviousValue *float64               `db:"previous_value" json:"previous_value,omitempty"`
	ReviewedBy    *string                `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time             `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewNotes   *string                `db:"review_notes" json:"review_notes,omitempty"`
	CompletedBy   *string                `db:"completed_by" json:"completed_by,omitempty"`
	CompletedAt   *time.Time             `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time              `db:"created_at" json:"created_at"`
}

// IsOpen reports whether the request still blocks new requests for its grade.
func (r GradeEditRequest) IsOpen() bool {
	return r.Status == EditRequestPending || r.Status == EditRequestApproved
}
