package dto

// SubmitGradeRequest records or resubmits a grade for review.
type SubmitGradeRequest struct {
	StudentID string   `json:"studentId" validate:"required"`
	SubjectID string   `json:"subjectId" validate:"required"`
	TermID    string   `json:"termId" validate:"required"`
	Value     *float64 `json:"value" validate:"required,gte=0,lte=100"`
}

// RejectGradeRequest requires a reason.
type RejectGradeRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// CreateEditRequest asks for a one-time correction of an approved grade.
type CreateEditRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// ReviewEditRequest carries reviewer notes; notes are mandatory when denying.
type ReviewEditRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

// SubmitEditedValueRequest carries the corrected grade value.
type SubmitEditedValueRequest struct {
	Value *float64 `json:"value" validate:"required,gte=0,lte=100"`
}
