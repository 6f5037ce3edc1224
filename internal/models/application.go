package models

import "time"

// ApplicationStatus captures the admission review lifecycle.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

// Application is a prospective student's admission application.
type Application struct {
	ID             string            `db:"id" json:"id"`
	ApplicantName  string            `db:"applicant_name" json:"applicant_name"`
	ApplicantEmail string            `db:"applicant_email" json:"applicant_email"`
	ProgramID      string            `db:"program_id" json:"program_id"`
	Status         ApplicationStatus `db:"status" json:"status"`
	StudentNumber  *string           `db:"student_number" json:"student_number,omitempty"`
	ReviewedBy     *string           `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time        `db:"reviewed_at" json:"reviewed_at,omitempty"`
	Notes          *string           `db:"notes" json:"notes,omitempty"`
	SubmittedAt    time.Time         `db:"submitted_at" json:"submitted_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// ApplicationFilter constrains listing queries.
type ApplicationFilter struct {
	Status    ApplicationStatus
	ProgramID string
	Page      int
	PageSize  int
}

// RequirementDefinition is a catalog entry an applicant may have to submit.
type RequirementDefinition struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Required bool   `db:"required" json:"required"`
}

// RequirementSubmissionStatus tracks admin review of a submitted requirement.
type RequirementSubmissionStatus string

const (
	RequirementSubmissionPending  RequirementSubmissionStatus = "PENDING"
	RequirementSubmissionApproved RequirementSubmissionStatus = "APPROVED"
)

// RequirementSubmission links an application to a requirement definition.
type RequirementSubmission struct {
	ID            string                      `db:"id" json:"id"`
	ApplicationID string                      `db:"application_id" json:"application_id"`
	RequirementID string                      `db:"requirement_id" json:"requirement_id"`
	Status        RequirementSubmissionStatus `db:"status" json:"status"`
	ReviewedBy    *string                     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time                  `db:"reviewed_at" json:"reviewed_at,omitempty"`
	UpdatedAt     time.Time                   `db:"updated_at" json:"updated_at"`
}

// PaymentStatus tracks cashier verification of a payment.
type PaymentStatus string

const (
	PaymentStatusUnverified PaymentStatus = "UNVERIFIED"
	PaymentStatusVerified   PaymentStatus = "VERIFIED"
)

// Payment is an admission fee payment attached to an application.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	ApplicationID string        `db:"application_id" json:"application_id"`
	Amount        float64       `db:"amount" json:"amount"`
	Method        string        `db:"method" json:"method"`
	Status        PaymentStatus `db:"status" json:"status"`
	VerifiedBy    *string       `db:"verified_by" json:"verified_by,omitempty"`
	VerifiedAt    *time.Time    `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// EligibilityReason explains an eligibility outcome.
type EligibilityReason string

const (
	EligibilityOK                     EligibilityReason = "ELIGIBLE"
	EligibilityRequirementsMissing    EligibilityReason = "REQUIREMENTS_INCOMPLETE"
	EligibilityPaymentUnverified      EligibilityReason = "PAYMENT_UNVERIFIED"
	EligibilityRequirementsAndPayment EligibilityReason = "REQUIREMENTS_AND_PAYMENT"
)

// Eligibility is the evaluated approval gate for an application.
type Eligibility struct {
	ApplicationID      string            `json:"application_id"`
	Eligible           bool              `json:"eligible"`
	Reason             EligibilityReason `json:"reason"`
	TotalRequired      int               `json:"total_required"`
	ApprovedRequired   int               `json:"approved_required"`
	HasVerifiedPayment bool              `json:"has_verified_payment"`
}
