package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type requirementCounter interface {
	CountRequired(ctx context.Context, q database.Querier) (int, error)
	CountApprovedRequired(ctx context.Context, q database.Querier, applicationID string) (int, error)
}

type paymentChecker interface {
	HasVerified(ctx context.Context, q database.Querier, applicationID string) (bool, error)
}

type applicationReader interface {
	FindByID(ctx context.Context, q database.Querier, id string) (*models.Application, error)
}

// EligibilityService decides whether an application may be approved. Results
// are never cached; every call reads current requirement and payment state.
type EligibilityService struct {
	applications applicationReader
	requirements requirementCounter
	payments     paymentChecker
	logger       *zap.Logger
}

// NewEligibilityService constructs the evaluator.
func NewEligibilityService(applications applicationReader, requirements requirementCounter, payments paymentChecker, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{applications: applications, requirements: requirements, payments: payments, logger: logger}
}

// CanApprove evaluates an existing application outside any transaction.
func (s *EligibilityService) CanApprove(ctx context.Context, applicationID string) (*models.Eligibility, error) {
	if _, err := s.applications.FindByID(ctx, nil, applicationID); err != nil {
		return nil, loadErr(err, "application")
	}
	return s.Evaluate(ctx, nil, applicationID)
}

// Evaluate computes eligibility through q, so an approval transaction sees the
// same snapshot it commits against.
func (s *EligibilityService) Evaluate(ctx context.Context, q database.Querier, applicationID string) (*models.Eligibility, error) {
	total, err := s.requirements.CountRequired(ctx, q)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count required requirements")
	}
	approved, err := s.requirements.CountApprovedRequired(ctx, q, applicationID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to count approved requirements")
	}
	paid, err := s.payments.HasVerified(ctx, q, applicationID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to check payments")
	}

	result := &models.Eligibility{
		ApplicationID:      applicationID,
		TotalRequired:      total,
		ApprovedRequired:   approved,
		HasVerifiedPayment: paid,
	}
	requirementsMet := total == 0 || approved >= total
	switch {
	case requirementsMet && paid:
		result.Eligible = true
		result.Reason = models.EligibilityOK
	case !requirementsMet && !paid:
		result.Reason = models.EligibilityRequirementsAndPayment
	case !requirementsMet:
		result.Reason = models.EligibilityRequirementsMissing
	default:
		result.Reason = models.EligibilityPaymentUnverified
	}
	s.logger.Debug("eligibility evaluated",
		zap.String("application_id", applicationID),
		zap.Bool("eligible", result.Eligible),
		zap.String("reason", string(result.Reason)))
	return result, nil
}

// gatingError explains a failed evaluation.
func gatingError(e *models.Eligibility) error {
	var msg string
	switch e.Reason {
	case models.EligibilityRequirementsMissing:
		msg = "requirements incomplete"
	case models.EligibilityPaymentUnverified:
		msg = "payment unverified"
	default:
		msg = "requirements incomplete and payment unverified"
	}
	return appErrors.Clone(appErrors.ErrGatingNotMet, msg)
}
