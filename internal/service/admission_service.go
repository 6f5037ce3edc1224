package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/internal/workflow"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// maxStudentSequence is the largest sequence that fits the NNNN suffix.
const maxStudentSequence = 9999

type applicationStore interface {
	Create(ctx context.Context, q database.Querier, app *models.Application) error
	FindByID(ctx context.Context, q database.Querier, id string) (*models.Application, error)
	FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.Application, error)
	List(ctx context.Context, q database.Querier, filter models.ApplicationFilter) ([]models.Application, int, error)
	UpdateReview(ctx context.Context, q database.Querier, params repository.ApplicationReviewParams) error
	UpdateNotes(ctx context.Context, q database.Querier, id string, notes *string) error
}

type studentNumberAllocator interface {
	Next(ctx context.Context, q database.Querier, year int) (int, error)
}

type requirementReviewStore interface {
	FindDefinition(ctx context.Context, q database.Querier, id string) (*models.RequirementDefinition, error)
	UpsertSubmission(ctx context.Context, q database.Querier, sub *models.RequirementSubmission) error
}

type paymentStore interface {
	FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.Payment, error)
	UpdateVerification(ctx context.Context, q database.Querier, id string, status models.PaymentStatus, verifiedBy *string, verifiedAt *time.Time) error
}

type eligibilityEvaluator interface {
	Evaluate(ctx context.Context, q database.Querier, applicationID string) (*models.Eligibility, error)
}

// AdmissionProvisioner is notified after an approval commits.
type AdmissionProvisioner interface {
	ApplicationApproved(ctx context.Context, app models.Application) error
}

// AdmissionDeps bundles the collaborators of the admission workflow.
type AdmissionDeps struct {
	Tx           transactor
	Applications applicationStore
	Sequences    studentNumberAllocator
	Requirements requirementReviewStore
	Payments     paymentStore
	Eligibility  eligibilityEvaluator
	Audit        auditRecorder
	Provisioner  AdmissionProvisioner
	Metrics      transitionObserver
	Validator    *validator.Validate
	Logger       *zap.Logger
	// Location decides the calendar year of the student number.
	Location *time.Location
	Clock    func() time.Time
}

// AdmissionService owns the application state machine.
type AdmissionService struct {
	tx           transactor
	applications applicationStore
	sequences    studentNumberAllocator
	requirements requirementReviewStore
	payments     paymentStore
	eligibility  eligibilityEvaluator
	audit        auditRecorder
	provisioner  AdmissionProvisioner
	metrics      transitionObserver
	validator    *validator.Validate
	logger       *zap.Logger
	location     *time.Location
	now          clock
}

// NewAdmissionService constructs the workflow.
func NewAdmissionService(deps AdmissionDeps) *AdmissionService {
	svc := &AdmissionService{
		tx:           deps.Tx,
		applications: deps.Applications,
		sequences:    deps.Sequences,
		requirements: deps.Requirements,
		payments:     deps.Payments,
		eligibility:  deps.Eligibility,
		audit:        deps.Audit,
		provisioner:  deps.Provisioner,
		metrics:      deps.Metrics,
		validator:    deps.Validator,
		logger:       deps.Logger,
		location:     deps.Location,
		now:          deps.Clock,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.validator == nil {
		svc.validator = validator.New()
	}
	if svc.location == nil {
		svc.location = time.UTC
	}
	if svc.now == nil {
		svc.now = utcNow
	}
	return svc
}

// FormatStudentNumber renders the YYYY-NNNN identifier.
func FormatStudentNumber(year, seq int) string {
	return fmt.Sprintf("%04d-%04d", year, seq)
}

// Submit registers a pending application.
func (s *AdmissionService) Submit(ctx context.Context, req dto.SubmitApplicationRequest, actorID string) (*models.Application, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "application payload")
	}
	app := &models.Application{
		ApplicantName:  strings.TrimSpace(req.ApplicantName),
		ApplicantEmail: strings.ToLower(strings.TrimSpace(req.ApplicantEmail)),
		ProgramID:      req.ProgramID,
		Status:         models.ApplicationStatusPending,
		Notes:          optionalString(req.Notes),
		SubmittedAt:    s.now(),
	}
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		if err := s.applications.Create(ctx, q, app); err != nil {
			return writeErr(err, "application")
		}
		return s.audit.Log(ctx, q, actorID, models.AuditActionApplicationSubmit, models.EntityApplication, app.ID,
			fmt.Sprintf("application submitted for program %s", app.ProgramID))
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Approve re-checks status and eligibility under a row lock, allocates the
// student number and records the review in one transaction.
func (s *AdmissionService) Approve(ctx context.Context, applicationID, reviewerID, notes string) (*models.Application, error) {
	if err := requireActor(reviewerID); err != nil {
		return nil, err
	}
	var approved models.Application
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		app, err := s.applications.FindByIDForUpdate(ctx, q, applicationID)
		if err != nil {
			return loadErr(err, "application")
		}
		next, err := workflow.Application.Transition(app.Status, workflow.ApplicationApprove)
		if err != nil {
			return err
		}
		eligibility, err := s.eligibility.Evaluate(ctx, q, app.ID)
		if err != nil {
			return err
		}
		if !eligibility.Eligible {
			return gatingError(eligibility)
		}

		now := s.now()
		year := now.In(s.location).Year()
		seq, err := s.sequences.Next(ctx, q, year)
		if err != nil {
			return appErrors.Storage(err, "failed to allocate student number")
		}
		if seq > maxStudentSequence {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student number sequence exhausted for %d", year))
		}
		number := FormatStudentNumber(year, seq)

		params := repository.ApplicationReviewParams{
			ID:            app.ID,
			From:          app.Status,
			To:            next,
			ReviewedBy:    reviewerID,
			ReviewedAt:    now,
			Notes:         optionalString(notes),
			StudentNumber: &number,
		}
		if err := s.applications.UpdateReview(ctx, q, params); err != nil {
			return writeErr(err, "application")
		}
		if err := s.audit.Log(ctx, q, reviewerID, models.AuditActionApplicationApprove, models.EntityApplication, app.ID,
			fmt.Sprintf("application approved, student number %s", number)); err != nil {
			return err
		}

		app.Status = next
		app.ReviewedBy = &reviewerID
		app.ReviewedAt = &now
		app.StudentNumber = &number
		app.UpdatedAt = now
		if params.Notes != nil {
			app.Notes = params.Notes
		}
		approved = *app
		return nil
	})
	s.observe(workflow.ApplicationApprove, err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("application approved",
		zap.String("application_id", approved.ID),
		zap.String("reviewer_id", reviewerID),
		zap.String("student_number", *approved.StudentNumber))

	if s.provisioner != nil {
		if perr := s.provisioner.ApplicationApproved(ctx, approved); perr != nil {
			s.logger.Warn("provisioning dispatch failed after approval",
				zap.String("application_id", approved.ID), zap.Error(perr))
		}
	}
	return &approved, nil
}

// Reject closes a pending application. No gating applies.
func (s *AdmissionService) Reject(ctx context.Context, applicationID, reviewerID, notes string) (*models.Application, error) {
	if err := requireActor(reviewerID); err != nil {
		return nil, err
	}
	var rejected models.Application
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		app, err := s.applications.FindByIDForUpdate(ctx, q, applicationID)
		if err != nil {
			return loadErr(err, "application")
		}
		next, err := workflow.Application.Transition(app.Status, workflow.ApplicationReject)
		if err != nil {
			return err
		}
		now := s.now()
		params := repository.ApplicationReviewParams{
			ID:         app.ID,
			From:       app.Status,
			To:         next,
			ReviewedBy: reviewerID,
			ReviewedAt: now,
			Notes:      optionalString(notes),
		}
		if err := s.applications.UpdateReview(ctx, q, params); err != nil {
			return writeErr(err, "application")
		}
		if err := s.audit.Log(ctx, q, reviewerID, models.AuditActionApplicationReject, models.EntityApplication, app.ID, "application rejected"); err != nil {
			return err
		}
		app.Status = next
		app.ReviewedBy = &reviewerID
		app.ReviewedAt = &now
		app.UpdatedAt = now
		if params.Notes != nil {
			app.Notes = params.Notes
		}
		rejected = *app
		return nil
	})
	s.observe(workflow.ApplicationReject, err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("application rejected", zap.String("application_id", rejected.ID), zap.String("reviewer_id", reviewerID))
	return &rejected, nil
}

// UpdateNotes edits the notes in any status.
func (s *AdmissionService) UpdateNotes(ctx context.Context, applicationID, actorID, notes string) (*models.Application, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	var updated models.Application
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		app, err := s.applications.FindByIDForUpdate(ctx, q, applicationID)
		if err != nil {
			return loadErr(err, "application")
		}
		value := optionalString(notes)
		if err := s.applications.UpdateNotes(ctx, q, app.ID, value); err != nil {
			return writeErr(err, "application")
		}
		if err := s.audit.Log(ctx, q, actorID, models.AuditActionApplicationNotes, models.EntityApplication, app.ID, "application notes updated"); err != nil {
			return err
		}
		app.Notes = value
		updated = *app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ReviewRequirement sets the single submission for (application, requirement).
// Only pending applications accept review changes.
func (s *AdmissionService) ReviewRequirement(ctx context.Context, applicationID, requirementID string, req dto.ReviewRequirementRequest, actorID string) (*models.RequirementSubmission, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "requirement review")
	}
	var sub *models.RequirementSubmission
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		app, err := s.applications.FindByIDForUpdate(ctx, q, applicationID)
		if err != nil {
			return loadErr(err, "application")
		}
		if app.Status != models.ApplicationStatusPending {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("application is %s; requirements can no longer change", app.Status))
		}
		def, err := s.requirements.FindDefinition(ctx, q, requirementID)
		if err != nil {
			return loadErr(err, "requirement")
		}
		now := s.now()
		sub = &models.RequirementSubmission{
			ApplicationID: app.ID,
			RequirementID: def.ID,
			Status:        req.Status,
			ReviewedBy:    &actorID,
			ReviewedAt:    &now,
			UpdatedAt:     now,
		}
		if err := s.requirements.UpsertSubmission(ctx, q, sub); err != nil {
			return writeErr(err, "requirement submission")
		}
		return s.audit.Log(ctx, q, actorID, models.AuditActionRequirementReview, models.EntityRequirement, sub.ID,
			fmt.Sprintf("requirement %q marked %s for application %s", def.Name, req.Status, app.ID))
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// VerifyPayment marks a payment as verified by the cashier.
func (s *AdmissionService) VerifyPayment(ctx context.Context, paymentID, actorID string) (*models.Payment, error) {
	return s.setPaymentStatus(ctx, paymentID, actorID, models.PaymentStatusVerified)
}

// UnverifyPayment withdraws a verification, which re-closes the approval gate.
func (s *AdmissionService) UnverifyPayment(ctx context.Context, paymentID, actorID string) (*models.Payment, error) {
	return s.setPaymentStatus(ctx, paymentID, actorID, models.PaymentStatusUnverified)
}

func (s *AdmissionService) setPaymentStatus(ctx context.Context, paymentID, actorID string, status models.PaymentStatus) (*models.Payment, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	var result models.Payment
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		payment, err := s.payments.FindByIDForUpdate(ctx, q, paymentID)
		if err != nil {
			return loadErr(err, "payment")
		}
		if payment.Status == status {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("payment is already %s", status))
		}
		var verifiedBy *string
		var verifiedAt *time.Time
		action := models.AuditActionPaymentUnverify
		if status == models.PaymentStatusVerified {
			now := s.now()
			verifiedBy, verifiedAt = &actorID, &now
			action = models.AuditActionPaymentVerify
		}
		if err := s.payments.UpdateVerification(ctx, q, payment.ID, status, verifiedBy, verifiedAt); err != nil {
			return writeErr(err, "payment")
		}
		if err := s.audit.Log(ctx, q, actorID, action, models.EntityPayment, payment.ID,
			fmt.Sprintf("payment for application %s marked %s", payment.ApplicationID, status)); err != nil {
			return err
		}
		payment.Status, payment.VerifiedBy, payment.VerifiedAt = status, verifiedBy, verifiedAt
		result = *payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Get returns a single application.
func (s *AdmissionService) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	app, err := s.applications.FindByID(ctx, nil, applicationID)
	if err != nil {
		return nil, loadErr(err, "application")
	}
	return app, nil
}

// List returns applications for the review queue.
func (s *AdmissionService) List(ctx context.Context, query dto.ApplicationQuery) ([]models.Application, *models.Pagination, error) {
	filter := models.ApplicationFilter{
		Status:    models.ApplicationStatus(strings.ToUpper(string(query.Status))),
		ProgramID: query.ProgramID,
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	apps, total, err := s.applications.List(ctx, nil, filter)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to list applications")
	}
	return apps, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *AdmissionService) observe(event workflow.ApplicationEvent, err error) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(workflow.Application.Entity(), string(event), outcome(err))
	}
}
