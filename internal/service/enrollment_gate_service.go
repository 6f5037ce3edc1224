package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/internal/workflow"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type enrollmentStore interface {
	CreatePeriod(ctx context.Context, q database.Querier, period *models.EnrollmentPeriod) error
	FindPeriodByID(ctx context.Context, q database.Querier, id string) (*models.EnrollmentPeriod, error)
	ListPeriods(ctx context.Context, q database.Querier, programID string) ([]models.EnrollmentPeriod, error)
	UpdatePeriodStatus(ctx context.Context, q database.Querier, id string, status models.EnrollmentPeriodStatus) error
	CreateRequest(ctx context.Context, q database.Querier, req *models.EnrollmentRequest) error
	FindRequestByID(ctx context.Context, q database.Querier, id string) (*models.EnrollmentRequest, error)
	FindRequestByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.EnrollmentRequest, error)
	ListRequests(ctx context.Context, q database.Querier, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, error)
	UpdateRequest(ctx context.Context, q database.Querier, req *models.EnrollmentRequest, expected models.EnrollmentRequestStatus) error
}

// EnrollmentProvisioner is notified after an enrollment approval commits.
type EnrollmentProvisioner interface {
	EnrollmentApproved(ctx context.Context, req models.EnrollmentRequest) error
}

// EnrollmentGateService governs enrollment windows and requests.
type EnrollmentGateService struct {
	tx          transactor
	repo        enrollmentStore
	audit       auditRecorder
	provisioner EnrollmentProvisioner
	metrics     transitionObserver
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	now         clock
}

// EnrollmentGateOption configures the service.
type EnrollmentGateOption func(*EnrollmentGateService)

// WithEnrollmentClock overrides the wall clock used for window checks.
func WithEnrollmentClock(now clock) EnrollmentGateOption {
	return func(s *EnrollmentGateService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEnrollmentProvisioner sets the post-approval collaborator.
func WithEnrollmentProvisioner(p EnrollmentProvisioner) EnrollmentGateOption {
	return func(s *EnrollmentGateService) {
		s.provisioner = p
	}
}

// WithEnrollmentMetrics records transition outcomes.
func WithEnrollmentMetrics(m transitionObserver) EnrollmentGateOption {
	return func(s *EnrollmentGateService) {
		s.metrics = m
	}
}

// WithPeriodCache serves period listings from a read cache.
func WithPeriodCache(cache *CacheService) EnrollmentGateOption {
	return func(s *EnrollmentGateService) {
		s.cache = cache
	}
}

// NewEnrollmentGateService constructs the gate.
func NewEnrollmentGateService(tx transactor, repo enrollmentStore, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, opts ...EnrollmentGateOption) *EnrollmentGateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &EnrollmentGateService{tx: tx, repo: repo, audit: audit, validator: validate, logger: logger, now: utcNow}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreatePeriod defines an enrollment window; start must precede end.
func (s *EnrollmentGateService) CreatePeriod(ctx context.Context, req dto.CreatePeriodRequest, actorID string) (*models.EnrollmentPeriod, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "enrollment period")
	}
	if !req.StartsAt.Before(req.EndsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period start must be before its end")
	}
	period := &models.EnrollmentPeriod{
		ProgramID:    req.ProgramID,
		AcademicYear: strings.TrimSpace(req.AcademicYear),
		Semester:     strings.TrimSpace(req.Semester),
		StartsAt:     req.StartsAt.UTC(),
		EndsAt:       req.EndsAt.UTC(),
		Status:       models.EnrollmentPeriodUpcoming,
		AutoClose:    req.AutoClose,
		CreatedBy:    actorID,
		CreatedAt:    s.now(),
	}
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		if err := s.repo.CreatePeriod(ctx, q, period); err != nil {
			return writeErr(err, "enrollment period")
		}
		return s.audit.Log(ctx, q, actorID, models.AuditActionPeriodCreate, models.EntityEnrollmentPeriod, period.ID,
			fmt.Sprintf("period %s %s for program %s", period.AcademicYear, period.Semester, period.ProgramID))
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, periodCachePattern)
	return period, nil
}

// SetPeriodStatus changes the administrative flag of a period.
func (s *EnrollmentGateService) SetPeriodStatus(ctx context.Context, periodID string, req dto.SetPeriodStatusRequest, actorID string) (*models.EnrollmentPeriod, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	req.Status = models.EnrollmentPeriodStatus(strings.ToUpper(string(req.Status)))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "period status")
	}
	var result models.EnrollmentPeriod
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		period, err := s.repo.FindPeriodByID(ctx, q, periodID)
		if err != nil {
			return loadErr(err, "enrollment period")
		}
		if err := s.repo.UpdatePeriodStatus(ctx, q, period.ID, req.Status); err != nil {
			return writeErr(err, "enrollment period")
		}
		if err := s.audit.Log(ctx, q, actorID, models.AuditActionPeriodStatus, models.EntityEnrollmentPeriod, period.ID,
			fmt.Sprintf("period status %s -> %s", period.Status, req.Status)); err != nil {
			return err
		}
		period.Status = req.Status
		result = *period
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, periodCachePattern)
	return &result, nil
}

// SubmitRequest files a student's request for an open period of its program.
func (s *EnrollmentGateService) SubmitRequest(ctx context.Context, req dto.SubmitEnrollmentRequest, studentID string) (*models.EnrollmentRequest, error) {
	if err := requireActor(studentID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "enrollment request")
	}
	var created *models.EnrollmentRequest
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		period, err := s.repo.FindPeriodByID(ctx, q, req.PeriodID)
		if err != nil {
			return loadErr(err, "enrollment period")
		}
		if period.ProgramID != req.ProgramID {
			return appErrors.Clone(appErrors.ErrValidation, "period does not belong to the requested program")
		}
		if !workflow.PeriodAcceptsApprovals(*period, s.now()) {
			return appErrors.Clone(appErrors.ErrPeriodClosed, "enrollment period is not open")
		}
		created = &models.EnrollmentRequest{
			StudentID: studentID,
			ProgramID: req.ProgramID,
			PeriodID:  period.ID,
			Status:    models.EnrollmentRequestPending,
			CreatedAt: s.now(),
		}
		if err := s.repo.CreateRequest(ctx, q, created); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrDuplicateRequest, "student already has a request for this period")
			}
			return appErrors.Storage(err, "failed to create enrollment request")
		}
		return s.audit.Log(ctx, q, studentID, models.AuditActionEnrollmentSubmit, models.EntityEnrollmentReq, created.ID,
			fmt.Sprintf("enrollment requested for period %s", period.ID))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ApproveEnrollmentRequest approves a pending request while its period still
// accepts approvals at the current wall-clock time.
func (s *EnrollmentGateService) ApproveEnrollmentRequest(ctx context.Context, requestID, reviewerID string) (*models.EnrollmentRequest, error) {
	if err := requireActor(reviewerID); err != nil {
		return nil, err
	}
	var approved models.EnrollmentRequest
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		req, err := s.repo.FindRequestByIDForUpdate(ctx, q, requestID)
		if err != nil {
			return loadErr(err, "enrollment request")
		}
		next, err := workflow.EnrollmentRequest.Transition(req.Status, workflow.EnrollmentApprove)
		if err != nil {
			return err
		}
		period, err := s.repo.FindPeriodByID(ctx, q, req.PeriodID)
		if err != nil {
			return loadErr(err, "enrollment period")
		}
		now := s.now()
		if !workflow.PeriodAcceptsApprovals(*period, now) {
			return appErrors.Clone(appErrors.ErrPeriodClosed, fmt.Sprintf("enrollment period %s is closed", period.ID))
		}
		expected := req.Status
		req.Status = next
		req.ReviewedBy = &reviewerID
		req.ReviewedAt = &now
		if err := s.repo.UpdateRequest(ctx, q, req, expected); err != nil {
			return writeErr(err, "enrollment request")
		}
		if err := s.audit.Log(ctx, q, reviewerID, models.AuditActionEnrollmentApprove, models.EntityEnrollmentReq, req.ID, "enrollment request approved"); err != nil {
			return err
		}
		approved = *req
		return nil
	})
	s.observe(workflow.EnrollmentApprove, err)
	if err != nil {
		return nil, err
	}
	if s.provisioner != nil {
		if perr := s.provisioner.EnrollmentApproved(ctx, approved); perr != nil {
			s.logger.Warn("provisioning dispatch failed after enrollment approval",
				zap.String("request_id", approved.ID), zap.Error(perr))
		}
	}
	return &approved, nil
}

// RejectEnrollmentRequest rejects a pending request; reason is optional.
func (s *EnrollmentGateService) RejectEnrollmentRequest(ctx context.Context, requestID, reviewerID, reason string) (*models.EnrollmentRequest, error) {
	return s.close(ctx, requestID, reviewerID, reason, workflow.EnrollmentReject, models.AuditActionEnrollmentReject)
}

// VoidRequest cancels a pending or approved request.
func (s *EnrollmentGateService) VoidRequest(ctx context.Context, requestID, actorID, reason string) (*models.EnrollmentRequest, error) {
	return s.close(ctx, requestID, actorID, reason, workflow.EnrollmentVoid, models.AuditActionEnrollmentVoid)
}

func (s *EnrollmentGateService) close(ctx context.Context, requestID, actorID, reason string, event workflow.EnrollmentEvent, action string) (*models.EnrollmentRequest, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	var result models.EnrollmentRequest
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		req, err := s.repo.FindRequestByIDForUpdate(ctx, q, requestID)
		if err != nil {
			return loadErr(err, "enrollment request")
		}
		next, err := workflow.EnrollmentRequest.Transition(req.Status, event)
		if err != nil {
			return err
		}
		expected := req.Status
		now := s.now()
		req.Status = next
		req.ReviewedBy = &actorID
		req.ReviewedAt = &now
		req.RejectionReason = optionalString(reason)
		if err := s.repo.UpdateRequest(ctx, q, req, expected); err != nil {
			return writeErr(err, "enrollment request")
		}
		description := fmt.Sprintf("enrollment request %s", strings.ToLower(string(next)))
		if reason != "" {
			description += ": " + reason
		}
		if err := s.audit.Log(ctx, q, actorID, action, models.EntityEnrollmentReq, req.ID, description); err != nil {
			return err
		}
		result = *req
		return nil
	})
	s.observe(event, err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

const periodCachePattern = "enrollment-periods:*"

func periodCacheKey(programID string) string {
	if programID == "" {
		programID = "all"
	}
	return "enrollment-periods:" + programID
}

// ListPeriods returns the windows of a program. Listings may come from the read
// cache; submission and approval always load the period inside their transaction.
func (s *EnrollmentGateService) ListPeriods(ctx context.Context, programID string) ([]models.EnrollmentPeriod, error) {
	var periods []models.EnrollmentPeriod
	key := periodCacheKey(programID)
	if s.cache.Get(ctx, key, &periods) {
		return periods, nil
	}
	periods, err := s.repo.ListPeriods(ctx, nil, programID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list enrollment periods")
	}
	s.cache.Set(ctx, key, periods)
	return periods, nil
}

// ListRequests returns requests for the review queue.
func (s *EnrollmentGateService) ListRequests(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, error) {
	reqs, err := s.repo.ListRequests(ctx, nil, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list enrollment requests")
	}
	return reqs, nil
}

func (s *EnrollmentGateService) observe(event workflow.EnrollmentEvent, err error) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(workflow.EnrollmentRequest.Entity(), string(event), outcome(err))
	}
}
