package service

import (
	"context"
	"database/sql"
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

type gradeStore interface {
	Create(ctx context.Context, q database.Querier, grade *models.Grade) error
	FindByID(ctx context.Context, q database.Querier, id string) (*models.Grade, error)
	FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.Grade, error)
	FindByKeyForUpdate(ctx context.Context, q database.Querier, studentID, subjectID, termID string) (*models.Grade, error)
	List(ctx context.Context, q database.Querier, filter models.GradeFilter) ([]models.Grade, error)
	Update(ctx context.Context, q database.Querier, grade *models.Grade, expected models.GradeApprovalStatus) error
}

type editRequestStore interface {
	Create(ctx context.Context, q database.Querier, req *models.GradeEditRequest) error
	FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.GradeEditRequest, error)
	FindOpenByGrade(ctx context.Context, q database.Querier, gradeID string) (*models.GradeEditRequest, error)
	FindLatestByGrade(ctx context.Context, q database.Querier, gradeID string) (*models.GradeEditRequest, error)
	ListByGrade(ctx context.Context, q database.Querier, gradeID string) ([]models.GradeEditRequest, error)
	Update(ctx context.Context, q database.Querier, req *models.GradeEditRequest, expected models.GradeEditRequestStatus) error
}

// GradeApprovalService owns grade approval and the edit request sub-workflow.
type GradeApprovalService struct {
	tx        transactor
	grades    gradeStore
	requests  editRequestStore
	audit     auditRecorder
	metrics   transitionObserver
	validator *validator.Validate
	logger    *zap.Logger
	now       clock
}

// GradeApprovalOption configures the service.
type GradeApprovalOption func(*GradeApprovalService)

// WithGradeClock overrides the time source.
func WithGradeClock(now clock) GradeApprovalOption {
	return func(s *GradeApprovalService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGradeMetrics records transition outcomes.
func WithGradeMetrics(m transitionObserver) GradeApprovalOption {
	return func(s *GradeApprovalService) {
		s.metrics = m
	}
}

// NewGradeApprovalService constructs the workflow.
func NewGradeApprovalService(tx transactor, grades gradeStore, requests editRequestStore, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, opts ...GradeApprovalOption) *GradeApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &GradeApprovalService{
		tx:        tx,
		grades:    grades,
		requests:  requests,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       utcNow,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// SubmitGrade records a new grade, revises a submitted one, or resubmits a
// rejected one. Approved grades answer LOCKED.
func (s *GradeApprovalService) SubmitGrade(ctx context.Context, req dto.SubmitGradeRequest, teacherID string) (*models.Grade, error) {
	if err := requireActor(teacherID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "grade payload")
	}
	var result models.Grade
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		grade, err := s.grades.FindByKeyForUpdate(ctx, q, req.StudentID, req.SubjectID, req.TermID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Storage(err, "failed to load grade")
		}
		if grade == nil {
			grade = &models.Grade{
				StudentID:      req.StudentID,
				SubjectID:      req.SubjectID,
				TeacherID:      teacherID,
				TermID:         req.TermID,
				Value:          *req.Value,
				ApprovalStatus: models.GradeStatusSubmitted,
			}
			if err := s.grades.Create(ctx, q, grade); err != nil {
				return writeErr(err, "grade")
			}
		} else {
			if grade.TeacherID != teacherID {
				return appErrors.Clone(appErrors.ErrForbidden, "grade belongs to another teacher")
			}
			if grade.ApprovalStatus == models.GradeStatusApproved {
				return appErrors.Clone(appErrors.ErrLocked, "approved grade is locked; request an edit")
			}
			event := workflow.GradeRevise
			if grade.ApprovalStatus == models.GradeStatusRejected {
				event = workflow.GradeResubmit
			}
			next, err := workflow.Grade.Transition(grade.ApprovalStatus, event)
			if err != nil {
				return err
			}
			expected := grade.ApprovalStatus
			grade.Value = *req.Value
			grade.ApprovalStatus = next
			grade.RejectionReason = nil
			grade.Locked = false
			if err := s.grades.Update(ctx, q, grade, expected); err != nil {
				return writeErr(err, "grade")
			}
		}
		if err := s.audit.Log(ctx, q, teacherID, models.AuditActionGradeSubmit, models.EntityGrade, grade.ID,
			fmt.Sprintf("grade %.2f submitted for student %s subject %s", grade.Value, grade.StudentID, grade.SubjectID)); err != nil {
			return err
		}
		result = *grade
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ApproveGrade makes a submitted grade authoritative and locks it.
func (s *GradeApprovalService) ApproveGrade(ctx context.Context, gradeID, reviewerID string) (*models.Grade, error) {
	return s.review(ctx, gradeID, reviewerID, workflow.GradeApprove, "")
}

// RejectGrade sends a submitted grade back to its teacher. reason is mandatory.
func (s *GradeApprovalService) RejectGrade(ctx context.Context, gradeID, reviewerID, reason string) (*models.Grade, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	return s.review(ctx, gradeID, reviewerID, workflow.GradeReject, strings.TrimSpace(reason))
}

func (s *GradeApprovalService) review(ctx context.Context, gradeID, reviewerID string, event workflow.GradeEvent, reason string) (*models.Grade, error) {
	if err := requireActor(reviewerID); err != nil {
		return nil, err
	}
	var result models.Grade
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		grade, err := s.grades.FindByIDForUpdate(ctx, q, gradeID)
		if err != nil {
			return loadErr(err, "grade")
		}
		next, err := workflow.Grade.Transition(grade.ApprovalStatus, event)
		if err != nil {
			return err
		}
		expected := grade.ApprovalStatus
		now := s.now()
		grade.ApprovalStatus = next
		grade.ReviewedBy = &reviewerID
		grade.ReviewedAt = &now
		action := models.AuditActionGradeApprove
		description := "grade approved and locked"
		if event == workflow.GradeReject {
			grade.RejectionReason = &reason
			grade.Locked = false
			action = models.AuditActionGradeReject
			description = "grade rejected: " + reason
		} else {
			grade.RejectionReason = nil
			grade.Locked = true
		}
		if err := s.grades.Update(ctx, q, grade, expected); err != nil {
			return writeErr(err, "grade")
		}
		if err := s.audit.Log(ctx, q, reviewerID, action, models.EntityGrade, grade.ID, description); err != nil {
			return err
		}
		result = *grade
		return nil
	})
	s.observe(workflow.Grade.Entity(), string(event), err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("grade reviewed", zap.String("grade_id", gradeID), zap.String("event", string(event)), zap.String("reviewer_id", reviewerID))
	return &result, nil
}

// CreateEditRequest opens a correction request on an approved grade. The grade
// row lock serializes creators; the partial unique index backs it up.
func (s *GradeApprovalService) CreateEditRequest(ctx context.Context, gradeID, teacherID string, req dto.CreateEditRequest) (*models.GradeEditRequest, error) {
	if err := requireActor(teacherID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "edit request")
	}
	var created *models.GradeEditRequest
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		grade, err := s.grades.FindByIDForUpdate(ctx, q, gradeID)
		if err != nil {
			return loadErr(err, "grade")
		}
		if grade.TeacherID != teacherID {
			return appErrors.Clone(appErrors.ErrForbidden, "grade belongs to another teacher")
		}
		if grade.ApprovalStatus != models.GradeStatusApproved {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("grade is %s; only approved grades need an edit request", grade.ApprovalStatus))
		}
		if _, err := s.requests.FindOpenByGrade(ctx, q, grade.ID); err == nil {
			return appErrors.Clone(appErrors.ErrDuplicateRequest, "grade already has an open edit request")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Storage(err, "failed to check open edit requests")
		}
		created = &models.GradeEditRequest{
			GradeID:     grade.ID,
			RequestedBy: teacherID,
			Reason:      strings.TrimSpace(req.Reason),
			Status:      models.EditRequestPending,
			CreatedAt:   s.now(),
		}
		if err := s.requests.Create(ctx, q, created); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrDuplicateRequest, "grade already has an open edit request")
			}
			return appErrors.Storage(err, "failed to create edit request")
		}
		return s.audit.Log(ctx, q, teacherID, models.AuditActionEditRequestCreate, models.EntityGradeEditRequest, created.ID,
			fmt.Sprintf("edit requested for grade %s: %s", grade.ID, created.Reason))
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ApproveRequest unlocks the grade for exactly one edit by its teacher.
func (s *GradeApprovalService) ApproveRequest(ctx context.Context, requestID, reviewerID, notes string) (*models.GradeEditRequest, error) {
	return s.decide(ctx, requestID, reviewerID, workflow.EditApprove, strings.TrimSpace(notes))
}

// DenyRequest closes a pending request. notes are mandatory.
func (s *GradeApprovalService) DenyRequest(ctx context.Context, requestID, reviewerID, notes string) (*models.GradeEditRequest, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "denial notes are required")
	}
	return s.decide(ctx, requestID, reviewerID, workflow.EditDeny, strings.TrimSpace(notes))
}

func (s *GradeApprovalService) decide(ctx context.Context, requestID, reviewerID string, event workflow.EditEvent, notes string) (*models.GradeEditRequest, error) {
	if err := requireActor(reviewerID); err != nil {
		return nil, err
	}
	var result models.GradeEditRequest
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		req, err := s.requests.FindByIDForUpdate(ctx, q, requestID)
		if err != nil {
			return loadErr(err, "edit request")
		}
		next, err := workflow.EditRequest.Transition(workflow.PhaseOf(*req), event)
		if err != nil {
			return err
		}
		expected := req.Status
		now := s.now()
		workflow.ApplyPhase(req, next)
		req.ReviewedBy = &reviewerID
		req.ReviewedAt = &now
		req.ReviewNotes = optionalString(notes)
		if err := s.requests.Update(ctx, q, req, expected); err != nil {
			return writeErr(err, "edit request")
		}

		action := models.AuditActionEditRequestDeny
		description := "edit request denied: " + notes
		if event == workflow.EditApprove {
			grade, err := s.grades.FindByIDForUpdate(ctx, q, req.GradeID)
			if err != nil {
				return loadErr(err, "grade")
			}
			grade.Locked = false
			if err := s.grades.Update(ctx, q, grade, grade.ApprovalStatus); err != nil {
				return writeErr(err, "grade")
			}
			action = models.AuditActionEditRequestApprove
			description = fmt.Sprintf("edit request approved; grade %s unlocked for one edit", grade.ID)
		}
		if err := s.audit.Log(ctx, q, reviewerID, action, models.EntityGradeEditRequest, req.ID, description); err != nil {
			return err
		}
		result = *req
		return nil
	})
	s.observe(workflow.EditRequest.Entity(), string(event), err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SubmitEditedValue consumes the unlocked edit: it stores the new value, flags
// the grade as manually edited and locks it again until an admin relocks.
func (s *GradeApprovalService) SubmitEditedValue(ctx context.Context, gradeID, teacherID string, req dto.SubmitEditedValueRequest) (*models.Grade, error) {
	if err := requireActor(teacherID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "edited grade")
	}
	var result models.Grade
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		grade, err := s.grades.FindByIDForUpdate(ctx, q, gradeID)
		if err != nil {
			return loadErr(err, "grade")
		}
		if grade.TeacherID != teacherID {
			return appErrors.Clone(appErrors.ErrForbidden, "grade belongs to another teacher")
		}
		editReq, err := s.requests.FindOpenByGrade(ctx, q, grade.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrLocked, "grade is locked; an approved edit request is required")
		}
		if err != nil {
			return appErrors.Storage(err, "failed to load edit request")
		}
		next, err := workflow.EditRequest.Transition(workflow.PhaseOf(*editReq), workflow.EditRecord)
		if err != nil {
			return appErrors.Clone(appErrors.ErrLocked, "grade is locked; the edit request is not approved for editing")
		}

		previous := grade.Value
		expectedReq := editReq.Status
		workflow.ApplyPhase(editReq, next)
		editReq.PreviousValue = &previous
		if err := s.requests.Update(ctx, q, editReq, expectedReq); err != nil {
			return writeErr(err, "edit request")
		}

		grade.Value = *req.Value
		grade.ManuallyEdited = true
		grade.Locked = true
		if err := s.grades.Update(ctx, q, grade, grade.ApprovalStatus); err != nil {
			return writeErr(err, "grade")
		}
		if err := s.audit.Log(ctx, q, teacherID, models.AuditActionGradeEdit, models.EntityGrade, grade.ID,
			fmt.Sprintf("grade changed from %.2f to %.2f under edit request %s", previous, grade.Value, editReq.ID)); err != nil {
			return err
		}
		result = *grade
		return nil
	})
	s.observe(workflow.EditRequest.Entity(), string(workflow.EditRecord), err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CompleteAndRelock closes the grade's consumed edit request and re-approves
// the grade. It is single-use: a second call finds the request completed.
func (s *GradeApprovalService) CompleteAndRelock(ctx context.Context, gradeID, reviewerID string) (*models.Grade, error) {
	if err := requireActor(reviewerID); err != nil {
		return nil, err
	}
	var result models.Grade
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		grade, err := s.grades.FindByIDForUpdate(ctx, q, gradeID)
		if err != nil {
			return loadErr(err, "grade")
		}
		editReq, err := s.requests.FindLatestByGrade(ctx, q, grade.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidState, "grade has no edit request to complete")
		}
		if err != nil {
			return appErrors.Storage(err, "failed to load edit request")
		}
		next, err := workflow.EditRequest.Transition(workflow.PhaseOf(*editReq), workflow.EditComplete)
		if err != nil {
			return err
		}
		gradeNext, err := workflow.Grade.Transition(grade.ApprovalStatus, workflow.GradeRelock)
		if err != nil {
			return err
		}

		now := s.now()
		expectedReq := editReq.Status
		workflow.ApplyPhase(editReq, next)
		editReq.CompletedBy = &reviewerID
		editReq.CompletedAt = &now
		if err := s.requests.Update(ctx, q, editReq, expectedReq); err != nil {
			return writeErr(err, "edit request")
		}

		expectedGrade := grade.ApprovalStatus
		grade.ApprovalStatus = gradeNext
		grade.Locked = true
		grade.ReviewedBy = &reviewerID
		grade.ReviewedAt = &now
		if err := s.grades.Update(ctx, q, grade, expectedGrade); err != nil {
			return writeErr(err, "grade")
		}
		if err := s.audit.Log(ctx, q, reviewerID, models.AuditActionGradeRelock, models.EntityGrade, grade.ID,
			fmt.Sprintf("edit request %s completed; grade re-approved and locked", editReq.ID)); err != nil {
			return err
		}
		result = *grade
		return nil
	})
	s.observe(workflow.EditRequest.Entity(), string(workflow.EditComplete), err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("grade relocked", zap.String("grade_id", gradeID), zap.String("reviewer_id", reviewerID))
	return &result, nil
}

// Get returns a grade.
func (s *GradeApprovalService) Get(ctx context.Context, gradeID string) (*models.Grade, error) {
	grade, err := s.grades.FindByID(ctx, nil, gradeID)
	if err != nil {
		return nil, loadErr(err, "grade")
	}
	return grade, nil
}

// List returns grades for the review queue.
func (s *GradeApprovalService) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	grades, err := s.grades.List(ctx, nil, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list grades")
	}
	return grades, nil
}

// ListEditRequests returns a grade's correction history.
func (s *GradeApprovalService) ListEditRequests(ctx context.Context, gradeID string) ([]models.GradeEditRequest, error) {
	reqs, err := s.requests.ListByGrade(ctx, nil, gradeID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list edit requests")
	}
	return reqs, nil
}

func (s *GradeApprovalService) observe(entity, event string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(entity, event, outcome(err))
	}
}
