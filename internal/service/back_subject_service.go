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
	"github.com/noah-isme/academic-records-api/internal/workflow"
	"github.com/noah-isme/academic-records-api/pkg/database"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type backSubjectStore interface {
	Create(ctx context.Context, q database.Querier, bs *models.BackSubject) error
	FindByID(ctx context.Context, q database.Querier, id string) (*models.BackSubject, error)
	FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.BackSubject, error)
	ListByStudent(ctx context.Context, q database.Querier, studentID string) ([]models.BackSubject, error)
	Update(ctx context.Context, q database.Querier, bs *models.BackSubject, expected models.BackSubjectStatus) error
}

// BackSubjectService maintains the remedial ledger and its completion lock.
type BackSubjectService struct {
	tx        transactor
	repo      backSubjectStore
	audit     auditRecorder
	metrics   transitionObserver
	validator *validator.Validate
	logger    *zap.Logger
	now       clock
}

// NewBackSubjectService constructs the ledger.
func NewBackSubjectService(tx transactor, repo backSubjectStore, audit auditRecorder, metrics transitionObserver, validate *validator.Validate, logger *zap.Logger) *BackSubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BackSubjectService{tx: tx, repo: repo, audit: audit, metrics: metrics, validator: validate, logger: logger, now: utcNow}
}

// AddBackSubject opens a pending record. A student holds one record per subject.
func (s *BackSubjectService) AddBackSubject(ctx context.Context, studentID string, req dto.AddBackSubjectRequest, actorID string) (*models.BackSubject, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationErr(err, "back subject payload")
	}
	bs := &models.BackSubject{
		StudentID:     studentID,
		SubjectID:     req.SubjectID,
		RequiredUnits: req.RequiredUnits,
		Status:        models.BackSubjectPending,
		Notes:         optionalString(req.Notes),
		CreatedBy:     actorID,
		CreatedAt:     s.now(),
	}
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		if err := s.repo.Create(ctx, q, bs); err != nil {
			return writeErr(err, "back subject")
		}
		return s.audit.Log(ctx, q, actorID, models.AuditActionBackSubjectAdd, models.EntityBackSubject, bs.ID,
			fmt.Sprintf("back subject %s added for student %s (%d units)", bs.SubjectID, bs.StudentID, bs.RequiredUnits))
	})
	if err != nil {
		return nil, err
	}
	return bs, nil
}

// UpdateUnits changes unit bookkeeping. Completed records answer LOCKED and
// stay untouched.
func (s *BackSubjectService) UpdateUnits(ctx context.Context, backSubjectID string, req dto.UpdateUnitsRequest, actorID string) (*models.BackSubject, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	var result models.BackSubject
	var event workflow.BackSubjectEvent = workflow.BackSubjectUpdateUnits
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		bs, err := s.repo.FindByIDForUpdate(ctx, q, backSubjectID)
		if err != nil {
			return loadErr(err, "back subject")
		}
		if req.CompletedUnits > 0 {
			event = workflow.BackSubjectStart
		}
		next, err := workflow.BackSubject.Transition(bs.Status, event)
		if err != nil {
			return err
		}
		if err := validateUnits(req.RequiredUnits, req.CompletedUnits); err != nil {
			return err
		}
		expected := bs.Status
		bs.RequiredUnits = req.RequiredUnits
		bs.CompletedUnits = req.CompletedUnits
		bs.Status = next
		if err := s.repo.Update(ctx, q, bs, expected); err != nil {
			return writeErr(err, "back subject")
		}
		if err := s.audit.Log(ctx, q, actorID, models.AuditActionBackSubjectUnits, models.EntityBackSubject, bs.ID,
			fmt.Sprintf("units set to %d/%d", bs.CompletedUnits, bs.RequiredUnits)); err != nil {
			return err
		}
		result = *bs
		return nil
	})
	s.observe(event, err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// MarkCompleted freezes the record with its final units and completion date.
func (s *BackSubjectService) MarkCompleted(ctx context.Context, backSubjectID string, req dto.MarkCompletedRequest, actorID string) (*models.BackSubject, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	var result models.BackSubject
	err := s.tx.WithTransaction(ctx, func(q database.Querier) error {
		bs, err := s.repo.FindByIDForUpdate(ctx, q, backSubjectID)
		if err != nil {
			return loadErr(err, "back subject")
		}
		next, err := workflow.BackSubject.Transition(bs.Status, workflow.BackSubjectComplete)
		if err != nil {
			return err
		}
		if err := validateUnits(bs.RequiredUnits, req.CompletedUnits); err != nil {
			return err
		}
		completedOn := s.now()
		if req.CompletionDate != nil && !req.CompletionDate.IsZero() {
			completedOn = req.CompletionDate.UTC()
		}
		expected := bs.Status
		bs.CompletedUnits = req.CompletedUnits
		bs.Status = next
		bs.CompletionDate = &completedOn
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			bs.Notes = &notes
		}
		if err := s.repo.Update(ctx, q, bs, expected); err != nil {
			return writeErr(err, "back subject")
		}
		if err := s.audit.Log(ctx, q, actorID, models.AuditActionBackSubjectComplete, models.EntityBackSubject, bs.ID,
			fmt.Sprintf("completed with %d/%d units on %s", bs.CompletedUnits, bs.RequiredUnits, completedOn.Format(time.DateOnly))); err != nil {
			return err
		}
		result = *bs
		return nil
	})
	s.observe(workflow.BackSubjectComplete, err)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Get returns a record.
func (s *BackSubjectService) Get(ctx context.Context, backSubjectID string) (*models.BackSubject, error) {
	bs, err := s.repo.FindByID(ctx, nil, backSubjectID)
	if err != nil {
		return nil, loadErr(err, "back subject")
	}
	return bs, nil
}

// ListByStudent returns a student's remedial records.
func (s *BackSubjectService) ListByStudent(ctx context.Context, studentID string) ([]models.BackSubject, error) {
	list, err := s.repo.ListByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list back subjects")
	}
	return list, nil
}

func (s *BackSubjectService) observe(event workflow.BackSubjectEvent, err error) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(workflow.BackSubject.Entity(), string(event), outcome(err))
	}
}

func validateUnits(required, completed int) error {
	if required <= 0 {
		return appErrors.Clone(appErrors.ErrValidation, "required units must be positive")
	}
	if completed < 0 || completed > required {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("completed units must be between 0 and %d", required))
	}
	return nil
}
