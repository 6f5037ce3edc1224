package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
)

const editRequestColumns = `id, grade_id, requested_by, reason, status, edit_completed, previous_value,
       reviewed_by, reviewed_at, review_notes, completed_by, completed_at, created_at`

// GradeEditRequestRepository persists grade correction requests.
type GradeEditRequestRepository struct {
	db *sqlx.DB
}

// NewGradeEditRequestRepository constructs the repository.
func NewGradeEditRequestRepository(db *sqlx.DB) *GradeEditRequestRepository {
	return &GradeEditRequestRepository{db: db}
}

// Create inserts a pending request. A second open request for the same grade
// violates grade_edit_requests_open_idx and surfaces as ErrDuplicate.
func (r *GradeEditRequestRepository) Create(ctx context.Context, q database.Querier, req *models.GradeEditRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grade_edit_requests (id, grade_id, requested_by, reason, status, edit_completed, created_at)
	VALUES (:id, :grade_id, :requested_by, :reason, :status, :edit_completed, :created_at)`
	if _, err := use(r.db, q).NamedExecContext(ctx, query, req); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create grade edit request: %w", ErrDuplicate)
		}
		return fmt.Errorf("create grade edit request: %w", err)
	}
	return nil
}

// FindByIDForUpdate loads and row-locks a request.
func (r *GradeEditRequestRepository) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.GradeEditRequest, error) {
	var req models.GradeEditRequest
	if err := use(r.db, q).GetContext(ctx, &req, `SELECT `+editRequestColumns+` FROM grade_edit_requests WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// FindOpenByGrade returns the pending or approved request for a grade.
func (r *GradeEditRequestRepository) FindOpenByGrade(ctx context.Context, q database.Querier, gradeID string) (*models.GradeEditRequest, error) {
	const query = `SELECT ` + editRequestColumns + ` FROM grade_edit_requests
	WHERE grade_id = $1 AND status IN ($2, $3) FOR UPDATE`
	var req models.GradeEditRequest
	if err := use(r.db, q).GetContext(ctx, &req, query, gradeID, models.EditRequestPending, models.EditRequestApproved); err != nil {
		return nil, err
	}
	return &req, nil
}

// FindLatestByGrade returns the most recent request for a grade in any status.
func (r *GradeEditRequestRepository) FindLatestByGrade(ctx context.Context, q database.Querier, gradeID string) (*models.GradeEditRequest, error) {
	const query = `SELECT ` + editRequestColumns + ` FROM grade_edit_requests
	WHERE grade_id = $1 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`
	var req models.GradeEditRequest
	if err := use(r.db, q).GetContext(ctx, &req, query, gradeID); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListByGrade returns the request history of a grade, newest first.
func (r *GradeEditRequestRepository) ListByGrade(ctx context.Context, q database.Querier, gradeID string) ([]models.GradeEditRequest, error) {
	var reqs []models.GradeEditRequest
	if err := use(r.db, q).SelectContext(ctx, &reqs, `SELECT `+editRequestColumns+` FROM grade_edit_requests WHERE grade_id = $1 ORDER BY created_at DESC`, gradeID); err != nil {
		return nil, fmt.Errorf("list grade edit requests: %w", err)
	}
	return reqs, nil
}

// Update writes the request's mutable columns while its stored status still equals expected.
func (r *GradeEditRequestRepository) Update(ctx context.Context, q database.Querier, req *models.GradeEditRequest, expected models.GradeEditRequestStatus) error {
	const query = `UPDATE grade_edit_requests
	SET status = :status, edit_completed = :edit_completed, previous_value = :previous_value, reviewed_by = :reviewed_by,
	    reviewed_at = :reviewed_at, review_notes = :review_notes, completed_by = :completed_by, completed_at = :completed_at
	WHERE id = :id AND status = :expected`
	result, err := use(r.db, q).NamedExecContext(ctx, query, map[string]interface{}{
		"id":             req.ID,
		"status":         req.Status,
		"edit_completed": req.EditCompleted,
		"previous_value": req.PreviousValue,
		"reviewed_by":    req.ReviewedBy,
		"reviewed_at":    req.ReviewedAt,
		"review_notes":   req.ReviewNotes,
		"completed_by":   req.CompletedBy,
		"completed_at":   req.CompletedAt,
		"expected":       expected,
	})
	if err != nil {
		return fmt.Errorf("update grade edit request: %w", err)
	}
	return expectOneRow(result, "grade edit request")
}
