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

const (
	periodColumns  = `id, program_id, academic_year, semester, starts_at, ends_at, status, auto_close, created_by, created_at`
	requestColumns = `id, student_id, program_id, period_id, status, reviewed_by, reviewed_at, rejection_reason, created_at, updated_at`
)

// EnrollmentRepository persists enrollment periods and requests.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// CreatePeriod inserts an enrollment window.
func (r *EnrollmentRepository) CreatePeriod(ctx context.Context, q database.Querier, period *models.EnrollmentPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	if period.CreatedAt.IsZero() {
		period.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollment_periods (id, program_id, academic_year, semester, starts_at, ends_at, status, auto_close, created_by, created_at)
	VALUES (:id, :program_id, :academic_year, :semester, :starts_at, :ends_at, :status, :auto_close, :created_by, :created_at)`
	if _, err := use(r.db, q).NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create enrollment period: %w", err)
	}
	return nil
}

// FindPeriodByID loads a period. Inside a transaction the row is share-locked
// so its status cannot change until the approval commits.
func (r *EnrollmentRepository) FindPeriodByID(ctx context.Context, q database.Querier, id string) (*models.EnrollmentPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM enrollment_periods WHERE id = $1`
	if q != nil {
		query += " FOR SHARE"
	}
	var period models.EnrollmentPeriod
	if err := use(r.db, q).GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// ListPeriods returns the windows of a program, most recent first.
func (r *EnrollmentRepository) ListPeriods(ctx context.Context, q database.Querier, programID string) ([]models.EnrollmentPeriod, error) {
	query := `SELECT ` + periodColumns + ` FROM enrollment_periods`
	var args []interface{}
	if programID != "" {
		args = append(args, programID)
		query += " WHERE program_id = $1"
	}
	query += " ORDER BY starts_at DESC"
	var periods []models.EnrollmentPeriod
	if err := use(r.db, q).SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollment periods: %w", err)
	}
	return periods, nil
}

// UpdatePeriodStatus sets the administrative status flag.
func (r *EnrollmentRepository) UpdatePeriodStatus(ctx context.Context, q database.Querier, id string, status models.EnrollmentPeriodStatus) error {
	result, err := use(r.db, q).ExecContext(ctx, `UPDATE enrollment_periods SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update enrollment period status: %w", err)
	}
	return expectOneRow(result, "enrollment period")
}

// CreateRequest inserts a pending request. Only one non-voided request may
// exist per (student, period).
func (r *EnrollmentRepository) CreateRequest(ctx context.Context, q database.Querier, req *models.EnrollmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	const query = `INSERT INTO enrollment_requests (id, student_id, program_id, period_id, status, created_at, updated_at)
	VALUES (:id, :student_id, :program_id, :period_id, :status, :created_at, :updated_at)`
	if _, err := use(r.db, q).NamedExecContext(ctx, query, req); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create enrollment request: %w", ErrDuplicate)
		}
		return fmt.Errorf("create enrollment request: %w", err)
	}
	return nil
}

// FindRequestByID loads a request.
func (r *EnrollmentRepository) FindRequestByID(ctx context.Context, q database.Querier, id string) (*models.EnrollmentRequest, error) {
	var req models.EnrollmentRequest
	if err := use(r.db, q).GetContext(ctx, &req, `SELECT `+requestColumns+` FROM enrollment_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// FindRequestByIDForUpdate loads and row-locks a request.
func (r *EnrollmentRepository) FindRequestByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.EnrollmentRequest, error) {
	var req models.EnrollmentRequest
	if err := use(r.db, q).GetContext(ctx, &req, `SELECT `+requestColumns+` FROM enrollment_requests WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// ListRequests returns requests matching the filter, newest first.
func (r *EnrollmentRepository) ListRequests(ctx context.Context, q database.Querier, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM enrollment_requests WHERE 1=1`
	var args []interface{}
	if filter.PeriodID != "" {
		args = append(args, filter.PeriodID)
		query += fmt.Sprintf(" AND period_id = $%d", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		query += fmt.Sprintf(" AND student_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	var reqs []models.EnrollmentRequest
	if err := use(r.db, q).SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollment requests: %w", err)
	}
	return reqs, nil
}

// UpdateRequest writes the review outcome while the stored status still equals expected.
func (r *EnrollmentRepository) UpdateRequest(ctx context.Context, q database.Querier, req *models.EnrollmentRequest, expected models.EnrollmentRequestStatus) error {
	req.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollment_requests
	SET status = :status, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, rejection_reason = :rejection_reason, updated_at = :updated_at
	WHERE id = :id AND status = :expected`
	result, err := use(r.db, q).NamedExecContext(ctx, query, map[string]interface{}{
		"id":               req.ID,
		"status":           req.Status,
		"reviewed_by":      req.ReviewedBy,
		"reviewed_at":      req.ReviewedAt,
		"rejection_reason": req.RejectionReason,
		"updated_at":       req.UpdatedAt,
		"expected":         expected,
	})
	if err != nil {
		return fmt.Errorf("update enrollment request: %w", err)
	}
	return expectOneRow(result, "enrollment request")
}
