package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
)

const applicationColumns = `id, applicant_name, applicant_email, program_id, status, student_number,
       reviewed_by, reviewed_at, notes, submitted_at, updated_at`

// ApplicationRepository persists admission applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a pending application.
func (r *ApplicationRepository) Create(ctx context.Context, q database.Querier, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}
	now := time.Now().UTC()
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = now
	}
	app.UpdatedAt = now
	const query = `INSERT INTO applications (id, applicant_name, applicant_email, program_id, status, notes, submitted_at, updated_at)
	VALUES (:id, :applicant_name, :applicant_email, :program_id, :status, :notes, :submitted_at, :updated_at)`
	if _, err := use(r.db, q).NamedExecContext(ctx, query, app); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID loads an application.
func (r *ApplicationRepository) FindByID(ctx context.Context, q database.Querier, id string) (*models.Application, error) {
	var app models.Application
	if err := use(r.db, q).GetContext(ctx, &app, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindByIDForUpdate loads an application and row-locks it until the transaction ends.
func (r *ApplicationRepository) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.Application, error) {
	var app models.Application
	if err := use(r.db, q).GetContext(ctx, &app, `SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns applications matching the filter, newest first, with the total count.
func (r *ApplicationRepository) List(ctx context.Context, q database.Querier, filter models.ApplicationFilter) ([]models.Application, int, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ProgramID != "" {
		args = append(args, filter.ProgramID)
		conditions = append(conditions, fmt.Sprintf("program_id = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	db := use(r.db, q)
	var total int
	if err := db.GetContext(ctx, &total, "SELECT COUNT(*) FROM applications"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	limit, offset := pageWindow(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s FROM applications%s ORDER BY submitted_at DESC LIMIT %d OFFSET %d", applicationColumns, where, limit, offset)
	var apps []models.Application
	if err := db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	return apps, total, nil
}

// ApplicationReviewParams carries a review outcome. The update only applies
// while the row is still in From.
type ApplicationReviewParams struct {
	ID            string
	From          models.ApplicationStatus
	To            models.ApplicationStatus
	ReviewedBy    string
	ReviewedAt    time.Time
	Notes         *string
	StudentNumber *string
}

// UpdateReview persists a review outcome; sql.ErrNoRows means the status moved underneath us.
func (r *ApplicationRepository) UpdateReview(ctx context.Context, q database.Querier, params ApplicationReviewParams) error {
	const query = `UPDATE applications
	SET status = :to, reviewed_by = :reviewed_by, reviewed_at = :reviewed_at,
	    notes = COALESCE(:notes, notes), student_number = COALESCE(:student_number, student_number), updated_at = :reviewed_at
	WHERE id = :id AND status = :from`
	result, err := use(r.db, q).NamedExecContext(ctx, query, map[string]interface{}{
		"id":             params.ID,
		"from":           params.From,
		"to":             params.To,
		"reviewed_by":    params.ReviewedBy,
		"reviewed_at":    params.ReviewedAt,
		"notes":          params.Notes,
		"student_number": params.StudentNumber,
	})
	if err != nil {
		return fmt.Errorf("update application review: %w", err)
	}
	return expectOneRow(result, "application review")
}

// UpdateNotes replaces the free-text notes, which stay editable after review.
func (r *ApplicationRepository) UpdateNotes(ctx context.Context, q database.Querier, id string, notes *string) error {
	result, err := use(r.db, q).ExecContext(ctx, `UPDATE applications SET notes = $1, updated_at = $2 WHERE id = $3`, notes, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update application notes: %w", err)
	}
	return expectOneRow(result, "application notes")
}

func expectOneRow(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", what, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
