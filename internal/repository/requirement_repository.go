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

// RequirementRepository reads the requirement catalog and stores submissions.
type RequirementRepository struct {
	db *sqlx.DB
}

// NewRequirementRepository constructs the repository.
func NewRequirementRepository(db *sqlx.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// CountRequired counts catalog entries flagged as required.
func (r *RequirementRepository) CountRequired(ctx context.Context, q database.Querier) (int, error) {
	var total int
	if err := use(r.db, q).GetContext(ctx, &total, `SELECT COUNT(*) FROM requirement_definitions WHERE required = TRUE`); err != nil {
		return 0, fmt.Errorf("count required requirements: %w", err)
	}
	return total, nil
}

// CountApprovedRequired counts approved submissions of required definitions for
// an application. The submission rows are share-locked so a concurrent review
// cannot flip them before the caller's transaction commits.
func (r *RequirementRepository) CountApprovedRequired(ctx context.Context, q database.Querier, applicationID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT s.requirement_id) FROM (
		SELECT rs.requirement_id FROM requirement_submissions rs
		JOIN requirement_definitions rd ON rd.id = rs.requirement_id
		WHERE rs.application_id = $1 AND rd.required = TRUE AND rs.status = $2
		FOR SHARE OF rs
	) s`
	var approved int
	if err := use(r.db, q).GetContext(ctx, &approved, query, applicationID, models.RequirementSubmissionApproved); err != nil {
		return 0, fmt.Errorf("count approved requirements: %w", err)
	}
	return approved, nil
}

// FindDefinition loads a catalog entry.
func (r *RequirementRepository) FindDefinition(ctx context.Context, q database.Querier, id string) (*models.RequirementDefinition, error) {
	var def models.RequirementDefinition
	if err := use(r.db, q).GetContext(ctx, &def, `SELECT id, name, required FROM requirement_definitions WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &def, nil
}

// UpsertSubmission stores the single submission for (application, requirement).
func (r *RequirementRepository) UpsertSubmission(ctx context.Context, q database.Querier, sub *models.RequirementSubmission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO requirement_submissions (id, application_id, requirement_id, status, reviewed_by, reviewed_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (application_id, requirement_id) DO UPDATE
	SET status = EXCLUDED.status, reviewed_by = EXCLUDED.reviewed_by, reviewed_at = EXCLUDED.reviewed_at, updated_at = EXCLUDED.updated_at
	RETURNING id`
	var id string
	err := use(r.db, q).QueryRowxContext(ctx, query,
		sub.ID, sub.ApplicationID, sub.RequirementID, sub.Status, sub.ReviewedBy, sub.ReviewedAt, sub.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("upsert requirement submission: %w", err)
	}
	sub.ID = id
	return nil
}

// ListSubmissions returns every submission recorded for an application.
func (r *RequirementRepository) ListSubmissions(ctx context.Context, q database.Querier, applicationID string) ([]models.RequirementSubmission, error) {
	const query = `SELECT id, application_id, requirement_id, status, reviewed_by, reviewed_at, updated_at
	FROM requirement_submissions WHERE application_id = $1 ORDER BY updated_at`
	var subs []models.RequirementSubmission
	if err := use(r.db, q).SelectContext(ctx, &subs, query, applicationID); err != nil {
		return nil, fmt.Errorf("list requirement submissions: %w", err)
	}
	return subs, nil
}
