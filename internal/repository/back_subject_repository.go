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

const backSubjectColumns = `id, student_id, subject_id, required_units, completed_units, status, completion_date,
       notes, created_by, created_at, updated_at`

// BackSubjectRepository persists student_back_subjects rows.
type BackSubjectRepository struct {
	db *sqlx.DB
}

// NewBackSubjectRepository constructs the repository.
func NewBackSubjectRepository(db *sqlx.DB) *BackSubjectRepository {
	return &BackSubjectRepository{db: db}
}

// Create inserts a remedial record; (student, subject) is unique.
func (r *BackSubjectRepository) Create(ctx context.Context, q database.Querier, bs *models.BackSubject) error {
	if bs.ID == "" {
		bs.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if bs.CreatedAt.IsZero() {
		bs.CreatedAt = now
	}
	bs.UpdatedAt = now
	const query = `INSERT INTO student_back_subjects (id, student_id, subject_id, required_units, completed_units, status, notes, created_by, created_at, updated_at)
	VALUES (:id, :student_id, :subject_id, :required_units, :completed_units, :status, :notes, :created_by, :created_at, :updated_at)`
	if _, err := use(r.db, q).NamedExecContext(ctx, query, bs); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create back subject: %w", ErrDuplicate)
		}
		return fmt.Errorf("create back subject: %w", err)
	}
	return nil
}

// FindByID loads a record.
func (r *BackSubjectRepository) FindByID(ctx context.Context, q database.Querier, id string) (*models.BackSubject, error) {
	var bs models.BackSubject
	if err := use(r.db, q).GetContext(ctx, &bs, `SELECT `+backSubjectColumns+` FROM student_back_subjects WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &bs, nil
}

// FindByIDForUpdate loads and row-locks a record.
func (r *BackSubjectRepository) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.BackSubject, error) {
	var bs models.BackSubject
	if err := use(r.db, q).GetContext(ctx, &bs, `SELECT `+backSubjectColumns+` FROM student_back_subjects WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &bs, nil
}

// ListByStudent returns a student's remedial records.
func (r *BackSubjectRepository) ListByStudent(ctx context.Context, q database.Querier, studentID string) ([]models.BackSubject, error) {
	var list []models.BackSubject
	if err := use(r.db, q).SelectContext(ctx, &list, `SELECT `+backSubjectColumns+` FROM student_back_subjects WHERE student_id = $1 ORDER BY created_at`, studentID); err != nil {
		return nil, fmt.Errorf("list back subjects: %w", err)
	}
	return list, nil
}

// Update writes units, status and completion fields while the stored status
// still equals expected. Completed rows never match, which keeps them frozen
// even if a caller skips the state machine.
func (r *BackSubjectRepository) Update(ctx context.Context, q database.Querier, bs *models.BackSubject, expected models.BackSubjectStatus) error {
	bs.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_back_subjects
	SET required_units = :required_units, completed_units = :completed_units, status = :status,
	    completion_date = :completion_date, notes = :notes, updated_at = :updated_at
	WHERE id = :id AND status = :expected AND status <> 'COMPLETED'`
	result, err := use(r.db, q).NamedExecContext(ctx, query, map[string]interface{}{
		"id":              bs.ID,
		"required_units":  bs.RequiredUnits,
		"completed_units": bs.CompletedUnits,
		"status":          bs.Status,
		"completion_date": bs.CompletionDate,
		"notes":           bs.Notes,
		"updated_at":      bs.UpdatedAt,
		"expected":        expected,
	})
	if err != nil {
		return fmt.Errorf("update back subject: %w", err)
	}
	return expectOneRow(result, "back subject")
}
