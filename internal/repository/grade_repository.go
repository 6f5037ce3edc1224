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

const gradeColumns = `id, student_id, subject_id, teacher_id, term_id, grade_value, approval_status, manually_edited,
       locked, reviewed_by, reviewed_at, rejection_reason, created_at, updated_at`

// GradeRepository handles grade persistence.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Create inserts a submitted grade.
func (r *GradeRepository) Create(ctx context.Context, q database.Querier, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	const query = `INSERT INTO grades (id, student_id, subject_id, teacher_id, term_id, grade_value, approval_status, manually_edited, locked, created_at, updated_at)
	VALUES (:id, :student_id, :subject_id, :teacher_id, :term_id, :grade_value, :approval_status, :manually_edited, :locked, :created_at, :updated_at)`
	if _, err := use(r.db, q).NamedExecContext(ctx, query, grade); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create grade: %w", ErrDuplicate)
		}
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// FindByID loads a grade.
func (r *GradeRepository) FindByID(ctx context.Context, q database.Querier, id string) (*models.Grade, error) {
	var grade models.Grade
	if err := use(r.db, q).GetContext(ctx, &grade, `SELECT `+gradeColumns+` FROM grades WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &grade, nil
}

// FindByIDForUpdate loads and row-locks a grade.
func (r *GradeRepository) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.Grade, error) {
	var grade models.Grade
	if err := use(r.db, q).GetContext(ctx, &grade, `SELECT `+gradeColumns+` FROM grades WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &grade, nil
}

// FindByKeyForUpdate locks the grade for (student, subject, term) if one exists.
func (r *GradeRepository) FindByKeyForUpdate(ctx context.Context, q database.Querier, studentID, subjectID, termID string) (*models.Grade, error) {
	const query = `SELECT ` + gradeColumns + ` FROM grades WHERE student_id = $1 AND subject_id = $2 AND term_id = $3 FOR UPDATE`
	var grade models.Grade
	if err := use(r.db, q).GetContext(ctx, &grade, query, studentID, subjectID, termID); err != nil {
		return nil, err
	}
	return &grade, nil
}

// List returns grades matching the filter.
func (r *GradeRepository) List(ctx context.Context, q database.Querier, filter models.GradeFilter) ([]models.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM grades WHERE 1=1`
	var args []interface{}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		query += fmt.Sprintf(" AND teacher_id = $%d", len(args))
	}
	if filter.TermID != "" {
		args = append(args, filter.TermID)
		query += fmt.Sprintf(" AND term_id = $%d", len(args))
	}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		query += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if filter.ApprovalStatus != "" {
		args = append(args, filter.ApprovalStatus)
		query += fmt.Sprintf(" AND approval_status = $%d", len(args))
	}
	query += " ORDER BY updated_at DESC"
	var grades []models.Grade
	if err := use(r.db, q).SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// Update writes every mutable grade column, provided the stored approval
// status still equals expected. sql.ErrNoRows signals a lost race.
func (r *GradeRepository) Update(ctx context.Context, q database.Querier, grade *models.Grade, expected models.GradeApprovalStatus) error {
	grade.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grades
	SET grade_value = :grade_value, approval_status = :approval_status, manually_edited = :manually_edited, locked = :locked,
	    reviewed_by = :reviewed_by, reviewed_at = :reviewed_at, rejection_reason = :rejection_reason, updated_at = :updated_at
	WHERE id = :id AND approval_status = :expected`
	result, err := use(r.db, q).NamedExecContext(ctx, query, map[string]interface{}{
		"id":               grade.ID,
		"grade_value":      grade.Value,
		"approval_status":  grade.ApprovalStatus,
		"manually_edited":  grade.ManuallyEdited,
		"locked":           grade.Locked,
		"reviewed_by":      grade.ReviewedBy,
		"reviewed_at":      grade.ReviewedAt,
		"rejection_reason": grade.RejectionReason,
		"updated_at":       grade.UpdatedAt,
		"expected":         expected,
	})
	if err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return expectOneRow(result, "grade")
}
