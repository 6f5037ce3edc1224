package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/pkg/database"
)

// StudentNumberRepository allocates per-year student identifier sequences.
type StudentNumberRepository struct {
	db *sqlx.DB
}

// NewStudentNumberRepository constructs the repository.
func NewStudentNumberRepository(db *sqlx.DB) *StudentNumberRepository {
	return &StudentNumberRepository{db: db}
}

// Next increments and returns the sequence for year. The upsert takes a row
// lock on the year, so concurrent approvals serialize here until commit.
func (r *StudentNumberRepository) Next(ctx context.Context, q database.Querier, year int) (int, error) {
	const query = `INSERT INTO student_id_sequences (year, last_value) VALUES ($1, 1)
	ON CONFLICT (year) DO UPDATE SET last_value = student_id_sequences.last_value + 1
	RETURNING last_value`
	var next int
	if err := use(r.db, q).QueryRowxContext(ctx, query, year).Scan(&next); err != nil {
		return 0, fmt.Errorf("allocate student number for %d: %w", year, err)
	}
	return next, nil
}
