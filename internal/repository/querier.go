package repository

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-records-api/pkg/database"
)

// ErrDuplicate reports a unique constraint violation on insert.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

// use returns q when the caller is inside a transaction, otherwise the pool.
func use(db *sqlx.DB, q database.Querier) database.Querier {
	if q != nil {
		return q
	}
	return db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func pageWindow(page, size int) (limit, offset int) {
	if size <= 0 || size > 200 {
		size = 50
	}
	if page <= 0 {
		page = 1
	}
	return size, (page - 1) * size
}
