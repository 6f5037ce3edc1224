package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// Querier is the sqlx surface shared by *sqlx.DB and *sqlx.Tx. Repositories
// accept it so the same query runs standalone or inside a workflow transaction.
type Querier interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

// TxObserver receives transaction timings.
type TxObserver interface {
	ObserveDBTransaction(outcome string, duration time.Duration)
}

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Gateway scopes workflow mutations to a single transaction.
type Gateway struct {
	db        *sqlx.DB
	beginner  txBeginner
	isolation sql.IsolationLevel
	observer  TxObserver
}

// GatewayOption configures the gateway.
type GatewayOption func(*Gateway)

// WithIsolation sets the isolation level by name; unknown names keep read committed.
func WithIsolation(name string) GatewayOption {
	return func(g *Gateway) {
		g.isolation = ParseIsolation(name)
	}
}

// WithTxObserver records transaction durations.
func WithTxObserver(observer TxObserver) GatewayOption {
	return func(g *Gateway) {
		g.observer = observer
	}
}

// NewGateway wraps a database handle.
func NewGateway(db *sqlx.DB, opts ...GatewayOption) *Gateway {
	g := &Gateway{db: db, beginner: db, isolation: sql.LevelReadCommitted}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Reader returns a non-transactional querier for read-only evaluation.
func (g *Gateway) Reader() Querier {
	return g.db
}

// WithTransaction runs fn inside one transaction. It commits when fn returns nil
// and rolls back otherwise. Typed domain errors from fn are returned unchanged;
// driver and commit failures surface as STORAGE_ERROR.
func (g *Gateway) WithTransaction(ctx context.Context, fn func(q Querier) error) (err error) {
	if g == nil || g.beginner == nil {
		return appErrors.Clone(appErrors.ErrStorage, "database gateway not configured")
	}
	start := time.Now()
	outcome := "rollback"
	defer func() {
		if g.observer != nil {
			g.observer.ObserveDBTransaction(outcome, time.Since(start))
		}
	}()

	tx, err := g.beginner.BeginTxx(ctx, &sql.TxOptions{Isolation: g.isolation})
	if err != nil {
		return appErrors.Storage(err, "failed to begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return appErrors.Storage(fmt.Errorf("%w (rollback: %v)", err, rbErr), "failed to roll back transaction")
		}
		return appErrors.Storage(err, "transaction aborted")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Storage(err, "failed to commit transaction")
	}
	outcome = "commit"
	return nil
}

// ParseIsolation maps a config value onto a sql.IsolationLevel.
func ParseIsolation(name string) sql.IsolationLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "repeatable_read", "repeatable read":
		return sql.LevelRepeatableRead
	case "serializable":
		return sql.LevelSerializable
	default:
		return sql.LevelReadCommitted
	}
}
