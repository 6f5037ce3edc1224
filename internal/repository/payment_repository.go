package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/database"
)

const paymentColumns = `id, application_id, amount, method, status, verified_by, verified_at, created_at`

// PaymentRepository reads and verifies admission payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// HasVerified reports whether the application has a verified payment with a
// positive amount. Matching rows are share-locked for the caller's transaction.
func (r *PaymentRepository) HasVerified(ctx context.Context, q database.Querier, applicationID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM (
		SELECT id FROM payments WHERE application_id = $1 AND status = $2 AND amount > 0 FOR SHARE
	) p`
	var count int
	if err := use(r.db, q).GetContext(ctx, &count, query, applicationID, models.PaymentStatusVerified); err != nil {
		return false, fmt.Errorf("check verified payment: %w", err)
	}
	return count > 0, nil
}

// FindByIDForUpdate loads and row-locks a payment.
func (r *PaymentRepository) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := use(r.db, q).GetContext(ctx, &payment, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByApplication returns the payments attached to an application.
func (r *PaymentRepository) ListByApplication(ctx context.Context, q database.Querier, applicationID string) ([]models.Payment, error) {
	var payments []models.Payment
	if err := use(r.db, q).SelectContext(ctx, &payments, `SELECT `+paymentColumns+` FROM payments WHERE application_id = $1 ORDER BY created_at DESC`, applicationID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// UpdateVerification sets the verification status and verifier.
func (r *PaymentRepository) UpdateVerification(ctx context.Context, q database.Querier, id string, status models.PaymentStatus, verifiedBy *string, verifiedAt *time.Time) error {
	result, err := use(r.db, q).ExecContext(ctx,
		`UPDATE payments SET status = $1, verified_by = $2, verified_at = $3 WHERE id = $4`,
		status, verifiedBy, verifiedAt, id)
	if err != nil {
		return fmt.Errorf("update payment verification: %w", err)
	}
	return expectOneRow(result, "payment verification")
}
