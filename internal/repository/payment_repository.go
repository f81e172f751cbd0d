package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/craftlearn/academy-billing-api/internal/models"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
)

const pqUniqueViolation = "23505"

// PaymentRepository handles persistence of completed payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create persists a payment record. The reference column carries a unique
// constraint; inserting an existing reference returns ErrDuplicateReference so
// callers can distinguish a replay from a broken store.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO payments (id, enrollment_id, reference, amount, currency, plan_id, installment_number, paid_at, created_at)
        VALUES (:id, :enrollment_id, :reference, :amount, :currency, :plan_id, :installment_number, :paid_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return appErrors.Clone(appErrors.ErrDuplicateReference, fmt.Sprintf("payment reference %s already recorded", payment.Reference))
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByReference returns the payment recorded for a gateway reference.
func (r *PaymentRepository) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	const query = `SELECT id, enrollment_id, reference, amount, currency, plan_id, installment_number, paid_at, created_at FROM payments WHERE reference = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, reference); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, enrollment_id, reference, amount, currency, plan_id, installment_number, paid_at, created_at FROM payments WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByEnrollment returns payments for an enrollment, newest first.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	const query = `SELECT id, enrollment_id, reference, amount, currency, plan_id, installment_number, paid_at, created_at FROM payments WHERE enrollment_id = $1 ORDER BY paid_at DESC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
