package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/craftlearn/academy-billing-api/internal/models"
)

// PaymentDueRepository handles persistence of scheduled installments.
type PaymentDueRepository struct {
	db *sqlx.DB
}

// NewPaymentDueRepository constructs the repository.
func NewPaymentDueRepository(db *sqlx.DB) *PaymentDueRepository {
	return &PaymentDueRepository{db: db}
}

const paymentDueColumns = `id, enrollment_id, plan_id, installment_number, total_installments, due_amount, due_date, status, paid_amount, paid_date, payment_reference, created_at, updated_at`

// CreateBatch inserts a set of dues atomically. Partial schedules would break
// the contiguity invariant, so any failure rolls back the whole batch.
func (r *PaymentDueRepository) CreateBatch(ctx context.Context, dues []models.PaymentDue) error {
	if len(dues) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create dues: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()
	const query = `INSERT INTO payment_dues (id, enrollment_id, plan_id, installment_number, total_installments, due_amount, due_date, status, created_at, updated_at)
        VALUES (:id, :enrollment_id, :plan_id, :installment_number, :total_installments, :due_amount, :due_date, :status, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range dues {
		due := &dues[i]
		if due.ID == "" {
			due.ID = uuid.NewString()
		}
		if due.Status == "" {
			due.Status = models.PaymentDueStatusPending
		}
		if due.CreatedAt.IsZero() {
			due.CreatedAt = now
		}
		due.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, due); err != nil {
			return fmt.Errorf("create payment due %d: %w", due.InstallmentNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create dues: %w", err)
	}
	commit = true
	return nil
}

// FindByID returns a due by its ID.
func (r *PaymentDueRepository) FindByID(ctx context.Context, id string) (*models.PaymentDue, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_dues WHERE id = $1`, paymentDueColumns)
	var due models.PaymentDue
	if err := r.db.GetContext(ctx, &due, query, id); err != nil {
		return nil, err
	}
	return &due, nil
}

// FindByInstallment returns the due for one installment of an enrollment's plan.
func (r *PaymentDueRepository) FindByInstallment(ctx context.Context, enrollmentID, planID string, installmentNumber int) (*models.PaymentDue, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_dues WHERE enrollment_id = $1 AND plan_id = $2 AND installment_number = $3`, paymentDueColumns)
	var due models.PaymentDue
	if err := r.db.GetContext(ctx, &due, query, enrollmentID, planID, installmentNumber); err != nil {
		return nil, err
	}
	return &due, nil
}

// ListPending returns the outstanding dues for an enrollment sorted by due date.
func (r *PaymentDueRepository) ListPending(ctx context.Context, enrollmentID string) ([]models.PaymentDue, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_dues WHERE enrollment_id = $1 AND status = $2 ORDER BY due_date ASC`, paymentDueColumns)
	var dues []models.PaymentDue
	if err := r.db.SelectContext(ctx, &dues, query, enrollmentID, models.PaymentDueStatusPending); err != nil {
		return nil, fmt.Errorf("list pending dues: %w", err)
	}
	return dues, nil
}

// ListByEnrollment returns all dues for an enrollment sorted by installment number.
func (r *PaymentDueRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PaymentDue, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_dues WHERE enrollment_id = $1 ORDER BY installment_number ASC`, paymentDueColumns)
	var dues []models.PaymentDue
	if err := r.db.SelectContext(ctx, &dues, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list dues: %w", err)
	}
	return dues, nil
}

// ListPendingInWindow returns pending dues whose due date falls before the
// provided cutoff, across all enrollments. Used by the reminder sweep.
func (r *PaymentDueRepository) ListPendingInWindow(ctx context.Context, cutoff time.Time) ([]models.PaymentDue, error) {
	query := fmt.Sprintf(`SELECT %s FROM payment_dues WHERE status = $1 AND due_date <= $2 ORDER BY due_date ASC`, paymentDueColumns)
	var dues []models.PaymentDue
	if err := r.db.SelectContext(ctx, &dues, query, models.PaymentDueStatusPending, cutoff); err != nil {
		return nil, fmt.Errorf("list dues in window: %w", err)
	}
	return dues, nil
}

// MarkPaid transitions a pending due to PAID. The guarded update only matches
// rows still pending, so a replayed callback cannot double-credit; callers get
// sql.ErrNoRows when the due was already settled or cancelled.
func (r *PaymentDueRepository) MarkPaid(ctx context.Context, id string, paidAmount int64, reference string, paidDate time.Time) (*models.PaymentDue, error) {
	query := fmt.Sprintf(`UPDATE payment_dues SET status = $2, paid_amount = $3, paid_date = $4, payment_reference = $5, updated_at = $6
        WHERE id = $1 AND status = $7 RETURNING %s`, paymentDueColumns)
	var due models.PaymentDue
	err := r.db.GetContext(ctx, &due, query, id, models.PaymentDueStatusPaid, paidAmount, paidDate, reference, time.Now().UTC(), models.PaymentDueStatusPending)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("mark due paid: %w", err)
	}
	return &due, nil
}

// CancelOutstanding marks the remaining pending dues of an enrollment's plan
// as cancelled and returns how many rows were affected.
func (r *PaymentDueRepository) CancelOutstanding(ctx context.Context, enrollmentID, planID string) (int64, error) {
	const query = `UPDATE payment_dues SET status = $3, updated_at = $4 WHERE enrollment_id = $1 AND plan_id = $2 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, enrollmentID, planID, models.PaymentDueStatusCancelled, time.Now().UTC(), models.PaymentDueStatusPending)
	if err != nil {
		return 0, fmt.Errorf("cancel outstanding dues: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel outstanding dues: %w", err)
	}
	return affected, nil
}
