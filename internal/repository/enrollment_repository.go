package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/craftlearn/academy-billing-api/internal/models"
)

// batchAssignLockKey identifies the advisory lock serialising cohort
// assignment across concurrent payment confirmations.
const batchAssignLockKey = int64(7081542)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	base := "FROM enrollments e"
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("e.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.PlanID != "" {
		conditions = append(conditions, fmt.Sprintf("e.plan_id = $%d", len(args)+1))
		args = append(args, filter.PlanID)
	}
	if filter.IsPaymentDone != nil {
		conditions = append(conditions, fmt.Sprintf("e.is_payment_done = $%d", len(args)+1))
		args = append(args, *filter.IsPaymentDone)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at": "e.created_at",
		"batch_name": "e.batch_name",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.user_id, e.plan_id, e.is_payment_done, e.batch_name, e.created_at, e.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, plan_id, is_payment_done, batch_name, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByUser returns the enrollment owned by the given user.
func (r *EnrollmentRepository) FindByUser(ctx context.Context, userID string) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, plan_id, is_payment_done, batch_name, created_at, updated_at FROM enrollments WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, user_id, plan_id, is_payment_done, batch_name, created_at, updated_at)
        VALUES (:id, :user_id, :plan_id, :is_payment_done, :batch_name, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdatePlan records the chosen tuition plan on an enrollment.
func (r *EnrollmentRepository) UpdatePlan(ctx context.Context, id, planID string) error {
	const query = `UPDATE enrollments SET plan_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, planID, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment plan: %w", err)
	}
	return nil
}

// CountPaid returns a fresh count of enrollments with a confirmed payment.
func (r *EnrollmentRepository) CountPaid(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE is_payment_done = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count paid enrollments: %w", err)
	}
	return count, nil
}

// MarkPaidAndAssignBatch flags the enrollment paid and freezes its batch name
// in a single transaction. An advisory lock serialises the count-compute-write
// sequence so two concurrent confirmations cannot read the same paid count.
// The computeBatch callback receives the paid count excluding this enrollment
// and returns the batch name to freeze. When the enrollment already carries a
// batch name the stored name is kept and returned.
func (r *EnrollmentRepository) MarkPaidAndAssignBatch(ctx context.Context, id string, computeBatch func(paidCount int) string) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin batch assignment: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, batchAssignLockKey); err != nil {
		return "", fmt.Errorf("acquire batch assignment lock: %w", err)
	}

	var current models.Enrollment
	if err := tx.GetContext(ctx, &current, `SELECT id, user_id, plan_id, is_payment_done, batch_name, created_at, updated_at FROM enrollments WHERE id = $1`, id); err != nil {
		return "", fmt.Errorf("load enrollment for batch assignment: %w", err)
	}

	if current.BatchName != nil && *current.BatchName != "" {
		// Assignment is frozen; only make sure the paid flag sticks.
		if !current.IsPaymentDone {
			if _, err := tx.ExecContext(ctx, `UPDATE enrollments SET is_payment_done = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
				return "", fmt.Errorf("flag enrollment paid: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("commit batch assignment: %w", err)
		}
		commit = true
		return *current.BatchName, nil
	}

	var paidCount int
	if err := tx.GetContext(ctx, &paidCount, `SELECT COUNT(*) FROM enrollments WHERE is_payment_done = TRUE AND id <> $1`, id); err != nil {
		return "", fmt.Errorf("count paid enrollments: %w", err)
	}

	batchName := computeBatch(paidCount)
	res, err := tx.ExecContext(ctx, `UPDATE enrollments SET is_payment_done = TRUE, batch_name = $2, updated_at = $3 WHERE id = $1 AND batch_name IS NULL`,
		id, batchName, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("assign batch: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return "", sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit batch assignment: %w", err)
	}
	commit = true
	return batchName, nil
}
