package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftlearn/academy-billing-api/internal/models"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
)

type mockDueRepo struct {
	dues      map[string]*models.PaymentDue
	createErr error
	created   []models.PaymentDue
	cancelled int64
}

func (m *mockDueRepo) CreateBatch(ctx context.Context, dues []models.PaymentDue) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, dues...)
	return nil
}

func (m *mockDueRepo) FindByID(ctx context.Context, id string) (*models.PaymentDue, error) {
	if due, ok := m.dues[id]; ok {
		cp := *due
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDueRepo) FindByInstallment(ctx context.Context, enrollmentID, planID string, installmentNumber int) (*models.PaymentDue, error) {
	for _, due := range m.dues {
		if due.EnrollmentID == enrollmentID && due.PlanID == planID && due.InstallmentNumber == installmentNumber {
			cp := *due
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockDueRepo) ListPending(ctx context.Context, enrollmentID string) ([]models.PaymentDue, error) {
	var out []models.PaymentDue
	for _, due := range m.dues {
		if due.EnrollmentID == enrollmentID && due.Status == models.PaymentDueStatusPending {
			out = append(out, *due)
		}
	}
	return out, nil
}

func (m *mockDueRepo) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PaymentDue, error) {
	var out []models.PaymentDue
	for _, due := range m.dues {
		if due.EnrollmentID == enrollmentID {
			out = append(out, *due)
		}
	}
	return out, nil
}

func (m *mockDueRepo) MarkPaid(ctx context.Context, id string, paidAmount int64, reference string, paidDate time.Time) (*models.PaymentDue, error) {
	due, ok := m.dues[id]
	if !ok || due.Status != models.PaymentDueStatusPending {
		return nil, sql.ErrNoRows
	}
	due.Status = models.PaymentDueStatusPaid
	due.PaidAmount = &paidAmount
	due.PaidDate = &paidDate
	due.PaymentReference = &reference
	cp := *due
	return &cp, nil
}

func (m *mockDueRepo) CancelOutstanding(ctx context.Context, enrollmentID, planID string) (int64, error) {
	var n int64
	for _, due := range m.dues {
		if due.EnrollmentID == enrollmentID && due.PlanID == planID && due.Status == models.PaymentDueStatusPending {
			due.Status = models.PaymentDueStatusCancelled
			n++
		}
	}
	m.cancelled = n
	return n, nil
}

func newTestLedger(repo *mockDueRepo, now time.Time) *LedgerService {
	ledger := NewLedgerService(repo, 10, nil, nil)
	ledger.now = func() time.Time { return now }
	return ledger
}

func dueAt(id string, dueDate time.Time, amount int64) *models.PaymentDue {
	return &models.PaymentDue{
		ID:                id,
		EnrollmentID:      "enr-1",
		PlanID:            "bronze",
		InstallmentNumber: 2,
		TotalInstallments: 4,
		DueAmount:         amount,
		DueDate:           dueDate,
		Status:            models.PaymentDueStatusPending,
	}
}

func TestIsPayableNowOutsideWindow(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(&mockDueRepo{}, now)

	due := dueAt("due-1", now.AddDate(0, 0, 15), 15000000)
	p := ledger.IsPayableNow(due, now)
	assert.False(t, p.PayableNow)
	assert.False(t, p.Overdue)
	assert.Equal(t, 5, p.DaysUntilWindow)
}

func TestIsPayableNowInsideWindow(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(&mockDueRepo{}, now)

	due := dueAt("due-1", now.AddDate(0, 0, 5), 15000000)
	p := ledger.IsPayableNow(due, now)
	assert.True(t, p.PayableNow)
	assert.False(t, p.Overdue)
}

func TestIsPayableNowWindowBoundary(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(&mockDueRepo{}, now)

	// Window opens exactly now.
	due := dueAt("due-1", now.AddDate(0, 0, 10), 15000000)
	p := ledger.IsPayableNow(due, now)
	assert.True(t, p.PayableNow)
}

func TestIsPayableNowOverdue(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	ledger := newTestLedger(&mockDueRepo{}, now)

	due := dueAt("due-1", now.AddDate(0, 0, -3), 15000000)
	p := ledger.IsPayableNow(due, now)
	assert.True(t, p.PayableNow)
	assert.True(t, p.Overdue)
}

func TestListPendingAnnotatesOverdue(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockDueRepo{dues: map[string]*models.PaymentDue{
		"due-late": dueAt("due-late", now.AddDate(0, 0, -1), 15000000),
	}}
	ledger := newTestLedger(repo, now)

	views, err := ledger.ListPending(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, models.PaymentDueStatusOverdue, views[0].EffectiveStatus)
	// The stored status is untouched.
	assert.Equal(t, models.PaymentDueStatusPending, repo.dues["due-late"].Status)
}

func TestMarkPaidSettlesPendingDue(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockDueRepo{dues: map[string]*models.PaymentDue{
		"due-1": dueAt("due-1", now.AddDate(0, 0, 5), 15000000),
	}}
	ledger := newTestLedger(repo, now)

	updated, err := ledger.MarkPaid(context.Background(), "due-1", 15000000, "ref-1", now)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentDueStatusPaid, updated.Status)
	require.NotNil(t, updated.PaymentReference)
	assert.Equal(t, "ref-1", *updated.PaymentReference)
}

func TestMarkPaidRejectsDoublePayment(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	due := dueAt("due-1", now, 15000000)
	due.Status = models.PaymentDueStatusPaid
	repo := &mockDueRepo{dues: map[string]*models.PaymentDue{"due-1": due}}
	ledger := newTestLedger(repo, now)

	_, err := ledger.MarkPaid(context.Background(), "due-1", 15000000, "ref-2", now)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyPaid))
}

func TestMarkPaidRejectsAmountMismatch(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockDueRepo{dues: map[string]*models.PaymentDue{
		"due-1": dueAt("due-1", now, 15000000),
	}}
	ledger := newTestLedger(repo, now)

	_, err := ledger.MarkPaid(context.Background(), "due-1", 10000000, "ref-1", now)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAmountMismatch))
	assert.Equal(t, models.PaymentDueStatusPending, repo.dues["due-1"].Status)
}

func TestMarkPaidUnknownDue(t *testing.T) {
	ledger := newTestLedger(&mockDueRepo{}, time.Now())
	_, err := ledger.MarkPaid(context.Background(), "missing", 100, "ref", time.Now())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestMarkInstallmentPaidByOrdinal(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockDueRepo{dues: map[string]*models.PaymentDue{
		"due-1": dueAt("due-1", now, 15000000),
	}}
	ledger := newTestLedger(repo, now)

	updated, err := ledger.MarkInstallmentPaid(context.Background(), "enr-1", "bronze", 2, 15000000, "ref-1", now)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentDueStatusPaid, updated.Status)
}

func TestMarkNextPaidSettlesEarliestMatchingDue(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockDueRepo{dues: map[string]*models.PaymentDue{
		"due-2": dueAt("due-2", now.AddDate(0, 1, 0), 15000000),
		"due-3": dueAt("due-3", now.AddDate(0, 4, 0), 15000000),
	}}
	repo.dues["due-3"].InstallmentNumber = 3
	ledger := newTestLedger(repo, now)

	updated, err := ledger.MarkNextPaid(context.Background(), "enr-1", "bronze", 15000000, "ref-1", now)
	require.NoError(t, err)
	assert.Equal(t, "due-2", updated.ID)
	assert.Equal(t, 2, updated.InstallmentNumber)
	assert.Equal(t, models.PaymentDueStatusPaid, updated.Status)
	// The later installment stays open.
	assert.Equal(t, models.PaymentDueStatusPending, repo.dues["due-3"].Status)
}

func TestMarkNextPaidNoMatchingAmount(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockDueRepo{dues: map[string]*models.PaymentDue{
		"due-2": dueAt("due-2", now, 15000000),
	}}
	ledger := newTestLedger(repo, now)

	_, err := ledger.MarkNextPaid(context.Background(), "enr-1", "bronze", 9999, "ref-1", now)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, models.PaymentDueStatusPending, repo.dues["due-2"].Status)
}

type settleCounter struct {
	count int
}

func (c *settleCounter) ObserveDueSettled() { c.count++ }

func TestMarkPaidReportsSettlement(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockDueRepo{dues: map[string]*models.PaymentDue{
		"due-1": dueAt("due-1", now, 15000000),
	}}
	counter := &settleCounter{}
	ledger := NewLedgerService(repo, 10, counter, nil)
	ledger.now = func() time.Time { return now }

	_, err := ledger.MarkPaid(context.Background(), "due-1", 15000000, "ref-1", now)
	require.NoError(t, err)
	assert.Equal(t, 1, counter.count)

	// Failed settlements do not count.
	_, err = ledger.MarkPaid(context.Background(), "due-1", 15000000, "ref-2", now)
	require.Error(t, err)
	assert.Equal(t, 1, counter.count)
}

func TestCancelOutstanding(t *testing.T) {
	now := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockDueRepo{dues: map[string]*models.PaymentDue{
		"due-1": dueAt("due-1", now.AddDate(0, 1, 0), 15000000),
		"due-2": dueAt("due-2", now.AddDate(0, 4, 0), 15000000),
	}}
	repo.dues["due-2"].InstallmentNumber = 3
	ledger := newTestLedger(repo, now)

	cancelled, err := ledger.CancelOutstanding(context.Background(), "enr-1", "bronze")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cancelled)
}
