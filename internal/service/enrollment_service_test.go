package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftlearn/academy-billing-api/internal/models"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	byUser map[string]*models.Enrollment
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	var out []models.Enrollment
	for _, e := range m.byUser {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	for _, e := range m.byUser {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindByUser(ctx context.Context, userID string) (*models.Enrollment, error) {
	if e, ok := m.byUser[userID]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.byUser == nil {
		m.byUser = make(map[string]*models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "enr-" + enrollment.UserID
	}
	cp := *enrollment
	m.byUser[enrollment.UserID] = &cp
	return nil
}

func (m *mockEnrollmentRepo) UpdatePlan(ctx context.Context, id, planID string) error {
	for _, e := range m.byUser {
		if e.ID == id {
			p := planID
			e.PlanID = &p
			return nil
		}
	}
	return sql.ErrNoRows
}

func newEnrollmentFixture(t *testing.T) (*EnrollmentService, *mockEnrollmentRepo, *mockDueRepo) {
	t.Helper()
	catalog, err := NewPlanCatalog()
	require.NoError(t, err)
	repo := &mockEnrollmentRepo{}
	dueRepo := &mockDueRepo{dues: map[string]*models.PaymentDue{}}
	ledger := NewLedgerService(dueRepo, 10, nil, nil)
	svc := NewEnrollmentService(repo, catalog, NewScheduleService(catalog), ledger, nil)
	return svc, repo, dueRepo
}

func TestRegisterIsIdempotentPerUser(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t)

	first, err := svc.Register(context.Background(), "user-1")
	require.NoError(t, err)

	second, err := svc.Register(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestMeNotFound(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t)
	_, err := svc.Me(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestSelectPlanMaterialisesSchedule(t *testing.T) {
	svc, repo, dueRepo := newEnrollmentFixture(t)
	_, err := svc.Register(context.Background(), "user-1")
	require.NoError(t, err)

	start := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	enrollment, dues, err := svc.SelectPlan(context.Background(), "user-1", "bronze", start)
	require.NoError(t, err)
	require.NotNil(t, enrollment.PlanID)
	assert.Equal(t, "bronze", *enrollment.PlanID)
	require.Len(t, dues, 4)
	assert.Len(t, dueRepo.created, 4)
	require.NotNil(t, repo.byUser["user-1"].PlanID)
}

func TestSelectPlanUnknownPlan(t *testing.T) {
	svc, _, _ := newEnrollmentFixture(t)
	_, err := svc.Register(context.Background(), "user-1")
	require.NoError(t, err)

	_, _, err = svc.SelectPlan(context.Background(), "user-1", "platinum", time.Now())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPlanNotFound))
}

func TestSelectPlanLockedAfterPayment(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture(t)
	_, err := svc.Register(context.Background(), "user-1")
	require.NoError(t, err)
	repo.byUser["user-1"].IsPaymentDone = true

	_, _, err = svc.SelectPlan(context.Background(), "user-1", "bronze", time.Now())
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestSelectPlanSamePlanRetryKeepsSchedule(t *testing.T) {
	// A double-submitted selection of the plan already on file must not insert
	// a second set of dues for the same installments.
	svc, _, dueRepo := newEnrollmentFixture(t)
	_, err := svc.Register(context.Background(), "user-1")
	require.NoError(t, err)

	start := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	_, dues, err := svc.SelectPlan(context.Background(), "user-1", "bronze", start)
	require.NoError(t, err)
	require.Len(t, dues, 4)
	for i, due := range dues {
		cp := due
		cp.ID = fmt.Sprintf("due-%s-%d", cp.PlanID, i)
		dueRepo.dues[cp.ID] = &cp
	}

	_, retried, err := svc.SelectPlan(context.Background(), "user-1", "bronze", start)
	require.NoError(t, err)

	// No new dues, no cancellations, one due per installment.
	assert.Len(t, dueRepo.created, 4)
	assert.Equal(t, int64(0), dueRepo.cancelled)
	require.Len(t, retried, 4)
	seen := make(map[int]int)
	for _, due := range retried {
		seen[due.InstallmentNumber]++
	}
	for n := 1; n <= 4; n++ {
		assert.Equal(t, 1, seen[n])
	}
}

func TestSelectPlanSwitchCancelsOldDues(t *testing.T) {
	svc, _, dueRepo := newEnrollmentFixture(t)
	_, err := svc.Register(context.Background(), "user-1")
	require.NoError(t, err)

	start := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	_, dues, err := svc.SelectPlan(context.Background(), "user-1", "bronze", start)
	require.NoError(t, err)
	for i, due := range dues {
		cp := due
		cp.ID = fmt.Sprintf("due-%s-%d", cp.PlanID, i)
		dueRepo.dues[cp.ID] = &cp
	}

	_, _, err = svc.SelectPlan(context.Background(), "user-1", "silver", start)
	require.NoError(t, err)
	assert.Equal(t, int64(4), dueRepo.cancelled)
}
