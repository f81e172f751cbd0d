package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftlearn/academy-billing-api/internal/models"
)

func newTestScheduler(t *testing.T) *ScheduleService {
	t.Helper()
	catalog, err := NewPlanCatalog()
	require.NoError(t, err)
	return NewScheduleService(catalog)
}

func TestScheduleQuarterlyInstallments(t *testing.T) {
	scheduler := newTestScheduler(t)
	catalog := scheduler.catalog
	plan, err := catalog.Get("bronze")
	require.NoError(t, err)

	start := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	installments := scheduler.Schedule(plan, start)
	require.Len(t, installments, 4)

	wantDates := []time.Time{
		time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.April, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.July, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.October, 10, 0, 0, 0, 0, time.UTC),
	}
	for i, inst := range installments {
		assert.Equal(t, i+1, inst.Number)
		assert.Equal(t, int64(15000000), inst.Amount)
		assert.True(t, inst.DueDate.Equal(wantDates[i]), "installment %d due %s, want %s", inst.Number, inst.DueDate, wantDates[i])
	}
}

func TestScheduleIsDeterministic(t *testing.T) {
	scheduler := newTestScheduler(t)
	plan, err := scheduler.catalog.Get("silver")
	require.NoError(t, err)

	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	first := scheduler.Schedule(plan, start)
	second := scheduler.Schedule(plan, start)
	assert.Equal(t, first, second)
}

func TestScheduleUnevenFirstInstallment(t *testing.T) {
	scheduler := newTestScheduler(t)
	plan, err := scheduler.catalog.Get("silver")
	require.NoError(t, err)

	installments := scheduler.Schedule(plan, time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC))
	require.Len(t, installments, 2)
	assert.Equal(t, int64(30000000), installments[0].Amount)
	assert.Equal(t, int64(25000000), installments[1].Amount)
	assert.True(t, installments[1].DueDate.Equal(time.Date(2024, time.December, 15, 0, 0, 0, 0, time.UTC)))
}

func TestScheduleSinglePayment(t *testing.T) {
	scheduler := newTestScheduler(t)
	plan, err := scheduler.catalog.Get("gold")
	require.NoError(t, err)

	start := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	installments := scheduler.Schedule(plan, start)
	require.Len(t, installments, 1)
	assert.Equal(t, plan.TotalAmount, installments[0].Amount)
	assert.True(t, installments[0].DueDate.Equal(start))
}

func TestMaterializeDues(t *testing.T) {
	scheduler := newTestScheduler(t)
	start := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	dues, err := scheduler.MaterializeDues("bronze", "enr-1", start, false)
	require.NoError(t, err)
	require.Len(t, dues, 4)
	for i, due := range dues {
		assert.Equal(t, "enr-1", due.EnrollmentID)
		assert.Equal(t, "bronze", due.PlanID)
		assert.Equal(t, i+1, due.InstallmentNumber)
		assert.Equal(t, 4, due.TotalInstallments)
		assert.Equal(t, models.PaymentDueStatusPending, due.Status)
	}
}

func TestMaterializeDuesSkipFirst(t *testing.T) {
	scheduler := newTestScheduler(t)
	start := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	dues, err := scheduler.MaterializeDues("bronze", "enr-1", start, true)
	require.NoError(t, err)
	require.Len(t, dues, 3)
	assert.Equal(t, 2, dues[0].InstallmentNumber)
}

func TestMaterializeDuesUnknownPlan(t *testing.T) {
	scheduler := newTestScheduler(t)
	_, err := scheduler.MaterializeDues("missing", "enr-1", time.Now(), false)
	require.Error(t, err)
}
