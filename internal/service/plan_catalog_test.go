package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftlearn/academy-billing-api/internal/models"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
)

func TestPlanCatalogDefaultPlansAreValid(t *testing.T) {
	catalog, err := NewPlanCatalog()
	require.NoError(t, err)

	for _, plan := range catalog.List() {
		sum := plan.FirstInstallmentAmount + int64(plan.InstallmentCount-1)*plan.SubsequentInstallmentAmount
		assert.Equal(t, plan.TotalAmount, sum, "plan %s installments must sum to total", plan.ID)
	}
}

func TestPlanCatalogGet(t *testing.T) {
	catalog, err := NewPlanCatalog()
	require.NoError(t, err)

	plan, err := catalog.Get("bronze")
	require.NoError(t, err)
	assert.Equal(t, "Bronze", plan.Name)
	assert.Equal(t, 4, plan.InstallmentCount)
	assert.Equal(t, int64(60000000), plan.TotalAmount)

	_, err = catalog.Get("platinum")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPlanNotFound))
}

func TestPlanCatalogListSortedByTotal(t *testing.T) {
	catalog, err := NewPlanCatalog()
	require.NoError(t, err)

	plans := catalog.List()
	require.NotEmpty(t, plans)
	for i := 1; i < len(plans); i++ {
		assert.LessOrEqual(t, plans[i-1].TotalAmount, plans[i].TotalAmount)
	}
}

func TestPlanCatalogRejectsMismatchedSum(t *testing.T) {
	_, err := NewPlanCatalogFrom([]models.Plan{{
		ID:                          "broken",
		Name:                        "Broken",
		TotalAmount:                 100,
		InstallmentCount:            2,
		FirstInstallmentAmount:      60,
		SubsequentInstallmentAmount: 60,
		IntervalMonths:              1,
		Currency:                    "NGN",
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum")
}

func TestPlanCatalogRejectsDuplicateIDs(t *testing.T) {
	plan := models.Plan{
		ID:                     "dup",
		Name:                   "Dup",
		TotalAmount:            100,
		InstallmentCount:       1,
		FirstInstallmentAmount: 100,
		Currency:               "NGN",
	}
	_, err := NewPlanCatalogFrom([]models.Plan{plan, plan})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestPlanCatalogRejectsMissingInterval(t *testing.T) {
	_, err := NewPlanCatalogFrom([]models.Plan{{
		ID:                          "nointerval",
		Name:                        "No Interval",
		TotalAmount:                 200,
		InstallmentCount:            2,
		FirstInstallmentAmount:      100,
		SubsequentInstallmentAmount: 100,
		IntervalMonths:              0,
		Currency:                    "NGN",
	}})
	require.Error(t, err)
}
