package service

import (
	"fmt"
	"sort"

	"github.com/craftlearn/academy-billing-api/internal/models"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
)

// defaultPlans is the static tuition plan table. Amounts are in kobo.
var defaultPlans = []models.Plan{
	{
		ID:                          "starter",
		Name:                        "Starter",
		TotalAmount:                 25000000,
		InstallmentCount:            1,
		FirstInstallmentAmount:      25000000,
		SubsequentInstallmentAmount: 0,
		IntervalMonths:              0,
		Currency:                    "NGN",
	},
	{
		ID:                          "bronze",
		Name:                        "Bronze",
		TotalAmount:                 60000000,
		InstallmentCount:            4,
		FirstInstallmentAmount:      15000000,
		SubsequentInstallmentAmount: 15000000,
		IntervalMonths:              3,
		Currency:                    "NGN",
	},
	{
		ID:                          "silver",
		Name:                        "Silver",
		TotalAmount:                 55000000,
		InstallmentCount:            2,
		FirstInstallmentAmount:      30000000,
		SubsequentInstallmentAmount: 25000000,
		IntervalMonths:              6,
		Currency:                    "NGN",
	},
	{
		ID:                          "gold",
		Name:                        "Gold",
		TotalAmount:                 50000000,
		InstallmentCount:            1,
		FirstInstallmentAmount:      50000000,
		SubsequentInstallmentAmount: 0,
		IntervalMonths:              0,
		Currency:                    "NGN",
	},
}

// PlanCatalog is the immutable, versioned catalog of tuition plans. It is
// built once at process start; a corrupt entry fails construction rather than
// surfacing at payment time.
type PlanCatalog struct {
	plans map[string]models.Plan
}

// NewPlanCatalog validates and indexes the default plan table.
func NewPlanCatalog() (*PlanCatalog, error) {
	return NewPlanCatalogFrom(defaultPlans)
}

// NewPlanCatalogFrom validates and indexes the provided plan table.
func NewPlanCatalogFrom(plans []models.Plan) (*PlanCatalog, error) {
	indexed := make(map[string]models.Plan, len(plans))
	for _, plan := range plans {
		if err := validatePlan(plan); err != nil {
			return nil, fmt.Errorf("plan %q: %w", plan.ID, err)
		}
		if _, exists := indexed[plan.ID]; exists {
			return nil, fmt.Errorf("plan %q: duplicate catalog entry", plan.ID)
		}
		indexed[plan.ID] = plan
	}
	return &PlanCatalog{plans: indexed}, nil
}

func validatePlan(plan models.Plan) error {
	if plan.ID == "" || plan.Name == "" {
		return fmt.Errorf("missing id or name")
	}
	if plan.InstallmentCount < 1 {
		return fmt.Errorf("installment count %d must be at least 1", plan.InstallmentCount)
	}
	if plan.TotalAmount <= 0 || plan.FirstInstallmentAmount <= 0 {
		return fmt.Errorf("amounts must be positive")
	}
	if plan.InstallmentCount > 1 && plan.IntervalMonths < 1 {
		return fmt.Errorf("interval months %d must be at least 1 for multi-installment plans", plan.IntervalMonths)
	}
	sum := plan.FirstInstallmentAmount + int64(plan.InstallmentCount-1)*plan.SubsequentInstallmentAmount
	if sum != plan.TotalAmount {
		return fmt.Errorf("installment amounts sum to %d, want %d", sum, plan.TotalAmount)
	}
	return nil
}

// Get returns the plan with the given ID.
func (c *PlanCatalog) Get(id string) (*models.Plan, error) {
	plan, ok := c.plans[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPlanNotFound, fmt.Sprintf("tuition plan %q not found", id))
	}
	return &plan, nil
}

// List returns all plans sorted by total amount ascending.
func (c *PlanCatalog) List() []models.Plan {
	plans := make([]models.Plan, 0, len(c.plans))
	for _, plan := range c.plans {
		plans = append(plans, plan)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].TotalAmount == plans[j].TotalAmount {
			return plans[i].ID < plans[j].ID
		}
		return plans[i].TotalAmount < plans[j].TotalAmount
	})
	return plans
}
