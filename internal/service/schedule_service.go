package service

import (
	"time"

	"github.com/craftlearn/academy-billing-api/internal/models"
)

// ScheduleService derives installment schedules from a plan and a start date.
// Scheduling is pure: the same plan and start date always produce the same
// installments, which makes retries of due materialisation idempotent.
type ScheduleService struct {
	catalog *PlanCatalog
}

// NewScheduleService constructs the scheduler.
func NewScheduleService(catalog *PlanCatalog) *ScheduleService {
	return &ScheduleService{catalog: catalog}
}

// Schedule returns the installments for a plan starting at startDate.
// Installment 1 is due at startDate; installment i is due i-1 interval steps
// later using calendar-month arithmetic.
func (s *ScheduleService) Schedule(plan *models.Plan, startDate time.Time) []models.Installment {
	installments := make([]models.Installment, 0, plan.InstallmentCount)
	for i := 0; i < plan.InstallmentCount; i++ {
		amount := plan.SubsequentInstallmentAmount
		if i == 0 {
			amount = plan.FirstInstallmentAmount
		}
		installments = append(installments, models.Installment{
			Number:  i + 1,
			Amount:  amount,
			DueDate: startDate.AddDate(0, i*plan.IntervalMonths, 0),
		})
	}
	return installments
}

// MaterializeDues maps the schedule for planID into PaymentDue rows for the
// enrollment. When skipFirst is set the first installment is omitted; that is
// the common case where installment 1 is collected inline during plan
// purchase and only the deferred installments need ledger rows.
func (s *ScheduleService) MaterializeDues(planID, enrollmentID string, startDate time.Time, skipFirst bool) ([]models.PaymentDue, error) {
	plan, err := s.catalog.Get(planID)
	if err != nil {
		return nil, err
	}
	installments := s.Schedule(plan, startDate)
	dues := make([]models.PaymentDue, 0, len(installments))
	for _, inst := range installments {
		if skipFirst && inst.Number == 1 {
			continue
		}
		dues = append(dues, models.PaymentDue{
			EnrollmentID:      enrollmentID,
			PlanID:            plan.ID,
			InstallmentNumber: inst.Number,
			TotalInstallments: plan.InstallmentCount,
			DueAmount:         inst.Amount,
			DueDate:           inst.DueDate,
			Status:            models.PaymentDueStatusPending,
		})
	}
	return dues, nil
}
