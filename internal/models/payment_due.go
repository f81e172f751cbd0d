package models

import "time"

// PaymentDueStatus represents the lifecycle of a scheduled installment.
type PaymentDueStatus string

// Possible payment due statuses. OVERDUE is a computed view over PENDING rows
// past their due date; it is never written to the store.
const (
	PaymentDueStatusPending   PaymentDueStatus = "PENDING"
	PaymentDueStatusPaid      PaymentDueStatus = "PAID"
	PaymentDueStatusOverdue   PaymentDueStatus = "OVERDUE"
	PaymentDueStatusCancelled PaymentDueStatus = "CANCELLED"
)

// PaymentDue tracks one installment's obligation and payment state.
type PaymentDue struct {
	ID                string           `db:"id" json:"id"`
	EnrollmentID      string           `db:"enrollment_id" json:"enrollment_id"`
	PlanID            string           `db:"plan_id" json:"plan_id"`
	InstallmentNumber int              `db:"installment_number" json:"installment_number"`
	TotalInstallments int              `db:"total_installments" json:"total_installments"`
	DueAmount         int64            `db:"due_amount" json:"due_amount"`
	DueDate           time.Time        `db:"due_date" json:"due_date"`
	Status            PaymentDueStatus `db:"status" json:"status"`
	PaidAmount        *int64           `db:"paid_amount" json:"paid_amount,omitempty"`
	PaidDate          *time.Time       `db:"paid_date" json:"paid_date,omitempty"`
	PaymentReference  *string          `db:"payment_reference" json:"payment_reference,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// PaymentDueView enriches PaymentDue with the computed payability fields
// consumed by clients.
type PaymentDueView struct {
	PaymentDue
	EffectiveStatus PaymentDueStatus `json:"effective_status"`
	PayableNow      bool             `json:"payable_now"`
	DaysUntilWindow int              `json:"days_until_window"`
}
