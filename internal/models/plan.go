package models

import "time"

// Plan describes a tuition plan from the static catalog. Amounts are in the
// minor currency unit (kobo).
type Plan struct {
	ID                          string `json:"id"`
	Name                        string `json:"name"`
	TotalAmount                 int64  `json:"total_amount"`
	InstallmentCount            int    `json:"installment_count"`
	FirstInstallmentAmount      int64  `json:"first_installment_amount"`
	SubsequentInstallmentAmount int64  `json:"subsequent_installment_amount"`
	IntervalMonths              int    `json:"interval_months"`
	Currency                    string `json:"currency"`
}

// Installment is one scheduled partial payment produced by the scheduler.
type Installment struct {
	Number  int       `json:"number"`
	Amount  int64     `json:"amount"`
	DueDate time.Time `json:"due_date"`
}
