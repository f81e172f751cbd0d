package models

import "time"

// Payment is an immutable record of one completed money movement. The gateway
// reference is unique and acts as the idempotency key for verification replays.
type Payment struct {
	ID                string    `db:"id" json:"id"`
	EnrollmentID      string    `db:"enrollment_id" json:"enrollment_id"`
	Reference         string    `db:"reference" json:"reference"`
	Amount            int64     `db:"amount" json:"amount"`
	Currency          string    `db:"currency" json:"currency"`
	PlanID            string    `db:"plan_id" json:"plan_id"`
	InstallmentNumber *int      `db:"installment_number" json:"installment_number,omitempty"`
	PaidAt            time.Time `db:"paid_at" json:"paid_at"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// ReceiptLink points at a generated receipt document behind a signed token.
type ReceiptLink struct {
	PaymentID string    `json:"payment_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
