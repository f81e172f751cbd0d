package models

import (
	"encoding/json"
	"time"
)

// GatewayCallback carries the query parameters of a payment gateway redirect.
// "failed" is the only status sentinel checked; anything else is treated as
// tentatively successful pending server-side verification.
type GatewayCallback struct {
	Reference    string `form:"reference" json:"reference"`
	Status       string `form:"status" json:"status"`
	PlanID       string `form:"planId" json:"plan_id"`
	PlanName     string `form:"planName" json:"plan_name"`
	Amount       int64  `form:"amount" json:"amount"`
	Currency     string `form:"currency" json:"currency"`
	PlanDiscount int    `form:"planDiscount" json:"plan_discount"`
	Installment  int    `form:"installment" json:"installment,omitempty"`
}

// GatewayCallbackRecord is the durable audit row written for every callback
// before any processing happens, so an operator can replay partial flows.
type GatewayCallbackRecord struct {
	ID         string          `db:"id" json:"id"`
	Reference  string          `db:"reference" json:"reference"`
	Status     string          `db:"status" json:"status"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	ReceivedAt time.Time       `db:"received_at" json:"received_at"`
}

// VerificationState enumerates the states of the verification machine.
type VerificationState string

// Verification states. Success and failed are terminal.
const (
	VerificationStateIdle       VerificationState = "IDLE"
	VerificationStateProcessing VerificationState = "PROCESSING"
	VerificationStateSuccess    VerificationState = "SUCCESS"
	VerificationStateFailed     VerificationState = "FAILED"
)

// VerificationResult reports the terminal outcome of one verification attempt.
// Warnings carry non-fatal bookkeeping failures that occurred after the payment
// reference was durably recorded.
type VerificationResult struct {
	State    VerificationState `json:"state"`
	Reason   string            `json:"reason,omitempty"`
	Replayed bool              `json:"replayed,omitempty"`
	Payment  *Payment          `json:"payment,omitempty"`
	Batch    *BatchAssignment  `json:"batch,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}
