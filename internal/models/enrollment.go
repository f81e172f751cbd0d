package models

import "time"

// Enrollment captures a learner's registration and payment state.
type Enrollment struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	PlanID        *string   `db:"plan_id" json:"plan_id,omitempty"`
	IsPaymentDone bool      `db:"is_payment_done" json:"is_payment_done"`
	BatchName     *string   `db:"batch_name" json:"batch_name,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID        string
	PlanID        string
	IsPaymentDone *bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
