package models

// BatchAssignment is the outcome of assigning an enrollment to a cohort.
// Batches are derived from the count of paid enrollments, not stored; only the
// winning name is frozen onto the enrollment.
type BatchAssignment struct {
	BatchName      string `json:"batch_name"`
	BatchNumber    int    `json:"batch_number"`
	EnrolleeCount  int    `json:"enrollee_count"`
	SlotsRemaining int    `json:"slots_remaining"`
}
