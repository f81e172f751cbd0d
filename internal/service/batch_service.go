package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/craftlearn/academy-billing-api/internal/models"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
)

type batchEnrollmentRepository interface {
	CountPaid(ctx context.Context) (int, error)
	MarkPaidAndAssignBatch(ctx context.Context, id string, computeBatch func(paidCount int) string) (string, error)
}

// BatchService assigns paid enrollments to fixed-capacity cohorts. Batches
// are a derived numbering over paid enrollments; the engine reads a fresh
// count every time and the repository serialises the count-compute-write
// sequence, so concurrent confirmations cannot share a slot.
type BatchService struct {
	repo     batchEnrollmentRepository
	capacity int
	logger   *zap.Logger
}

// NewBatchService constructs the engine with the configured cohort capacity.
func NewBatchService(repo batchEnrollmentRepository, capacity int, logger *zap.Logger) *BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchService{repo: repo, capacity: capacity, logger: logger}
}

// computeAssignment derives the cohort for the paidCount-th confirmation.
func computeAssignment(paidCount, capacity int) models.BatchAssignment {
	number := paidCount/capacity + 1
	inBatch := paidCount % capacity
	return models.BatchAssignment{
		BatchName:      fmt.Sprintf("Batch %d", number),
		BatchNumber:    number,
		EnrolleeCount:  inBatch,
		SlotsRemaining: capacity - inBatch,
	}
}

// Preview computes the next assignment from a fresh paid count without
// writing anything.
func (s *BatchService) Preview(ctx context.Context) (*models.BatchAssignment, error) {
	if s.capacity <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidCapacity, fmt.Sprintf("batch capacity %d must be positive", s.capacity))
	}
	paidCount, err := s.repo.CountPaid(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count paid enrollments")
	}
	assignment := computeAssignment(paidCount, s.capacity)
	return &assignment, nil
}

// Assign marks the enrollment paid and freezes its cohort name exactly once.
// A previously assigned enrollment keeps its stored name; the returned
// assignment reflects whatever is now frozen on the record.
func (s *BatchService) Assign(ctx context.Context, enrollmentID string) (*models.BatchAssignment, error) {
	if s.capacity <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidCapacity, fmt.Sprintf("batch capacity %d must be positive", s.capacity))
	}
	var assignment models.BatchAssignment
	batchName, err := s.repo.MarkPaidAndAssignBatch(ctx, enrollmentID, func(paidCount int) string {
		assignment = computeAssignment(paidCount, s.capacity)
		return assignment.BatchName
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign batch")
	}
	if assignment.BatchName == "" || assignment.BatchName != batchName {
		// The enrollment already carried a frozen name; report it as-is.
		assignment = models.BatchAssignment{BatchName: batchName}
	}
	s.logger.Info("batch assigned",
		zap.String("enrollment_id", enrollmentID),
		zap.String("batch_name", batchName),
		zap.Int("slots_remaining", assignment.SlotsRemaining),
	)
	return &assignment, nil
}
