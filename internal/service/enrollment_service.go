package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/craftlearn/academy-billing-api/internal/models"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByUser(ctx context.Context, userID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdatePlan(ctx context.Context, id, planID string) error
}

// EnrollmentService manages learner registrations and plan selection.
type EnrollmentService struct {
	repo      enrollmentRepository
	catalog   *PlanCatalog
	scheduler *ScheduleService
	ledger    *LedgerService
	logger    *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, catalog *PlanCatalog, scheduler *ScheduleService, ledger *LedgerService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, catalog: catalog, scheduler: scheduler, ledger: ledger, logger: logger}
}

// Register creates the learner's enrollment, or returns the existing one.
// One enrollment per learner.
func (s *EnrollmentService) Register(ctx context.Context, userID string) (*models.Enrollment, error) {
	existing, err := s.repo.FindByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	enrollment := &models.Enrollment{UserID: userID}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	s.logger.Info("enrollment created", zap.String("enrollment_id", enrollment.ID), zap.String("user_id", userID))
	return enrollment, nil
}

// Me returns the caller's enrollment.
func (s *EnrollmentService) Me(ctx context.Context, userID string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no enrollment for learner")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// SelectPlan binds the learner to a tuition plan and materialises its
// installment schedule. Re-selecting the bound plan returns the existing
// schedule unchanged. Switching plans before the first payment cancels the
// previous plan's outstanding dues; after payment the plan is locked.
func (s *EnrollmentService) SelectPlan(ctx context.Context, userID, planID string, startDate time.Time) (*models.Enrollment, []models.PaymentDue, error) {
	plan, err := s.catalog.Get(planID)
	if err != nil {
		return nil, nil, err
	}

	enrollment, err := s.Me(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	if enrollment.IsPaymentDone {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "plan is locked after the first payment")
	}

	// Re-selecting the bound plan is a no-op. Returning the schedule already
	// on file keeps a double-submitted selection from inserting a second set
	// of dues for the same installments.
	if enrollment.PlanID != nil && *enrollment.PlanID == plan.ID {
		views, err := s.ledger.ListAll(ctx, enrollment.ID)
		if err != nil {
			return nil, nil, err
		}
		existing := make([]models.PaymentDue, 0, len(views))
		for _, view := range views {
			if view.PlanID == plan.ID && view.Status != models.PaymentDueStatusCancelled {
				existing = append(existing, view.PaymentDue)
			}
		}
		return enrollment, existing, nil
	}

	if enrollment.PlanID != nil {
		if _, err := s.ledger.CancelOutstanding(ctx, enrollment.ID, *enrollment.PlanID); err != nil {
			return nil, nil, err
		}
	}
	if err := s.repo.UpdatePlan(ctx, enrollment.ID, plan.ID); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set plan")
	}
	enrollment.PlanID = &plan.ID

	if startDate.IsZero() {
		startDate = time.Now().UTC()
	}
	dues, err := s.scheduler.MaterializeDues(plan.ID, enrollment.ID, startDate, false)
	if err != nil {
		return nil, nil, err
	}
	if len(dues) > 0 {
		if err := s.ledger.CreateSchedule(ctx, dues); err != nil {
			return nil, nil, err
		}
	}

	s.logger.Info("plan selected",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("plan_id", plan.ID),
		zap.Int("installments", len(dues)),
	)
	return enrollment, dues, nil
}

// List returns enrollments matching the filter with a total count. Admin use.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, total, nil
}
