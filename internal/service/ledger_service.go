package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/craftlearn/academy-billing-api/internal/models"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
)

// DefaultPaymentWindowDays is how many days before its due date an
// installment becomes payable.
const DefaultPaymentWindowDays = 10

type paymentDueRepository interface {
	CreateBatch(ctx context.Context, dues []models.PaymentDue) error
	FindByID(ctx context.Context, id string) (*models.PaymentDue, error)
	FindByInstallment(ctx context.Context, enrollmentID, planID string, installmentNumber int) (*models.PaymentDue, error)
	ListPending(ctx context.Context, enrollmentID string) ([]models.PaymentDue, error)
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.PaymentDue, error)
	MarkPaid(ctx context.Context, id string, paidAmount int64, reference string, paidDate time.Time) (*models.PaymentDue, error)
	CancelOutstanding(ctx context.Context, enrollmentID, planID string) (int64, error)
}

type ledgerObserver interface {
	ObserveDueSettled()
}

// Payability reports whether an installment may be paid right now.
type Payability struct {
	PayableNow      bool
	DaysUntilWindow int
	Overdue         bool
}

// LedgerService owns the lifecycle of scheduled installments.
type LedgerService struct {
	repo       paymentDueRepository
	windowDays int
	metrics    ledgerObserver
	logger     *zap.Logger
	now        func() time.Time
}

// NewLedgerService constructs the ledger. A non-positive windowDays falls
// back to the default ten-day window; metrics may be nil.
func NewLedgerService(repo paymentDueRepository, windowDays int, metrics ledgerObserver, logger *zap.Logger) *LedgerService {
	if windowDays <= 0 {
		windowDays = DefaultPaymentWindowDays
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{repo: repo, windowDays: windowDays, metrics: metrics, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateSchedule persists a batch of materialised dues.
func (s *LedgerService) CreateSchedule(ctx context.Context, dues []models.PaymentDue) error {
	if err := s.repo.CreateBatch(ctx, dues); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create installment schedule")
	}
	return nil
}

// ListPending returns the outstanding dues for an enrollment, due date
// ascending, annotated with payability.
func (s *LedgerService) ListPending(ctx context.Context, enrollmentID string) ([]models.PaymentDueView, error) {
	dues, err := s.repo.ListPending(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending dues")
	}
	return s.annotate(dues), nil
}

// ListAll returns every due for an enrollment annotated with payability.
func (s *LedgerService) ListAll(ctx context.Context, enrollmentID string) ([]models.PaymentDueView, error) {
	dues, err := s.repo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list dues")
	}
	return s.annotate(dues), nil
}

func (s *LedgerService) annotate(dues []models.PaymentDue) []models.PaymentDueView {
	now := s.now()
	views := make([]models.PaymentDueView, 0, len(dues))
	for _, due := range dues {
		view := models.PaymentDueView{PaymentDue: due, EffectiveStatus: due.Status}
		if due.Status == models.PaymentDueStatusPending {
			p := s.IsPayableNow(&due, now)
			view.PayableNow = p.PayableNow
			view.DaysUntilWindow = p.DaysUntilWindow
			if p.Overdue {
				view.EffectiveStatus = models.PaymentDueStatusOverdue
			}
		}
		views = append(views, view)
	}
	return views
}

// IsPayableNow applies the payment window policy: an installment becomes
// payable windowDays before its due date, or immediately once overdue.
// Otherwise it is locked and DaysUntilWindow says how long until it opens.
func (s *LedgerService) IsPayableNow(due *models.PaymentDue, now time.Time) Payability {
	if due.DueDate.Before(now) {
		return Payability{PayableNow: true, Overdue: true}
	}
	windowOpens := due.DueDate.AddDate(0, 0, -s.windowDays)
	if !now.Before(windowOpens) {
		return Payability{PayableNow: true}
	}
	days := int(windowOpens.Sub(now).Hours() / 24)
	if windowOpens.Sub(now)%(24*time.Hour) > 0 {
		days++
	}
	return Payability{PayableNow: false, DaysUntilWindow: days}
}

// MarkPaid settles one pending installment. Replayed callbacks hit the
// already-paid guard; partial payments are rejected before any write.
func (s *LedgerService) MarkPaid(ctx context.Context, dueID string, amountPaid int64, reference string, paidDate time.Time) (*models.PaymentDue, error) {
	due, err := s.repo.FindByID(ctx, dueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment due not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment due")
	}
	if due.Status != models.PaymentDueStatusPending {
		return nil, appErrors.Clone(appErrors.ErrAlreadyPaid, fmt.Sprintf("installment %d is %s", due.InstallmentNumber, due.Status))
	}
	if amountPaid != due.DueAmount {
		return nil, appErrors.Clone(appErrors.ErrAmountMismatch, fmt.Sprintf("paid %d but installment %d requires %d", amountPaid, due.InstallmentNumber, due.DueAmount))
	}

	updated, err := s.repo.MarkPaid(ctx, dueID, amountPaid, reference, paidDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the race to another confirmation of the same due.
			return nil, appErrors.Clone(appErrors.ErrAlreadyPaid, fmt.Sprintf("installment %d already settled", due.InstallmentNumber))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark due paid")
	}
	s.logger.Info("installment settled",
		zap.String("due_id", updated.ID),
		zap.String("enrollment_id", updated.EnrollmentID),
		zap.Int("installment", updated.InstallmentNumber),
		zap.String("reference", reference),
	)
	if s.metrics != nil {
		s.metrics.ObserveDueSettled()
	}
	return updated, nil
}

// MarkInstallmentPaid settles the due matching one installment of an
// enrollment's plan, used when a gateway callback carries an ordinal instead
// of a due ID.
func (s *LedgerService) MarkInstallmentPaid(ctx context.Context, enrollmentID, planID string, installmentNumber int, amountPaid int64, reference string, paidDate time.Time) (*models.PaymentDue, error) {
	due, err := s.repo.FindByInstallment(ctx, enrollmentID, planID, installmentNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no due scheduled for installment %d", installmentNumber))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment due")
	}
	return s.MarkPaid(ctx, due.ID, amountPaid, reference, paidDate)
}

// MarkNextPaid settles the earliest pending installment of an enrollment's
// plan whose amount matches the verified payment. Gateway callbacks do not
// always carry an installment ordinal, so the payment is matched to the
// schedule by amount instead.
func (s *LedgerService) MarkNextPaid(ctx context.Context, enrollmentID, planID string, amountPaid int64, reference string, paidDate time.Time) (*models.PaymentDue, error) {
	dues, err := s.repo.ListPending(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending dues")
	}
	var next *models.PaymentDue
	for i := range dues {
		due := &dues[i]
		if due.PlanID != planID || due.DueAmount != amountPaid {
			continue
		}
		if next == nil || due.InstallmentNumber < next.InstallmentNumber {
			next = due
		}
	}
	if next == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending due matches the paid amount")
	}
	return s.MarkPaid(ctx, next.ID, amountPaid, reference, paidDate)
}

// CancelOutstanding voids the remaining pending dues for an enrollment's plan.
func (s *LedgerService) CancelOutstanding(ctx context.Context, enrollmentID, planID string) (int64, error) {
	cancelled, err := s.repo.CancelOutstanding(ctx, enrollmentID, planID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel outstanding dues")
	}
	return cancelled, nil
}
