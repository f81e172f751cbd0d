package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/craftlearn/academy-billing-api/internal/gateway"
	"github.com/craftlearn/academy-billing-api/internal/models"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
)

type verificationEnrollmentRepository interface {
	FindByUser(ctx context.Context, userID string) (*models.Enrollment, error)
	UpdatePlan(ctx context.Context, id, planID string) error
}

type verificationPaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
}

type callbackRecorder interface {
	Create(ctx context.Context, record *models.GatewayCallbackRecord) error
}

type verificationDebounce interface {
	Begin(ctx context.Context, reference string) (bool, error)
	Complete(ctx context.Context, reference string, result *models.VerificationResult) error
	Get(ctx context.Context, reference string) (*models.VerificationResult, error)
	Release(ctx context.Context, reference string)
}

type batchAssigner interface {
	Assign(ctx context.Context, enrollmentID string) (*models.BatchAssignment, error)
}

type dueSettler interface {
	MarkInstallmentPaid(ctx context.Context, enrollmentID, planID string, installmentNumber int, amountPaid int64, reference string, paidDate time.Time) (*models.PaymentDue, error)
	MarkNextPaid(ctx context.Context, enrollmentID, planID string, amountPaid int64, reference string, paidDate time.Time) (*models.PaymentDue, error)
}

type verificationObserver interface {
	ObserveVerification(state models.VerificationState, replayed bool)
}

// VerificationService reconciles a payment gateway callback into durable
// records exactly once per transaction reference.
//
// The redirect that triggers processing is at-least-once: clients reload and
// gateways redirect twice. Two guards keep side effects single-shot. The
// Redis debounce short-circuits replays cheaply within a TTL, and the unique
// constraint on payments.reference is the durable backstop that survives
// process restarts. Once the reference is recorded the learner has paid;
// later bookkeeping failures are reported as warnings, never rolled back.
type VerificationService struct {
	enrollments verificationEnrollmentRepository
	payments    verificationPaymentRepository
	callbacks   callbackRecorder
	debounce    verificationDebounce
	batches     batchAssigner
	ledger      dueSettler
	catalog     *PlanCatalog
	verifier    gateway.Verifier
	metrics     verificationObserver
	logger      *zap.Logger
	now         func() time.Time
}

// NewVerificationService constructs the state machine. verifier may be nil
// when server-side verification is disabled; metrics may be nil.
func NewVerificationService(
	enrollments verificationEnrollmentRepository,
	payments verificationPaymentRepository,
	callbacks callbackRecorder,
	debounce verificationDebounce,
	batches batchAssigner,
	ledger dueSettler,
	catalog *PlanCatalog,
	verifier gateway.Verifier,
	metrics verificationObserver,
	logger *zap.Logger,
) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		enrollments: enrollments,
		payments:    payments,
		callbacks:   callbacks,
		debounce:    debounce,
		batches:     batches,
		ledger:      ledger,
		catalog:     catalog,
		verifier:    verifier,
		metrics:     metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Process runs one verification attempt for the authenticated caller.
func (s *VerificationService) Process(ctx context.Context, userID string, callback models.GatewayCallback) (*models.VerificationResult, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "verification requires an authenticated learner")
	}

	s.recordCallback(ctx, callback)

	if callback.Reference == "" {
		return s.fail(ctx, callback.Reference, "reference missing"), nil
	}
	if callback.Status == "failed" {
		return s.fail(ctx, callback.Reference, "payment declined"), nil
	}

	claimed, err := s.debounce.Begin(ctx, callback.Reference)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to claim verification")
	}
	if !claimed {
		if stored, err := s.debounce.Get(ctx, callback.Reference); err == nil && stored.State != models.VerificationStateProcessing {
			stored.Replayed = true
			s.observe(stored.State, true)
			return stored, nil
		}
		s.observe(models.VerificationStateProcessing, true)
		return &models.VerificationResult{State: models.VerificationStateProcessing, Replayed: true, Reason: "verification already in progress"}, nil
	}

	result, err := s.confirm(ctx, userID, callback)
	if err != nil {
		// Transient failure: release the claim so the next redirect retries.
		s.debounce.Release(ctx, callback.Reference)
		return nil, err
	}
	if err := s.debounce.Complete(ctx, callback.Reference, result); err != nil {
		s.logger.Warn("failed to store verification outcome", zap.String("reference", callback.Reference), zap.Error(err))
	}
	s.observe(result.State, result.Replayed)
	return result, nil
}

func (s *VerificationService) confirm(ctx context.Context, userID string, callback models.GatewayCallback) (*models.VerificationResult, error) {
	plan, err := s.catalog.Get(callback.PlanID)
	if err != nil {
		return &models.VerificationResult{State: models.VerificationStateFailed, Reason: "unknown tuition plan"}, nil
	}

	amount := callback.Amount
	if s.verifier != nil {
		tx, err := s.verifier.Verify(ctx, callback.Reference)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify transaction with gateway")
		}
		if !tx.Succeeded() {
			return &models.VerificationResult{State: models.VerificationStateFailed, Reason: "payment declined"}, nil
		}
		// The gateway's amount is authoritative over the redirect params.
		amount = tx.Amount
	}

	enrollment, err := s.enrollments.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.VerificationResult{State: models.VerificationStateFailed, Reason: "no enrollment for learner"}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	if enrollment.PlanID == nil || *enrollment.PlanID != plan.ID {
		if err := s.enrollments.UpdatePlan(ctx, enrollment.ID, plan.ID); err != nil {
			s.logger.Warn("failed to record plan on enrollment", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		}
	}

	result := &models.VerificationResult{State: models.VerificationStateSuccess}

	// Step 1: payment flag and cohort. Must precede the payment record so the
	// frozen batch name exists before any reader trusts is_payment_done.
	batch, err := s.batches.Assign(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm enrollment payment")
	}
	result.Batch = batch

	// Step 2: the durable idempotency backstop.
	var installment *int
	if callback.Installment > 0 {
		n := callback.Installment
		installment = &n
	}
	payment := &models.Payment{
		EnrollmentID:      enrollment.ID,
		Reference:         callback.Reference,
		Amount:            amount,
		Currency:          callback.Currency,
		PlanID:            plan.ID,
		InstallmentNumber: installment,
		PaidAt:            s.now(),
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if appErrors.Is(err, appErrors.ErrDuplicateReference) {
			existing, findErr := s.payments.FindByReference(ctx, callback.Reference)
			if findErr != nil {
				s.logger.Warn("duplicate reference but lookup failed", zap.String("reference", callback.Reference), zap.Error(findErr))
			} else {
				result.Payment = existing
			}
			result.Replayed = true
			s.logger.Info("verification replayed", zap.String("reference", callback.Reference))
			return result, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}
	result.Payment = payment

	// Step 3: due ledger bookkeeping. Recoverable after the fact, so failures
	// surface as warnings instead of aborting a flow the learner already paid.
	// Callbacks do not always name an installment; without one the payment is
	// matched to the earliest pending due of the plan by amount.
	var settleErr error
	if installment != nil {
		_, settleErr = s.ledger.MarkInstallmentPaid(ctx, enrollment.ID, plan.ID, *installment, amount, callback.Reference, payment.PaidAt)
	} else {
		_, settleErr = s.ledger.MarkNextPaid(ctx, enrollment.ID, plan.ID, amount, callback.Reference, payment.PaidAt)
	}
	if settleErr != nil {
		switch {
		case appErrors.Is(settleErr, appErrors.ErrAlreadyPaid):
			s.logger.Info("due already settled", zap.String("reference", callback.Reference))
		case appErrors.Is(settleErr, appErrors.ErrNotFound):
			s.logger.Debug("no due scheduled for payment", zap.String("reference", callback.Reference))
		default:
			s.logger.Error("failed to settle due after payment", zap.String("reference", callback.Reference), zap.Error(settleErr))
			result.Warnings = append(result.Warnings, "installment ledger not updated; safe to re-run")
		}
	}

	s.logger.Info("payment verified",
		zap.String("reference", callback.Reference),
		zap.String("enrollment_id", enrollment.ID),
		zap.String("plan_id", plan.ID),
		zap.Int64("amount", amount),
	)
	return result, nil
}

func (s *VerificationService) fail(ctx context.Context, reference, reason string) *models.VerificationResult {
	result := &models.VerificationResult{State: models.VerificationStateFailed, Reason: reason}
	if reference != "" {
		if err := s.debounce.Complete(ctx, reference, result); err != nil {
			s.logger.Warn("failed to store failed verification", zap.String("reference", reference), zap.Error(err))
		}
	}
	s.observe(models.VerificationStateFailed, false)
	return result
}

func (s *VerificationService) recordCallback(ctx context.Context, callback models.GatewayCallback) {
	payload, err := json.Marshal(callback)
	if err != nil {
		payload = []byte("{}")
	}
	record := &models.GatewayCallbackRecord{
		Reference: callback.Reference,
		Status:    callback.Status,
		Payload:   payload,
	}
	if err := s.callbacks.Create(ctx, record); err != nil {
		s.logger.Warn("failed to record gateway callback", zap.String("reference", callback.Reference), zap.Error(err))
	}
}

func (s *VerificationService) observe(state models.VerificationState, replayed bool) {
	if s.metrics != nil {
		s.metrics.ObserveVerification(state, replayed)
	}
}
