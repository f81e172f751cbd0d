package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/craftlearn/academy-billing-api/internal/models"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
	"github.com/craftlearn/academy-billing-api/pkg/export"
	"github.com/craftlearn/academy-billing-api/pkg/storage"
)

type receiptPaymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
}

type receiptEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
}

// ReceiptService renders payment receipts as PDFs and hands out signed,
// expiring download links so receipt files never sit behind a guessable URL.
type ReceiptService struct {
	payments    receiptPaymentRepository
	enrollments receiptEnrollmentRepository
	catalog     *PlanCatalog
	exporter    *export.ReceiptPDFExporter
	store       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
}

// NewReceiptService constructs a ReceiptService.
func NewReceiptService(
	payments receiptPaymentRepository,
	enrollments receiptEnrollmentRepository,
	catalog *PlanCatalog,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	logger *zap.Logger,
) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptService{
		payments:    payments,
		enrollments: enrollments,
		catalog:     catalog,
		exporter:    export.NewReceiptPDFExporter(),
		store:       store,
		signer:      signer,
		logger:      logger,
	}
}

// Issue renders the receipt for a payment, stores it, and returns a signed
// link. Learners may only issue receipts for their own payments.
func (s *ReceiptService) Issue(ctx context.Context, userID string, role models.UserRole, paymentID string) (*models.ReceiptLink, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	enrollment, err := s.enrollments.FindByID(ctx, payment.EnrollmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if role != models.RoleAdmin && enrollment.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "receipt belongs to another learner")
	}

	receipt := export.Receipt{
		Title:     "Tuition Payment Receipt",
		Reference: payment.Reference,
		Footer:    "This receipt was generated electronically and is valid without a signature.",
		Lines: []export.ReceiptLine{
			{Label: "Payment ID", Value: payment.ID},
			{Label: "Enrollment", Value: payment.EnrollmentID},
			{Label: "Amount", Value: formatAmount(payment.Amount, payment.Currency)},
			{Label: "Paid At", Value: payment.PaidAt.Format("02 Jan 2006 15:04 MST")},
		},
	}
	if plan, err := s.catalog.Get(payment.PlanID); err == nil {
		receipt.Lines = append(receipt.Lines, export.ReceiptLine{Label: "Plan", Value: plan.Name})
	}
	if payment.InstallmentNumber != nil {
		receipt.Lines = append(receipt.Lines, export.ReceiptLine{Label: "Installment", Value: fmt.Sprintf("#%d", *payment.InstallmentNumber)})
	}

	data, err := s.exporter.Render(receipt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}

	relPath := fmt.Sprintf("%s/%s.pdf", payment.PaidAt.Format("2006/01"), payment.ID)
	if _, err := s.store.Save(relPath, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store receipt")
	}

	token, expiresAt, err := s.signer.Generate(payment.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign receipt link")
	}

	s.logger.Info("receipt issued", zap.String("payment_id", payment.ID), zap.String("path", relPath))
	return &models.ReceiptLink{PaymentID: payment.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// Open validates a signed token and returns the stored receipt file.
func (s *ReceiptService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired receipt link")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "receipt file no longer available")
	}
	return file, nil
}

// Cleanup removes receipt files older than the given TTL.
func (s *ReceiptService) Cleanup(ttl time.Duration) {
	removed, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("receipt cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("receipt cleanup", zap.Int("removed", len(removed)))
	}
}

func formatAmount(minor int64, currency string) string {
	if currency == "" {
		currency = "NGN"
	}
	return fmt.Sprintf("%s %.2f", currency, float64(minor)/100)
}
