package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftlearn/academy-billing-api/internal/models"
	"github.com/craftlearn/academy-billing-api/internal/service"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
	"github.com/craftlearn/academy-billing-api/pkg/response"
)

type paymentHistoryRepository interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
}

// PaymentHandler exposes payment verification and history endpoints.
type PaymentHandler struct {
	verification *service.VerificationService
	enrollments  *service.EnrollmentService
	payments     paymentHistoryRepository
}

// NewPaymentHandler creates a new handler.
func NewPaymentHandler(verification *service.VerificationService, enrollments *service.EnrollmentService, payments paymentHistoryRepository) *PaymentHandler {
	return &PaymentHandler{verification: verification, enrollments: enrollments, payments: payments}
}

// Verify godoc
// @Summary Verify a gateway payment redirect
// @Description Reconciles the gateway callback into durable payment records, exactly once per reference
// @Tags Payments
// @Produce json
// @Param reference query string false "Gateway transaction reference"
// @Param status query string false "Gateway status"
// @Param planId query string false "Plan identifier"
// @Param amount query int false "Amount in minor units"
// @Param installment query int false "Installment ordinal"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /payments/verify [get]
func (h *PaymentHandler) Verify(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var callback models.GatewayCallback
	if err := c.ShouldBindQuery(&callback); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid callback parameters"))
		return
	}

	result, err := h.verification.Process(c.Request.Context(), claims.UserID, callback)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// History godoc
// @Summary List the caller's payments
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	enrollment, err := h.enrollments.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	payments, err := h.payments.ListByEnrollment(c.Request.Context(), enrollment.ID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments"))
		return
	}

	response.JSON(c, http.StatusOK, payments, nil)
}
