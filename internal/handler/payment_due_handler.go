package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftlearn/academy-billing-api/internal/models"
	"github.com/craftlearn/academy-billing-api/internal/service"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
	"github.com/craftlearn/academy-billing-api/pkg/export"
	"github.com/craftlearn/academy-billing-api/pkg/response"
)

// PaymentDueHandler exposes the learner's installment ledger.
type PaymentDueHandler struct {
	enrollments *service.EnrollmentService
	ledger      *service.LedgerService
	exporter    *export.CSVExporter
}

// NewPaymentDueHandler creates a new handler.
func NewPaymentDueHandler(enrollments *service.EnrollmentService, ledger *service.LedgerService) *PaymentDueHandler {
	return &PaymentDueHandler{enrollments: enrollments, ledger: ledger, exporter: export.NewCSVExporter()}
}

// List godoc
// @Summary List the caller's payment dues
// @Description Returns dues with computed payability; pending=true restricts to unsettled rows
// @Tags Payment Dues
// @Produce json
// @Param pending query bool false "Only pending and overdue dues"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payment-dues [get]
func (h *PaymentDueHandler) List(c *gin.Context) {
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

	pendingOnly, _ := strconv.ParseBool(c.DefaultQuery("pending", "false"))
	var dues []models.PaymentDueView
	if pendingOnly {
		dues, err = h.ledger.ListPending(c.Request.Context(), enrollment.ID)
	} else {
		dues, err = h.ledger.ListAll(c.Request.Context(), enrollment.ID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dues, nil)
}

// Statement godoc
// @Summary Download the caller's dues as CSV
// @Tags Payment Dues
// @Produce text/csv
// @Success 200 {string} string "CSV content"
// @Failure 404 {object} response.Envelope
// @Router /payment-dues/statement [get]
func (h *PaymentDueHandler) Statement(c *gin.Context) {
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

	dues, err := h.ledger.ListAll(c.Request.Context(), enrollment.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	dataset := export.Dataset{
		Headers: []string{"installment", "due_date", "amount", "status", "paid_date", "reference"},
	}
	for _, due := range dues {
		row := map[string]string{
			"installment": fmt.Sprintf("%d/%d", due.InstallmentNumber, due.TotalInstallments),
			"due_date":    due.DueDate.Format("2006-01-02"),
			"amount":      fmt.Sprintf("%.2f", float64(due.DueAmount)/100),
			"status":      string(due.EffectiveStatus),
		}
		if due.PaidDate != nil {
			row["paid_date"] = due.PaidDate.Format("2006-01-02")
		}
		if due.PaymentReference != nil {
			row["reference"] = *due.PaymentReference
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	data, err := h.exporter.Render(dataset)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement"))
		return
	}

	filename := fmt.Sprintf("statement-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", data)
}
