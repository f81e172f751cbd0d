package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftlearn/academy-billing-api/internal/service"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
	"github.com/craftlearn/academy-billing-api/pkg/response"
)

// ReceiptHandler issues and serves signed receipt downloads.
type ReceiptHandler struct {
	service *service.ReceiptService
}

// NewReceiptHandler creates a new handler.
func NewReceiptHandler(svc *service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{service: svc}
}

// Issue godoc
// @Summary Issue a receipt for a payment
// @Description Renders the PDF and returns a signed, expiring download link
// @Tags Receipts
// @Produce json
// @Param id path string true "Payment ID"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/receipt [post]
func (h *ReceiptHandler) Issue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	link, err := h.service.Issue(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, link)
}

// Download godoc
// @Summary Download a receipt via a signed token
// @Tags Receipts
// @Produce application/pdf
// @Param token path string true "Signed token"
// @Success 200 {file} binary "PDF content"
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /receipts/{token} [get]
func (h *ReceiptHandler) Download(c *gin.Context) {
	file, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	stat, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read receipt"))
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\"receipt.pdf\"")
	c.DataFromReader(http.StatusOK, stat.Size(), "application/pdf", file, nil)
}
