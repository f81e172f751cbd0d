package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftlearn/academy-billing-api/internal/service"
	"github.com/craftlearn/academy-billing-api/pkg/response"
)

// BatchHandler exposes cohort batch information.
type BatchHandler struct {
	service *service.BatchService
}

// NewBatchHandler creates a new handler.
func NewBatchHandler(svc *service.BatchService) *BatchHandler {
	return &BatchHandler{service: svc}
}

// Current godoc
// @Summary Show the batch the next paid enrollment would join
// @Description Derived from the live count of paid enrollments; no state is written
// @Tags Batches
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /batches/current [get]
func (h *BatchHandler) Current(c *gin.Context) {
	assignment, err := h.service.Preview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}
