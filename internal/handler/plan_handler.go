package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftlearn/academy-billing-api/internal/service"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
	"github.com/craftlearn/academy-billing-api/pkg/response"
)

// PlanHandler exposes the tuition plan catalog.
type PlanHandler struct {
	catalog   *service.PlanCatalog
	scheduler *service.ScheduleService
}

// NewPlanHandler creates a new handler.
func NewPlanHandler(catalog *service.PlanCatalog, scheduler *service.ScheduleService) *PlanHandler {
	return &PlanHandler{catalog: catalog, scheduler: scheduler}
}

// List godoc
// @Summary List tuition plans
// @Tags Plans
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /plans [get]
func (h *PlanHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.catalog.List(), nil)
}

// Get godoc
// @Summary Get one tuition plan
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /plans/{id} [get]
func (h *PlanHandler) Get(c *gin.Context) {
	plan, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// PreviewSchedule godoc
// @Summary Preview the installment schedule for a plan
// @Description Computes due dates and amounts without persisting anything
// @Tags Plans
// @Produce json
// @Param id path string true "Plan ID"
// @Param start query string false "Start date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /plans/{id}/schedule [get]
func (h *PlanHandler) PreviewSchedule(c *gin.Context) {
	plan, err := h.catalog.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	start := time.Now().UTC()
	if raw := c.Query("start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start must be formatted YYYY-MM-DD"))
			return
		}
		start = parsed
	}

	response.JSON(c, http.StatusOK, h.scheduler.Schedule(plan, start), nil)
}
