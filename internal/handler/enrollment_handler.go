package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/craftlearn/academy-billing-api/internal/models"
	"github.com/craftlearn/academy-billing-api/internal/service"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
	"github.com/craftlearn/academy-billing-api/pkg/response"
)

// EnrollmentHandler exposes enrollment and plan selection endpoints.
type EnrollmentHandler struct {
	service *service.EnrollmentService
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(svc *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Register godoc
// @Summary Register the caller's enrollment
// @Description Creates the learner's enrollment, or returns the existing one
// @Tags Enrollments
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Register(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.service.Register(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Me godoc
// @Summary Get the caller's enrollment
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/me [get]
func (h *EnrollmentHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.service.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

type selectPlanRequest struct {
	PlanID    string `json:"plan_id" binding:"required"`
	StartDate string `json:"start_date"`
}

// SelectPlan godoc
// @Summary Choose a tuition plan
// @Description Binds the enrollment to a plan and materialises its installment schedule
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body selectPlanRequest true "Plan selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/me/plan [put]
func (h *EnrollmentHandler) SelectPlan(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req selectPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "plan_id is required"))
		return
	}

	var start time.Time
	if req.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start_date must be formatted YYYY-MM-DD"))
			return
		}
		start = parsed
	}

	enrollment, dues, err := h.service.SelectPlan(c.Request.Context(), claims.UserID, req.PlanID, start)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"enrollment": enrollment, "schedule": dues}, nil)
}

// List godoc
// @Summary List enrollments
// @Description Admin listing with filters and pagination
// @Tags Enrollments
// @Produce json
// @Param user_id query string false "Filter by user"
// @Param plan_id query string false "Filter by plan"
// @Param is_payment_done query bool false "Filter by payment state"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := models.EnrollmentFilter{
		UserID:    c.Query("user_id"),
		PlanID:    c.Query("plan_id"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("is_payment_done"); raw != "" {
		paid, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "is_payment_done must be a boolean"))
			return
		}
		filter.IsPaymentDone = &paid
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	enrollments, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}
