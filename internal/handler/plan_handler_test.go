package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftlearn/academy-billing-api/internal/models"
	"github.com/craftlearn/academy-billing-api/internal/service"
)

func newPlanHandler(t *testing.T) *PlanHandler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	catalog, err := service.NewPlanCatalog()
	require.NoError(t, err)
	return NewPlanHandler(catalog, service.NewScheduleService(catalog))
}

func performPlanRequest(t *testing.T, register func(*gin.Engine, *PlanHandler), target string) *httptest.ResponseRecorder {
	t.Helper()
	h := newPlanHandler(t)
	router := gin.New()
	register(router, h)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestPlanHandlerList(t *testing.T) {
	w := performPlanRequest(t, func(r *gin.Engine, h *PlanHandler) {
		r.GET("/plans", h.List)
	}, "/plans")

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []models.Plan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data)
	for _, plan := range body.Data {
		sum := plan.FirstInstallmentAmount + int64(plan.InstallmentCount-1)*plan.SubsequentInstallmentAmount
		assert.Equal(t, plan.TotalAmount, sum, "plan %s installments must sum to the total", plan.ID)
	}
}

func TestPlanHandlerGetUnknown(t *testing.T) {
	w := performPlanRequest(t, func(r *gin.Engine, h *PlanHandler) {
		r.GET("/plans/:id", h.Get)
	}, "/plans/platinum")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPlanHandlerPreviewSchedule(t *testing.T) {
	w := performPlanRequest(t, func(r *gin.Engine, h *PlanHandler) {
		r.GET("/plans/:id/schedule", h.PreviewSchedule)
	}, "/plans/bronze/schedule?start=2024-01-10")

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []models.Installment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 4)
	assert.Equal(t, 1, body.Data[0].Number)
	assert.Equal(t, "2024-01-10", body.Data[0].DueDate.Format("2006-01-02"))
	assert.Equal(t, "2024-10-10", body.Data[3].DueDate.Format("2006-01-02"))
}

func TestPlanHandlerPreviewScheduleBadStart(t *testing.T) {
	w := performPlanRequest(t, func(r *gin.Engine, h *PlanHandler) {
		r.GET("/plans/:id/schedule", h.PreviewSchedule)
	}, "/plans/bronze/schedule?start=10-01-2024")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
