package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftlearn/academy-billing-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the billing API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	batchAssigned   prometheus.Counter
	duesSettled     prometheus.Counter
	remindersSent   prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verifications_total",
		Help: "Payment verification outcomes by state",
	}, []string{"state", "replayed"})

	batchAssigned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "batch_assignments_total",
		Help: "Total cohort batch assignments",
	})

	duesSettled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_dues_settled_total",
		Help: "Total payment dues marked paid",
	})

	remindersSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_reminders_sent_total",
		Help: "Total payment reminder jobs dispatched",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, verifications, batchAssigned, duesSettled, remindersSent, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		verifications:   verifications,
		batchAssigned:   batchAssigned,
		duesSettled:     duesSettled,
		remindersSent:   remindersSent,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records latency and count for a completed request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveVerification counts a verification outcome.
func (m *MetricsService) ObserveVerification(state models.VerificationState, replayed bool) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(string(state), fmt.Sprintf("%t", replayed)).Inc()
}

// ObserveBatchAssignment counts a cohort assignment.
func (m *MetricsService) ObserveBatchAssignment() {
	if m == nil {
		return
	}
	m.batchAssigned.Inc()
}

// ObserveDueSettled counts a due transitioning to paid.
func (m *MetricsService) ObserveDueSettled() {
	if m == nil {
		return
	}
	m.duesSettled.Inc()
}

// ObserveReminderSent counts a dispatched reminder.
func (m *MetricsService) ObserveReminderSent() {
	if m == nil {
		return
	}
	m.remindersSent.Inc()
}
