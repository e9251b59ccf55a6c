package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	stepDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

// Metrics holds all Prometheus metric instruments for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Saga metrics
	SagaExecutionsTotal *prometheus.CounterVec
	SagaDuration        *prometheus.HistogramVec
	SagaStepDuration    *prometheus.HistogramVec
	SagaRollbacksTotal  *prometheus.CounterVec

	// Event bus metrics
	EventsEmittedTotal        *prometheus.CounterVec
	EventHandlerFailuresTotal *prometheus.CounterVec
	EventHandlerRetriesTotal  *prometheus.CounterVec
	EventHistorySize          prometheus.Gauge
	EventSubscriptionsActive  prometheus.Gauge

	// Handler projection metrics
	LedgerEntriesTotal       *prometheus.CounterVec
	NotificationsQueuedTotal *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentord_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentord_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),

		// Sagas
		SagaExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentord_saga_executions_total",
			Help: "Total number of saga executions by outcome.",
		}, []string{"saga", "status"}),
		SagaDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentord_saga_duration_seconds",
			Help:    "Saga execution duration in seconds.",
			Buckets: stepDurationBuckets,
		}, []string{"saga"}),
		SagaStepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentord_saga_step_duration_seconds",
			Help:    "Individual saga step duration in seconds.",
			Buckets: stepDurationBuckets,
		}, []string{"saga", "step"}),
		SagaRollbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentord_saga_rollbacks_total",
			Help: "Total number of saga compensations triggered.",
		}, []string{"saga"}),

		// Event bus
		EventsEmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentord_events_emitted_total",
			Help: "Total number of events emitted on the bus.",
		}, []string{"type"}),
		EventHandlerFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentord_event_handler_failures_total",
			Help: "Total number of handlers that exhausted their retries.",
		}, []string{"type"}),
		EventHandlerRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentord_event_handler_retries_total",
			Help: "Total number of handler retry attempts.",
		}, []string{"type"}),
		EventHistorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rentord_event_history_size",
			Help: "Current number of events in the bounded history buffer.",
		}),
		EventSubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rentord_event_subscriptions_active",
			Help: "Current number of active bus subscriptions.",
		}),

		// Handler projections
		LedgerEntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentord_ledger_entries_total",
			Help: "Total number of ledger entries created by the accounting handler.",
		}, []string{"entity_type"}),
		NotificationsQueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentord_notifications_queued_total",
			Help: "Total number of notifications queued by priority.",
		}, []string{"priority"}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		// Sagas
		m.SagaExecutionsTotal,
		m.SagaDuration,
		m.SagaStepDuration,
		m.SagaRollbacksTotal,
		// Event bus
		m.EventsEmittedTotal,
		m.EventHandlerFailuresTotal,
		m.EventHandlerRetriesTotal,
		m.EventHistorySize,
		m.EventSubscriptionsActive,
		// Handler projections
		m.LedgerEntriesTotal,
		m.NotificationsQueuedTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordSagaExecution records a saga outcome and its total duration.
func (m *Metrics) RecordSagaExecution(saga, status string, duration time.Duration) {
	m.SagaExecutionsTotal.WithLabelValues(saga, status).Inc()
	m.SagaDuration.WithLabelValues(saga).Observe(duration.Seconds())
}

// RecordSagaStep records the duration of a single saga step.
func (m *Metrics) RecordSagaStep(saga, step string, duration time.Duration) {
	m.SagaStepDuration.WithLabelValues(saga, step).Observe(duration.Seconds())
}

// RecordSagaRollback records that a saga triggered compensation.
func (m *Metrics) RecordSagaRollback(saga string) {
	m.SagaRollbacksTotal.WithLabelValues(saga).Inc()
}

// RecordEventEmitted records an event emission.
func (m *Metrics) RecordEventEmitted(eventType string) {
	m.EventsEmittedTotal.WithLabelValues(eventType).Inc()
}

// RecordHandlerFailure records a handler that exhausted its retries.
func (m *Metrics) RecordHandlerFailure(eventType string) {
	m.EventHandlerFailuresTotal.WithLabelValues(eventType).Inc()
}

// RecordHandlerRetry records a single handler retry attempt.
func (m *Metrics) RecordHandlerRetry(eventType string) {
	m.EventHandlerRetriesTotal.WithLabelValues(eventType).Inc()
}

// SetEventHistorySize sets the current history buffer size.
func (m *Metrics) SetEventHistorySize(n int) {
	m.EventHistorySize.Set(float64(n))
}

// SetActiveSubscriptions sets the current subscription count.
func (m *Metrics) SetActiveSubscriptions(n int) {
	m.EventSubscriptionsActive.Set(float64(n))
}

// RecordLedgerEntry records a ledger entry creation.
func (m *Metrics) RecordLedgerEntry(entityType string) {
	m.LedgerEntriesTotal.WithLabelValues(entityType).Inc()
}

// RecordNotificationQueued records a queued notification.
func (m *Metrics) RecordNotificationQueued(priority string) {
	m.NotificationsQueuedTotal.WithLabelValues(priority).Inc()
}

// --- HTTP middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics
// using chi's route pattern (not the actual URL path) to avoid label
// cardinality explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pattern := routePattern(r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, pattern).Observe(duration.Seconds())
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}
