package handler

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pushrelay/dispatch-service/internal/domain"
)

// Metrics holds Prometheus metrics
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	outcomesTotal       *prometheus.CounterVec
	gatewayAttempts     prometheus.Counter
	batchesTotal        prometheus.Counter
	batchSize           prometheus.Histogram
	batchDuration       prometheus.Histogram
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		outcomesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_outcomes_total",
				Help: "Total number of per-message dispatch outcomes",
			},
			[]string{"status"},
		),
		gatewayAttempts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dispatch_gateway_attempts_total",
				Help: "Total number of gateway send attempts, including retries",
			},
		),
		batchesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dispatch_batches_total",
				Help: "Total number of dispatched batches",
			},
		),
		batchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dispatch_batch_size",
				Help:    "Number of messages per dispatched batch",
				Buckets: []float64{1, 5, 10, 50, 100, 250, 500, 1000},
			},
		),
		batchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dispatch_batch_duration_seconds",
				Help:    "Wall-clock time to dispatch a full batch",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
	}
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordBatch records the outcomes of one dispatched batch
func (m *Metrics) RecordBatch(result *domain.BatchResult, duration time.Duration) {
	m.batchesTotal.Inc()
	m.batchSize.Observe(float64(len(result.Outcomes)))
	m.batchDuration.Observe(duration.Seconds())

	for _, outcome := range result.Outcomes {
		m.outcomesTotal.WithLabelValues(string(outcome.Status)).Inc()
		m.gatewayAttempts.Add(float64(outcome.Attempts))
	}
}

// MetricsHandler exposes the Prometheus scrape endpoint
type MetricsHandler struct {
	metrics *Metrics
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(metrics *Metrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Handler returns the Prometheus HTTP handler
func (h *MetricsHandler) Handler() http.Handler {
	return promhttp.Handler()
}
