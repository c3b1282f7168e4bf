package rest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRecorder receives request-level observations from the client.
type MetricsRecorder interface {
	IncRequest(method, table, outcome string)
	ObserveDuration(method, table string, d time.Duration)
	IncRetry(method, table string)
}

// NoopMetrics discards all observations.
type NoopMetrics struct{}

func (NoopMetrics) IncRequest(string, string, string)             {}
func (NoopMetrics) ObserveDuration(string, string, time.Duration) {}
func (NoopMetrics) IncRetry(string, string)                       {}

// PrometheusMetrics records client observations on a Prometheus registry.
type PrometheusMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
}

// NewPrometheusMetrics registers the client metrics on reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bytebank_rest_requests_total",
				Help: "Total number of REST requests issued to the backend",
			},
			[]string{"method", "table", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bytebank_rest_request_duration_seconds",
				Help:    "REST request duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"method", "table"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bytebank_rest_retries_total",
				Help: "Total number of retried REST requests",
			},
			[]string{"method", "table"},
		),
	}
}

func (m *PrometheusMetrics) IncRequest(method, table, outcome string) {
	m.requestsTotal.WithLabelValues(method, table, outcome).Inc()
}

func (m *PrometheusMetrics) ObserveDuration(method, table string, d time.Duration) {
	m.requestDuration.WithLabelValues(method, table).Observe(d.Seconds())
}

func (m *PrometheusMetrics) IncRetry(method, table string) {
	m.retriesTotal.WithLabelValues(method, table).Inc()
}
