package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Payment metrics
	PaymentInitiationsTotal *prometheus.CounterVec
	PaymentResolutionsTotal *prometheus.CounterVec
	PaymentCascadesTotal    prometheus.Counter

	// Provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// Sweeper metrics
	SweepRunsTotal     prometheus.Counter
	SweepResolvedTotal prometheus.Counter

	// Stream metrics
	StreamSubscribers prometheus.Gauge
}

// New creates a new Metrics instance registered on the default registry.
func New(namespace string) *Metrics {
	return NewWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance registered on reg.
func NewWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "sokoni"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Payment metrics
		PaymentInitiationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_initiations_total",
				Help:      "Total number of payment initiation attempts",
			},
			[]string{"result"}, // accepted, invalid, in_progress, provider_error
		),
		PaymentResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_resolutions_total",
				Help:      "Total number of payment requests resolved",
			},
			[]string{"status", "source"},
		),
		PaymentCascadesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_cascades_total",
				Help:      "Total number of orders marked paid by a resolution",
			},
		),

		// Provider metrics
		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total number of payment provider requests",
			},
			[]string{"operation", "outcome"},
		),
		ProviderRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Payment provider request duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),

		// Sweeper metrics
		SweepRunsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "runs_total",
				Help:      "Total number of pending payment sweeps",
			},
		),
		SweepResolvedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "resolved_total",
				Help:      "Total number of payments resolved by the sweeper",
			},
		),

		// Stream metrics
		StreamSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "subscribers",
				Help:      "Current number of payment status stream subscribers",
			},
		),
	}
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := statusCodeToString(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordInitiation records a payment initiation attempt.
func (m *Metrics) RecordInitiation(result string) {
	m.PaymentInitiationsTotal.WithLabelValues(result).Inc()
}

// RecordResolution records a payment request leaving pending.
func (m *Metrics) RecordResolution(status, source string) {
	m.PaymentResolutionsTotal.WithLabelValues(status, source).Inc()
}

// RecordCascade records an order marked paid.
func (m *Metrics) RecordCascade() {
	m.PaymentCascadesTotal.Inc()
}

// RecordProviderRequest records a payment provider request.
func (m *Metrics) RecordProviderRequest(operation, outcome string, duration time.Duration) {
	m.ProviderRequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSweep records a sweeper run.
func (m *Metrics) RecordSweep(resolved int) {
	m.SweepRunsTotal.Inc()
	if resolved > 0 {
		m.SweepResolvedTotal.Add(float64(resolved))
	}
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
