// Package observability provides metrics and tracing for protocol sessions:
// Prometheus collectors for request and notification traffic, and an
// OpenTelemetry tracer wrapper that spans outbound calls and inbound
// dispatch. Exporter bootstrapping belongs to the embedding process.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcome labels recorded on the requests counter.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Metrics records protocol engine events. All methods must be safe for
// concurrent use.
type Metrics interface {
	// RecordRequest records a completed outbound call.
	RecordRequest(method, status string, duration time.Duration)

	// RecordInboundRequest records a completed inbound dispatch.
	RecordInboundRequest(method, status string, duration time.Duration)

	// RecordNotification counts a notification by method and direction.
	RecordNotification(method string, outbound bool)

	// RecordCancellation counts a locally initiated cancellation.
	RecordCancellation(method string)

	// SessionOpened and SessionClosed track the active session gauge.
	SessionOpened()
	SessionClosed()

	// RequestsInFlight tracks outstanding outbound requests.
	RequestsInFlight(delta int)
}

// PrometheusMetrics implements Metrics on a Prometheus registry.
type PrometheusMetrics struct {
	requestDuration        *prometheus.HistogramVec
	requestTotal           *prometheus.CounterVec
	inboundRequestDuration *prometheus.HistogramVec
	inboundRequestTotal    *prometheus.CounterVec
	notificationTotal      *prometheus.CounterVec
	cancellationTotal      *prometheus.CounterVec
	activeSessions         prometheus.Gauge
	requestsInFlight       prometheus.Gauge
}

// NewPrometheusMetrics creates and registers the engine's collectors. The
// namespace defaults to "mcpwire"; a nil registerer uses the default
// registry.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) (*PrometheusMetrics, error) {
	if namespace == "" {
		namespace = "mcpwire"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound requests until a terminal state.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Outbound requests by method and terminal status.",
		}, []string{"method", "status"}),
		inboundRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inbound_request_duration_seconds",
			Help:      "Duration of inbound request dispatch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
		inboundRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_requests_total",
			Help:      "Inbound requests by method and terminal status.",
		}, []string{"method", "status"}),
		notificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by method and direction.",
		}, []string{"method", "direction"}),
		cancellationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cancellations_total",
			Help:      "Locally initiated request cancellations by method.",
		}, []string{"method"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Currently connected sessions.",
		}),
		requestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Outstanding outbound requests.",
		}),
	}

	collectors := []prometheus.Collector{
		m.requestDuration, m.requestTotal,
		m.inboundRequestDuration, m.inboundRequestTotal,
		m.notificationTotal, m.cancellationTotal,
		m.activeSessions, m.requestsInFlight,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordRequest records a completed outbound call.
func (m *PrometheusMetrics) RecordRequest(method, status string, duration time.Duration) {
	m.requestDuration.WithLabelValues(method, status).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, status).Inc()
}

// RecordInboundRequest records a completed inbound dispatch.
func (m *PrometheusMetrics) RecordInboundRequest(method, status string, duration time.Duration) {
	m.inboundRequestDuration.WithLabelValues(method, status).Observe(duration.Seconds())
	m.inboundRequestTotal.WithLabelValues(method, status).Inc()
}

// RecordNotification counts a notification by method and direction.
func (m *PrometheusMetrics) RecordNotification(method string, outbound bool) {
	direction := "inbound"
	if outbound {
		direction = "outbound"
	}
	m.notificationTotal.WithLabelValues(method, direction).Inc()
}

// RecordCancellation counts a locally initiated cancellation.
func (m *PrometheusMetrics) RecordCancellation(method string) {
	m.cancellationTotal.WithLabelValues(method).Inc()
}

// SessionOpened increments the active session gauge.
func (m *PrometheusMetrics) SessionOpened() {
	m.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *PrometheusMetrics) SessionClosed() {
	m.activeSessions.Dec()
}

// RequestsInFlight adjusts the outstanding request gauge.
func (m *PrometheusMetrics) RequestsInFlight(delta int) {
	m.requestsInFlight.Add(float64(delta))
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

// NewNopMetrics returns a Metrics that discards everything.
func NewNopMetrics() NopMetrics { return NopMetrics{} }

func (NopMetrics) RecordRequest(string, string, time.Duration)        {}
func (NopMetrics) RecordInboundRequest(string, string, time.Duration) {}
func (NopMetrics) RecordNotification(string, bool)                    {}
func (NopMetrics) RecordCancellation(string)                          {}
func (NopMetrics) SessionOpened()                                     {}
func (NopMetrics) SessionClosed()                                     {}
func (NopMetrics) RequestsInFlight(int)                               {}
