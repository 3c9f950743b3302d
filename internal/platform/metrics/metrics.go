package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP and outbound-call metrics.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	OutboundCalls   *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec
}

// New creates and registers all platform metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedra_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		OutboundCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feedra_outbound_calls_total",
			Help: "Calls to external services by target and outcome",
		}, []string{"target", "outcome"}),
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "feedra_circuit_breaker_open",
			Help: "1 while the named circuit breaker is open",
		}, []string{"name"}),
	}
}

// ObserveRequest records request latency. Safe on a nil receiver.
func (m *Metrics) ObserveRequest(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}

// IncrementOutbound counts one outbound call outcome ("ok", "error", "short_circuit").
func (m *Metrics) IncrementOutbound(target, outcome string) {
	if m == nil {
		return
	}
	m.OutboundCalls.WithLabelValues(target, outcome).Inc()
}

// SetBreakerOpen reflects a breaker state change.
func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}
