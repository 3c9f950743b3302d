package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the donation module.
// Tracks live feed subscriptions, delivered snapshots and status writes.
type Metrics struct {
	ActiveSubscriptions prometheus.Gauge
	SnapshotsDelivered  prometheus.Counter
	FeedErrors          *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	RejectedTransitions *prometheus.CounterVec
	WriteDuration       *prometheus.HistogramVec
}

// New creates a new Metrics instance with all donation module metrics registered.
// Call it once per process; promauto registers on the default registry.
func New() *Metrics {
	return &Metrics{
		ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "feedra_feed_active_subscriptions",
			Help: "Number of open live donation subscriptions",
		}),
		SnapshotsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feedra_feed_snapshots_delivered_total",
			Help: "Total number of full snapshots delivered to subscribers",
		}),
		FeedErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feedra_feed_errors_total",
			Help: "Live feed errors by category",
		}, []string{"category"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feedra_donation_transitions_total",
			Help: "Donation status writes by resulting status",
		}, []string{"status"}),
		RejectedTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feedra_donation_transitions_rejected_total",
			Help: "Transition requests rejected because the current status does not allow them",
		}, []string{"from", "to"}),
		WriteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedra_donation_write_duration_seconds",
			Help:    "Duration of donation write operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.Dec()
}

func (m *Metrics) IncrementSnapshots() {
	if m == nil {
		return
	}
	m.SnapshotsDelivered.Inc()
}

func (m *Metrics) IncrementFeedError(category string) {
	if m == nil {
		return
	}
	m.FeedErrors.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrementTransition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementRejectedTransition(from, to string) {
	if m == nil {
		return
	}
	m.RejectedTransitions.WithLabelValues(from, to).Inc()
}

// ObserveWrite records the duration of a write operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveWrite(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.WriteDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
