package preload

import (
	"time"

	"github.com/marmos91/querykit/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes.
const (
	outcomeSuccess   = "success"
	outcomeError     = "error"
	outcomeFull      = "queue_full"
	outcomeDuplicate = "duplicate"
	outcomeStopped   = "stopped"
)

// Metrics provides Prometheus metrics for a Scheduler.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// Requests counts preload requests by priority and outcome.
	// Outcomes: "success", "error", "queue_full", "duplicate", "stopped".
	Requests *prometheus.CounterVec

	// Duration observes transport latency in seconds by priority.
	Duration *prometheus.HistogramVec

	// Pending tracks queued requests by priority.
	Pending *prometheus.GaugeVec
}

// NewMetrics creates preload metrics and registers them with reg.
// If reg is nil the collectors are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querykit",
			Subsystem: "preload",
			Name:      "requests_total",
			Help:      "Total number of preload requests by priority and outcome",
		}, []string{"priority", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "querykit",
			Subsystem: "preload",
			Name:      "duration_seconds",
			Help:      "Latency of preload transports",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"priority"}),
		Pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "querykit",
			Subsystem: "preload",
			Name:      "pending",
			Help:      "Current number of queued preload requests",
		}, []string{"priority"}),
	}

	if reg != nil {
		m.Requests = metrics.RegisterOrReuse(reg, m.Requests).(*prometheus.CounterVec)
		m.Duration = metrics.RegisterOrReuse(reg, m.Duration).(*prometheus.HistogramVec)
		m.Pending = metrics.RegisterOrReuse(reg, m.Pending).(*prometheus.GaugeVec)
	}

	return m
}

func (m *Metrics) recordRequest(p Priority, outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(p.String(), outcome).Inc()
}

func (m *Metrics) observeDuration(p Priority, d time.Duration) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(p.String()).Observe(d.Seconds())
}

func (m *Metrics) setPending(p Priority, n int) {
	if m == nil {
		return
	}
	m.Pending.WithLabelValues(p.String()).Set(float64(n))
}
