package workerpool

import (
	"time"

	"github.com/marmos91/querykit/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Task outcomes.
const (
	outcomeSuccess   = "success"
	outcomeError     = "error"
	outcomePanic     = "panic"
	outcomeCancelled = "cancelled"
	outcomeRejected  = "rejected"
)

// Offload paths and fallback causes.
const (
	pathWorker   = "worker"
	pathFallback = "fallback"

	causeNone        = "none"
	causeUnavailable = "unavailable"
	causeClosure     = "closure"
	causeError       = "error"
	causeTimeout     = "timeout"
)

// Metrics provides Prometheus metrics for pools and offloaders.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// Tasks counts finished pool tasks by pool and outcome.
	// Outcomes: "success", "error", "panic", "cancelled", "rejected".
	Tasks *prometheus.CounterVec

	// QueueWait observes how long tasks waited for a worker, in seconds.
	QueueWait *prometheus.HistogramVec

	// Busy tracks busy workers per pool.
	Busy *prometheus.GaugeVec

	// Queued tracks queued tasks per pool.
	Queued *prometheus.GaugeVec

	// Offloads counts offload results by path ("worker", "fallback") and
	// fallback cause ("none", "unavailable", "closure", "error", "timeout").
	Offloads *prometheus.CounterVec
}

// NewMetrics creates worker metrics and registers them with reg.
// If reg is nil the collectors are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querykit",
			Subsystem: "workers",
			Name:      "tasks_total",
			Help:      "Total number of finished pool tasks by outcome",
		}, []string{"pool", "outcome"}),
		QueueWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "querykit",
			Subsystem: "workers",
			Name:      "queue_wait_seconds",
			Help:      "Time tasks spent waiting for a free worker",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"pool"}),
		Busy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "querykit",
			Subsystem: "workers",
			Name:      "busy",
			Help:      "Current number of busy workers",
		}, []string{"pool"}),
		Queued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "querykit",
			Subsystem: "workers",
			Name:      "queued",
			Help:      "Current number of tasks waiting for a worker",
		}, []string{"pool"}),
		Offloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querykit",
			Subsystem: "workers",
			Name:      "offloads_total",
			Help:      "Total number of offloaded computations by result path",
		}, []string{"path", "cause"}),
	}

	if reg != nil {
		m.Tasks = metrics.RegisterOrReuse(reg, m.Tasks).(*prometheus.CounterVec)
		m.QueueWait = metrics.RegisterOrReuse(reg, m.QueueWait).(*prometheus.HistogramVec)
		m.Busy = metrics.RegisterOrReuse(reg, m.Busy).(*prometheus.GaugeVec)
		m.Queued = metrics.RegisterOrReuse(reg, m.Queued).(*prometheus.GaugeVec)
		m.Offloads = metrics.RegisterOrReuse(reg, m.Offloads).(*prometheus.CounterVec)
	}

	return m
}

func (m *Metrics) recordTask(pool, outcome string) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(pool, outcome).Inc()
}

func (m *Metrics) observeQueueWait(pool string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueueWait.WithLabelValues(pool).Observe(d.Seconds())
}

func (m *Metrics) setLoad(pool string, busy, queued int) {
	if m == nil {
		return
	}
	m.Busy.WithLabelValues(pool).Set(float64(busy))
	m.Queued.WithLabelValues(pool).Set(float64(queued))
}

func (m *Metrics) recordOffload(path, cause string) {
	if m == nil {
		return
	}
	m.Offloads.WithLabelValues(path, cause).Inc()
}
