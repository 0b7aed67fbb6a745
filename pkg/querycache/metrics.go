package querycache

import (
	"time"

	"github.com/marmos91/querykit/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Lookup results.
const (
	tierFresh = "fresh"
	tierStale = "stale"
	tierMiss  = "miss"
)

// Eviction reasons.
const (
	evictInvalidate = "invalidate"
	evictPrefix     = "prefix"
	evictClear      = "clear"
	evictExpired    = "expired"
)

// Metrics provides Prometheus metrics for a QueryCache.
// All methods are nil-safe: calls on a nil *Metrics are no-ops.
type Metrics struct {
	// Lookups counts Get calls by the freshness tier they resolved to.
	// Label values: "fresh", "stale", "miss".
	Lookups *prometheus.CounterVec

	// Fetches counts fetcher invocations by outcome ("success", "error").
	Fetches *prometheus.CounterVec

	// FetchDuration observes fetcher latency in seconds.
	FetchDuration prometheus.Histogram

	// DedupJoins counts blocking Get calls that joined an in-flight fetch.
	DedupJoins prometheus.Counter

	// Revalidations counts background refreshes by outcome.
	Revalidations *prometheus.CounterVec

	// Evictions counts removed entries by reason.
	// Label values: "invalidate", "prefix", "clear", "expired".
	Evictions *prometheus.CounterVec

	// Entries tracks the current number of cached entries.
	Entries prometheus.Gauge
}

// NewMetrics creates query cache metrics and registers them with reg.
// If reg is nil the collectors are created but not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querykit",
			Subsystem: "query_cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by freshness tier",
		}, []string{"tier"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querykit",
			Subsystem: "query_cache",
			Name:      "fetches_total",
			Help:      "Total number of fetcher invocations by outcome",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "querykit",
			Subsystem: "query_cache",
			Name:      "fetch_duration_seconds",
			Help:      "Latency of fetcher invocations",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		DedupJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "querykit",
			Subsystem: "query_cache",
			Name:      "dedup_joins_total",
			Help:      "Total number of lookups that joined an in-flight fetch",
		}),
		Revalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querykit",
			Subsystem: "query_cache",
			Name:      "revalidations_total",
			Help:      "Total number of background revalidations by outcome",
		}, []string{"outcome"}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querykit",
			Subsystem: "query_cache",
			Name:      "evictions_total",
			Help:      "Total number of evicted entries by reason",
		}, []string{"reason"}),
		Entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "querykit",
			Subsystem: "query_cache",
			Name:      "entries",
			Help:      "Current number of cached entries",
		}),
	}

	if reg != nil {
		m.Lookups = metrics.RegisterOrReuse(reg, m.Lookups).(*prometheus.CounterVec)
		m.Fetches = metrics.RegisterOrReuse(reg, m.Fetches).(*prometheus.CounterVec)
		m.FetchDuration = metrics.RegisterOrReuse(reg, m.FetchDuration).(prometheus.Histogram)
		m.DedupJoins = metrics.RegisterOrReuse(reg, m.DedupJoins).(prometheus.Counter)
		m.Revalidations = metrics.RegisterOrReuse(reg, m.Revalidations).(*prometheus.CounterVec)
		m.Evictions = metrics.RegisterOrReuse(reg, m.Evictions).(*prometheus.CounterVec)
		m.Entries = metrics.RegisterOrReuse(reg, m.Entries).(prometheus.Gauge)
	}

	return m
}

func (m *Metrics) recordLookup(tier string) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(tier).Inc()
}

func (m *Metrics) observeFetch(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(outcome(err)).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) recordDedupJoin() {
	if m == nil {
		return
	}
	m.DedupJoins.Inc()
}

func (m *Metrics) recordRevalidation(err error) {
	if m == nil {
		return
	}
	m.Revalidations.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) recordEvictions(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Evictions.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) setEntries(n int) {
	if m == nil {
		return
	}
	m.Entries.Set(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
