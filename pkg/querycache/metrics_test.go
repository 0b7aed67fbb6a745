package querycache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.recordLookup(tierFresh)
	m.observeFetch(nil, time.Millisecond)
	m.recordDedupJoin()
	m.recordRevalidation(errors.New("x"))
	m.recordEvictions(evictClear, 3)
	m.setEntries(1)
}

func TestMetrics_RecordedByCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	clock := newFakeClock()
	c := New(Config{Clock: clock, Metrics: m})
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	fetch := func(context.Context) (any, error) { return "v", nil }
	_, err := c.Get(ctx, "users:1", fetch, WithStaleTime(time.Second), WithCacheTime(time.Minute))
	require.NoError(t, err)
	_, err = c.Get(ctx, "users:1", fetch)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = c.Get(ctx, "users:1", fetch)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = c.Get(ctx, "broken", func(context.Context) (any, error) { return nil, errors.New("x") })
	require.Error(t, err)

	c.Set("users:2", "w")
	c.InvalidatePrefix("users:")

	assert.Equal(t, 1.0, counterValue(t, m.Lookups, tierFresh))
	assert.Equal(t, 1.0, counterValue(t, m.Lookups, tierStale))
	assert.Equal(t, 2.0, counterValue(t, m.Lookups, tierMiss))
	assert.Equal(t, 2.0, counterValue(t, m.Fetches, "success"))
	assert.Equal(t, 1.0, counterValue(t, m.Fetches, "error"))
	assert.Equal(t, 1.0, counterValue(t, m.Revalidations, "success"))
	assert.Equal(t, 2.0, counterValue(t, m.Evictions, evictPrefix))
	assert.Equal(t, 0.0, gaugeValue(t, m.Entries))
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics(reg)
	second := NewMetrics(reg)

	first.recordLookup(tierMiss)
	assert.Equal(t, 1.0, counterValue(t, second.Lookups, tierMiss))
}

func counterValue(t *testing.T, cv *prometheus.CounterVec, label string) float64 {
	t.Helper()
	counter, err := cv.GetMetricWithLabelValues(label)
	require.NoError(t, err)
	var metric io_prometheus_client.Metric
	require.NoError(t, counter.Write(&metric))
	return metric.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var metric io_prometheus_client.Metric
	require.NoError(t, g.Write(&metric))
	return metric.GetGauge().GetValue()
}
