package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/querykit/pkg/preload"
	"github.com/marmos91/querykit/pkg/querycache"
	"github.com/marmos91/querykit/pkg/source"
	"github.com/marmos91/querykit/pkg/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource counts Select calls on the wrapped source.
type countingSource struct {
	source.Source
	selects atomic.Int32
	closed  atomic.Bool
}

func (s *countingSource) Select(ctx context.Context, table string, params map[string]any) ([]source.Row, error) {
	s.selects.Add(1)
	return s.Source.Select(ctx, table, params)
}

func (s *countingSource) Close() error {
	s.closed.Store(true)
	return s.Source.Close()
}

func newTestRuntime(t *testing.T, cfg Config, opts ...Option) (*Runtime, *countingSource) {
	t.Helper()
	src := &countingSource{Source: source.NewMemory(map[string][]source.Row{
		"posts": posts(),
		"events": {
			{"id": 1, "community_id": 7},
			{"id": 2, "community_id": 8},
		},
	})}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 2
	}
	if cfg.Preload.LowRate == 0 {
		cfg.Preload.LowRate = -1
	}
	r, err := New(cfg, src, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r, src
}

func TestNew_NilSource(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestRuntime_Query(t *testing.T) {
	t.Run("CachesRowsAcrossTransforms", func(t *testing.T) {
		r, src := newTestRuntime(t, Config{})
		ctx := context.Background()

		rows, err := r.Query(ctx, Query{Table: "posts"})
		require.NoError(t, err)
		assert.Len(t, rows, 3)

		sorted, err := r.Query(ctx, Query{Table: "posts", Transform: Transform{SortBy: "id", Limit: 2}})
		require.NoError(t, err)
		assert.Equal(t, []any{int64(1), int64(2)}, ids(sorted))

		assert.Equal(t, int32(1), src.selects.Load(), "transforms share the cached rows")
	})

	t.Run("FiltersByParams", func(t *testing.T) {
		r, _ := newTestRuntime(t, Config{})

		rows, err := r.Query(context.Background(), Query{Table: "events", Params: map[string]any{"community_id": "7"}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, 1, rows[0]["id"])
	})

	t.Run("InvalidTable", func(t *testing.T) {
		r, src := newTestRuntime(t, Config{})

		_, err := r.Query(context.Background(), Query{Table: "posts; drop"})
		assert.ErrorIs(t, err, source.ErrInvalidIdentifier)
		assert.Zero(t, src.selects.Load())
	})

	t.Run("UnknownTableIsNotCached", func(t *testing.T) {
		r, src := newTestRuntime(t, Config{})
		ctx := context.Background()

		_, err := r.Query(ctx, Query{Table: "ghosts"})
		assert.ErrorIs(t, err, source.ErrUnknownTable)
		_, err = r.Query(ctx, Query{Table: "ghosts"})
		assert.ErrorIs(t, err, source.ErrUnknownTable)
		assert.Equal(t, int32(2), src.selects.Load())
	})

	t.Run("OffloadsLargeTransforms", func(t *testing.T) {
		r, _ := newTestRuntime(t, Config{OffloadThreshold: 2})

		rows, err := r.Query(context.Background(), Query{Table: "posts", Transform: Transform{SortBy: "id", Desc: true}})
		require.NoError(t, err)
		assert.Equal(t, []any{int64(3), int64(2), int64(1)}, ids(rows))
		assert.Zero(t, r.Stats().Pool.Busy)
	})

	t.Run("TransformErrorIsTaskError", func(t *testing.T) {
		r, _ := newTestRuntime(t, Config{})

		_, err := r.Query(context.Background(), Query{Table: "posts", Transform: Transform{Limit: -1}})
		require.Error(t, err)
		var te *workerpool.TaskError
		require.True(t, errors.As(err, &te))
		assert.Contains(t, te.Func, "ApplyTransform")
	})
}

func TestRuntime_QueryResultsAreCopies(t *testing.T) {
	r, src := newTestRuntime(t, Config{})
	ctx := context.Background()
	q := Query{Table: "events", Params: map[string]any{"community_id": "7"}}

	rows, err := r.Query(ctx, q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	rows[0]["community_id"] = "tampered"

	sorted, err := r.Query(ctx, Query{Table: q.Table, Params: q.Params, Transform: Transform{SortBy: "id"}})
	require.NoError(t, err)
	require.Len(t, sorted, 1)
	assert.Equal(t, 7, sorted[0]["community_id"])
	sorted[0]["id"] = 99

	again, err := r.Query(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, source.Row{"id": 1, "community_id": 7}, again[0])
	assert.Equal(t, int32(1), src.selects.Load(), "all reads served from one cache entry")
}

func TestRuntime_QueryStaleTimeOverride(t *testing.T) {
	r, src := newTestRuntime(t, Config{Cache: querycache.Config{StaleTime: time.Hour}})
	ctx := context.Background()

	q := Query{Table: "posts", StaleTime: time.Millisecond}
	_, err := r.Query(ctx, q)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	// Stale: served from cache and refreshed in the background.
	_, err = r.Query(ctx, q)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return src.selects.Load() == 2 }, time.Second, time.Millisecond)
}

func TestRuntime_Invalidate(t *testing.T) {
	r, src := newTestRuntime(t, Config{})
	ctx := context.Background()

	for _, q := range []Query{
		{Table: "events", Params: map[string]any{"community_id": 7}},
		{Table: "events", Params: map[string]any{"community_id": 8}},
		{Table: "posts"},
	} {
		_, err := r.Query(ctx, q)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, r.Invalidate("events"))
	assert.Equal(t, 1, r.Stats().Cache.Size)

	_, err := r.Query(ctx, Query{Table: "events", Params: map[string]any{"community_id": 7}})
	require.NoError(t, err)
	assert.Equal(t, int32(4), src.selects.Load())
}

func TestRuntime_PreloadQueryURL(t *testing.T) {
	r, src := newTestRuntime(t, Config{})

	n := r.Preload(preload.Resource{URL: QueryURL("events", map[string]any{"community_id": 7}), Priority: preload.PriorityHigh})
	assert.Equal(t, 1, n)

	key := querycache.CreateCacheKey("events", map[string]any{"community_id": "7"})
	require.Eventually(t, func() bool {
		_, ok := r.Cache().Peek(key)
		return ok
	}, time.Second, time.Millisecond)

	rows, err := r.Query(context.Background(), Query{Table: "events", Params: map[string]any{"community_id": "7"}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int32(1), src.selects.Load(), "query served from the preloaded entry")
}

func TestRuntime_PreloadHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	r, _ := newTestRuntime(t, Config{}, WithHTTPTransport(preload.NewHTTPTransport(time.Second)))

	assert.Equal(t, 1, r.Preload(preload.Resource{URL: srv.URL + "/avatar.png"}))
	require.Eventually(t, func() bool { return r.Stats().Preload.Completed == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRuntime_Navigate(t *testing.T) {
	r, _ := newTestRuntime(t, Config{
		Routes:      map[string][]string{"/": {QueryURL("posts", nil)}},
		SettleDelay: 10 * time.Millisecond,
	})

	r.Navigate("/")
	require.Eventually(t, func() bool {
		_, ok := r.Cache().Peek(querycache.CreateCacheKey("posts", nil))
		return ok
	}, time.Second, time.Millisecond)
}

func TestRuntime_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, _ := newTestRuntime(t, Config{}, WithRegisterer(reg))

	_, err := r.Query(context.Background(), Query{Table: "posts", Transform: Transform{SortBy: "id"}})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["querykit_query_cache_lookups_total"])
	assert.True(t, names["querykit_workers_tasks_total"])
}

func TestRuntime_Close(t *testing.T) {
	src := &countingSource{Source: source.NewMemory(nil)}
	r, err := New(Config{PoolSize: 1}, src)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))
	assert.True(t, src.closed.Load())

	_, err = r.Query(context.Background(), Query{Table: "posts"})
	assert.Error(t, err)
}

func TestParseQueryURL(t *testing.T) {
	q, err := ParseQueryURL("query://events?community_id=7&status=open")
	require.NoError(t, err)
	assert.Equal(t, "events", q.Table)
	assert.Equal(t, map[string]any{"community_id": "7", "status": "open"}, q.Params)

	q, err = ParseQueryURL(QueryURL("posts", nil))
	require.NoError(t, err)
	assert.Equal(t, Query{Table: "posts"}, q)

	_, err = ParseQueryURL("https://example.com/posts")
	assert.ErrorIs(t, err, preload.ErrUnresolvable)
}

func TestRuntime_Ready(t *testing.T) {
	src := &countingSource{Source: source.NewMemory(nil)}
	r, err := New(Config{PoolSize: 1}, src)
	require.NoError(t, err)

	assert.NoError(t, r.Ready(context.Background()))
	require.NoError(t, r.Close(context.Background()))
	assert.ErrorIs(t, r.Ready(context.Background()), ErrClosed)
	assert.NoError(t, r.Close(context.Background()), "second close is a no-op")
}
