// Package app wires the query cache, the transform worker pool and the
// preload scheduler around a data source.
//
// A Runtime is constructed once per application root and passed to whatever
// needs it; there is no package-level instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/pkg/preload"
	"github.com/marmos91/querykit/pkg/querycache"
	"github.com/marmos91/querykit/pkg/source"
	"github.com/marmos91/querykit/pkg/source/storage"
	"github.com/marmos91/querykit/pkg/workerpool"
	"github.com/prometheus/client_golang/prometheus"
)

// QueryScheme is the preload URL scheme for table queries:
// query://table?column=value.
const QueryScheme = "query"

// Config configures a Runtime.
type Config struct {
	// Cache configures the query cache. Metrics are attached automatically
	// when a registerer is supplied.
	Cache querycache.Config

	// PoolSize is the number of transform workers. Zero selects the number
	// of logical cores.
	PoolSize int

	// OffloadThreshold routes transforms over at least this many rows to an
	// ephemeral offload worker instead of the pool. Zero disables offloading.
	OffloadThreshold int

	// OffloadTimeout bounds offloaded transforms before they are computed on
	// the caller.
	OffloadTimeout time.Duration

	// Preload configures the scheduler.
	Preload preload.Config

	// Routes maps a route to the URLs likely to be visited after it.
	Routes map[string][]string

	// SettleDelay delays route hints after a navigation.
	SettleDelay time.Duration
}

// Option customises a Runtime.
type Option func(*Runtime)

// WithObjectStore enables s3:// preloads through store. The store is closed
// with the runtime.
func WithObjectStore(store *storage.Store) Option {
	return func(r *Runtime) { r.store = store }
}

// WithHTTPTransport sets the transport used for http and https preloads.
func WithHTTPTransport(t *preload.HTTPTransport) Option {
	return func(r *Runtime) { r.httpTransport = t }
}

// WithRegisterer registers component metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Runtime) { r.registerer = reg }
}

// Query is a cached table read.
type Query struct {
	Table  string         `json:"table"`
	Params map[string]any `json:"params,omitempty"`

	// Transform is applied to the cached rows on the worker pool.
	Transform Transform `json:"transform,omitzero"`

	// StaleTime and CacheTime override the cache defaults when non-zero.
	StaleTime time.Duration `json:"stale_time,omitempty"`
	CacheTime time.Duration `json:"cache_time,omitempty"`
}

// Key returns the cache key for the query's untransformed rows.
func (q Query) Key() string {
	return querycache.CreateCacheKey(q.Table, q.Params)
}

func (q Query) options() []querycache.Option {
	var opts []querycache.Option
	if q.StaleTime > 0 {
		opts = append(opts, querycache.WithStaleTime(q.StaleTime))
	}
	if q.CacheTime > 0 {
		opts = append(opts, querycache.WithCacheTime(q.CacheTime))
	}
	return opts
}

// Stats aggregates component statistics.
type Stats struct {
	Cache   querycache.Stats        `json:"cache"`
	Pool    workerpool.Stats        `json:"pool"`
	Offload workerpool.OffloadStats `json:"offload"`
	Preload preload.Stats           `json:"preload"`
}

// Runtime owns the cache, workers and preloader for one application.
type Runtime struct {
	cfg Config

	source        source.Source
	store         *storage.Store
	httpTransport *preload.HTTPTransport
	registerer    prometheus.Registerer

	cache     *querycache.QueryCache
	pool      *workerpool.Pool[TransformInput, []source.Row]
	offloader *workerpool.Offloader
	scheduler *preload.Scheduler
	router    *preload.RoutePreloader

	closed atomic.Bool
}

// ErrClosed is returned by Ready after Close.
var ErrClosed = errors.New("app: runtime closed")

// pinger is implemented by sources that can check their connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// New builds and starts a Runtime reading from src.
func New(cfg Config, src source.Source, opts ...Option) (*Runtime, error) {
	if src == nil {
		return nil, errors.New("app: nil source")
	}

	r := &Runtime{cfg: cfg, source: src}
	for _, opt := range opts {
		opt(r)
	}

	var workerMetrics *workerpool.Metrics
	if r.registerer != nil {
		if cfg.Cache.Metrics == nil {
			cfg.Cache.Metrics = querycache.NewMetrics(r.registerer)
		}
		if cfg.Preload.Metrics == nil {
			cfg.Preload.Metrics = preload.NewMetrics(r.registerer)
		}
		workerMetrics = workerpool.NewMetrics(r.registerer)
	}
	if cfg.Cache.OnRevalidateError == nil {
		cfg.Cache.OnRevalidateError = func(key string, err error) {
			logger.Debug("Serving previous rows after failed refresh", logger.KeyKey, key, logger.KeyError, err)
		}
	}

	r.cache = querycache.New(cfg.Cache)

	pool, err := workerpool.NewPool(ApplyTransform,
		workerpool.WithPoolSize(cfg.PoolSize),
		workerpool.WithName("transform"),
		workerpool.WithMetrics(workerMetrics),
	)
	if err != nil {
		_ = r.cache.Close()
		return nil, fmt.Errorf("create transform pool: %w", err)
	}
	r.pool = pool

	r.offloader = workerpool.NewOffloader(
		workerpool.WithOffloadTimeout(cfg.OffloadTimeout),
		workerpool.WithOffloadMetrics(workerMetrics),
	)

	r.scheduler = preload.NewScheduler(r.transport(), cfg.Preload)
	if err := r.scheduler.Start(); err != nil {
		r.pool.Terminate()
		_ = r.cache.Close()
		return nil, err
	}
	r.router = preload.NewRoutePreloader(r.scheduler, cfg.Routes, cfg.SettleDelay)

	logger.Info("Runtime ready",
		logger.KeySource, src.Name(),
		logger.KeyPoolSize, r.pool.Stats().Size,
		"routes", len(cfg.Routes),
	)
	return r, nil
}

// transport builds the preload mux: query:// warms the cache from the source,
// s3:// warms objects when a store is configured, http(s) fetches URLs.
func (r *Runtime) transport() preload.Transport {
	mux := preload.NewMux()
	mux.Handle(QueryScheme, &preload.CacheTransport{
		Cache:    r.cache,
		Resolver: preload.ResolverFunc(r.resolveQueryURL),
	})
	if r.store != nil {
		mux.Handle(storage.Scheme, storage.NewTransport(r.store, r.cache))
	}
	ht := r.httpTransport
	if ht == nil {
		ht = preload.NewHTTPTransport(r.cfg.Preload.RequestTimeout)
	}
	mux.Handle("http", ht)
	mux.Handle("https", ht)
	return mux
}

// Query returns the rows for q, served through the cache and transformed on
// the worker pool. The returned rows are copies the caller may modify.
func (r *Runtime) Query(ctx context.Context, q Query) ([]source.Row, error) {
	if err := source.ValidateQuery(q.Table, q.Params); err != nil {
		return nil, err
	}

	rows, err := querycache.Fetch(ctx, r.cache, q.Key(), r.fetcher(q.Table, q.Params), q.options()...)
	if err != nil {
		return nil, err
	}
	if q.Transform.IsZero() {
		return cloneRows(rows), nil
	}

	in := TransformInput{Rows: rows, Transform: q.Transform}
	if r.cfg.OffloadThreshold > 0 && len(rows) >= r.cfg.OffloadThreshold {
		return workerpool.OffloadWith(ctx, r.offloader, ApplyTransform, in, 0)
	}
	return r.pool.Exec(ctx, in)
}

// Prefetch loads q into the cache without transforming it.
func (r *Runtime) Prefetch(ctx context.Context, q Query) error {
	if err := source.ValidateQuery(q.Table, q.Params); err != nil {
		return err
	}
	return r.cache.Prefetch(ctx, q.Key(), r.cacheFetcher(q.Table, q.Params), q.options()...)
}

// Invalidate drops every cached query of table and returns how many entries
// were removed.
func (r *Runtime) Invalidate(table string) int {
	n := r.cache.InvalidatePrefix(table + ":")
	logger.Debug("Invalidated table", logger.KeyTable, table, logger.KeyEvicted, n)
	return n
}

// Preload schedules resources on the preloader and returns how many were
// accepted.
func (r *Runtime) Preload(resources ...preload.Resource) int {
	accepted := 0
	for _, res := range resources {
		if r.scheduler.Enqueue(res) {
			accepted++
		}
	}
	return accepted
}

// Navigate records a navigation for route-based preloading.
func (r *Runtime) Navigate(route string) {
	r.router.Navigate(route)
}

// Cache returns the query cache.
func (r *Runtime) Cache() *querycache.QueryCache { return r.cache }

// Scheduler returns the preload scheduler, for attaching triggers.
func (r *Runtime) Scheduler() *preload.Scheduler { return r.scheduler }

// Source returns the data source.
func (r *Runtime) Source() source.Source { return r.source }

// Stats returns a snapshot of every component.
func (r *Runtime) Stats() Stats {
	return Stats{
		Cache:   r.cache.Stats(),
		Pool:    r.pool.Stats(),
		Offload: r.offloader.Stats(),
		Preload: r.scheduler.Stats(),
	}
}

// Ready reports whether the runtime can serve queries: the source answers a
// ping when it supports one and the object store, if any, is reachable.
func (r *Runtime) Ready(ctx context.Context) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if p, ok := r.source.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("source %s: %w", r.source.Name(), err)
		}
	}
	if r.store != nil {
		if err := r.store.HealthCheck(ctx); err != nil {
			return fmt.Errorf("object store: %w", err)
		}
	}
	return nil
}

// Close stops the preloader, terminates the pool and releases the cache,
// source and object store. The scheduler gets until ctx's deadline (or five
// seconds) to stop.
func (r *Runtime) Close(ctx context.Context) error {
	if r.closed.Swap(true) {
		return nil
	}
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	r.router.Stop()
	r.scheduler.Stop(timeout)
	r.pool.Terminate()

	var errs []error
	if err := r.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if err := r.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close object store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runtime) fetcher(table string, params map[string]any) func(context.Context) ([]source.Row, error) {
	return func(ctx context.Context) ([]source.Row, error) {
		return r.source.Select(ctx, table, params)
	}
}

func (r *Runtime) cacheFetcher(table string, params map[string]any) querycache.Fetcher {
	fetch := r.fetcher(table, params)
	return func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}
}

// ParseQueryURL parses query://table?column=value into a Query. Repeated
// parameters keep their first value.
func ParseQueryURL(raw string) (Query, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Query{}, fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Scheme != QueryScheme || u.Host == "" {
		return Query{}, fmt.Errorf("%w: %q", preload.ErrUnresolvable, raw)
	}

	q := Query{Table: u.Host}
	values := u.Query()
	if len(values) > 0 {
		q.Params = make(map[string]any, len(values))
		for k, v := range values {
			q.Params[k] = v[0]
		}
	}
	return q, nil
}

// QueryURL renders q as a query:// preload URL. Param values are formatted
// with fmt, so the parsed query carries strings.
func QueryURL(table string, params map[string]any) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, fmt.Sprint(v))
	}
	u := url.URL{Scheme: QueryScheme, Host: table, RawQuery: values.Encode()}
	return u.String()
}

func (r *Runtime) resolveQueryURL(raw string) (string, querycache.Fetcher, error) {
	q, err := ParseQueryURL(raw)
	if err != nil {
		return "", nil, err
	}
	if err := source.ValidateQuery(q.Table, q.Params); err != nil {
		return "", nil, err
	}
	return q.Key(), r.cacheFetcher(q.Table, q.Params), nil
}
