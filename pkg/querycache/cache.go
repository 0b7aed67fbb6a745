// Package querycache implements an in-memory stale-while-revalidate cache
// for query results.
//
// Every entry moves through three freshness tiers:
//
//	fresh   now < StaleAt             served directly, no fetch
//	stale   StaleAt <= now < ExpireAt served directly, one background refresh
//	expired ExpireAt <= now           caller blocks on a new fetch
//
// Concurrent blocking fetches for one key are collapsed into a single call to
// the fetcher (unless disabled per call with WithDedupe(false)), and every
// successful fetch or explicit Set notifies the key's subscribers.
//
// Fetch errors are never cached and never retried. A failed background
// refresh leaves the previous entry in place and does not notify subscribers.
package querycache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/internal/telemetry"
)

// Fetcher loads the value for a key. The context passed to a shared fetch is
// detached from the cancellation of any single caller.
type Fetcher func(ctx context.Context) (any, error)

// Subscriber is called synchronously with the new value whenever a key is set.
type Subscriber func(data any)

// Entry is a cached value with its freshness deadlines.
// Invariant: Timestamp <= StaleAt <= ExpireAt.
type Entry struct {
	Data      any
	Timestamp time.Time
	StaleAt   time.Time
	ExpireAt  time.Time
}

// Config configures a QueryCache. The zero value is usable.
type Config struct {
	// StaleTime is the default stale time. Zero means DefaultStaleTime.
	StaleTime time.Duration

	// CacheTime is the default cache time. Zero means DefaultCacheTime.
	CacheTime time.Duration

	// CleanupInterval enables a janitor that removes expired entries.
	// Zero disables it; expired entries are then only replaced on the next Get.
	CleanupInterval time.Duration

	// Clock overrides the time source. Defaults to the system clock.
	Clock Clock

	// Metrics receives cache metrics. Nil disables them.
	Metrics *Metrics

	// OnRevalidateError is called after a background refresh fails.
	OnRevalidateError func(key string, err error)
}

// Stats is a point-in-time snapshot of the cache.
type Stats struct {
	Size    int      `json:"size"`
	Keys    []string `json:"keys"`
	Pending int      `json:"pending"`
}

// QueryCache is a stale-while-revalidate cache keyed by string.
// It is safe for concurrent use.
type QueryCache struct {
	cfg     Config
	clock   Clock
	metrics *Metrics

	mu          sync.Mutex
	entries     map[string]*Entry
	subscribers map[string]map[uint64]Subscriber
	nextSubID   uint64
	// pending counts goroutines waiting on a fetch per key. A key with a
	// non-zero count has a fetch in flight.
	pending map[string]int

	group singleflight.Group

	// closed stops new background refreshes. Guarded by mu so the decision
	// and background.Add happen before Close can start waiting.
	closed     bool
	background sync.WaitGroup
	stop       chan struct{}
	closeOnce  sync.Once
}

// New creates a QueryCache. If cfg.CleanupInterval is positive a janitor
// goroutine is started; call Close to stop it.
func New(cfg Config) *QueryCache {
	if cfg.StaleTime == 0 {
		cfg.StaleTime = DefaultStaleTime
	}
	if cfg.CacheTime == 0 {
		cfg.CacheTime = DefaultCacheTime
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}

	c := &QueryCache{
		cfg:         cfg,
		clock:       clock,
		metrics:     cfg.Metrics,
		entries:     make(map[string]*Entry),
		subscribers: make(map[string]map[uint64]Subscriber),
		pending:     make(map[string]int),
		stop:        make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		c.background.Add(1)
		go c.janitor(cfg.CleanupInterval)
	}

	return c
}

// Get returns the value for key, fetching it when there is no servable entry.
//
// A fresh entry is returned as is. A stale entry is returned immediately and
// a background refresh is started unless one is already in flight for key.
// Otherwise the caller blocks on fetch; with de-duplication enabled all
// concurrent callers share one fetch and observe the same value or error.
//
// If ctx is done while waiting, Get returns ctx.Err(). A shared fetch keeps
// running for the remaining callers and still populates the cache.
func (c *QueryCache) Get(ctx context.Context, key string, fetch Fetcher, opts ...Option) (any, error) {
	if fetch == nil {
		return nil, ErrNilFetcher
	}
	o := c.resolve(opts)
	now := c.clock.Now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && now.Before(entry.StaleAt) {
		c.mu.Unlock()
		c.metrics.recordLookup(tierFresh)
		return entry.Data, nil
	}
	if ok && now.Before(entry.ExpireAt) {
		refresh := !c.closed && c.pending[key] == 0
		if refresh {
			c.pending[key]++
			c.background.Add(1)
		}
		c.mu.Unlock()

		c.metrics.recordLookup(tierStale)
		if refresh {
			c.revalidate(ctx, key, fetch, o)
		}
		return entry.Data, nil
	}
	c.mu.Unlock()

	c.metrics.recordLookup(tierMiss)
	logger.DebugCtx(ctx, "Query cache miss", logger.KeyKey, key)
	return c.fetch(ctx, key, fetch, o)
}

// Prefetch warms key without returning its value. It does nothing while the
// entry is fresh and otherwise behaves like Get.
func (c *QueryCache) Prefetch(ctx context.Context, key string, fetch Fetcher, opts ...Option) error {
	if fetch == nil {
		return ErrNilFetcher
	}

	now := c.clock.Now()
	c.mu.Lock()
	entry, ok := c.entries[key]
	fresh := ok && now.Before(entry.StaleAt)
	c.mu.Unlock()
	if fresh {
		return nil
	}

	_, err := c.Get(ctx, key, fetch, opts...)
	return err
}

// Set stores data under key with freshness computed from now and calls every
// current subscriber of key with data.
func (c *QueryCache) Set(key string, data any, opts ...Option) {
	c.set(key, data, c.resolve(opts))
}

// Peek returns a copy of the entry for key without affecting freshness or
// triggering fetches. Expired entries that have not been collected yet are
// returned too.
func (c *QueryCache) Peek(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Subscribe registers fn to be called on every future Set of key. The
// returned function removes this registration only and is idempotent.
func (c *QueryCache) Subscribe(key string, fn Subscriber) (unsubscribe func()) {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	subs, ok := c.subscribers[key]
	if !ok {
		subs = make(map[uint64]Subscriber)
		c.subscribers[key] = subs
	}
	subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			subs := c.subscribers[key]
			delete(subs, id)
			if len(subs) == 0 {
				delete(c.subscribers, key)
			}
		})
	}
}

// Invalidate removes the entry for key. In-flight fetches are not cancelled
// and will repopulate the entry when they complete.
func (c *QueryCache) Invalidate(key string) {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	size := len(c.entries)
	c.mu.Unlock()

	if ok {
		c.metrics.recordEvictions(evictInvalidate, 1)
		c.metrics.setEntries(size)
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns how many were removed. The match is a plain string prefix.
func (c *QueryCache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	size := len(c.entries)
	c.mu.Unlock()

	c.metrics.recordEvictions(evictPrefix, removed)
	c.metrics.setEntries(size)
	if removed > 0 {
		logger.Debug("Query cache prefix invalidated", logger.KeyPrefix, prefix, logger.KeyEvicted, removed)
	}
	return removed
}

// Clear drops all entries. In-flight fetches and subscribers are kept.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	removed := len(c.entries)
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	c.metrics.recordEvictions(evictClear, removed)
	c.metrics.setEntries(0)
}

// Stats returns the number of entries, their sorted keys and the number of
// keys with a fetch in flight.
func (c *QueryCache) Stats() Stats {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	pending := len(c.pending)
	c.mu.Unlock()

	sort.Strings(keys)
	return Stats{Size: len(keys), Keys: keys, Pending: pending}
}

// Close stops the janitor and waits for background refreshes to finish.
// After Close stale entries are still served but no longer refreshed in the
// background; misses keep fetching on the caller's goroutine. It is safe to
// call more than once.
func (c *QueryCache) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		close(c.stop)
	})
	c.background.Wait()
	return nil
}

func (c *QueryCache) set(key string, data any, o options) {
	now := c.clock.Now()
	staleAt := now.Add(o.staleTime)
	expireAt := now.Add(o.cacheTime)
	if staleAt.After(expireAt) {
		staleAt = expireAt
	}
	entry := &Entry{Data: data, Timestamp: now, StaleAt: staleAt, ExpireAt: expireAt}

	c.mu.Lock()
	c.entries[key] = entry
	size := len(c.entries)
	subs := make([]Subscriber, 0, len(c.subscribers[key]))
	for _, fn := range c.subscribers[key] {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	c.metrics.setEntries(size)
	for _, fn := range subs {
		fn(data)
	}
}

// fetch runs a blocking fetch for key.
func (c *QueryCache) fetch(ctx context.Context, key string, fetch Fetcher, o options) (any, error) {
	ctx, span := telemetry.StartCacheSpan(ctx, telemetry.SpanCacheFetch, key)
	defer span.End()

	if !o.dedupe {
		v, err := c.load(ctx, key, fetch, o)
		if err != nil {
			telemetry.RecordError(ctx, err)
			return nil, err
		}
		return v, nil
	}

	if joined := c.acquire(key); joined {
		c.metrics.recordDedupJoin()
		telemetry.SetAttributes(ctx, telemetry.CacheShared(true))
	}
	defer c.release(key)

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.load(detached, key, fetch, o)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			telemetry.RecordError(ctx, res.Err)
			return nil, res.Err
		}
		return res.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// revalidate refreshes key in the background. The caller has already counted
// the refresh in c.pending and c.background under c.mu.
func (c *QueryCache) revalidate(ctx context.Context, key string, fetch Fetcher, o options) {
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer c.background.Done()
		defer c.release(key)

		ctx, span := telemetry.StartCacheSpan(ctx, telemetry.SpanCacheRevalidate, key)
		defer span.End()

		res := <-c.group.DoChan(key, func() (any, error) {
			return c.load(ctx, key, fetch, o)
		})

		c.metrics.recordRevalidation(res.Err)
		if res.Err == nil {
			return
		}

		telemetry.RecordError(ctx, res.Err)
		logger.WarnCtx(ctx, "Query cache revalidation failed, keeping previous entry",
			logger.KeyKey, key, logger.KeyError, res.Err)
		if c.cfg.OnRevalidateError != nil {
			c.cfg.OnRevalidateError(key, res.Err)
		}
	}()
}

// load calls fetch and stores a successful result.
func (c *QueryCache) load(ctx context.Context, key string, fetch Fetcher, o options) (any, error) {
	start := time.Now()
	v, err := callFetcher(ctx, fetch)
	c.metrics.observeFetch(err, time.Since(start))
	if err != nil {
		return nil, err
	}
	c.set(key, v, o)
	return v, nil
}

func callFetcher(ctx context.Context, fetch Fetcher) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrFetcherPanic, r)
		}
	}()
	return fetch(ctx)
}

// acquire counts a waiter for key and reports whether a fetch was already in
// flight.
func (c *QueryCache) acquire(key string) (joined bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	joined = c.pending[key] > 0
	c.pending[key]++
	return joined
}

func (c *QueryCache) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[key] <= 1 {
		delete(c.pending, key)
		return
	}
	c.pending[key]--
}
