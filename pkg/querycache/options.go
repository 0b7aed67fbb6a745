package querycache

import "time"

const (
	// DefaultStaleTime is how long an entry is served without revalidation.
	DefaultStaleTime = 30 * time.Second

	// DefaultCacheTime is how long an entry may be served at all. Past it the
	// next Get blocks on a fresh fetch.
	DefaultCacheTime = 5 * time.Minute
)

// Option customizes a single Get, Prefetch or Set call.
type Option func(*options)

type options struct {
	staleTime time.Duration
	cacheTime time.Duration
	dedupe    bool
}

// WithStaleTime overrides the stale time for one call. Zero makes the entry
// stale immediately.
func WithStaleTime(d time.Duration) Option {
	return func(o *options) { o.staleTime = d }
}

// WithCacheTime overrides the cache time for one call.
func WithCacheTime(d time.Duration) Option {
	return func(o *options) { o.cacheTime = d }
}

// WithDedupe controls whether concurrent blocking fetches for the same key
// share one call to the fetcher. Enabled by default.
func WithDedupe(enabled bool) Option {
	return func(o *options) { o.dedupe = enabled }
}

func (c *QueryCache) resolve(opts []Option) options {
	o := options{
		staleTime: c.cfg.StaleTime,
		cacheTime: c.cfg.CacheTime,
		dedupe:    true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.staleTime < 0 {
		o.staleTime = 0
	}
	if o.cacheTime < 0 {
		o.cacheTime = 0
	}
	return o
}
