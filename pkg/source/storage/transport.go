package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/marmos91/querykit/pkg/preload"
	"github.com/marmos91/querykit/pkg/querycache"
)

// Scheme is the URL scheme served by Transport: s3://bucket/key.
const Scheme = "s3"

// CacheKey returns the query cache key an object is stored under.
func CacheKey(bucket, key string) string {
	return "storage:" + bucket + "/" + key
}

// ParseURL splits s3://bucket/key.
func ParseURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Scheme != Scheme || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", preload.ErrUnresolvable, raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("%w: %q has no object key", preload.ErrUnresolvable, raw)
	}
	return u.Host, key, nil
}

// Fetcher returns a query cache fetcher that reads bucket/key from s.
func (s *Store) Fetcher(bucket, key string) querycache.Fetcher {
	return func(ctx context.Context) (any, error) {
		return s.GetObject(ctx, bucket, key)
	}
}

// Resolve implements preload.Resolver for s3:// URLs.
func (s *Store) Resolve(raw string) (string, querycache.Fetcher, error) {
	bucket, key, err := ParseURL(raw)
	if err != nil {
		return "", nil, err
	}
	return CacheKey(bucket, key), s.Fetcher(bucket, key), nil
}

// NewTransport returns a preload transport that warms s3:// objects into
// cache.
func NewTransport(s *Store, cache *querycache.QueryCache, opts ...querycache.Option) preload.Transport {
	return &preload.CacheTransport{Cache: cache, Resolver: s, Options: opts}
}
