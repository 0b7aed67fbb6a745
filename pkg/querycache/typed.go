package querycache

import (
	"context"
	"fmt"
)

// Fetch is a typed wrapper around Get. A cached value of a different type
// yields ErrTypeMismatch.
func Fetch[T any](ctx context.Context, c *QueryCache, key string, fetch func(context.Context) (T, error), opts ...Option) (T, error) {
	var zero T
	if fetch == nil {
		return zero, ErrNilFetcher
	}

	v, err := c.Get(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, opts...)
	if err != nil {
		return zero, err
	}

	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: key %q holds %T", ErrTypeMismatch, key, v)
	}
	return typed, nil
}

// Peek returns the cached value for key if present and of type T.
func Peek[T any](c *QueryCache, key string) (T, bool) {
	var zero T
	entry, ok := c.Peek(key)
	if !ok {
		return zero, false
	}
	typed, ok := entry.Data.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}
