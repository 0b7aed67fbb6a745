package apiclient

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// Query reads table filtered by params.
func (c *Client) Query(ctx context.Context, table string, params map[string]string, opts QueryOptions) (*QueryResult, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	if opts.Sort != "" {
		values.Set("sort", opts.Sort)
	}
	if opts.Desc {
		values.Set("desc", "true")
	}
	if opts.Limit > 0 {
		values.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		values.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Search != "" {
		values.Set("search", opts.Search)
	}
	if len(opts.Select) > 0 {
		values.Set("select", strings.Join(opts.Select, ","))
	}

	path := "/api/v1/query/" + url.PathEscape(table)
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	return getResource[QueryResult](ctx, c, path)
}

// Stats returns statistics for every component.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	return getResource[Stats](ctx, c, "/api/v1/stats")
}

// CacheStats returns query cache statistics.
func (c *Client) CacheStats(ctx context.Context) (*CacheStats, error) {
	return getResource[CacheStats](ctx, c, "/api/v1/cache/stats")
}

// InvalidateKey removes a single cache entry.
func (c *Client) InvalidateKey(ctx context.Context, key string) error {
	return c.delete(ctx, "/api/v1/cache/keys/"+url.PathEscape(key), nil)
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns how many were removed.
func (c *Client) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	var resp invalidateResponse
	err := c.delete(ctx, "/api/v1/cache?prefix="+url.QueryEscape(prefix), &resp)
	return resp.Removed, err
}

// InvalidateTable removes every entry for table.
func (c *Client) InvalidateTable(ctx context.Context, table string) (int, error) {
	return c.InvalidatePrefix(ctx, table+":")
}

// ClearCache removes every entry.
func (c *Client) ClearCache(ctx context.Context) (int, error) {
	var resp invalidateResponse
	err := c.delete(ctx, "/api/v1/cache?all=true", &resp)
	return resp.Removed, err
}

// WorkerStats returns pool and offload statistics.
func (c *Client) WorkerStats(ctx context.Context) (*WorkerStats, error) {
	return getResource[WorkerStats](ctx, c, "/api/v1/workers/stats")
}

// Preload schedules urls at priority.
func (c *Client) Preload(ctx context.Context, priority string, urls ...string) (*PreloadResult, error) {
	var result PreloadResult
	if err := c.post(ctx, "/api/v1/preload", preloadRequest{URLs: urls, Priority: priority}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PreloadResources schedules resources with individual priorities.
func (c *Client) PreloadResources(ctx context.Context, resources ...Resource) (*PreloadResult, error) {
	var result PreloadResult
	if err := c.post(ctx, "/api/v1/preload", preloadRequest{Resources: resources}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Navigate fires the preload hints configured for route.
func (c *Client) Navigate(ctx context.Context, route string) error {
	return c.post(ctx, "/api/v1/navigate", map[string]string{"route": route}, nil)
}
