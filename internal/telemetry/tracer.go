package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to querykit spans.
const (
	// ========================================================================
	// Query cache
	// ========================================================================
	AttrCacheKey    = "cache.key"
	AttrCacheTier   = "cache.tier" // fresh, stale, miss
	AttrCacheShared = "cache.shared"

	// ========================================================================
	// Worker pool
	// ========================================================================
	AttrPoolFunc     = "pool.func"
	AttrPoolWorker   = "pool.worker"
	AttrPoolQueued   = "pool.queued"
	AttrOffloadPath  = "offload.path" // worker, fallback
	AttrOffloadCause = "offload.cause"

	// ========================================================================
	// Preloader
	// ========================================================================
	AttrPreloadURL      = "preload.url"
	AttrPreloadPriority = "preload.priority"

	// ========================================================================
	// Data sources
	// ========================================================================
	AttrSourceKind  = "source.kind"
	AttrSourceTable = "source.table"
	AttrSourceRows  = "source.rows"
	AttrBucket      = "storage.bucket"
	AttrObjectKey   = "storage.key"

	AttrClientIP   = "client.ip"
	AttrHTTPMethod = "http.method"
	AttrHTTPRoute  = "http.route"
	AttrHTTPStatus = "http.status_code"
)

// Span names. Format: <component>.<operation>
const (
	SpanCacheFetch       = "cache.fetch"
	SpanCacheRevalidate  = "cache.revalidate"
	SpanPoolExec         = "pool.exec"
	SpanOffload          = "pool.offload"
	SpanPreload          = "preload.resource"
	SpanSourceSelect     = "source.select"
	SpanStorageGetObject = "storage.get_object"
	SpanAPIRequest       = "api.request"
)

// CacheKey returns an attribute for a cache key
func CacheKey(key string) attribute.KeyValue {
	return attribute.String(AttrCacheKey, key)
}

// CacheTier returns an attribute for the freshness tier of a lookup
func CacheTier(tier string) attribute.KeyValue {
	return attribute.String(AttrCacheTier, tier)
}

// CacheShared returns an attribute recording whether a fetch result was shared
// with de-duplicated callers
func CacheShared(shared bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheShared, shared)
}

// PoolFunc returns an attribute for the worker function name
func PoolFunc(name string) attribute.KeyValue {
	return attribute.String(AttrPoolFunc, name)
}

// PoolWorker returns an attribute for a worker index
func PoolWorker(id int) attribute.KeyValue {
	return attribute.Int(AttrPoolWorker, id)
}

// PoolQueued returns an attribute for the queue depth seen at submission
func PoolQueued(n int) attribute.KeyValue {
	return attribute.Int(AttrPoolQueued, n)
}

// OffloadPath returns an attribute for the path that produced an offload result
func OffloadPath(path string) attribute.KeyValue {
	return attribute.String(AttrOffloadPath, path)
}

// OffloadCause returns an attribute for the reason an offload fell back
func OffloadCause(cause string) attribute.KeyValue {
	return attribute.String(AttrOffloadCause, cause)
}

// PreloadURL returns an attribute for a preloaded resource
func PreloadURL(url string) attribute.KeyValue {
	return attribute.String(AttrPreloadURL, url)
}

// PreloadPriority returns an attribute for a preload priority
func PreloadPriority(p string) attribute.KeyValue {
	return attribute.String(AttrPreloadPriority, p)
}

// SourceKind returns an attribute for the data source kind
func SourceKind(kind string) attribute.KeyValue {
	return attribute.String(AttrSourceKind, kind)
}

// SourceTable returns an attribute for a source table
func SourceTable(table string) attribute.KeyValue {
	return attribute.String(AttrSourceTable, table)
}

// SourceRows returns an attribute for the number of rows returned
func SourceRows(n int) attribute.KeyValue {
	return attribute.Int(AttrSourceRows, n)
}

// Bucket returns an attribute for S3 bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// ObjectKey returns an attribute for S3 object key
func ObjectKey(key string) attribute.KeyValue {
	return attribute.String(AttrObjectKey, key)
}

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// HTTPRequest returns the attributes recorded on admin API spans.
func HTTPRequest(method, route string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.Int(AttrHTTPStatus, status),
	}
}

// StartCacheSpan starts a span for a query cache operation on key.
func StartCacheSpan(ctx context.Context, name, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{CacheKey(key)}, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(all...))
}

// StartSourceSpan starts a span for a data source query.
func StartSourceSpan(ctx context.Context, kind, table string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{SourceKind(kind), SourceTable(table)}, attrs...)
	return StartSpan(ctx, SpanSourceSelect, trace.WithAttributes(all...), trace.WithSpanKind(trace.SpanKindClient))
}
