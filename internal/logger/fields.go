package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging. Use these keys consistently so
// cache, pool and preload records can be correlated in log aggregation.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// HTTP / Admin API
	// ========================================================================
	KeyRequestID = "request_id"
	KeyRoute     = "route"
	KeyMethod    = "method"
	KeyStatus    = "status"
	KeyClientIP  = "client_ip"
	KeyRole      = "role"
	KeySubject   = "subject"

	// ========================================================================
	// Query Cache
	// ========================================================================
	KeyKey       = "key"        // Cache key
	KeyPrefix    = "prefix"     // Invalidation prefix
	KeyTier      = "tier"       // Freshness tier: fresh, stale, miss
	KeyStaleTime = "stale_time" // Configured stale time
	KeyCacheTime = "cache_time" // Configured cache time
	KeyEntries   = "entries"    // Number of cache entries
	KeyEvicted   = "evicted"    // Number of entries evicted
	KeyPending   = "pending"    // In-flight fetches

	// ========================================================================
	// Worker Pool
	// ========================================================================
	KeyWorkerID = "worker_id"
	KeyPoolSize = "pool_size"
	KeyQueued   = "queued"
	KeyFunc     = "func"    // Worker function name
	KeyTimeout  = "timeout" // Offload timeout

	// ========================================================================
	// Preloader
	// ========================================================================
	KeyURL      = "url"
	KeyPriority = "priority"
	KeyTrigger  = "trigger" // route, hover, viewport, idle, pagination, scroll

	// ========================================================================
	// Data Sources
	// ========================================================================
	KeySource = "source" // postgres, rest, storage
	KeyTable  = "table"
	KeyRows   = "rows"
	KeyBucket = "bucket"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyOperation  = "operation"
)

// ----------------------------------------------------------------------------
// Field constructors
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Key returns a slog.Attr for a cache key
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// Prefix returns a slog.Attr for an invalidation prefix
func Prefix(p string) slog.Attr {
	return slog.String(KeyPrefix, p)
}

// Tier returns a slog.Attr for the freshness tier a lookup resolved to
func Tier(t string) slog.Attr {
	return slog.String(KeyTier, t)
}

// WorkerID returns a slog.Attr for a pool worker index
func WorkerID(id int) slog.Attr {
	return slog.Int(KeyWorkerID, id)
}

// URL returns a slog.Attr for a preloaded resource URL
func URL(u string) slog.Attr {
	return slog.String(KeyURL, u)
}

// Priority returns a slog.Attr for a preload priority
func Priority(p string) slog.Attr {
	return slog.String(KeyPriority, p)
}

// Table returns a slog.Attr for a source table
func Table(name string) slog.Attr {
	return slog.String(KeyTable, name)
}

// Source returns a slog.Attr for the data source kind
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// Timeout returns a slog.Attr for a timeout duration
func Timeout(d time.Duration) slog.Attr {
	return slog.Duration(KeyTimeout, d)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
