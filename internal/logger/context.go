package logger

import (
	"context"
	"time"
)

type logContextKey struct{}

// LogContext carries request-scoped fields that *Ctx logging functions
// prepend to every record. Values are treated as immutable; the With*
// helpers return modified copies.
type LogContext struct {
	TraceID   string
	SpanID    string
	RequestID string // chi request id
	Route     string // HTTP route pattern or preload route
	Table     string // source table for query requests
	ClientIP  string
	Role      string // JWT role claim
	StartTime time.Time
}

// NewLogContext starts a LogContext for an admin API request.
func NewLogContext(requestID, clientIP string) *LogContext {
	return &LogContext{RequestID: requestID, ClientIP: clientIP, StartTime: time.Now()}
}

// WithContext attaches lc to ctx.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, lc)
}

// FromContext returns the LogContext attached to ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey{}).(*LogContext)
	return lc
}

// Clone returns a shallow copy.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

func (lc *LogContext) with(fn func(*LogContext)) *LogContext {
	c := lc.Clone()
	if c != nil {
		fn(c)
	}
	return c
}

// WithTable returns a copy scoped to a source table.
func (lc *LogContext) WithTable(table string) *LogContext {
	return lc.with(func(c *LogContext) { c.Table = table })
}

// WithRole returns a copy carrying the authenticated role.
func (lc *LogContext) WithRole(role string) *LogContext {
	return lc.with(func(c *LogContext) { c.Role = role })
}

// WithTrace returns a copy carrying OpenTelemetry ids.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	return lc.with(func(c *LogContext) { c.TraceID, c.SpanID = traceID, spanID })
}

// DurationMs returns the milliseconds since StartTime, or 0 if unset.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}

// args flattens the non-empty fields into slog key/value pairs.
func (lc *LogContext) args() []any {
	fields := [...]struct{ key, val string }{
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyRequestID, lc.RequestID},
		{KeyRoute, lc.Route},
		{KeyTable, lc.Table},
		{KeyClientIP, lc.ClientIP},
		{KeyRole, lc.Role},
	}
	out := make([]any, 0, 2*len(fields))
	for _, f := range fields {
		if f.val != "" {
			out = append(out, f.key, f.val)
		}
	}
	return out
}
