// Package logger is the process-wide structured logger. It wraps log/slog with
// a shared level, a colored text format for terminals and JSON for log
// shippers, and *Ctx variants that prepend request-scoped fields carried in a
// LogContext.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

// sink is the current destination and encoding.
type sink struct {
	w      io.Writer
	format string
	color  bool
	file   *os.File // non-nil when Output named a file we opened
}

func (s sink) logger() *slog.Logger {
	if s.format == "json" {
		return slog.New(slog.NewJSONHandler(s.w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(newTextHandler(s.w, level, s.color))
}

var (
	level = new(slog.LevelVar)

	mu   sync.RWMutex
	out  = sink{w: os.Stdout, format: "text", color: isTerminal(os.Stdout)}
	base = out.logger()
)

// update applies fn to the sink and rebuilds the logger.
func update(fn func(*sink)) {
	mu.Lock()
	defer mu.Unlock()
	fn(&out)
	base = out.logger()
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// ParseLevel maps DEBUG, INFO, WARN or ERROR (any case) to a slog level.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return 0, false
}

// Init configures the logger. Output is "stdout", "stderr" or a file path
// opened for append; a file previously opened by Init is closed.
func Init(cfg Config) error {
	if cfg.Output != "" {
		next, err := openSink(cfg.Output)
		if err != nil {
			return err
		}
		update(func(s *sink) {
			if s.file != nil {
				_ = s.file.Close()
			}
			s.w, s.color, s.file = next.w, next.color, next.file
		})
	}
	SetLevel(cfg.Level)
	SetFormat(cfg.Format)
	return nil
}

func openSink(name string) (sink, error) {
	switch strings.ToLower(name) {
	case "stdout":
		return sink{w: os.Stdout, color: isTerminal(os.Stdout)}, nil
	case "stderr":
		return sink{w: os.Stderr, color: isTerminal(os.Stderr)}, nil
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return sink{}, fmt.Errorf("failed to open log file %q: %w", name, err)
	}
	return sink{w: f, file: f}, nil
}

// InitWithWriter sends output to w. Tests use it to capture records.
func InitWithWriter(w io.Writer, lvl, format string, color bool) {
	update(func(s *sink) {
		s.w, s.color, s.file = w, color, nil
	})
	SetLevel(lvl)
	SetFormat(format)
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		level.Set(l)
	}
}

// SetFormat switches between "text" and "json". Unknown formats are ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	update(func(s *sink) { s.format = format })
}

func log(ctx context.Context, l slog.Level, msg string, args []any) {
	if l < level.Level() {
		return
	}
	if lc := FromContext(ctx); lc != nil {
		args = append(lc.args(), args...)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	current().Log(ctx, l, msg, args...)
}

// Debug logs at debug level: Debug("message", "key1", value1, ...).
func Debug(msg string, args ...any) { log(nil, slog.LevelDebug, msg, args) }

// Info logs at info level.
func Info(msg string, args ...any) { log(nil, slog.LevelInfo, msg, args) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { log(nil, slog.LevelWarn, msg, args) }

// Error logs at error level.
func Error(msg string, args ...any) { log(nil, slog.LevelError, msg, args) }

// DebugCtx logs at debug level with the LogContext fields of ctx first.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelDebug, msg, args)
}

// InfoCtx logs at info level with the LogContext fields of ctx first.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelInfo, msg, args)
}

// WarnCtx logs at warn level with the LogContext fields of ctx first.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelWarn, msg, args)
}

// ErrorCtx logs at error level with the LogContext fields of ctx first.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	log(ctx, slog.LevelError, msg, args)
}

// With returns a logger with args bound to every record.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// Duration returns the milliseconds elapsed since start.
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
