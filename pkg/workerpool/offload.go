package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/internal/telemetry"
	"golang.org/x/sync/semaphore"
)

// DefaultOffloadTimeout bounds how long Offload waits for its ephemeral
// worker before computing on the caller.
const DefaultOffloadTimeout = 5 * time.Second

// Offloader runs single computations on ephemeral workers. The number of
// workers alive at once is bounded; when no slot is free the computation
// runs on the calling goroutine instead.
type Offloader struct {
	sem     *semaphore.Weighted
	slots   int64
	timeout time.Duration
	metrics *Metrics

	running atomic.Int64
}

// OffloaderOption configures an Offloader.
type OffloaderOption func(*Offloader)

// WithMaxConcurrent bounds the number of ephemeral workers alive at once.
func WithMaxConcurrent(n int) OffloaderOption {
	return func(o *Offloader) {
		if n > 0 {
			o.slots = int64(n)
		}
	}
}

// WithOffloadTimeout sets the timeout used when a call passes zero.
func WithOffloadTimeout(d time.Duration) OffloaderOption {
	return func(o *Offloader) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithOffloadMetrics attaches metrics to the offloader.
func WithOffloadMetrics(m *Metrics) OffloaderOption {
	return func(o *Offloader) { o.metrics = m }
}

// NewOffloader creates an Offloader. Without options it allows DefaultSize
// concurrent workers and uses DefaultOffloadTimeout.
func NewOffloader(opts ...OffloaderOption) *Offloader {
	o := &Offloader{
		slots:   int64(DefaultSize()),
		timeout: DefaultOffloadTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.sem = semaphore.NewWeighted(o.slots)
	return o
}

var defaultOffloader = sync.OnceValue(func() *Offloader { return NewOffloader() })

// Offload runs fn(in) on an ephemeral worker of the process-wide default
// Offloader. See OffloadWith.
func Offload[In, Out any](ctx context.Context, fn Func[In, Out], in In, timeout time.Duration) (Out, error) {
	return OffloadWith(ctx, defaultOffloader(), fn, in, timeout)
}

// OffloadWith runs fn(in) on an ephemeral worker of o, raced against timeout
// (zero selects the offloader default). If the worker cannot be started
// (no free slot, or fn is a closure), fails, panics or loses the race, fn is
// run once more on the calling goroutine and that result is returned. The
// superseded worker's context is cancelled.
//
// Cancelling ctx never triggers the fallback: ctx.Err() is returned.
func OffloadWith[In, Out any](ctx context.Context, o *Offloader, fn Func[In, Out], in In, timeout time.Duration) (Out, error) {
	var zero Out
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if timeout <= 0 {
		timeout = o.timeout
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanOffload)
	defer span.End()

	name, err := validateFunc(fn)
	switch {
	case errors.Is(err, ErrNilFunc):
		return zero, err
	case err != nil:
		return fallback(ctx, o, fn, in, name, causeClosure)
	}
	telemetry.SetAttributes(ctx, telemetry.PoolFunc(name))

	if !o.sem.TryAcquire(1) {
		return fallback(ctx, o, fn, in, name, causeUnavailable)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result[Out], 1)
	o.running.Add(1)
	go func() {
		defer func() {
			o.running.Add(-1)
			o.sem.Release(1)
		}()
		out, err := invoke(workerCtx, fn, in)
		done <- result[Out]{out: out, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err == nil {
			o.metrics.recordOffload(pathWorker, causeNone)
			telemetry.SetAttributes(ctx, telemetry.OffloadPath(pathWorker))
			return r.out, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		logger.DebugCtx(ctx, "Offload worker failed, computing on caller", logger.KeyFunc, name, logger.KeyError, r.err)
		cancel()
		return fallback(ctx, o, fn, in, name, causeError)

	case <-timer.C:
		cancel()
		logger.DebugCtx(ctx, "Offload worker timed out, computing on caller", logger.KeyFunc, name, logger.Timeout(timeout))
		return fallback(ctx, o, fn, in, name, causeTimeout)

	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Stats returns the current ephemeral worker occupancy.
func (o *Offloader) Stats() OffloadStats {
	return OffloadStats{
		Capacity: int(o.slots),
		Running:  int(o.running.Load()),
	}
}

// OffloadStats describes an Offloader's ephemeral workers.
type OffloadStats struct {
	Capacity int `json:"capacity"`
	Running  int `json:"running"`
}

// fallback computes fn(in) on the calling goroutine.
func fallback[In, Out any](ctx context.Context, o *Offloader, fn Func[In, Out], in In, name, cause string) (Out, error) {
	o.metrics.recordOffload(pathFallback, cause)
	telemetry.SetAttributes(ctx, telemetry.OffloadPath(pathFallback), telemetry.OffloadCause(cause))

	out, err := invoke(ctx, fn, in)
	if err != nil {
		return out, &TaskError{Func: name, Worker: -1, Err: err}
	}
	return out, nil
}
