// Package workerpool runs pure compute functions on a bounded set of
// background workers.
//
// A Pool has a fixed number of workers and a strict FIFO queue. When a worker
// finishes a task it takes the next queued task directly, so queued work is
// never overtaken by later submissions. Every task is answered exactly once:
// with its result, a *TaskError, the caller's context error, or
// ErrPoolTerminated.
//
// Offload runs a single computation on an ephemeral worker raced against a
// timeout and falls back to running it on the calling goroutine.
package workerpool

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/internal/telemetry"
)

// Stats is a point-in-time snapshot of a pool.
// Invariant: Size == Available + Busy.
type Stats struct {
	Name      string `json:"name"`
	Size      int    `json:"size"`
	Available int    `json:"available"`
	Busy      int    `json:"busy"`
	Queued    int    `json:"queued"`
}

// Option configures a Pool.
type Option func(*poolConfig)

type poolConfig struct {
	size    int
	name    string
	metrics *Metrics
}

// WithPoolSize sets the number of workers. Values below 1 select DefaultSize.
func WithPoolSize(n int) Option {
	return func(c *poolConfig) { c.size = n }
}

// WithName sets the pool label used in logs and metrics. Defaults to the
// worker function name.
func WithName(name string) Option {
	return func(c *poolConfig) { c.name = name }
}

// WithMetrics attaches metrics to the pool.
func WithMetrics(m *Metrics) Option {
	return func(c *poolConfig) { c.metrics = m }
}

type result[Out any] struct {
	out Out
	err error
}

type task[In, Out any] struct {
	ctx      context.Context
	in       In
	done     chan result[Out]
	queuedAt time.Time
}

type worker[In, Out any] struct {
	id    int
	inbox chan *task[In, Out]
}

// Pool is a fixed-size worker pool for one worker function.
type Pool[In, Out any] struct {
	fn       Func[In, Out]
	funcName string
	name     string
	metrics  *Metrics

	// ctx is cancelled by Terminate and propagated into running tasks.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	workers    []*worker[In, Out]
	available  []*worker[In, Out]
	queue      []*task[In, Out]
	busy       int
	terminated bool

	wg sync.WaitGroup
}

// NewPool starts a pool running fn. fn must be a named top-level function.
func NewPool[In, Out any](fn Func[In, Out], opts ...Option) (*Pool[In, Out], error) {
	name, err := validateFunc(fn)
	if err != nil {
		return nil, err
	}

	cfg := poolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.size < 1 {
		cfg.size = DefaultSize()
	}
	if cfg.name == "" {
		cfg.name = name
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool[In, Out]{
		fn:        fn,
		funcName:  name,
		name:      cfg.name,
		metrics:   cfg.metrics,
		ctx:       ctx,
		cancel:    cancel,
		workers:   make([]*worker[In, Out], cfg.size),
		available: make([]*worker[In, Out], 0, cfg.size),
	}

	for i := range p.workers {
		w := &worker[In, Out]{id: i, inbox: make(chan *task[In, Out], 1)}
		p.workers[i] = w
		p.available = append(p.available, w)
		p.wg.Add(1)
		go p.run(w)
	}

	logger.Debug("Worker pool started", "pool", p.name, logger.KeyPoolSize, cfg.size, logger.KeyFunc, name)
	return p, nil
}

// Exec runs fn(in) on a worker, waiting in FIFO order when all workers are
// busy. There is no queue timeout; bound the wait with ctx. If ctx ends while
// the task is still queued the task is dropped and ctx.Err() is returned.
func (p *Pool[In, Out]) Exec(ctx context.Context, in In) (Out, error) {
	var zero Out
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPoolExec)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.PoolFunc(p.funcName))

	t := &task[In, Out]{
		ctx:      ctx,
		in:       in,
		done:     make(chan result[Out], 1),
		queuedAt: time.Now(),
	}

	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		p.metrics.recordTask(p.name, outcomeRejected)
		return zero, ErrPoolTerminated
	}
	if n := len(p.available); n > 0 {
		w := p.available[n-1]
		p.available = p.available[:n-1]
		p.dispatchLocked(w, t)
	} else {
		p.queue = append(p.queue, t)
		telemetry.SetAttributes(ctx, telemetry.PoolQueued(len(p.queue)))
	}
	p.reportLoadLocked()
	p.mu.Unlock()

	select {
	case r := <-t.done:
		if r.err != nil {
			telemetry.RecordError(ctx, r.err)
		}
		return r.out, r.err
	case <-ctx.Done():
		if p.dequeue(t) {
			p.metrics.recordTask(p.name, outcomeCancelled)
		}
		return zero, ctx.Err()
	}
}

// Terminate stops the pool. Tasks still queued receive ErrPoolTerminated,
// running tasks have their context cancelled and still deliver whatever they
// return, and later Exec calls fail with ErrPoolTerminated. Terminate waits
// for running tasks to return. It is safe to call more than once.
func (p *Pool[In, Out]) Terminate() {
	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.terminated = true

	rejected := p.queue
	p.queue = nil
	for _, w := range p.available {
		close(w.inbox)
	}
	p.reportLoadLocked()
	p.mu.Unlock()

	for _, t := range rejected {
		t.done <- result[Out]{err: ErrPoolTerminated}
		p.metrics.recordTask(p.name, outcomeRejected)
	}

	p.cancel()
	p.wg.Wait()
	logger.Debug("Worker pool terminated", "pool", p.name, "rejected", len(rejected))
}

// Stats returns a snapshot of worker and queue occupancy.
func (p *Pool[In, Out]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Name:      p.name,
		Size:      len(p.workers),
		Available: len(p.available),
		Busy:      p.busy,
		Queued:    len(p.queue),
	}
}

// Name returns the pool label.
func (p *Pool[In, Out]) Name() string {
	return p.name
}

func (p *Pool[In, Out]) run(w *worker[In, Out]) {
	defer p.wg.Done()

	for t := range w.inbox {
		p.metrics.observeQueueWait(p.name, time.Since(t.queuedAt))
		out, err := p.execute(w, t)
		t.done <- result[Out]{out: out, err: err}
		p.release(w)
	}
}

func (p *Pool[In, Out]) execute(w *worker[In, Out], t *task[In, Out]) (Out, error) {
	ctx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	out, err := invoke(ctx, p.fn, t.in)
	if err == nil {
		p.metrics.recordTask(p.name, outcomeSuccess)
		return out, nil
	}

	outcome := outcomeError
	if isPanic(err) {
		outcome = outcomePanic
		logger.Warn("Worker task panicked", "pool", p.name, logger.KeyWorkerID, w.id, logger.KeyError, err)
	}
	p.metrics.recordTask(p.name, outcome)
	return out, &TaskError{Func: p.funcName, Worker: w.id, Err: err}
}

// release hands the next queued task to w, or returns w to the available set.
// After Terminate the worker's inbox is closed instead so its loop exits.
func (p *Pool[In, Out]) release(w *worker[In, Out]) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.busy--
	switch {
	case p.terminated:
		close(w.inbox)
	case len(p.queue) > 0:
		next := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.dispatchLocked(w, next)
	default:
		p.available = append(p.available, w)
	}
	p.reportLoadLocked()
}

// dispatchLocked sends t to an idle worker. The inbox has capacity one and
// an idle worker's inbox is always empty, so the send never blocks.
func (p *Pool[In, Out]) dispatchLocked(w *worker[In, Out], t *task[In, Out]) {
	p.busy++
	w.inbox <- t
}

// dequeue removes t from the queue and reports whether it was still queued.
func (p *Pool[In, Out]) dequeue(t *task[In, Out]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, queued := range p.queue {
		if queued == t {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			p.reportLoadLocked()
			return true
		}
	}
	return false
}

func (p *Pool[In, Out]) reportLoadLocked() {
	p.metrics.setLoad(p.name, p.busy, len(p.queue))
}
