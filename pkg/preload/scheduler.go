// Package preload schedules best-effort warming of resources that are likely
// to be needed soon.
//
// Work is queued by priority and handed to a Transport by a small set of
// worker goroutines. Nothing blocks on completion: enqueueing never waits,
// failures are logged and counted, and full queues drop requests.
package preload

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/marmos91/querykit/internal/logger"
	"github.com/marmos91/querykit/internal/telemetry"
	"golang.org/x/time/rate"
)

// Scheduler defaults.
const (
	DefaultWorkers        = 2
	DefaultQueueSize      = 256
	DefaultLowRate        = 10
	DefaultDedupeWindow   = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Config configures a Scheduler. Zero values select the defaults above.
type Config struct {
	// Workers is the number of concurrent preloads.
	Workers int

	// QueueSize is the capacity of each priority queue.
	QueueSize int

	// LowRate limits low-priority preloads per second. Negative disables
	// the limit.
	LowRate float64

	// LowBurst is the limiter burst size. Defaults to 1.
	LowBurst int

	// DedupeWindow skips URLs already scheduled at the same or a higher
	// priority within the window. Negative disables deduplication.
	DedupeWindow time.Duration

	// RequestTimeout bounds a single preload.
	RequestTimeout time.Duration

	// DisableIdleDetection makes PreloadWhenIdle wait for the fallback delay
	// instead of observing scheduler load.
	DisableIdleDetection bool

	Metrics *Metrics
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.LowRate == 0 {
		c.LowRate = DefaultLowRate
	}
	if c.LowBurst <= 0 {
		c.LowBurst = 1
	}
	if c.DedupeWindow == 0 {
		c.DedupeWindow = DefaultDedupeWindow
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Stats is a snapshot of scheduler activity.
type Stats struct {
	PendingHigh   int `json:"pending_high"`
	PendingNormal int `json:"pending_normal"`
	PendingLow    int `json:"pending_low"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	Dropped       int `json:"dropped"`
}

type scheduled struct {
	at       time.Time
	priority Priority
}

// Scheduler runs preloads with priority scheduling.
//
// Priority order (highest to lowest):
//  1. High - hover intent, the user is about to navigate
//  2. Normal - content entering the viewport
//  3. Low - idle-time speculation, rate limited
type Scheduler struct {
	cfg       Config
	transport Transport
	limiter   *rate.Limiter

	// queues[Priority.index()]
	queues [3]chan Resource

	// ctx is cancelled by Stop; in-flight preloads and idle waiters derive
	// from it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	started     bool
	stopped     bool
	pending     [3]int
	active      int // queued or running high/normal work
	idleWaiters []chan struct{}
	seen        map[string]scheduled
	completed   int
	failed      int
	dropped     int
}

// NewScheduler creates a scheduler that preloads through t. Requests may be
// enqueued before Start; they are processed once workers run.
func NewScheduler(t Transport, cfg Config) *Scheduler {
	cfg.applyDefaults()

	limit := rate.Limit(cfg.LowRate)
	if cfg.LowRate < 0 {
		limit = rate.Inf
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cfg:       cfg,
		transport: t,
		limiter:   rate.NewLimiter(limit, cfg.LowBurst),
		ctx:       ctx,
		cancel:    cancel,
		seen:      make(map[string]scheduled),
	}
	for i := range s.queues {
		s.queues[i] = make(chan Resource, cfg.QueueSize)
	}
	return s
}

// Start launches the workers. Calling Start more than once is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrSchedulerStopped
	}
	if s.started {
		return nil
	}
	s.started = true

	logger.Info("Starting preload scheduler", "workers", s.cfg.Workers)
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	return nil
}

// Stop cancels in-flight preloads, drops queued ones and waits up to timeout
// for workers to exit.
func (s *Scheduler) Stop(timeout time.Duration) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()

	stopped := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		n := s.drain()
		logger.Info("Preload scheduler stopped", "dropped", n)
	case <-time.After(timeout):
		logger.Warn("Preload scheduler stop timed out", "pending", s.Pending())
	}
}

// Enqueue schedules r. It never blocks and reports whether r was accepted;
// requests are dropped when the scheduler is stopped, the queue for r's
// priority is full, or r.URL was recently scheduled at the same or a higher
// priority.
func (s *Scheduler) Enqueue(r Resource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.dropLocked(r, outcomeStopped)
		return false
	}

	now := time.Now()
	if s.cfg.DedupeWindow > 0 {
		if prev, ok := s.seen[r.URL]; ok && now.Sub(prev.at) < s.cfg.DedupeWindow && prev.priority >= r.Priority {
			s.cfg.Metrics.recordRequest(r.Priority, outcomeDuplicate)
			return false
		}
	}

	idx := r.Priority.index()
	select {
	case s.queues[idx] <- r:
	default:
		logger.Debug("Preload queue full, dropping request", logger.KeyURL, r.URL, logger.KeyPriority, r.Priority.String())
		s.dropLocked(r, outcomeFull)
		return false
	}

	s.pending[idx]++
	if r.Priority >= PriorityNormal {
		s.active++
	}
	if s.cfg.DedupeWindow > 0 {
		s.seen[r.URL] = scheduled{at: now, priority: r.Priority}
		s.pruneSeenLocked(now)
	}
	s.cfg.Metrics.setPending(r.Priority, s.pending[idx])
	return true
}

// Preload enqueues every URL at priority p and returns how many were
// accepted.
func (s *Scheduler) Preload(urls []string, p Priority) int {
	accepted := 0
	for _, u := range urls {
		if s.Enqueue(Resource{URL: u, Priority: p}) {
			accepted++
		}
	}
	return accepted
}

// IdleOptions tunes PreloadWhenIdle.
type IdleOptions struct {
	// Timeout is the longest PreloadWhenIdle waits for the scheduler to go
	// idle before preloading anyway. Defaults to 2s.
	Timeout time.Duration

	// FallbackDelay is waited instead when idle detection is disabled.
	// Defaults to 100ms.
	FallbackDelay time.Duration
}

func (o *IdleOptions) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	if o.FallbackDelay <= 0 {
		o.FallbackDelay = 100 * time.Millisecond
	}
}

// PreloadWhenIdle enqueues urls at low priority once no high or normal work
// is queued or running, or after opts.Timeout, whichever comes first. It
// returns immediately. The pending preload is abandoned if ctx ends or the
// scheduler stops first.
func (s *Scheduler) PreloadWhenIdle(ctx context.Context, urls []string, opts IdleOptions) {
	if len(urls) == 0 {
		return
	}
	opts.applyDefaults()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if s.waitIdle(ctx, opts) {
			s.Preload(urls, PriorityLow)
		}
	}()
}

// Idle reports whether no high or normal priority work is queued or running.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == 0
}

// Pending returns the number of queued requests.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[0] + s.pending[1] + s.pending[2]
}

// Stats returns scheduler statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		PendingHigh:   s.pending[0],
		PendingNormal: s.pending[1],
		PendingLow:    s.pending[2],
		Completed:     s.completed,
		Failed:        s.failed,
		Dropped:       s.dropped,
	}
}

// waitIdle blocks until the scheduler is idle, the timeout elapses, or the
// fallback delay passes when idle detection is disabled. It returns false
// when ctx or the scheduler ended first.
func (s *Scheduler) waitIdle(ctx context.Context, opts IdleOptions) bool {
	var (
		timer  *time.Timer
		idleCh chan struct{}
	)
	if s.cfg.DisableIdleDetection {
		timer = time.NewTimer(opts.FallbackDelay)
	} else {
		idleCh = s.idleSignal()
		if idleCh == nil {
			return true
		}
		defer s.forgetIdleWaiter(idleCh)
		timer = time.NewTimer(opts.Timeout)
	}
	defer timer.Stop()

	select {
	case <-idleCh:
		return true
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-s.ctx.Done():
		return false
	}
}

// idleSignal returns nil if the scheduler is idle now, otherwise a channel
// closed the next time it becomes idle.
func (s *Scheduler) idleSignal() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == 0 {
		return nil
	}
	ch := make(chan struct{})
	s.idleWaiters = append(s.idleWaiters, ch)
	return ch
}

// forgetIdleWaiter drops ch from the waiter list. It is a no-op once the
// idle signal fired and the list was reset.
func (s *Scheduler) forgetIdleWaiter(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idleWaiters = slices.DeleteFunc(s.idleWaiters, func(w chan struct{}) bool { return w == ch })
}

// idleWaiterCount reports how many PreloadWhenIdle calls are parked.
func (s *Scheduler) idleWaiterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.idleWaiters)
}

// worker processes requests in priority order: high > normal > low.
//
// Two-phase select: urgent queues are polled without blocking first, then
// the worker blocks on all queues at once, so an empty scheduler does not
// spin.
func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	logger.Debug("Preload worker started", logger.KeyWorkerID, id)

	high, normal, low := s.queues[0], s.queues[1], s.queues[2]
	for {
		// Phase 1: urgent work first (non-blocking)
		select {
		case r := <-high:
			s.process(r)
			continue
		default:
		}
		select {
		case r := <-normal:
			s.process(r)
			continue
		default:
		}

		// Phase 2: wait for any work
		select {
		case r := <-high:
			s.process(r)
		case r := <-normal:
			s.process(r)
		case r := <-low:
			s.process(r)
		case <-s.ctx.Done():
			logger.Debug("Preload worker stopped", logger.KeyWorkerID, id)
			return
		}
	}
}

// process runs one preload. Errors are swallowed: they are logged, counted
// and never surfaced to whoever enqueued the request.
func (s *Scheduler) process(r Resource) {
	if r.Priority < PriorityNormal {
		if err := s.limiter.Wait(s.ctx); err != nil {
			s.finish(r, outcomeStopped)
			return
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPreload)
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.PreloadURL(r.URL), telemetry.PreloadPriority(r.Priority.String()))

	start := time.Now()
	err := s.transport.Preload(ctx, r)
	s.cfg.Metrics.observeDuration(r.Priority, time.Since(start))

	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.DebugCtx(ctx, "Preload failed", logger.KeyURL, r.URL, logger.KeyPriority, r.Priority.String(), logger.KeyError, err)
		s.finish(r, outcomeError)
		return
	}
	s.finish(r, outcomeSuccess)
}

func (s *Scheduler) finish(r Resource, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch outcome {
	case outcomeSuccess:
		s.completed++
	case outcomeError:
		s.failed++
	default:
		s.dropped++
	}
	s.cfg.Metrics.recordRequest(r.Priority, outcome)
	s.releaseLocked(r)
}

func (s *Scheduler) dropLocked(r Resource, outcome string) {
	s.dropped++
	s.cfg.Metrics.recordRequest(r.Priority, outcome)
}

// releaseLocked removes r from the pending counts and wakes idle waiters
// when the last high or normal request leaves.
func (s *Scheduler) releaseLocked(r Resource) {
	idx := r.Priority.index()
	s.pending[idx]--
	s.cfg.Metrics.setPending(r.Priority, s.pending[idx])

	if r.Priority < PriorityNormal {
		return
	}
	s.active--
	if s.active == 0 {
		for _, ch := range s.idleWaiters {
			close(ch)
		}
		s.idleWaiters = nil
	}
}

// pruneSeenLocked forgets URLs whose dedupe window has passed once the map
// grows past the queue capacity.
func (s *Scheduler) pruneSeenLocked(now time.Time) {
	if len(s.seen) <= 3*s.cfg.QueueSize {
		return
	}
	for u, sc := range s.seen {
		if now.Sub(sc.at) >= s.cfg.DedupeWindow {
			delete(s.seen, u)
		}
	}
}

// drain discards requests left in the queues after the workers exit.
func (s *Scheduler) drain() int {
	n := 0
	for _, q := range s.queues {
		for {
			select {
			case r := <-q:
				s.finish(r, outcomeStopped)
				n++
				continue
			default:
			}
			break
		}
	}
	return n
}
