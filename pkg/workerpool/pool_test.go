package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Worker functions
// ============================================================================

func double(_ context.Context, n int) (int, error) {
	return n * 2, nil
}

var errOdd = errors.New("odd input")

func evenOnly(_ context.Context, n int) (int, error) {
	if n%2 != 0 {
		return 0, errOdd
	}
	return n, nil
}

func explode(_ context.Context, n int) (int, error) {
	panic("boom")
}

// gatedInput blocks a task until release is closed. The task ignores its
// context so it always delivers a result.
type gatedInput struct {
	id      int
	started chan struct{}
	release <-chan struct{}
	log     *orderLog
}

type orderLog struct {
	mu  sync.Mutex
	ids []int
}

func (l *orderLog) add(id int) {
	l.mu.Lock()
	l.ids = append(l.ids, id)
	l.mu.Unlock()
}

func (l *orderLog) snapshot() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.ids...)
}

func gated(_ context.Context, in gatedInput) (int, error) {
	if in.started != nil {
		close(in.started)
	}
	<-in.release
	if in.log != nil {
		in.log.add(in.id)
	}
	return in.id, nil
}

func waitForCancel(ctx context.Context, d time.Duration) (time.Duration, error) {
	select {
	case <-time.After(d):
		return d, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

type calculator struct{ factor int }

func (c calculator) Scale(_ context.Context, n int) (int, error) {
	return n * c.factor, nil
}

func newTestPool[In, Out any](t *testing.T, fn Func[In, Out], opts ...Option) *Pool[In, Out] {
	t.Helper()
	p, err := NewPool(fn, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Terminate)
	return p
}

type execResult struct {
	out int
	err error
}

// ============================================================================
// Construction
// ============================================================================

func TestNewPool_Validation(t *testing.T) {
	t.Run("Closure", func(t *testing.T) {
		factor := 3
		_, err := NewPool(func(_ context.Context, n int) (int, error) { return n * factor, nil })
		assert.ErrorIs(t, err, ErrClosureNotAllowed)
	})

	t.Run("MethodValue", func(t *testing.T) {
		_, err := NewPool(calculator{factor: 2}.Scale)
		assert.ErrorIs(t, err, ErrClosureNotAllowed)
	})

	t.Run("Nil", func(t *testing.T) {
		var fn Func[int, int]
		_, err := NewPool(fn)
		assert.ErrorIs(t, err, ErrNilFunc)
	})

	t.Run("DefaultSize", func(t *testing.T) {
		p := newTestPool(t, double)
		stats := p.Stats()
		assert.Equal(t, DefaultSize(), stats.Size)
		assert.Equal(t, stats.Size, stats.Available)
		assert.Contains(t, p.Name(), "workerpool.double")
	})

	t.Run("Options", func(t *testing.T) {
		p := newTestPool(t, double, WithPoolSize(3), WithName("doubler"))
		assert.Equal(t, 3, p.Stats().Size)
		assert.Equal(t, "doubler", p.Name())
	})
}

// ============================================================================
// Exec
// ============================================================================

func TestExec_ReturnsResult(t *testing.T) {
	p := newTestPool(t, double, WithPoolSize(2))

	out, err := p.Exec(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestExec_ConcurrentCallers(t *testing.T) {
	p := newTestPool(t, double, WithPoolSize(4))

	var wg sync.WaitGroup
	results := make([]int, 100)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := p.Exec(context.Background(), i)
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}
	wg.Wait()

	for i, out := range results {
		assert.Equal(t, i*2, out)
	}
	stats := p.Stats()
	assert.Equal(t, 4, stats.Available)
	assert.Zero(t, stats.Busy)
	assert.Zero(t, stats.Queued)
}

func TestExec_FIFOWithSingleWorker(t *testing.T) {
	p := newTestPool(t, gated, WithPoolSize(1))
	release := make(chan struct{})
	log := &orderLog{}

	started := make(chan struct{})
	results := make(chan execResult, 5)
	go func() {
		out, err := p.Exec(context.Background(), gatedInput{id: 0, started: started, release: release, log: log})
		results <- execResult{out, err}
	}()
	<-started

	for i := 1; i <= 4; i++ {
		go func(id int) {
			out, err := p.Exec(context.Background(), gatedInput{id: id, release: release, log: log})
			results <- execResult{out, err}
		}(i)
		want := i
		require.Eventually(t, func() bool { return p.Stats().Queued == want }, time.Second, time.Millisecond)
	}

	close(release)
	for i := 0; i < 5; i++ {
		r := <-results
		require.NoError(t, r.err)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, log.snapshot())
}

func TestExec_FailedTaskKeepsWorker(t *testing.T) {
	p := newTestPool(t, evenOnly, WithPoolSize(1))

	_, err := p.Exec(context.Background(), 3)
	require.Error(t, err)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.ErrorIs(t, err, errOdd)
	assert.Equal(t, 0, taskErr.Worker)
	assert.Contains(t, taskErr.Func, "evenOnly")

	out, err := p.Exec(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, out)
	assert.Equal(t, 1, p.Stats().Available)
}

func TestExec_PanicBecomesTaskError(t *testing.T) {
	p := newTestPool(t, explode, WithPoolSize(1))

	for i := 0; i < 3; i++ {
		_, err := p.Exec(context.Background(), i)
		require.ErrorIs(t, err, ErrTaskPanic)
		assert.Contains(t, err.Error(), "boom")
	}
	assert.Equal(t, 1, p.Stats().Available)
}

func TestExec_CancelledWhileQueued(t *testing.T) {
	p := newTestPool(t, gated, WithPoolSize(1))
	release := make(chan struct{})
	log := &orderLog{}

	started := make(chan struct{})
	first := make(chan execResult, 1)
	go func() {
		out, err := p.Exec(context.Background(), gatedInput{id: 1, started: started, release: release, log: log})
		first <- execResult{out, err}
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	queued := make(chan execResult, 1)
	go func() {
		out, err := p.Exec(ctx, gatedInput{id: 2, release: release, log: log})
		queued <- execResult{out, err}
	}()
	require.Eventually(t, func() bool { return p.Stats().Queued == 1 }, time.Second, time.Millisecond)

	cancel()
	r := <-queued
	assert.ErrorIs(t, r.err, context.Canceled)
	assert.Zero(t, p.Stats().Queued)

	close(release)
	r = <-first
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.out)
	assert.Equal(t, []int{1}, log.snapshot())
}

func TestExec_CancelledContext(t *testing.T) {
	p := newTestPool(t, double, WithPoolSize(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Exec(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================================
// Terminate
// ============================================================================

func TestTerminate_RejectsQueuedTasks(t *testing.T) {
	p, err := NewPool(gated, WithPoolSize(1))
	require.NoError(t, err)
	release := make(chan struct{})

	started := make(chan struct{})
	running := make(chan execResult, 1)
	go func() {
		out, err := p.Exec(context.Background(), gatedInput{id: 7, started: started, release: release})
		running <- execResult{out, err}
	}()
	<-started

	queued := make(chan execResult, 3)
	for i := 0; i < 3; i++ {
		go func() {
			out, err := p.Exec(context.Background(), gatedInput{release: release})
			queued <- execResult{out, err}
		}()
	}
	require.Eventually(t, func() bool { return p.Stats().Queued == 3 }, time.Second, time.Millisecond)

	terminated := make(chan struct{})
	go func() {
		p.Terminate()
		close(terminated)
	}()

	for i := 0; i < 3; i++ {
		r := <-queued
		assert.ErrorIs(t, r.err, ErrPoolTerminated)
	}

	_, err = p.Exec(context.Background(), gatedInput{release: release})
	assert.ErrorIs(t, err, ErrPoolTerminated)

	select {
	case <-terminated:
		t.Fatal("Terminate returned before the running task finished")
	default:
	}

	close(release)
	r := <-running
	require.NoError(t, r.err)
	assert.Equal(t, 7, r.out)
	<-terminated

	p.Terminate()
	assert.Zero(t, p.Stats().Queued)
}

func TestTerminate_CancelsRunningTaskContext(t *testing.T) {
	p, err := NewPool(waitForCancel, WithPoolSize(1))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.Exec(context.Background(), time.Hour)
		done <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Busy == 1 }, time.Second, time.Millisecond)

	p.Terminate()

	err = <-done
	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTerminate_IdlePool(t *testing.T) {
	p, err := NewPool(double, WithPoolSize(2))
	require.NoError(t, err)

	p.Terminate()
	p.Terminate()

	_, err = p.Exec(context.Background(), 1)
	assert.ErrorIs(t, err, ErrPoolTerminated)
}

// ============================================================================
// Stats
// ============================================================================

func TestStats_WorkerAccounting(t *testing.T) {
	p := newTestPool(t, waitForCancel, WithPoolSize(3))

	var stop atomic.Bool
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				_, _ = p.Exec(context.Background(), time.Millisecond)
			}
		}()
	}

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		s := p.Stats()
		require.Equal(t, s.Size, s.Available+s.Busy, "stats: %+v", s)
		require.GreaterOrEqual(t, s.Queued, 0)
	}
	stop.Store(true)
	wg.Wait()
}
