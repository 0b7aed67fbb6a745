package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type squareInput struct {
	n     int
	delay time.Duration
	calls *atomic.Int32
}

// slowSquare returns n*n after delay, or the context error if cancelled first.
func slowSquare(ctx context.Context, in squareInput) (int, error) {
	if in.calls != nil {
		in.calls.Add(1)
	}
	select {
	case <-time.After(in.delay):
		return in.n * in.n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

var errAlwaysFails = errors.New("always fails")

func alwaysFails(_ context.Context, calls *atomic.Int32) (int, error) {
	calls.Add(1)
	return 0, errAlwaysFails
}

func offloadCount(t *testing.T, m *Metrics, path, cause string) float64 {
	t.Helper()
	var metric io_prometheus_client.Metric
	require.NoError(t, m.Offloads.WithLabelValues(path, cause).Write(&metric))
	return metric.GetCounter().GetValue()
}

func newTestOffloader(opts ...OffloaderOption) (*Offloader, *Metrics) {
	m := NewMetrics(prometheus.NewRegistry())
	return NewOffloader(append([]OffloaderOption{WithOffloadMetrics(m)}, opts...)...), m
}

func TestOffload_RunsOnWorker(t *testing.T) {
	o, m := newTestOffloader()

	out, err := OffloadWith(context.Background(), o, slowSquare, squareInput{n: 7}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 49, out)
	assert.Equal(t, 1.0, offloadCount(t, m, pathWorker, causeNone))
}

func TestOffload_DefaultOffloader(t *testing.T) {
	out, err := Offload(context.Background(), double, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, out)
}

func TestOffload_TimeoutFallsBackToCaller(t *testing.T) {
	o, m := newTestOffloader()
	var calls atomic.Int32

	start := time.Now()
	out, err := OffloadWith(context.Background(), o, slowSquare,
		squareInput{n: 9, delay: 50 * time.Millisecond, calls: &calls}, 5*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, 81, out)
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1.0, offloadCount(t, m, pathFallback, causeTimeout))
	assert.Eventually(t, func() bool { return o.Stats().Running == 0 }, time.Second, time.Millisecond)
}

func TestOffload_ClosureFallsBack(t *testing.T) {
	o, m := newTestOffloader()
	offset := 10

	out, err := OffloadWith(context.Background(), o, func(_ context.Context, n int) (int, error) {
		return n + offset, nil
	}, 5, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 15, out)
	assert.Equal(t, 1.0, offloadCount(t, m, pathFallback, causeClosure))
}

func TestOffload_NoFreeSlotFallsBack(t *testing.T) {
	o, m := newTestOffloader(WithMaxConcurrent(1))
	release := make(chan struct{})

	started := make(chan struct{})
	occupied := make(chan error, 1)
	go func() {
		_, err := OffloadWith(context.Background(), o, gated, gatedInput{started: started, release: release}, time.Minute)
		occupied <- err
	}()
	<-started
	assert.Equal(t, OffloadStats{Capacity: 1, Running: 1}, o.Stats())

	out, err := OffloadWith(context.Background(), o, double, 4, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 8, out)
	assert.Equal(t, 1.0, offloadCount(t, m, pathFallback, causeUnavailable))

	close(release)
	require.NoError(t, <-occupied)
}

func TestOffload_WorkerErrorFallsBackOnce(t *testing.T) {
	o, m := newTestOffloader()
	var calls atomic.Int32

	_, err := OffloadWith(context.Background(), o, alwaysFails, &calls, time.Second)
	require.ErrorIs(t, err, errAlwaysFails)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, -1, taskErr.Worker)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1.0, offloadCount(t, m, pathFallback, causeError))
}

func TestOffload_PanicFallsBack(t *testing.T) {
	o, m := newTestOffloader()

	_, err := OffloadWith(context.Background(), o, explode, 1, time.Second)
	assert.ErrorIs(t, err, ErrTaskPanic)
	assert.Equal(t, 1.0, offloadCount(t, m, pathFallback, causeError))
}

func TestOffload_CallerCancellation(t *testing.T) {
	o, m := newTestOffloader()
	var calls atomic.Int32

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := OffloadWith(ctx, o, slowSquare, squareInput{n: 2, delay: time.Minute, calls: &calls}, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, offloadCount(t, m, pathFallback, causeTimeout))
}

func TestOffload_NilFunc(t *testing.T) {
	var fn Func[int, int]
	_, err := Offload(context.Background(), fn, 1, time.Second)
	assert.ErrorIs(t, err, ErrNilFunc)
}
