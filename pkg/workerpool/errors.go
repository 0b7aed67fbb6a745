package workerpool

import (
	"errors"
	"fmt"
)

var (
	// ErrPoolTerminated is returned by Exec after Terminate, and delivered to
	// every task still queued when Terminate is called.
	ErrPoolTerminated = errors.New("workerpool: pool terminated")

	// ErrClosureNotAllowed is returned when a worker function is a closure or
	// a bound method value. Worker functions must be named top-level
	// functions; any data they need arrives through the input.
	ErrClosureNotAllowed = errors.New("workerpool: worker function must be a named top-level function")

	// ErrNilFunc is returned when a nil worker function is supplied.
	ErrNilFunc = errors.New("workerpool: nil worker function")

	// ErrTaskPanic is wrapped by TaskError when the worker function panicked.
	ErrTaskPanic = errors.New("workerpool: task panicked")
)

// TaskError reports a task that failed on a worker. The worker that ran it is
// returned to the pool.
type TaskError struct {
	Func   string // worker function name
	Worker int    // worker index, -1 for ephemeral offload workers
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("workerpool: %s failed on worker %d: %v", e.Func, e.Worker, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
