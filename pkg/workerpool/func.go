package workerpool

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"runtime"
)

// Func is the unit of work run by a Pool or Offload. It must be a pure, named
// top-level function: closures and method values are rejected so that all
// state a task depends on travels in its input.
type Func[In, Out any] func(ctx context.Context, in In) (Out, error)

// closureName matches compiler generated names of function literals
// ("pkg.Outer.func1", "pkg.init.func2.1") and method values ("pkg.T.M-fm").
var closureName = regexp.MustCompile(`(\.func\d+(\.\d+)*|-fm)$`)

// funcName returns the fully qualified name of fn.
func funcName(fn any) string {
	rf := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if rf == nil {
		return "unknown"
	}
	return rf.Name()
}

// validateFunc checks that fn is non-nil and named.
func validateFunc[In, Out any](fn Func[In, Out]) (string, error) {
	if fn == nil {
		return "", ErrNilFunc
	}
	name := funcName(fn)
	if closureName.MatchString(name) {
		return name, fmt.Errorf("%w: %s", ErrClosureNotAllowed, name)
	}
	return name, nil
}

// invoke runs fn and converts a panic into an error wrapping ErrTaskPanic.
func invoke[In, Out any](ctx context.Context, fn Func[In, Out], in In) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero Out
			out = zero
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return fn(ctx, in)
}

func isPanic(err error) bool {
	return errors.Is(err, ErrTaskPanic)
}
