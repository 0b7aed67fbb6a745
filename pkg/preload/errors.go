package preload

import "errors"

var (
	// ErrSchedulerStopped is returned by Scheduler.Start after Stop.
	ErrSchedulerStopped = errors.New("preload: scheduler stopped")

	// ErrUnsupportedScheme is returned by Mux for URLs whose scheme has no
	// registered transport.
	ErrUnsupportedScheme = errors.New("preload: unsupported url scheme")

	// ErrUnresolvable is returned by a Resolver that does not recognise a URL.
	ErrUnresolvable = errors.New("preload: url cannot be resolved to a query")
)
