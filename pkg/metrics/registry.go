// Package metrics owns the process-wide Prometheus registry and the HTTP
// server that exposes it.
//
// Components never register against the global default registry. They take a
// prometheus.Registerer and callers pass GetRegistry() when metrics are
// enabled, or nil to get unregistered (but still usable) collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the dedicated registry with Go runtime and process
// collectors. Calling it again returns the existing registry.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	if registry != nil {
		return registry
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil when metrics are disabled.
// The nil value is typed as prometheus.Registerer so it can be passed
// straight to component constructors.
func GetRegistry() prometheus.Registerer {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		return nil
	}
	return registry
}

// Gatherer returns the registry as a prometheus.Gatherer, or nil when disabled.
func Gatherer() prometheus.Gatherer {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		return nil
	}
	return registry
}

// Reset drops the registry. Only tests should need this.
func Reset() {
	mu.Lock()
	registry = nil
	mu.Unlock()
}

// RegisterOrReuse registers c with reg. If an identical collector is already
// registered (for example after a runtime restart inside the same process)
// the existing collector is returned instead.
func RegisterOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
