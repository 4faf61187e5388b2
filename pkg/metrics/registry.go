// Package metrics provides Prometheus instrumentation for the three
// media-storage services: each component constructs its own *Metrics
// against an injected prometheus.Registerer rather than a package-level
// global, plus a small InitRegistry/IsEnabled/Registerer/Handler wrapper
// the composition roots use to toggle metrics collection and serve
// /metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide registry. Calling it with
// enabled=false leaves the registry nil, and every component's
// NewMetrics(nil) call below returns a nil *Metrics, whose methods are
// all nil-receiver safe: zero overhead when metrics collection is off.
func InitRegistry(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		registry = nil
		return
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}

// IsEnabled reports whether InitRegistry(true) has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return registry != nil
}

// Registerer returns the process registry, or nil if metrics are
// disabled. Component constructors treat a nil Registerer as "don't
// register, return a nil Metrics."
func Registerer() prometheus.Registerer {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		return nil
	}
	return registry
}

// Handler serves the registry in the Prometheus exposition format, or
// a 404 handler if metrics are disabled.
func Handler() http.Handler {
	mu.Lock()
	reg := registry
	mu.Unlock()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
