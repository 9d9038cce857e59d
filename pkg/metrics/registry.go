// Package metrics provides optional metrics collection for nfsbridge sessions.
//
// All metrics are optional - if not initialized, components use no-op
// implementations with zero overhead.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	sessionMetrics := prometheus.NewSessionMetrics()
//
//	// Or use nil for no-op behavior
//	s := session.New(factory, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all nfsbridge metrics.
	// Protected by registryOnce for write-once, read-many pattern.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// It's safe to call multiple times - subsequent calls are ignored. If not
// called, GetRegistry returns nil and all metrics constructors return no-op
// implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil when metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
