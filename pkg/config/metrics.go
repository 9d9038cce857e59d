package config

import (
	"github.com/netiface/nfsbridge/pkg/metrics"
	promMetrics "github.com/netiface/nfsbridge/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// SessionMetrics is the collector for the session (never nil, uses noop if disabled)
	SessionMetrics metrics.SessionMetrics
}

// InitializeMetrics creates metrics components based on configuration.
//
// If metrics are enabled the global Prometheus registry is initialized and a
// server and Prometheus-backed collectors are returned. Otherwise the server
// is nil and collectors are no-ops.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			SessionMetrics: metrics.NewNoopSessionMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:         metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		SessionMetrics: promMetrics.NewSessionMetrics(),
	}
}
