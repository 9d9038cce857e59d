// Package prometheus implements the metrics interfaces with client_golang.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/netiface/nfsbridge/pkg/metrics"
)

// sessionMetrics is the Prometheus implementation of metrics.SessionMetrics.
type sessionMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	operationSize     *prometheus.HistogramVec
	connected         prometheus.Gauge
}

// NewSessionMetrics creates a Prometheus-backed SessionMetrics.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewSessionMetrics() metrics.SessionMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopSessionMetrics()
	}
	return newSessionMetrics(metrics.GetRegistry())
}

func newSessionMetrics(reg prometheus.Registerer) *sessionMetrics {
	return &sessionMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsbridge_session_operations_total",
				Help: "Total number of session operations by operation, status, and error code",
			},
			[]string{"operation", "status", "error_code"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nfsbridge_session_operation_duration_milliseconds",
				Help: "Duration of session operations in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsbridge_session_bytes_transferred_total",
				Help: "Total payload bytes moved by read and write",
			},
			[]string{"direction"},
		),
		operationSize: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "nfsbridge_session_operation_size_bytes",
				Help: "Distribution of read/write payload sizes",
				Buckets: []float64{
					4096,     // 4KB
					65536,    // 64KB
					1048576,  // 1MB
					10485760, // 10MB
				},
			},
			[]string{"direction"},
		),
		connected: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "nfsbridge_session_connected",
				Help: "1 while the session holds a mount, 0 otherwise",
			},
		),
	}
}

func (m *sessionMetrics) RecordOperation(operation string, duration time.Duration, errorCode string) {
	status := "success"
	if errorCode != "" {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(operation, status, errorCode).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds() * 1000) // Convert to milliseconds
}

func (m *sessionMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
	m.operationSize.WithLabelValues(direction).Observe(float64(bytes))
}

func (m *sessionMetrics) SetConnected(connected bool) {
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}
