package prometheus

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.Counter.GetValue()
	}
	return out.Gauge.GetValue()
}

func TestSessionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newSessionMetrics(reg)

	m.RecordOperation("read", 5*time.Millisecond, "")
	m.RecordOperation("read", time.Millisecond, "path error")
	m.RecordOperation("write", time.Millisecond, "")
	m.RecordBytesTransferred("read", 100)
	m.RecordBytesTransferred("read", 28)
	m.SetConnected(true)

	assert.Equal(t, 1.0, value(t, m.operationsTotal.WithLabelValues("read", "success", "")))
	assert.Equal(t, 1.0, value(t, m.operationsTotal.WithLabelValues("read", "error", "path error")))
	assert.Equal(t, 128.0, value(t, m.bytesTransferred.WithLabelValues("read")))
	assert.Equal(t, 1.0, value(t, m.connected))

	m.SetConnected(false)
	assert.Equal(t, 0.0, value(t, m.connected))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}

func TestNewSessionMetricsDisabled(t *testing.T) {
	// The global registry is never initialized in this test binary.
	m := NewSessionMetrics()
	assert.NotPanics(t, func() {
		m.RecordOperation("connect", time.Second, "")
		m.SetConnected(true)
	})
}
