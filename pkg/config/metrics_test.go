package config

import "testing"

func TestInitializeMetrics_Disabled(t *testing.T) {
	result := InitializeMetrics(GetDefaultConfig())

	if result.Server != nil {
		t.Error("Expected no metrics server when disabled")
	}
	if result.SessionMetrics == nil {
		t.Fatal("Expected noop session metrics, got nil")
	}

	// Must be safe to call without a registry.
	result.SessionMetrics.SetConnected(true)
	result.SessionMetrics.RecordBytesTransferred("read", 10)
}
