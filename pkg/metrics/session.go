package metrics

import "time"

// SessionMetrics records facade activity.
//
// Implementations must be safe for concurrent use. A nil SessionMetrics is
// never passed around; session.New substitutes NewNoopSessionMetrics.
type SessionMetrics interface {
	// RecordOperation records a completed session operation.
	//
	// Parameters:
	//   - operation: operation name (e.g., "connect", "read", "write")
	//   - duration: time spent inside the session lock
	//   - errorCode: backend error code, empty on success
	RecordOperation(operation string, duration time.Duration, errorCode string)

	// RecordBytesTransferred records payload bytes moved by read or write.
	//
	// Parameters:
	//   - direction: "read" or "write"
	//   - bytes: number of bytes transferred
	RecordBytesTransferred(direction string, bytes int64)

	// SetConnected reports whether the session currently holds a mount.
	SetConnected(connected bool)
}

// NewNoopSessionMetrics returns a SessionMetrics that discards everything.
func NewNoopSessionMetrics() SessionMetrics {
	return noopSessionMetrics{}
}

type noopSessionMetrics struct{}

func (noopSessionMetrics) RecordOperation(string, time.Duration, string) {}
func (noopSessionMetrics) RecordBytesTransferred(string, int64)          {}
func (noopSessionMetrics) SetConnected(bool)                             {}
