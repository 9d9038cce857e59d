package backend

import (
	"errors"
	"fmt"
)

// ErrorCode is the category of a backend failure.
//
// Callers translate codes to their own result conventions (see pkg/bridge).
type ErrorCode int

const (
	// ErrNotConnected means the operation was attempted while disconnected.
	// It is a caller error, not a protocol error.
	ErrNotConnected ErrorCode = iota

	// ErrConnect is a generic connection failure (dial, RPC, credentials).
	ErrConnect

	// ErrMountRejected means the server refused to mount the export.
	ErrMountRejected

	// ErrInit means the backend could not be created.
	ErrInit

	// ErrPath covers resolve, stat and open failures, including "not found".
	ErrPath

	// ErrIO covers seek, read and write failures after a successful open.
	ErrIO

	// ErrProtocol is any other failure reported by the protocol client.
	ErrProtocol
)

// String returns the code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotConnected:
		return "not connected"
	case ErrConnect:
		return "connect error"
	case ErrMountRejected:
		return "mount rejected"
	case ErrInit:
		return "initialization error"
	case ErrPath:
		return "path error"
	case ErrIO:
		return "i/o error"
	case ErrProtocol:
		return "protocol error"
	default:
		return fmt.Sprintf("error code %d", int(c))
	}
}

// Error is a typed backend failure.
//
// The wrapped error carries the protocol client's diagnostic text verbatim.
type Error struct {
	// Code is the error category.
	Code ErrorCode

	// Op is the operation that failed (e.g. "read", "stat").
	Op string

	// Path is the remote path involved, if any.
	Path string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error.
func NewError(code ErrorCode, op, path string, err error) *Error {
	return &Error{Code: code, Op: op, Path: path, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var backendErr *Error
	if errors.As(err, &backendErr) {
		return backendErr.Code, true
	}
	return 0, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
