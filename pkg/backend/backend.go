// Package backend defines the capability a session delegates file operations
// to, and the value types exchanged with it.
//
// Two implementations exist:
//
//   - mock: a fixed in-memory table, no I/O
//   - protocol: an NFSv3 mount through a protocol client
//
// A Backend instance serves at most one connection. Sessions create a fresh
// instance through a Factory for every Connect.
package backend

import (
	"context"
	"fmt"
)

// FileEntry is one directory entry.
type FileEntry struct {
	Name        string
	IsDirectory bool
	Size        int64
	// ModifiedTime is seconds since the UNIX epoch.
	ModifiedTime int64
}

// Metadata is the result of Stat.
type Metadata struct {
	Size int64
	// ModifiedTime is seconds since the UNIX epoch.
	ModifiedTime int64
	IsDirectory  bool
	Mode         uint32
}

// Backend performs file operations against one remote export.
//
// Callers are responsible for serializing calls and for checking that the
// backend is connected before calling anything but Connect and Disconnect.
type Backend interface {
	// Connect sets the uid/gid credentials and then mounts export on server.
	Connect(ctx context.Context, server, export string, uid, gid int32) error

	// Disconnect unmounts and releases resources. Safe to call repeatedly.
	Disconnect(ctx context.Context) error

	// ListDirectory returns the entries of path in backend order. Entries
	// may include "." and "..".
	ListDirectory(ctx context.Context, path string) ([]FileEntry, error)

	// Stat returns metadata for path.
	Stat(ctx context.Context, path string) (Metadata, error)

	// ReadAt reads up to count bytes of path starting at offset. Fewer bytes
	// are returned at end of file.
	ReadAt(ctx context.Context, path string, offset int64, count int32) ([]byte, error)

	// WriteAt writes data to path at offset, creating the file if needed.
	// Existing content beyond the written range is kept.
	WriteAt(ctx context.Context, path string, data []byte, offset int64) (int32, error)

	// IsDirectory reports whether path is a directory.
	IsDirectory(ctx context.Context, path string) (bool, error)
}

// Factory creates an unconnected Backend. A non-nil error is an
// initialization failure.
type Factory func() (Backend, error)

// Type names a backend implementation in configuration.
type Type string

const (
	TypeMock Type = "mock"
	TypeNFS  Type = "nfs"
)

// ParseType validates a backend type name.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeMock, TypeNFS:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown backend type %q (expected %q or %q)", s, TypeMock, TypeNFS)
	}
}
