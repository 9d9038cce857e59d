// Package mock provides an offline Backend served from a fixed table.
//
// The table has no directory structure: every listing returns the whole
// table, and lookups match the trailing path segment against entry names.
// Nothing is ever read from or written to the network.
package mock

import (
	"context"
	"path"
	"sync"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/pkg/backend"
)

// SampleContent is what ReadAt serves for any path.
const SampleContent = "This is sample file content from the NFS server."

// sampleTime is the modification time of every table entry.
const sampleTime = 1638360000

// DefaultEntries is the built-in table, in listing order.
func DefaultEntries() []backend.FileEntry {
	return []backend.FileEntry{
		{Name: "Documents", IsDirectory: true, Size: 0, ModifiedTime: sampleTime},
		{Name: "Pictures", IsDirectory: true, Size: 0, ModifiedTime: sampleTime},
		{Name: "Videos", IsDirectory: true, Size: 0, ModifiedTime: sampleTime},
		{Name: "Music", IsDirectory: true, Size: 0, ModifiedTime: sampleTime},
		{Name: "Downloads", IsDirectory: true, Size: 0, ModifiedTime: sampleTime},
		{Name: "test.txt", IsDirectory: false, Size: 1024, ModifiedTime: sampleTime},
		{Name: "readme.md", IsDirectory: false, Size: 2048, ModifiedTime: sampleTime},
		{Name: "data.json", IsDirectory: false, Size: 4096, ModifiedTime: sampleTime},
	}
}

// Backend is the table-driven backend.
type Backend struct {
	mu      sync.RWMutex
	entries []backend.FileEntry
	content []byte
}

// New returns a mock backend serving DefaultEntries.
func New() *Backend {
	return NewWithEntries(DefaultEntries())
}

// NewWithEntries returns a mock backend serving entries. Duplicate names are
// not supported; the first match wins.
func NewWithEntries(entries []backend.FileEntry) *Backend {
	return &Backend{
		entries: append([]backend.FileEntry(nil), entries...),
		content: []byte(SampleContent),
	}
}

// Factory returns a backend.Factory producing mock backends.
func Factory() backend.Factory {
	return func() (backend.Backend, error) {
		return New(), nil
	}
}

// Connect always succeeds.
func (b *Backend) Connect(_ context.Context, server, export string, uid, gid int32) error {
	logger.Debug("Mock connect to %s:%s (uid=%d gid=%d)", server, export, uid, gid)
	return nil
}

// Disconnect always succeeds.
func (b *Backend) Disconnect(_ context.Context) error {
	return nil
}

// ListDirectory returns the whole table regardless of path.
func (b *Backend) ListDirectory(_ context.Context, _ string) ([]backend.FileEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]backend.FileEntry(nil), b.entries...), nil
}

// Stat matches the trailing segment of p. A miss returns zero metadata
// rather than an error.
func (b *Backend) Stat(_ context.Context, p string) (backend.Metadata, error) {
	entry, ok := b.find(p)
	if !ok {
		return backend.Metadata{}, nil
	}

	meta := backend.Metadata{
		Size:         entry.Size,
		ModifiedTime: entry.ModifiedTime,
		IsDirectory:  entry.IsDirectory,
		Mode:         0644,
	}
	if entry.IsDirectory {
		meta.Mode = 0755
	}
	return meta, nil
}

// ReadAt serves SampleContent for every path, sliced by offset and count.
func (b *Backend) ReadAt(_ context.Context, _ string, offset int64, count int32) ([]byte, error) {
	if offset < 0 || count <= 0 || offset >= int64(len(b.content)) {
		return []byte{}, nil
	}
	end := min(offset+int64(count), int64(len(b.content)))
	return append([]byte(nil), b.content[offset:end]...), nil
}

// WriteAt discards data and reports it as fully written.
func (b *Backend) WriteAt(_ context.Context, p string, data []byte, offset int64) (int32, error) {
	logger.Debug("Mock write %s: %d bytes at %d discarded", p, len(data), offset)
	return int32(len(data)), nil
}

// IsDirectory matches the trailing segment of p. A miss is false.
func (b *Backend) IsDirectory(_ context.Context, p string) (bool, error) {
	entry, ok := b.find(p)
	return ok && entry.IsDirectory, nil
}

func (b *Backend) find(p string) (backend.FileEntry, bool) {
	name := trailingSegment(p)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, entry := range b.entries {
		if entry.Name == name {
			return entry, true
		}
	}
	return backend.FileEntry{}, false
}

// trailingSegment returns the text after the last '/'. "/docs/" yields "".
func trailingSegment(p string) string {
	if p == "" {
		return ""
	}
	if p[len(p)-1] == '/' {
		return ""
	}
	return path.Base(p)
}
