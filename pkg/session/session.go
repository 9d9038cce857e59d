// Package session holds the single active connection to a file-sharing
// server and serializes every operation against it.
//
// A Session owns at most one backend.Backend at a time. Connect always builds
// a fresh backend from the session's factory, tearing down any previous one
// first, so credentials and handles never leak between connections. Every
// operation holds the session lock for its full duration.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/pkg/backend"
	"github.com/netiface/nfsbridge/pkg/metrics"
)

// ConnectionInfo describes the active connection.
type ConnectionInfo struct {
	Server string
	Export string
	UID    int32
	GID    int32
}

// FileInfo is a directory entry enriched with its stat result.
type FileInfo struct {
	Name         string
	Path         string
	IsDirectory  bool
	Size         int64
	ModifiedTime int64
}

// Session is the stateful facade. The zero value is not usable; call New.
type Session struct {
	mu      sync.Mutex
	factory backend.Factory
	metrics metrics.SessionMetrics

	// Guarded by mu. backend and conn are both nil while disconnected.
	backend backend.Backend
	conn    *ConnectionInfo
	id      string
}

// New returns a disconnected session that builds backends with factory.
// A nil m disables metrics.
func New(factory backend.Factory, m metrics.SessionMetrics) *Session {
	if m == nil {
		m = metrics.NewNoopSessionMetrics()
	}
	return &Session{factory: factory, metrics: m}
}

// Connect establishes a connection, replacing any existing one. On failure
// the session is left disconnected.
func (s *Session) Connect(ctx context.Context, server, export string, uid, gid int32) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.record("connect", time.Now(), &err)

	if s.backend != nil {
		logger.Debug("[%s] Replacing connection to %s:%s", s.id, s.conn.Server, s.conn.Export)
		s.teardownLocked(ctx)
	}

	b, err := s.factory()
	if err != nil {
		logger.Error("Backend initialization failed: %v", err)
		return backend.NewError(backend.ErrInit, "connect", server+":"+export, err)
	}

	if err := b.Connect(ctx, server, export, uid, gid); err != nil {
		logger.Warn("Connect to %s:%s failed: %v", server, export, err)
		_ = b.Disconnect(ctx)
		if _, ok := backend.CodeOf(err); ok {
			return err
		}
		return backend.NewError(backend.ErrConnect, "connect", server+":"+export, err)
	}

	s.backend = b
	s.conn = &ConnectionInfo{Server: server, Export: export, UID: uid, GID: gid}
	s.id = uuid.NewString()
	s.metrics.SetConnected(true)

	logger.Info("[%s] Connected to %s:%s (uid=%d gid=%d)", s.id, server, export, uid, gid)
	return nil
}

// Disconnect releases the active connection. It is a no-op when already
// disconnected. State is cleared even if the backend reports an error.
func (s *Session) Disconnect(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend == nil {
		return nil
	}
	defer s.record("disconnect", time.Now(), &err)

	logger.Info("[%s] Disconnecting from %s:%s", s.id, s.conn.Server, s.conn.Export)
	return s.teardownLocked(ctx)
}

func (s *Session) teardownLocked(ctx context.Context) error {
	err := s.backend.Disconnect(ctx)
	if err != nil {
		logger.Warn("[%s] Disconnect: %v", s.id, err)
	}

	s.backend = nil
	s.conn = nil
	s.id = ""
	s.metrics.SetConnected(false)
	return err
}

// Connected reports whether a connection is active.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend != nil
}

// ServerInfo returns the server and export of the active connection.
func (s *Session) ServerInfo() (server, export string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return "", "", false
	}
	return s.conn.Server, s.conn.Export, true
}

// Info returns a copy of the active connection parameters.
func (s *Session) Info() (ConnectionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ConnectionInfo{}, false
	}
	return *s.conn, true
}

// ID returns the identifier of the active connection, or "" when
// disconnected. A new ID is minted on every successful Connect.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// ListDirectory returns entry names in backend order with "." and ".."
// removed.
func (s *Session) ListDirectory(ctx context.Context, dir string) (names []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.record("list", time.Now(), &err)

	b, err := s.requireLocked("list", dir)
	if err != nil {
		return nil, err
	}

	logger.Debug("[%s] ListDirectory %s", s.id, dir)
	entries, err := b.ListDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}

	names = make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}
		names = append(names, entry.Name)
	}
	return names, nil
}

// ListDetailed lists dir and stats every entry. Entries whose stat fails are
// skipped. Order is the backend's.
func (s *Session) ListDetailed(ctx context.Context, dir string) (infos []FileInfo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.record("list_detailed", time.Now(), &err)

	b, err := s.requireLocked("list", dir)
	if err != nil {
		return nil, err
	}

	entries, err := b.ListDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.Name == "." || entry.Name == ".." {
			continue
		}

		full := JoinPath(dir, entry.Name)
		meta, err := b.Stat(ctx, full)
		if err != nil {
			logger.Debug("[%s] Skipping %s: %v", s.id, full, err)
			continue
		}

		infos = append(infos, FileInfo{
			Name:         entry.Name,
			Path:         full,
			IsDirectory:  meta.IsDirectory,
			Size:         meta.Size,
			ModifiedTime: meta.ModifiedTime,
		})
	}
	return infos, nil
}

// StatFile returns size and modification time of p.
func (s *Session) StatFile(ctx context.Context, p string) (meta backend.Metadata, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.record("stat", time.Now(), &err)

	b, err := s.requireLocked("stat", p)
	if err != nil {
		return backend.Metadata{}, err
	}
	return b.Stat(ctx, p)
}

// ReadFile reads up to count bytes of p starting at offset. A read at or
// past end of file returns an empty slice and no error.
func (s *Session) ReadFile(ctx context.Context, p string, offset int64, count int32) (data []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.record("read", time.Now(), &err)

	b, err := s.requireLocked("read", p)
	if err != nil {
		return nil, err
	}

	logger.Debug("[%s] ReadFile %s offset=%d count=%d", s.id, p, offset, count)
	data, err = b.ReadAt(ctx, p, offset, count)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordBytesTransferred("read", int64(len(data)))
	return data, nil
}

// WriteFile writes data to p at offset, creating p if needed. Existing
// content outside the written range is preserved.
func (s *Session) WriteFile(ctx context.Context, p string, data []byte, offset int64) (n int32, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.record("write", time.Now(), &err)

	b, err := s.requireLocked("write", p)
	if err != nil {
		return 0, err
	}

	logger.Debug("[%s] WriteFile %s offset=%d len=%d", s.id, p, offset, len(data))
	n, err = b.WriteAt(ctx, p, data, offset)
	if n > 0 {
		s.metrics.RecordBytesTransferred("write", int64(n))
	}
	return n, err
}

// IsDirectory reports whether p is a directory. Any failure, including
// being disconnected, yields false.
func (s *Session) IsDirectory(ctx context.Context, p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.requireLocked("isdir", p)
	if err != nil {
		return false
	}
	isDir, err := b.IsDirectory(ctx, p)
	if err != nil {
		logger.Debug("[%s] IsDirectory %s: %v", s.id, p, err)
		return false
	}
	return isDir
}

func (s *Session) requireLocked(op, p string) (backend.Backend, error) {
	if s.backend == nil {
		return nil, backend.NewError(backend.ErrNotConnected, op, p, nil)
	}
	return s.backend, nil
}

func (s *Session) record(op string, start time.Time, err *error) {
	code := ""
	if *err != nil {
		code = "unknown"
		if c, ok := backend.CodeOf(*err); ok {
			code = c.String()
		}
	}
	s.metrics.RecordOperation(op, time.Since(start), code)
}

// JoinPath appends name to dir with exactly one separator.
func JoinPath(dir, name string) string {
	if dir == "" {
		return "/" + name
	}
	if dir[len(dir)-1] == '/' {
		return dir + name
	}
	return dir + "/" + name
}

