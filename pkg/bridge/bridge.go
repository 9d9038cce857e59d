// Package bridge exposes a Session through plain values and sentinels for
// hosts that cannot consume Go errors.
//
// No error or panic crosses this boundary. Failures become the sentinels
// documented on each method and are logged with their full cause.
package bridge

import (
	"context"
	"runtime/debug"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/pkg/backend"
	"github.com/netiface/nfsbridge/pkg/session"
)

// Connect result codes.
const (
	ConnectOK            int32 = 0
	ConnectFailed        int32 = -1
	ConnectMountRejected int32 = -2
	ConnectInitFailed    int32 = -3
)

// WriteFailed is returned by WriteFile on any failure.
const WriteFailed int32 = -1

// Bridge adapts one Session. It is safe for concurrent use because the
// Session serializes every call.
type Bridge struct {
	session *session.Session
	ctx     context.Context
}

// New returns a Bridge over s. Calls run under context.Background; transport
// deadlines come from the backend's own configuration.
func New(s *session.Session) *Bridge {
	return &Bridge{session: s, ctx: context.Background()}
}

// Session returns the wrapped session.
func (b *Bridge) Session() *session.Session {
	return b.session
}

// Connect returns ConnectOK, ConnectMountRejected, ConnectInitFailed or
// ConnectFailed.
func (b *Bridge) Connect(server, export string, uid, gid int32) (code int32) {
	defer recoverAs("Connect", func() { code = ConnectFailed })

	err := b.session.Connect(b.ctx, server, export, uid, gid)
	return connectCode(err)
}

func connectCode(err error) int32 {
	if err == nil {
		return ConnectOK
	}
	switch c, _ := backend.CodeOf(err); c {
	case backend.ErrMountRejected:
		return ConnectMountRejected
	case backend.ErrInit:
		return ConnectInitFailed
	default:
		return ConnectFailed
	}
}

// Disconnect returns 0, or -1 if the backend reported a failure while
// releasing the connection. The session is disconnected either way.
func (b *Bridge) Disconnect() (code int32) {
	defer recoverAs("Disconnect", func() { code = -1 })

	if err := b.session.Disconnect(b.ctx); err != nil {
		logger.Warn("Disconnect: %v", err)
		return -1
	}
	return 0
}

// ListDirectory returns entry names without "." and "..", or nil.
func (b *Bridge) ListDirectory(path string) (names []string) {
	defer recoverAs("ListDirectory", func() { names = nil })

	names, err := b.session.ListDirectory(b.ctx, path)
	if err != nil {
		logger.Warn("ListDirectory %s: %v", path, err)
		return nil
	}
	return names
}

// StatFile returns {size, mtime}, or nil.
func (b *Bridge) StatFile(path string) (stat []int64) {
	defer recoverAs("StatFile", func() { stat = nil })

	meta, err := b.session.StatFile(b.ctx, path)
	if err != nil {
		logger.Warn("StatFile %s: %v", path, err)
		return nil
	}
	return []int64{meta.Size, meta.ModifiedTime}
}

// ReadFile returns at most count bytes, possibly empty at end of file, or
// nil on failure.
func (b *Bridge) ReadFile(path string, offset int64, count int32) (data []byte) {
	defer recoverAs("ReadFile", func() { data = nil })

	data, err := b.session.ReadFile(b.ctx, path, offset, count)
	if err != nil {
		logger.Warn("ReadFile %s: %v", path, err)
		return nil
	}
	if data == nil {
		data = []byte{}
	}
	return data
}

// WriteFile returns the number of bytes written, or WriteFailed.
func (b *Bridge) WriteFile(path string, data []byte, offset int64) (n int32) {
	defer recoverAs("WriteFile", func() { n = WriteFailed })

	n, err := b.session.WriteFile(b.ctx, path, data, offset)
	if err != nil {
		logger.Warn("WriteFile %s: %v", path, err)
		return WriteFailed
	}
	return n
}

// IsDirectory reports whether path is a directory; false on any failure.
func (b *Bridge) IsDirectory(path string) (isDir bool) {
	defer recoverAs("IsDirectory", func() { isDir = false })

	return b.session.IsDirectory(b.ctx, path)
}

// recoverAs must be deferred directly. It logs a panic and runs fail to set
// the caller's sentinel.
func recoverAs(op string, fail func()) {
	if r := recover(); r != nil {
		logger.Error("Recovered panic in %s: %v\n%s", op, r, debug.Stack())
		fail()
	}
}
