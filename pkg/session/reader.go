package session

import (
	"context"
	"errors"
	"io"
	"math"
)

// DefaultChunkSize is the largest single ReadFile a Reader issues.
const DefaultChunkSize = 64 * 1024

var errNegativeOffset = errors.New("session: negative offset")

// Reader streams a remote file through ReadFile in bounded chunks. It
// implements io.Reader, io.ReaderAt and io.Seeker.
//
// Read and Seek share a cursor and are not safe for concurrent use. ReadAt
// does not touch the cursor and may be called concurrently.
type Reader struct {
	session *Session
	ctx     context.Context
	path    string
	size    int64
	chunk   int
	offset  int64
}

// NewReader stats p and returns a Reader positioned at its start. The size
// reported by the stat bounds io.SeekEnd only; reads continue until the
// server returns no data.
func (s *Session) NewReader(ctx context.Context, p string) (*Reader, error) {
	meta, err := s.StatFile(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Reader{
		session: s,
		ctx:     ctx,
		path:    p,
		size:    meta.Size,
		chunk:   DefaultChunkSize,
	}, nil
}

// SetChunkSize overrides DefaultChunkSize. Non-positive values are ignored
// and values above math.MaxInt32 are clamped to it.
func (r *Reader) SetChunkSize(n int) {
	if n > 0 {
		r.chunk = min(n, math.MaxInt32)
	}
}

// Size returns the file size observed when the Reader was created.
func (r *Reader) Size() int64 {
	return r.size
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.readChunk(p, r.offset)
	r.offset += int64(n)
	return n, err
}

// ReadAt implements io.ReaderAt. It returns io.EOF when fewer than len(p)
// bytes are available.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errNegativeOffset
	}

	total := 0
	for total < len(p) {
		n, err := r.readChunk(p[total:], off+int64(total))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Seek implements io.Seeker.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.offset + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return 0, errors.New("session: invalid whence")
	}
	if abs < 0 {
		return 0, errNegativeOffset
	}
	r.offset = abs
	return abs, nil
}

func (r *Reader) readChunk(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	want := min(len(p), r.chunk, math.MaxInt32)

	data, err := r.session.ReadFile(r.ctx, r.path, off, int32(want))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, io.EOF
	}
	return copy(p, data), nil
}
