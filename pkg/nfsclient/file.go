package nfsclient

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/internal/protocol/nfs"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
)

// File is an open regular file with its own position.
//
// NFSv3 is stateless, so "open" only resolves the handle and Close only
// invalidates the value; no server state is held between calls.
type File struct {
	client *Client
	path   string
	handle []byte
	flags  int
	size   int64
	pos    int64
	closed bool
}

// Open resolves path and returns a File positioned at 0.
//
// Supported flags are the os.O_* access modes plus:
//   - os.O_CREATE: CREATE UNCHECKED; an existing file is opened as is and
//     its contents are kept
//   - os.O_EXCL (with O_CREATE): CREATE GUARDED, failing if path exists
//   - os.O_TRUNC: truncate to zero length (requires write access)
//   - os.O_APPEND: start positioned at the current end of file
func (c *Client) Open(ctx context.Context, path string, flags int) (*File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nfs == nil {
		return nil, ErrNotMounted
	}

	var (
		handle []byte
		attr   *types.NFSFileAttr
		err    error
	)
	if flags&os.O_CREATE != 0 {
		handle, attr, err = c.createLocked(ctx, path, flags&os.O_EXCL != 0)
	} else {
		handle, attr, err = c.resolveLocked(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	if attr.Type != types.NF3REG {
		return nil, fmt.Errorf("open %s: %w", path, ErrNotFile)
	}

	f := &File{client: c, path: path, handle: handle, flags: flags, size: int64(attr.Size)}

	if flags&os.O_TRUNC != 0 && f.writable() {
		zero := uint64(0)
		if _, err := nfs.SetAttr(ctx, c.nfs, handle, types.SetAttrs{Size: &zero}); err != nil {
			return nil, fmt.Errorf("truncate %s: %w", path, err)
		}
		f.size = 0
	}
	if flags&os.O_APPEND != 0 {
		f.pos = f.size
	}

	logger.Debug("Opened %s (flags=%#x size=%d)", path, flags, f.size)
	return f, nil
}

func (c *Client) createLocked(ctx context.Context, path string, exclusive bool) ([]byte, *types.NFSFileAttr, error) {
	dir, name, err := c.resolveParentLocked(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	mode := uint32(types.CreateUnchecked)
	if exclusive {
		mode = types.CreateGuarded
	}

	resp, err := nfs.Create(ctx, c.nfs, &nfs.CreateRequest{DirHandle: dir, Name: name, Mode: mode})
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}

	handle, attr := resp.Handle, resp.Attr
	if handle == nil {
		// Servers may omit the handle; look it up.
		lookup, err := nfs.Lookup(ctx, c.nfs, dir, name)
		if err != nil {
			return nil, nil, fmt.Errorf("create %s: %w", path, err)
		}
		handle, attr = lookup.Handle, lookup.Attr
	}
	if attr == nil {
		if attr, err = nfs.GetAttr(ctx, c.nfs, handle); err != nil {
			return nil, nil, fmt.Errorf("create %s: %w", path, err)
		}
	}
	return handle, attr, nil
}

func (f *File) readable() bool {
	return f.flags&os.O_WRONLY == 0
}

func (f *File) writable() bool {
	return f.flags&(os.O_WRONLY|os.O_RDWR) != 0
}

// Path returns the path the file was opened with.
func (f *File) Path() string {
	return f.path
}

// Size returns the file size observed at open time, grown by writes made
// through this File.
func (f *File) Size() int64 {
	return f.size
}

// Seek sets the position for the next Read or Write. io.SeekEnd is relative
// to Size.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = f.size
	default:
		return 0, ErrInvalidSeek
	}

	pos := base + offset
	if pos < 0 {
		return 0, ErrInvalidSeek
	}
	f.pos = pos
	return pos, nil
}

// Read reads up to count bytes from the current position, issuing as many
// READ calls as needed. Fewer bytes (possibly none) are returned at end of
// file; that is not an error.
func (f *File) Read(ctx context.Context, count int) ([]byte, error) {
	if f.closed {
		return nil, ErrClosed
	}
	if !f.readable() {
		return nil, fmt.Errorf("read %s: file not open for reading", f.path)
	}
	if count <= 0 {
		return []byte{}, nil
	}

	// count is caller-supplied; grow past one READ only as data arrives.
	out := make([]byte, 0, min(count, int(f.client.opts.MaxReadSize)))
	for len(out) < count {
		chunk := uint32(min(count-len(out), int(f.client.opts.MaxReadSize)))

		var resp *nfs.ReadResponse
		err := f.client.call(func(conn conn) error {
			var err error
			resp, err = nfs.Read(ctx, conn, f.handle, uint64(f.pos), chunk)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.path, err)
		}

		out = append(out, resp.Data...)
		f.pos += int64(len(resp.Data))

		if resp.Eof || len(resp.Data) == 0 {
			break
		}
	}
	return out, nil
}

// Write writes data at the current position with FILE_SYNC stability and
// advances the position. Short server writes are retried for the remainder.
func (f *File) Write(ctx context.Context, data []byte) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if !f.writable() {
		return 0, fmt.Errorf("write %s: file not open for writing", f.path)
	}

	written := 0
	for written < len(data) {
		end := min(len(data), written+int(f.client.opts.MaxWriteSize))

		var resp *nfs.WriteResponse
		err := f.client.call(func(conn conn) error {
			var err error
			resp, err = nfs.Write(ctx, conn, f.handle, uint64(f.pos), data[written:end])
			return err
		})
		if err != nil {
			return written, fmt.Errorf("write %s: %w", f.path, err)
		}
		if resp.Count == 0 {
			return written, fmt.Errorf("write %s: %w", f.path, io.ErrShortWrite)
		}

		written += int(resp.Count)
		f.pos += int64(resp.Count)
		if f.pos > f.size {
			f.size = f.pos
		}
	}
	return written, nil
}

// Close invalidates the File. Closing twice returns ErrClosed.
func (f *File) Close() error {
	if f.closed {
		return ErrClosed
	}
	f.closed = true
	return nil
}
