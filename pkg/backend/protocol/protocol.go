// Package protocol implements backend.Backend on top of a protocol client.
//
// Every read and write opens its own file handle, positions it, transfers
// and closes it before returning, on every path including failures. Handles
// are never cached across calls.
package protocol

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/netiface/nfsbridge/internal/logger"
	"github.com/netiface/nfsbridge/pkg/backend"
	"github.com/netiface/nfsbridge/pkg/nfsclient"
)

// DefaultWriteMode is applied to every file opened for writing.
const DefaultWriteMode = 0644

// Backend is a backend.Backend driving one protocol Client.
type Backend struct {
	client    Client
	connected bool
}

// New returns a backend using client. The client must be unmounted.
func New(client Client) *Backend {
	return &Backend{client: client}
}

// Factory returns a backend.Factory that builds an nfsclient-backed Backend
// per connection.
func Factory(opts nfsclient.Options) backend.Factory {
	return func() (backend.Backend, error) {
		if opts.MaxReadSize > 0 && opts.MaxReadSize < 512 {
			return nil, errors.New("nfs max read size must be at least 512 bytes")
		}
		if opts.MaxWriteSize > 0 && opts.MaxWriteSize < 512 {
			return nil, errors.New("nfs max write size must be at least 512 bytes")
		}
		return New(NewNFSClient(opts)), nil
	}
}

// Connect sets credentials and mounts. On failure the client is released.
func (b *Backend) Connect(ctx context.Context, server, export string, uid, gid int32) error {
	b.client.SetUID(uint32(uid))
	b.client.SetGID(uint32(gid))

	if err := b.client.Mount(ctx, server, export); err != nil {
		_ = b.client.Close()
		code := backend.ErrConnect
		if nfsclient.IsMountRejected(err) {
			code = backend.ErrMountRejected
		}
		return backend.NewError(code, "connect", server+":"+export, err)
	}

	b.connected = true
	return nil
}

// Disconnect unmounts and closes the client. Repeated calls are no-ops.
func (b *Backend) Disconnect(ctx context.Context) error {
	if !b.connected {
		return nil
	}
	b.connected = false

	if err := b.client.Unmount(ctx); err != nil {
		logger.Warn("Unmount failed: %v", err)
	}
	if err := b.client.Close(); err != nil {
		return backend.NewError(backend.ErrProtocol, "disconnect", "", err)
	}
	return nil
}

// ListDirectory returns entry names in server order, including "." and "..".
// Only Name is populated; READDIR carries no attributes.
func (b *Backend) ListDirectory(ctx context.Context, path string) ([]backend.FileEntry, error) {
	dir, err := b.client.OpenDir(ctx, path)
	if err != nil {
		return nil, backend.NewError(backend.ErrPath, "opendir", path, err)
	}
	defer closeHandle(dir, "dir", path)

	var entries []backend.FileEntry
	for {
		entry, err := dir.Next(ctx)
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, backend.NewError(backend.ErrProtocol, "readdir", path, err)
		}
		entries = append(entries, backend.FileEntry{Name: entry.Name})
	}
}

// Stat resolves the full path. A missing path is an ErrPath error.
func (b *Backend) Stat(ctx context.Context, path string) (backend.Metadata, error) {
	attr, err := b.client.Stat(ctx, path)
	if err != nil {
		return backend.Metadata{}, backend.NewError(backend.ErrPath, "stat", path, err)
	}
	return backend.Metadata{
		Size:         int64(attr.Size),
		ModifiedTime: attr.ModTime.Unix(),
		IsDirectory:  attr.IsDir(),
		Mode:         attr.Mode,
	}, nil
}

// ReadAt opens path read-only, seeks when offset > 0, reads up to count
// bytes and closes the handle.
func (b *Backend) ReadAt(ctx context.Context, path string, offset int64, count int32) ([]byte, error) {
	f, err := b.client.Open(ctx, path, os.O_RDONLY)
	if err != nil {
		return nil, backend.NewError(backend.ErrPath, "open", path, err)
	}
	defer closeHandle(f, "file", path)

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, backend.NewError(backend.ErrIO, "seek", path, err)
		}
	}

	data, err := f.Read(ctx, int(count))
	if err != nil {
		return nil, backend.NewError(backend.ErrIO, "read", path, err)
	}
	return data, nil
}

// WriteAt opens path for writing, creating it if absent and never
// truncating. DefaultWriteMode is applied after every successful open, to new
// and existing files alike. The handle seeks when offset != 0, writes and is
// closed.
func (b *Backend) WriteAt(ctx context.Context, path string, data []byte, offset int64) (int32, error) {
	f, err := b.client.Open(ctx, path, os.O_WRONLY|os.O_CREATE)
	if err != nil {
		return 0, backend.NewError(backend.ErrPath, "open", path, err)
	}
	defer closeHandle(f, "file", path)

	if err := b.client.Chmod(ctx, path, DefaultWriteMode); err != nil {
		logger.Warn("chmod %o %s failed: %v", DefaultWriteMode, path, err)
	}

	if offset != 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return 0, backend.NewError(backend.ErrIO, "seek", path, err)
		}
	}

	n, err := f.Write(ctx, data)
	if err != nil {
		return int32(n), backend.NewError(backend.ErrIO, "write", path, err)
	}
	return int32(n), nil
}

// IsDirectory stats path.
func (b *Backend) IsDirectory(ctx context.Context, path string) (bool, error) {
	attr, err := b.client.Stat(ctx, path)
	if err != nil {
		return false, backend.NewError(backend.ErrPath, "stat", path, err)
	}
	return attr.IsDir(), nil
}

func closeHandle(c io.Closer, kind, path string) {
	if err := c.Close(); err != nil {
		logger.Warn("Closing %s handle for %s: %v", kind, path, err)
	}
}
