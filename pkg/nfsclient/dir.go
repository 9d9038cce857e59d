package nfsclient

import (
	"context"
	"fmt"
	"io"

	"github.com/netiface/nfsbridge/internal/protocol/nfs"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
)

// DirEntry is one name returned by READDIR. The server includes "." and "..".
type DirEntry struct {
	Name   string
	Fileid uint64
}

// Dir iterates a directory in server order, fetching READDIR pages on demand.
type Dir struct {
	client *Client
	path   string
	handle []byte

	cookie  uint64
	verf    [types.CookieVerfSize]byte
	pending []types.DirEntry
	eof     bool
	closed  bool
}

// OpenDir resolves path and returns an iterator over its entries.
func (c *Client) OpenDir(ctx context.Context, path string) (*Dir, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nfs == nil {
		return nil, ErrNotMounted
	}

	handle, attr, err := c.resolveLocked(ctx, path)
	if err != nil {
		return nil, err
	}
	if !attr.IsDir() {
		return nil, fmt.Errorf("opendir %s: %w", path, &StatusError{Procedure: "READDIR", Status: types.NFS3ErrNotDir})
	}

	return &Dir{client: c, path: path, handle: handle}, nil
}

// Next returns the next entry, or io.EOF after the last one.
func (d *Dir) Next(ctx context.Context) (*DirEntry, error) {
	if d.closed {
		return nil, ErrClosed
	}

	for len(d.pending) == 0 {
		if d.eof {
			return nil, io.EOF
		}
		if err := d.fetch(ctx); err != nil {
			return nil, err
		}
	}

	entry := d.pending[0]
	d.pending = d.pending[1:]
	return &DirEntry{Name: entry.Name, Fileid: entry.Fileid}, nil
}

func (d *Dir) fetch(ctx context.Context) error {
	req := &nfs.ReadDirRequest{
		DirHandle:  d.handle,
		Cookie:     d.cookie,
		CookieVerf: d.verf,
		Count:      d.client.opts.ReadDirCount,
	}

	var resp *nfs.ReadDirResponse
	err := d.client.call(func(conn conn) error {
		var err error
		resp, err = nfs.ReadDir(ctx, conn, req)
		return err
	})
	if err != nil {
		return fmt.Errorf("readdir %s: %w", d.path, err)
	}

	d.verf = resp.CookieVerf
	d.eof = resp.Eof
	d.pending = resp.Entries
	if n := len(resp.Entries); n > 0 {
		d.cookie = resp.Entries[n-1].Cookie
	} else if !resp.Eof {
		// An empty page that is not the last would never advance.
		return fmt.Errorf("readdir %s: server returned an empty page without eof", d.path)
	}
	return nil
}

// ReadAll drains the iterator.
func (d *Dir) ReadAll(ctx context.Context) ([]DirEntry, error) {
	var entries []DirEntry
	for {
		entry, err := d.Next(ctx)
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
}

// Close invalidates the iterator. Closing twice returns ErrClosed.
func (d *Dir) Close() error {
	if d.closed {
		return ErrClosed
	}
	d.closed = true
	d.pending = nil
	return nil
}
