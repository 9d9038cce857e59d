package nfsclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/netiface/nfsbridge/internal/protocol/nfs"
	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
)

// Attr is the subset of fattr3 callers need.
type Attr struct {
	Type    uint32
	Mode    uint32
	UID     uint32
	GID     uint32
	Size    uint64
	Fileid  uint64
	ModTime time.Time
}

func newAttr(a *types.NFSFileAttr) *Attr {
	return &Attr{
		Type:    a.Type,
		Mode:    a.Mode,
		UID:     a.UID,
		GID:     a.GID,
		Size:    a.Size,
		Fileid:  a.Fileid,
		ModTime: a.Mtime.Time(),
	}
}

// IsDir reports whether the object is a directory.
func (a *Attr) IsDir() bool {
	return a.Type == types.NF3DIR
}

// IsRegular reports whether the object is a regular file.
func (a *Attr) IsRegular() bool {
	return a.Type == types.NF3REG
}

// splitPath breaks an export-relative path into LOOKUP components.
// Empty and "." components are dropped; ".." is passed to the server.
func splitPath(path string) []string {
	var components []string
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." {
			continue
		}
		components = append(components, part)
	}
	return components
}

// resolveLocked walks path from the export root and returns the handle and
// attributes of the final component.
func (c *Client) resolveLocked(ctx context.Context, path string) ([]byte, *types.NFSFileAttr, error) {
	handle := c.root
	var attr *types.NFSFileAttr

	for _, name := range splitPath(path) {
		resp, err := nfs.Lookup(ctx, c.nfs, handle, name)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		handle, attr = resp.Handle, resp.Attr
	}

	if attr == nil {
		var err error
		if attr, err = nfs.GetAttr(ctx, c.nfs, handle); err != nil {
			return nil, nil, fmt.Errorf("resolve %s: %w", path, err)
		}
	}
	return handle, attr, nil
}

// resolveParentLocked resolves the directory containing path and returns it
// with the final component name.
func (c *Client) resolveParentLocked(ctx context.Context, path string) ([]byte, string, error) {
	components := splitPath(path)
	if len(components) == 0 {
		return nil, "", fmt.Errorf("resolve %s: path names the export root", path)
	}

	name := components[len(components)-1]
	dir := c.root
	for _, part := range components[:len(components)-1] {
		resp, err := nfs.Lookup(ctx, c.nfs, dir, part)
		if err != nil {
			return nil, "", fmt.Errorf("resolve %s: %w", path, err)
		}
		dir = resp.Handle
	}
	return dir, name, nil
}
