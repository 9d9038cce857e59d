package protocol

import (
	"context"

	"github.com/netiface/nfsbridge/pkg/nfsclient"
)

// Client is the protocol capability the backend drives. nfsclient provides
// the production implementation through NewNFSClient.
type Client interface {
	SetUID(uid uint32)
	SetGID(gid uint32)
	Mount(ctx context.Context, server, export string) error
	Unmount(ctx context.Context) error
	Stat(ctx context.Context, path string) (*nfsclient.Attr, error)
	Open(ctx context.Context, path string, flags int) (File, error)
	OpenDir(ctx context.Context, path string) (Dir, error)
	Chmod(ctx context.Context, path string, mode uint32) error
	Close() error
}

// File is a positioned handle scoped to a single backend call.
type File interface {
	Seek(offset int64, whence int) (int64, error)
	Read(ctx context.Context, count int) ([]byte, error)
	Write(ctx context.Context, data []byte) (int, error)
	Close() error
}

// Dir iterates directory entries until io.EOF.
type Dir interface {
	Next(ctx context.Context) (*nfsclient.DirEntry, error)
	Close() error
}

// nfsClient adapts *nfsclient.Client to Client.
type nfsClient struct {
	*nfsclient.Client
}

// NewNFSClient returns a Client backed by nfsclient.
func NewNFSClient(opts nfsclient.Options) Client {
	return nfsClient{nfsclient.New(opts)}
}

func (c nfsClient) Open(ctx context.Context, path string, flags int) (File, error) {
	f, err := c.Client.Open(ctx, path, flags)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c nfsClient) OpenDir(ctx context.Context, path string) (Dir, error) {
	d, err := c.Client.OpenDir(ctx, path)
	if err != nil {
		return nil, err
	}
	return d, nil
}
