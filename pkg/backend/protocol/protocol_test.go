package protocol

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netiface/nfsbridge/internal/protocol/nfs/types"
	"github.com/netiface/nfsbridge/pkg/backend"
	backendtesting "github.com/netiface/nfsbridge/pkg/backend/testing"
	"github.com/netiface/nfsbridge/pkg/nfsclient"
)

// ============================================================================
// In-memory Client
// ============================================================================

var fakeMtime = time.Unix(1700000000, 0)

type fakeClient struct {
	files map[string][]byte
	modes map[string]uint32
	dirs  map[string]bool

	uid, gid uint32
	mounted  bool

	mountErr, openErr, seekErr, readErr, writeErr, chmodErr error

	ops          []string
	opened       int
	closed       int
	clientCloses int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		files: map[string][]byte{
			"/readme.md":   []byte(strings.Repeat("r", 2048)),
			"/docs/a.txt":  []byte("alpha"),
			"/letters.txt": []byte("ABCDEF"),
		},
		modes: map[string]uint32{},
		dirs:  map[string]bool{"/": true, "/docs": true},
	}
}

func (c *fakeClient) log(op string) { c.ops = append(c.ops, op) }

func (c *fakeClient) SetUID(uid uint32) { c.uid = uid }
func (c *fakeClient) SetGID(gid uint32) { c.gid = gid }

func (c *fakeClient) Mount(_ context.Context, _, _ string) error {
	c.log("mount")
	if c.mountErr != nil {
		return c.mountErr
	}
	c.mounted = true
	return nil
}

func (c *fakeClient) Unmount(_ context.Context) error {
	c.log("unmount")
	c.mounted = false
	return nil
}

func (c *fakeClient) Close() error {
	c.clientCloses++
	return nil
}

func (c *fakeClient) Stat(_ context.Context, p string) (*nfsclient.Attr, error) {
	c.log("stat")
	if c.dirs[p] {
		return &nfsclient.Attr{Type: types.NF3DIR, Mode: 0755, ModTime: fakeMtime}, nil
	}
	if data, ok := c.files[p]; ok {
		return &nfsclient.Attr{Type: types.NF3REG, Mode: c.modes[p], Size: uint64(len(data)), ModTime: fakeMtime}, nil
	}
	return nil, types.NewStatusError("LOOKUP", types.NFS3ErrNoEnt)
}

func (c *fakeClient) Open(_ context.Context, p string, flags int) (File, error) {
	c.log("open")
	if c.openErr != nil {
		return nil, c.openErr
	}
	if c.dirs[p] {
		return nil, nfsclient.ErrNotFile
	}
	if _, ok := c.files[p]; !ok {
		if flags&os.O_CREATE == 0 {
			return nil, types.NewStatusError("LOOKUP", types.NFS3ErrNoEnt)
		}
		c.files[p] = nil
		c.modes[p] = 0600
	}
	c.opened++
	return &fakeFile{client: c, path: p}, nil
}

func (c *fakeClient) OpenDir(_ context.Context, p string) (Dir, error) {
	c.log("opendir")
	if !c.dirs[p] {
		return nil, types.NewStatusError("LOOKUP", types.NFS3ErrNoEnt)
	}

	names := []string{".", ".."}
	for _, set := range []map[string]bool{c.dirs, keys(c.files)} {
		for name := range set {
			if name != p && path.Dir(name) == p {
				names = append(names, path.Base(name))
			}
		}
	}
	c.opened++
	return &fakeDir{client: c, names: names}, nil
}

func (c *fakeClient) Chmod(_ context.Context, p string, mode uint32) error {
	c.log("chmod")
	if c.chmodErr != nil {
		return c.chmodErr
	}
	c.modes[p] = mode
	return nil
}

func keys(m map[string][]byte) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

type fakeFile struct {
	client *fakeClient
	path   string
	pos    int64
}

func (f *fakeFile) Seek(offset int64, _ int) (int64, error) {
	f.client.log("seek")
	if f.client.seekErr != nil {
		return 0, f.client.seekErr
	}
	f.pos = offset
	return offset, nil
}

func (f *fakeFile) Read(_ context.Context, count int) ([]byte, error) {
	f.client.log("read")
	if f.client.readErr != nil {
		return nil, f.client.readErr
	}
	data := f.client.files[f.path]
	if f.pos >= int64(len(data)) {
		return []byte{}, nil
	}
	end := min(f.pos+int64(count), int64(len(data)))
	out := append([]byte(nil), data[f.pos:end]...)
	f.pos = end
	return out, nil
}

func (f *fakeFile) Write(_ context.Context, p []byte) (int, error) {
	f.client.log("write")
	if f.client.writeErr != nil {
		return 0, f.client.writeErr
	}
	data := f.client.files[f.path]
	if end := f.pos + int64(len(p)); end > int64(len(data)) {
		data = append(data, make([]byte, end-int64(len(data)))...)
	}
	copy(data[f.pos:], p)
	f.client.files[f.path] = data
	f.pos += int64(len(p))
	return len(p), nil
}

func (f *fakeFile) Close() error {
	f.client.log("close")
	f.client.closed++
	return nil
}

type fakeDir struct {
	client *fakeClient
	names  []string
}

func (d *fakeDir) Next(_ context.Context) (*nfsclient.DirEntry, error) {
	if len(d.names) == 0 {
		return nil, io.EOF
	}
	name := d.names[0]
	d.names = d.names[1:]
	return &nfsclient.DirEntry{Name: name}, nil
}

func (d *fakeDir) Close() error {
	d.client.log("close")
	d.client.closed++
	return nil
}

func connectedBackend(t *testing.T) (*Backend, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	b := New(client)
	require.NoError(t, b.Connect(context.Background(), "srv", "/export", 1000, 100))
	client.ops = nil
	return b, client
}

// ============================================================================
// Contract
// ============================================================================

func TestProtocolBackend(t *testing.T) {
	suite := &backendtesting.BackendTestSuite{
		NewBackend: func() backend.Backend { return New(newFakeClient()) },
		FilePath:   "/readme.md",
		FileSize:   2048,
		DirPath:    "/docs",
	}

	suite.Run(t)
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("SetsCredentials", func(t *testing.T) {
		client := newFakeClient()
		require.NoError(t, New(client).Connect(ctx, "srv", "/export", 1000, 100))
		assert.Equal(t, uint32(1000), client.uid)
		assert.Equal(t, uint32(100), client.gid)
		assert.True(t, client.mounted)
	})

	t.Run("MountRejected", func(t *testing.T) {
		client := newFakeClient()
		client.mountErr = &nfsclient.MountError{Path: "/export", Status: 13}

		err := New(client).Connect(ctx, "srv", "/export", 0, 0)
		require.Error(t, err)
		assert.True(t, backend.IsCode(err, backend.ErrMountRejected))
		assert.Equal(t, 1, client.clientCloses)
	})

	t.Run("Unreachable", func(t *testing.T) {
		client := newFakeClient()
		client.mountErr = errors.New("connection refused")

		err := New(client).Connect(ctx, "srv", "/export", 0, 0)
		require.Error(t, err)
		assert.True(t, backend.IsCode(err, backend.ErrConnect))
		assert.Equal(t, 1, client.clientCloses)
	})
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	b, client := connectedBackend(t)

	require.NoError(t, b.Disconnect(ctx))
	require.NoError(t, b.Disconnect(ctx))
	assert.Equal(t, []string{"unmount"}, client.ops)
	assert.Equal(t, 1, client.clientCloses)
}

func TestFactory(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		b, err := Factory(nfsclient.Options{})()
		require.NoError(t, err)
		assert.NotNil(t, b)
	})

	t.Run("TinyReadSize", func(t *testing.T) {
		_, err := Factory(nfsclient.Options{MaxReadSize: 100})()
		assert.Error(t, err)
	})

	t.Run("TinyWriteSize", func(t *testing.T) {
		_, err := Factory(nfsclient.Options{MaxWriteSize: 1})()
		assert.Error(t, err)
	})
}

// ============================================================================
// Reads
// ============================================================================

func TestReadAt(t *testing.T) {
	ctx := context.Background()

	t.Run("NoSeekAtZero", func(t *testing.T) {
		b, client := connectedBackend(t)

		data, err := b.ReadAt(ctx, "/letters.txt", 0, 3)
		require.NoError(t, err)
		assert.Equal(t, "ABC", string(data))
		assert.Equal(t, []string{"open", "read", "close"}, client.ops)
	})

	t.Run("SeeksWhenPositive", func(t *testing.T) {
		b, client := connectedBackend(t)

		data, err := b.ReadAt(ctx, "/letters.txt", 4, 10)
		require.NoError(t, err)
		assert.Equal(t, "EF", string(data))
		assert.Equal(t, []string{"open", "seek", "read", "close"}, client.ops)
	})

	t.Run("NegativeOffsetDoesNotSeek", func(t *testing.T) {
		b, client := connectedBackend(t)

		_, err := b.ReadAt(ctx, "/letters.txt", -1, 2)
		require.NoError(t, err)
		assert.NotContains(t, client.ops, "seek")
	})

	t.Run("MissingPath", func(t *testing.T) {
		b, client := connectedBackend(t)

		_, err := b.ReadAt(ctx, "/nope", 0, 1)
		assert.True(t, backend.IsCode(err, backend.ErrPath))
		assert.Zero(t, client.opened)
	})

	t.Run("SeekFailureCloses", func(t *testing.T) {
		b, client := connectedBackend(t)
		client.seekErr = errors.New("bad seek")

		_, err := b.ReadAt(ctx, "/letters.txt", 2, 1)
		assert.True(t, backend.IsCode(err, backend.ErrIO))
		assert.Equal(t, client.opened, client.closed)
	})

	t.Run("ReadFailureCloses", func(t *testing.T) {
		b, client := connectedBackend(t)
		client.readErr = errors.New("io")

		_, err := b.ReadAt(ctx, "/letters.txt", 0, 1)
		assert.True(t, backend.IsCode(err, backend.ErrIO))
		assert.Equal(t, 1, client.closed)
	})
}

// ============================================================================
// Writes
// ============================================================================

func TestWriteAt(t *testing.T) {
	ctx := context.Background()

	t.Run("OverwriteWithoutTruncation", func(t *testing.T) {
		b, client := connectedBackend(t)

		n, err := b.WriteAt(ctx, "/letters.txt", []byte("XY"), 1)
		require.NoError(t, err)
		assert.Equal(t, int32(2), n)
		assert.Equal(t, "AXYDEF", string(client.files["/letters.txt"]))
		assert.Equal(t, []string{"open", "chmod", "seek", "write", "close"}, client.ops)
	})

	t.Run("ChmodOnExistingFile", func(t *testing.T) {
		b, client := connectedBackend(t)
		client.modes["/letters.txt"] = 0600

		_, err := b.WriteAt(ctx, "/letters.txt", []byte("a"), 0)
		require.NoError(t, err)
		assert.Equal(t, uint32(DefaultWriteMode), client.modes["/letters.txt"])
		assert.NotContains(t, client.ops, "seek")
	})

	t.Run("CreatesMissingFile", func(t *testing.T) {
		b, client := connectedBackend(t)

		n, err := b.WriteAt(ctx, "/docs/new.txt", []byte("hello"), 0)
		require.NoError(t, err)
		assert.Equal(t, int32(5), n)
		assert.Equal(t, "hello", string(client.files["/docs/new.txt"]))
		assert.Equal(t, uint32(DefaultWriteMode), client.modes["/docs/new.txt"])
	})

	t.Run("NegativeOffsetSeeks", func(t *testing.T) {
		b, client := connectedBackend(t)
		client.seekErr = errors.New("invalid seek")

		_, err := b.WriteAt(ctx, "/letters.txt", []byte("a"), -3)
		assert.True(t, backend.IsCode(err, backend.ErrIO))
		assert.Contains(t, client.ops, "seek")
		assert.Equal(t, 1, client.closed)
	})

	t.Run("ChmodFailureIsNotFatal", func(t *testing.T) {
		b, client := connectedBackend(t)
		client.chmodErr = errors.New("perm")

		n, err := b.WriteAt(ctx, "/letters.txt", []byte("Z"), 0)
		require.NoError(t, err)
		assert.Equal(t, int32(1), n)
		assert.Equal(t, "ZBCDEF", string(client.files["/letters.txt"]))
	})

	t.Run("OpenFailure", func(t *testing.T) {
		b, client := connectedBackend(t)
		client.openErr = errors.New("denied")

		_, err := b.WriteAt(ctx, "/letters.txt", []byte("a"), 0)
		assert.True(t, backend.IsCode(err, backend.ErrPath))
		assert.NotContains(t, client.ops, "chmod")
	})

	t.Run("WriteFailureCloses", func(t *testing.T) {
		b, client := connectedBackend(t)
		client.writeErr = errors.New("nospc")

		_, err := b.WriteAt(ctx, "/letters.txt", []byte("a"), 0)
		assert.True(t, backend.IsCode(err, backend.ErrIO))
		assert.Equal(t, 1, client.closed)
	})
}

// ============================================================================
// Metadata and listing
// ============================================================================

func TestStat(t *testing.T) {
	ctx := context.Background()
	b, _ := connectedBackend(t)

	meta, err := b.Stat(ctx, "/letters.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(6), meta.Size)
	assert.Equal(t, fakeMtime.Unix(), meta.ModifiedTime)

	_, err = b.Stat(ctx, "/missing")
	assert.True(t, backend.IsCode(err, backend.ErrPath))

	isDir, err := b.IsDirectory(ctx, "/missing")
	assert.Error(t, err)
	assert.False(t, isDir)
}

func TestListDirectory(t *testing.T) {
	ctx := context.Background()

	t.Run("IncludesDots", func(t *testing.T) {
		b, client := connectedBackend(t)

		entries, err := b.ListDirectory(ctx, "/docs")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, ".", entries[0].Name)
		assert.Equal(t, "..", entries[1].Name)
		assert.Equal(t, "a.txt", entries[2].Name)
		assert.Equal(t, 1, client.closed)
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		b, _ := connectedBackend(t)

		_, err := b.ListDirectory(ctx, "/nope")
		assert.True(t, backend.IsCode(err, backend.ErrPath))
	})
}
