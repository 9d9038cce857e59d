package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netiface/nfsbridge/pkg/backend"
	backendtesting "github.com/netiface/nfsbridge/pkg/backend/testing"
)

// TestMockBackend runs the Backend contract suite against the mock table.
func TestMockBackend(t *testing.T) {
	suite := &backendtesting.BackendTestSuite{
		NewBackend: func() backend.Backend { return New() },
		FilePath:   "/readme.md",
		FileSize:   2048,
		DirPath:    "/Documents",
	}

	suite.Run(t)
}

func TestListDirectory(t *testing.T) {
	b := New()
	ctx := context.Background()

	t.Run("TableOrder", func(t *testing.T) {
		entries, err := b.ListDirectory(ctx, "/")
		require.NoError(t, err)
		require.Len(t, entries, 8)
		assert.Equal(t, "Documents", entries[0].Name)
		assert.Equal(t, "data.json", entries[7].Name)
	})

	t.Run("AnyPathReturnsTable", func(t *testing.T) {
		entries, err := b.ListDirectory(ctx, "/Pictures/2021")
		require.NoError(t, err)
		assert.Len(t, entries, 8)
	})

	t.Run("ReturnsCopy", func(t *testing.T) {
		entries, err := b.ListDirectory(ctx, "/")
		require.NoError(t, err)
		entries[0].Name = "changed"

		again, err := b.ListDirectory(ctx, "/")
		require.NoError(t, err)
		assert.Equal(t, "Documents", again[0].Name)
	})
}

func TestStat(t *testing.T) {
	b := New()
	ctx := context.Background()

	t.Run("MatchesTrailingSegment", func(t *testing.T) {
		meta, err := b.Stat(ctx, "/some/deep/dir/readme.md")
		require.NoError(t, err)
		assert.Equal(t, int64(2048), meta.Size)
		assert.Equal(t, int64(1638360000), meta.ModifiedTime)
	})

	t.Run("BareName", func(t *testing.T) {
		meta, err := b.Stat(ctx, "data.json")
		require.NoError(t, err)
		assert.Equal(t, int64(4096), meta.Size)
	})

	t.Run("MissReturnsZero", func(t *testing.T) {
		meta, err := b.Stat(ctx, "/nope.txt")
		require.NoError(t, err)
		assert.Equal(t, backend.Metadata{}, meta)
	})

	t.Run("TrailingSlashDoesNotMatch", func(t *testing.T) {
		meta, err := b.Stat(ctx, "/Documents/")
		require.NoError(t, err)
		assert.Zero(t, meta.Size)
		assert.False(t, meta.IsDirectory)
	})
}

func TestReadAt(t *testing.T) {
	b := New()
	ctx := context.Background()

	t.Run("WholeContent", func(t *testing.T) {
		data, err := b.ReadAt(ctx, "/test.txt", 0, 4096)
		require.NoError(t, err)
		assert.Equal(t, SampleContent, string(data))
	})

	t.Run("Window", func(t *testing.T) {
		data, err := b.ReadAt(ctx, "/test.txt", 5, 2)
		require.NoError(t, err)
		assert.Equal(t, "is", string(data))
	})

	t.Run("ZeroCount", func(t *testing.T) {
		data, err := b.ReadAt(ctx, "/test.txt", 0, 0)
		require.NoError(t, err)
		assert.Empty(t, data)
	})
}

func TestWriteAt(t *testing.T) {
	n, err := New().WriteAt(context.Background(), "/new.txt", []byte("abc"), 10)
	require.NoError(t, err)
	assert.Equal(t, int32(3), n)
}

func TestIsDirectory(t *testing.T) {
	b := New()
	ctx := context.Background()

	for name, want := range map[string]bool{
		"/Music":       true,
		"/a/b/Videos":  true,
		"/test.txt":    false,
		"/missing":     false,
		"":             false,
		"/Downloads/x": false,
	} {
		got, err := b.IsDirectory(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestFactory(t *testing.T) {
	b, err := Factory()()
	require.NoError(t, err)
	assert.IsType(t, &Backend{}, b)
}
