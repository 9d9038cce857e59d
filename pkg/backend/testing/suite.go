// Package testing provides a reusable contract test suite for backend.Backend
// implementations.
package testing

import (
	"context"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netiface/nfsbridge/pkg/backend"
)

// BackendTestSuite tests the Backend contract, not implementation details,
// so every implementation can run it.
type BackendTestSuite struct {
	// NewBackend creates a fresh, unconnected backend for each test.
	NewBackend func() backend.Backend

	// FilePath names an existing regular file of FileSize bytes.
	FilePath string
	FileSize int64

	// DirPath names an existing directory in the same parent as FilePath.
	DirPath string
}

// Run executes all tests in the suite.
func (suite *BackendTestSuite) Run(test *testing.T) {
	test.Run("Lifecycle", suite.RunLifecycleTests)
	test.Run("Metadata", suite.RunMetadataTests)
	test.Run("IO", suite.RunIOTests)
	test.Run("Directory", suite.RunDirectoryTests)
}

func (suite *BackendTestSuite) connected(test *testing.T) backend.Backend {
	test.Helper()
	b := suite.NewBackend()
	require.NoError(test, b.Connect(context.Background(), "host", "/export", 1000, 1000))
	test.Cleanup(func() { _ = b.Disconnect(context.Background()) })
	return b
}

// ============================================================================
// Lifecycle
// ============================================================================

func (suite *BackendTestSuite) RunLifecycleTests(test *testing.T) {
	test.Run("ConnectThenDisconnect", suite.TestConnectThenDisconnect)
	test.Run("DisconnectIsIdempotent", suite.TestDisconnectIsIdempotent)
}

// TestConnectThenDisconnect verifies the basic lifecycle succeeds.
func (suite *BackendTestSuite) TestConnectThenDisconnect(test *testing.T) {
	b := suite.NewBackend()
	ctx := context.Background()

	require.NoError(test, b.Connect(ctx, "host", "/export", 1000, 1000))
	require.NoError(test, b.Disconnect(ctx))
}

// TestDisconnectIsIdempotent verifies a second Disconnect is harmless.
func (suite *BackendTestSuite) TestDisconnectIsIdempotent(test *testing.T) {
	b := suite.connected(test)
	ctx := context.Background()

	require.NoError(test, b.Disconnect(ctx))
	require.NoError(test, b.Disconnect(ctx))
}

// ============================================================================
// Metadata
// ============================================================================

func (suite *BackendTestSuite) RunMetadataTests(test *testing.T) {
	test.Run("StatFile", suite.TestStatFile)
	test.Run("StatDirectory", suite.TestStatDirectory)
	test.Run("IsDirectory", suite.TestIsDirectory)
}

// TestStatFile verifies size and mtime of a known file.
func (suite *BackendTestSuite) TestStatFile(test *testing.T) {
	b := suite.connected(test)

	meta, err := b.Stat(context.Background(), suite.FilePath)
	require.NoError(test, err)
	assert.Equal(test, suite.FileSize, meta.Size)
	assert.Positive(test, meta.ModifiedTime)
	assert.False(test, meta.IsDirectory)
}

// TestStatDirectory verifies directories are flagged.
func (suite *BackendTestSuite) TestStatDirectory(test *testing.T) {
	b := suite.connected(test)

	meta, err := b.Stat(context.Background(), suite.DirPath)
	require.NoError(test, err)
	assert.True(test, meta.IsDirectory)
}

// TestIsDirectory verifies the probe for both kinds.
func (suite *BackendTestSuite) TestIsDirectory(test *testing.T) {
	b := suite.connected(test)
	ctx := context.Background()

	isDir, err := b.IsDirectory(ctx, suite.DirPath)
	require.NoError(test, err)
	assert.True(test, isDir)

	isDir, err = b.IsDirectory(ctx, suite.FilePath)
	require.NoError(test, err)
	assert.False(test, isDir)
}

// ============================================================================
// IO
// ============================================================================

func (suite *BackendTestSuite) RunIOTests(test *testing.T) {
	test.Run("ReadRespectsCount", suite.TestReadRespectsCount)
	test.Run("ReadPastEOF", suite.TestReadPastEOF)
	test.Run("WriteReportsLength", suite.TestWriteReportsLength)
}

// TestReadRespectsCount verifies reads never exceed count.
func (suite *BackendTestSuite) TestReadRespectsCount(test *testing.T) {
	b := suite.connected(test)

	data, err := b.ReadAt(context.Background(), suite.FilePath, 0, 4)
	require.NoError(test, err)
	assert.LessOrEqual(test, len(data), 4)
	assert.NotEmpty(test, data)
}

// TestReadPastEOF verifies a read beyond the end is short, not an error.
func (suite *BackendTestSuite) TestReadPastEOF(test *testing.T) {
	b := suite.connected(test)

	data, err := b.ReadAt(context.Background(), suite.FilePath, suite.FileSize+4096, 16)
	require.NoError(test, err)
	assert.Empty(test, data)
}

// TestWriteReportsLength verifies a full write reports len(data).
func (suite *BackendTestSuite) TestWriteReportsLength(test *testing.T) {
	b := suite.connected(test)
	payload := []byte("hello, nfs")

	n, err := b.WriteAt(context.Background(), path.Join(path.Dir(suite.FilePath), "suite-new.txt"), payload, 0)
	require.NoError(test, err)
	assert.Equal(test, int32(len(payload)), n)
}

// ============================================================================
// Directory
// ============================================================================

func (suite *BackendTestSuite) RunDirectoryTests(test *testing.T) {
	test.Run("ListContainsKnownEntries", suite.TestListContainsKnownEntries)
}

// TestListContainsKnownEntries verifies the parent listing holds both fixtures.
func (suite *BackendTestSuite) TestListContainsKnownEntries(test *testing.T) {
	b := suite.connected(test)

	entries, err := b.ListDirectory(context.Background(), path.Dir(suite.FilePath))
	require.NoError(test, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(test, names, path.Base(suite.FilePath))
	assert.Contains(test, names, path.Base(suite.DirPath))
}
