package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/netiface/nfsbridge/internal/cli"
	"github.com/netiface/nfsbridge/pkg/backend/mock"
)

// isolate points config and profile storage at a fresh directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := &app{in: strings.NewReader(stdin), out: &out, errOut: &errOut}
	err := a.root().Execute(args)
	return out.String(), err
}

func TestLs(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "ls", "--mock")
	require.NoError(t, err)
	assert.Equal(t,
		"Documents\nPictures\nVideos\nMusic\nDownloads\ntest.txt\nreadme.md\ndata.json\n",
		out)
}

func TestLsLongYAML(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "ls", "--mock", "-l", "--yaml", "/")
	require.NoError(t, err)

	var entries []entryView
	require.NoError(t, yaml.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 8)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{
		"Documents", "Downloads", "Music", "Pictures", "Videos",
		"data.json", "readme.md", "test.txt",
	}, names)

	assert.True(t, entries[0].IsDirectory)
	assert.Equal(t, "/Documents", entries[0].Path)
	assert.Equal(t, int64(4096), entries[5].Size)
	assert.Equal(t, "other", entries[5].Kind)
}

func TestLsLong(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "ls", "--mock", "-l")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 8)
	assert.True(t, strings.HasPrefix(lines[0], "d "))
	assert.Contains(t, lines[0], "2021-12-01 12:00")
	assert.True(t, strings.HasSuffix(lines[7], "test.txt"))
}

func TestStat(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "stat", "--mock", "/readme.md")
	require.NoError(t, err)

	var v entryView
	require.NoError(t, yaml.Unmarshal([]byte(out), &v))
	assert.Equal(t, "/readme.md", v.Path)
	assert.Equal(t, int64(2048), v.Size)
	assert.False(t, v.IsDirectory)
	assert.Equal(t, "2021-12-01T12:00:00Z", v.Modified)
}

func TestStatRequiresPath(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "stat", "--mock")
	assert.ErrorIs(t, err, cli.ErrUsage)
}

func TestCat(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "cat", "--mock", "/test.txt")
	require.NoError(t, err)
	assert.Equal(t, mock.SampleContent, out)

	out, err = execute(t, "", "cat", "--mock", "--offset", "8", "--chunk", "5", "/test.txt")
	require.NoError(t, err)
	assert.Equal(t, mock.SampleContent[8:], out)
}

func TestType(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "type", "--mock", "/clip.mp4")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "text/plain"))
	assert.True(t, strings.HasSuffix(out, "\tvideo\n"))
}

func TestPut(t *testing.T) {
	isolate(t)

	local := filepath.Join(t.TempDir(), "upload.bin")
	require.NoError(t, os.WriteFile(local, bytes.Repeat([]byte("x"), 100*1024), 0644))

	out, err := execute(t, "", "put", "--mock", local, "/upload.bin")
	require.NoError(t, err)
	assert.Equal(t, "wrote 102400 bytes to /upload.bin\n", out)

	_, err = execute(t, "", "put", "--mock", local)
	assert.ErrorIs(t, err, cli.ErrUsage)
}

func TestIsdir(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "isdir", "--mock", "/Documents")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = execute(t, "", "isdir", "--mock", "/readme.md")
	assert.Equal(t, "false\n", out)
	var exit *cli.ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.Code)
}

func TestNoServer(t *testing.T) {
	isolate(t)

	_, err := execute(t, "", "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no server")
}

func TestProfiles(t *testing.T) {
	isolate(t)

	out, err := execute(t, "", "profile", "save", "--mock", "--server", "nas", "--export", "/media", "--uid", "1000", "home")
	require.NoError(t, err)
	assert.Equal(t, "saved home (nas:/media)\n", out)

	out, err = execute(t, "", "profile", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "home")
	assert.Contains(t, out, "nas:/media")
	assert.NotContains(t, out, "*")

	// Connecting through a profile marks it as last used.
	_, err = execute(t, "", "isdir", "--profile", "home", "/Documents")
	require.NoError(t, err)

	out, err = execute(t, "", "profile", "list")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "* home"))

	// Without a server the last used profile is picked up.
	out, err = execute(t, "", "isdir", "/Music")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	out, err = execute(t, "", "profile", "rm", "home")
	require.NoError(t, err)
	assert.Equal(t, "removed home\n", out)

	_, err = execute(t, "", "ls", "--profile", "home")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, "", "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Equal(t, "wrote "+path+"\n", out)

	_, err = execute(t, "", "config", "init", "--path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "", "config", "init", "--path", path, "--force")
	require.NoError(t, err)

	// The written file drives later commands.
	_, err = execute(t, "", "ls", "--mock", "--config", path)
	require.NoError(t, err)
}

func TestShell(t *testing.T) {
	isolate(t)

	script := strings.Join([]string{
		"pwd",
		"cd Documents",
		"pwd",
		"cd readme.md",
		"up",
		"pwd",
		"stat readme.md",
		"cat test.txt",
		"isdir Music",
		"bogus",
		"exit",
	}, "\n") + "\n"

	out, err := execute(t, script, "shell", "--mock", "--server", "demo", "--export", "/srv")
	require.NoError(t, err)

	assert.Contains(t, out, "Connected to demo:/srv")
	assert.Contains(t, out, "/Documents\n")
	assert.Contains(t, out, "cd: /Documents/readme.md: not a directory")
	assert.Contains(t, out, "size=2048 modified=2021-12-01T12:00:00Z")
	assert.Contains(t, out, mock.SampleContent+"\n")
	assert.Contains(t, out, "true\n")
	assert.Contains(t, out, `unknown command "bogus"`)
}
