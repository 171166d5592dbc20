package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSandbox(t *testing.T) *Sandbox {
	t.Helper()

	sb, err := NewSandbox(t.TempDir())
	require.NoError(t, err)
	return sb
}

func TestNewSandboxCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "segments")

	sb, err := NewSandbox(root)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, filepath.IsAbs(sb.BaseDir()))
}

func TestResolvePath(t *testing.T) {
	sb := newSandbox(t)

	valid := []string{
		"segment-000123.mp3",
		"playout/segment-000123.mp3",
		"art/ab/cd/cover.jpg",
		".",
		".hidden",
		"..dots-in-name",
	}
	for _, path := range valid {
		resolved, err := sb.ResolvePath(path)
		require.NoError(t, err, "path %q", path)
		assert.True(t, strings.HasPrefix(resolved, sb.BaseDir()), "path %q", path)
	}

	escaping := []string{
		"../escape.mp3",
		"playout/../../escape.mp3",
		"/etc/passwd",
	}
	for _, path := range escaping {
		_, err := sb.ResolvePath(path)
		require.Error(t, err, "path %q", path)
		assert.Contains(t, err.Error(), "escapes sandbox")
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	sb := newSandbox(t)
	content := []byte("frame data")

	// Nested parents are created on demand.
	require.NoError(t, sb.WriteFile("playout/2026/segment.mp3", content))

	data, err := sb.ReadFile("playout/2026/segment.mp3")
	require.NoError(t, err)
	assert.Equal(t, content, data)

	exists, err := sb.Exists("playout/2026/segment.mp3")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = sb.Exists("playout/2026/missing.mp3")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMkdirAll(t *testing.T) {
	sb := newSandbox(t)

	require.NoError(t, sb.MkdirAll("art/ab/cd"))

	exists, err := sb.Exists("art/ab/cd")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRemove(t *testing.T) {
	sb := newSandbox(t)

	require.NoError(t, sb.WriteFile("expired/segment.mp3", []byte("x")))
	require.NoError(t, sb.Remove("expired/segment.mp3"))

	exists, err := sb.Exists("expired/segment.mp3")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, sb.RemoveAll("expired"))
	exists, err = sb.Exists("expired")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRemoveAllProtectsRoot(t *testing.T) {
	sb := newSandbox(t)

	err := sb.RemoveAll(".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot remove sandbox base directory")
}

func TestAtomicWrite(t *testing.T) {
	sb := newSandbox(t)

	require.NoError(t, sb.AtomicWrite("segment.json", []byte(`{"seq":1}`)))
	require.NoError(t, sb.AtomicWrite("segment.json", []byte(`{"seq":2}`)))

	data, err := sb.ReadFile("segment.json")
	require.NoError(t, err)
	assert.Equal(t, `{"seq":2}`, string(data))

	// No stray temp files beside the target.
	entries, err := sb.List(".")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTempDir(t *testing.T) {
	sb := newSandbox(t)

	tempDir, err := sb.TempDir()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tempDir, sb.BaseDir()))

	info, err := os.Stat(tempDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestList(t *testing.T) {
	sb := newSandbox(t)

	require.NoError(t, sb.WriteFile("segment-000001.mp3", []byte("1")))
	require.NoError(t, sb.WriteFile("segment-000002.mp3", []byte("2")))
	require.NoError(t, sb.MkdirAll("art"))

	entries, err := sb.List(".")
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestWalkReportsRelativePaths(t *testing.T) {
	sb := newSandbox(t)

	require.NoError(t, sb.WriteFile("root.json", []byte("r")))
	require.NoError(t, sb.WriteFile("playout/segment.mp3", []byte("s")))

	var paths []string
	err := sb.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, paths, "root.json")
	assert.Contains(t, paths, filepath.Join("playout", "segment.mp3"))
}

func TestStatAndSize(t *testing.T) {
	sb := newSandbox(t)

	content := []byte("ID3v2 header and frames")
	require.NoError(t, sb.WriteFile("segment.mp3", content))

	info, err := sb.Stat("segment.mp3")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, int64(len(content)), info.Size())

	size, err := sb.Size("segment.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)
}

func TestAtomicPublish(t *testing.T) {
	sb := newSandbox(t)

	// Source lives outside the sandbox, as render scratch space does.
	srcPath := filepath.Join(t.TempDir(), "rendered.mp3")
	content := []byte("rendered audio")
	require.NoError(t, os.WriteFile(srcPath, content, 0o640))

	require.NoError(t, sb.AtomicPublish(srcPath, "published.mp3"))

	// Source was consumed, target has the content.
	_, err := os.Stat(srcPath)
	assert.True(t, os.IsNotExist(err))

	data, err := sb.ReadFile("published.mp3")
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestAtomicPublishRejectsEscape(t *testing.T) {
	sb := newSandbox(t)

	srcPath := filepath.Join(t.TempDir(), "rendered.mp3")
	require.NoError(t, os.WriteFile(srcPath, []byte("audio"), 0o640))

	err := sb.AtomicPublish(srcPath, "../escape.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes sandbox")

	// Source untouched on failure.
	_, err = os.Stat(srcPath)
	assert.NoError(t, err)
}

func TestLinkOrCopy(t *testing.T) {
	sb := newSandbox(t)

	srcPath := filepath.Join(t.TempDir(), "segment.mp3")
	content := []byte("segment audio")
	require.NoError(t, os.WriteFile(srcPath, content, 0o640))

	require.NoError(t, sb.LinkOrCopy(srcPath, "playout/segment.mp3"))

	// Source survives, target has the content.
	srcData, err := os.ReadFile(srcPath)
	require.NoError(t, err)
	assert.Equal(t, content, srcData)

	data, err := sb.ReadFile("playout/segment.mp3")
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestLinkOrCopyOverwritesExisting(t *testing.T) {
	sb := newSandbox(t)

	require.NoError(t, sb.WriteFile("segment.mp3", []byte("old")))

	srcPath := filepath.Join(t.TempDir(), "segment.mp3")
	require.NoError(t, os.WriteFile(srcPath, []byte("new"), 0o640))

	// Hard link to an existing target fails, so this exercises the copy
	// fallback.
	require.NoError(t, sb.LinkOrCopy(srcPath, "segment.mp3"))

	data, err := sb.ReadFile("segment.mp3")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}
