package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCopyDirOverwrites(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "a.txt"), "new")
	writeFile(t, filepath.Join(src, "nested", "b.txt"), "b")
	writeFile(t, filepath.Join(dst, "a.txt"), "old")
	writeFile(t, filepath.Join(dst, "keep.txt"), "keep")

	require.NoError(t, CopyDir(src, dst, CopyOptions{}))

	require.Equal(t, "new", readFile(t, filepath.Join(dst, "a.txt")))
	require.Equal(t, "b", readFile(t, filepath.Join(dst, "nested", "b.txt")))
	require.Equal(t, "keep", readFile(t, filepath.Join(dst, "keep.txt")))
}

func TestCopyDirReplacesMismatchedKinds(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeFile(t, filepath.Join(src, "conf", "x.yaml"), "x")
	writeFile(t, filepath.Join(src, "page"), "file")
	writeFile(t, filepath.Join(dst, "conf"), "was a file")
	writeFile(t, filepath.Join(dst, "page", "inner.txt"), "was a dir")

	require.NoError(t, CopyDir(src, dst, CopyOptions{}))

	require.Equal(t, "x", readFile(t, filepath.Join(dst, "conf", "x.yaml")))
	require.Equal(t, "file", readFile(t, filepath.Join(dst, "page")))
}

func TestCopyDirSkipsSymlinks(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	outside := t.TempDir()

	writeFile(t, filepath.Join(outside, "secret"), "s")
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(src, "link")))

	require.NoError(t, CopyDir(src, dst, CopyOptions{}))
	_, err := os.Lstat(filepath.Join(dst, "link"))
	require.True(t, os.IsNotExist(err))
}

func TestCopyDirMissingSource(t *testing.T) {
	err := CopyDir(filepath.Join(t.TempDir(), "absent"), t.TempDir(), CopyOptions{})
	require.Error(t, err)
}

func TestResetDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ws")
	writeFile(t, filepath.Join(dir, "stale"), "stale")

	require.NoError(t, ResetDir(dir))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.DirExists(t, dir)
}
