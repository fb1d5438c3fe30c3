package publish

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/refbuilder/internal/build"
)

func TestResolve(t *testing.T) {
	require.Equal(t, "/out", Resolve("/out", ""))
	require.Equal(t, "/out-preview/42", Resolve("/out", "42"))
	require.Equal(t, "/srv/site-preview/pr-7", Resolve("/srv/site", "pr-7"))
}

func TestValidatePreviewID(t *testing.T) {
	require.NoError(t, ValidatePreviewID(""))
	require.NoError(t, ValidatePreviewID("42"))
	for _, bad := range []string{"..", ".", "a/b", `a\b`, "../etc"} {
		require.ErrorIs(t, ValidatePreviewID(bad), ErrInvalidPreviewID, bad)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestPublishClearsDestination(t *testing.T) {
	out := filepath.Join(t.TempDir(), "dist")
	writeFile(t, filepath.Join(out, "index.html"), "new")
	writeFile(t, filepath.Join(out, "assets", "app.js"), "js")

	dest := filepath.Join(t.TempDir(), "site")
	writeFile(t, filepath.Join(dest, "stale.html"), "old")
	writeFile(t, filepath.Join(dest, "index.html"), "old")

	got, err := New(nil).Publish(out, dest, "")
	require.NoError(t, err)
	require.Equal(t, dest, got)
	require.NoFileExists(t, filepath.Join(dest, "stale.html"))

	data, err := os.ReadFile(filepath.Join(dest, "index.html"))
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
	require.FileExists(t, filepath.Join(dest, "assets", "app.js"))
}

func TestPublishPreview(t *testing.T) {
	out := filepath.Join(t.TempDir(), "dist")
	writeFile(t, filepath.Join(out, "index.html"), "preview")
	base := filepath.Join(t.TempDir(), "out")
	writeFile(t, filepath.Join(base, "index.html"), "production")

	got, err := New(nil).Publish(out, base, "42")
	require.NoError(t, err)
	require.Equal(t, base+"-preview/42", got)
	require.FileExists(t, filepath.Join(got, "index.html"))

	data, err := os.ReadFile(filepath.Join(base, "index.html"))
	require.NoError(t, err)
	require.Equal(t, "production", string(data), "production destination must be untouched")
}

func TestPublishMissingOutputLeavesDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "site")
	writeFile(t, filepath.Join(dest, "index.html"), "live")

	_, err := New(nil).Publish(filepath.Join(t.TempDir(), "missing"), dest, "")
	var pe *build.PublishError
	require.ErrorAs(t, err, &pe)
	require.ErrorIs(t, err, build.ErrMissingOutput)
	require.FileExists(t, filepath.Join(dest, "index.html"))
}

func TestPublishRejectsTraversalPreview(t *testing.T) {
	out := t.TempDir()
	base := filepath.Join(t.TempDir(), "out")
	_, err := New(nil).Publish(out, base, "../../escape")
	require.ErrorIs(t, err, ErrInvalidPreviewID)
	require.NoDirExists(t, base+"-preview")
}
