package overlay

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/refbuilder/internal/build"
)

var site = build.Repository{Owner: "acme", Name: "site"}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		data, err := os.ReadFile(p)
		out[rel] = string(data)
		return err
	}))
	return out
}

func keys(m map[string]string) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

func TestApplyMissingTemplateIsNoop(t *testing.T) {
	root := t.TempDir()
	snap := filepath.Join(t.TempDir(), "snap")
	write(t, filepath.Join(snap, "index.md"), "original")

	applied, err := New(root, nil).Apply(site, snap)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, map[string]string{"index.md": "original"}, snapshot(t, snap))
}

func TestApplyOverwritesAndIsIdempotent(t *testing.T) {
	root := t.TempDir()
	o := New(root, nil)
	tmpl := o.TemplateDir(site)
	require.Equal(t, filepath.Join(root, "acme+site"), tmpl)

	write(t, filepath.Join(tmpl, "config.toml"), "templated")
	write(t, filepath.Join(tmpl, "layouts", "base.html"), "<html>")
	write(t, filepath.Join(tmpl, "static"), "file replaces dir")

	snap := filepath.Join(t.TempDir(), "snap")
	write(t, filepath.Join(snap, "config.toml"), "upstream")
	write(t, filepath.Join(snap, "content", "page.md"), "page")
	write(t, filepath.Join(snap, "static", "logo.svg"), "<svg>")

	applied, err := o.Apply(site, snap)
	require.NoError(t, err)
	require.True(t, applied)

	once := snapshot(t, snap)
	require.Equal(t, "templated", once["config.toml"])
	require.Equal(t, "page", once["content/page.md"])
	require.Equal(t, "file replaces dir", once["static"])
	require.Equal(t, []string{"config.toml", "content/page.md", "layouts/base.html", "static"}, keys(once))

	_, err = o.Apply(site, snap)
	require.NoError(t, err)
	require.Equal(t, once, snapshot(t, snap))
}

func TestApplySkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	o := New(root, nil)
	tmpl := o.TemplateDir(site)
	write(t, filepath.Join(tmpl, "a.txt"), "a")

	outside := filepath.Join(t.TempDir(), "secret")
	write(t, outside, "secret")
	require.NoError(t, os.Symlink(outside, filepath.Join(tmpl, "leak")))

	snap := t.TempDir()
	_, err := o.Apply(site, snap)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt"}, keys(snapshot(t, snap)))
}

func TestApplyTemplateNotADirectory(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "acme+site"), "oops")

	_, err := New(root, nil).Apply(site, t.TempDir())
	var oe *build.OverlayError
	require.ErrorAs(t, err, &oe)
	stage, ok := build.StageOf(err)
	require.True(t, ok)
	require.Equal(t, build.StageOverlay, stage)
}
