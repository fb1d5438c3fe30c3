package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/refbuilder/internal/fsutil"
	"git.home.luguber.info/inful/refbuilder/internal/logfields"
)

const (
	buildSubdir     = "build"
	templatesSubdir = "templates"
)

// Manager resolves workspace paths below a working root.
type Manager struct {
	root          string
	keepOnFailure bool
	logger        *slog.Logger
}

// NewManager creates a manager for root. A nil logger means slog.Default().
func NewManager(root string, keepOnFailure bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{root: filepath.Clean(root), keepOnFailure: keepOnFailure, logger: logger}
}

// Root returns the working root.
func (m *Manager) Root() string { return m.root }

// TemplatesRoot returns the read-only template store.
func (m *Manager) TemplatesRoot() string { return filepath.Join(m.root, templatesSubdir) }

// BuildRoot returns the directory holding per-task working directories.
func (m *Manager) BuildRoot() string { return filepath.Join(m.root, buildSubdir) }

// CheckDestination rejects a publish destination that overlaps the build or
// template store. Publishing clears the destination first, so such a path
// would destroy live workspaces or templates.
func (m *Manager) CheckDestination(destination string) error {
	dest := filepath.Clean(destination)
	for _, protected := range []string{m.BuildRoot(), m.TemplatesRoot()} {
		if within(dest, protected) || within(protected, dest) {
			return fmt.Errorf("destination %s overlaps %s", dest, protected)
		}
	}
	return nil
}

// within reports whether path is base or below it. Both must be clean.
func within(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Acquire returns the working directory for a task identity. Nothing is
// created until Reset is called.
func (m *Manager) Acquire(identity string) (*Dir, error) {
	if identity == "" || identity == "." || identity == ".." || strings.ContainsAny(identity, `/\`) {
		return nil, fmt.Errorf("workspace identity %q is not a single path segment", identity)
	}
	return &Dir{
		path:          filepath.Join(m.BuildRoot(), identity),
		keepOnFailure: m.keepOnFailure,
		logger:        m.logger,
	}, nil
}

// Dir is one task's working directory.
type Dir struct {
	path          string
	keepOnFailure bool
	logger        *slog.Logger
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// Reset destroys the directory and recreates it empty.
func (d *Dir) Reset() error {
	if err := fsutil.ResetDir(d.path); err != nil {
		return fmt.Errorf("failed to reset workspace: %w", err)
	}
	d.logger.Debug("Reset workspace", logfields.Path(d.path))
	return nil
}

// Reclaim removes the directory. It is best effort: the error is logged and
// returned for the caller to record, never to act on. When failed is true and
// keep-on-failure is enabled the directory is kept.
func (d *Dir) Reclaim(failed bool) error {
	if failed && d.keepOnFailure {
		d.logger.Info("Keeping workspace of failed run", logfields.Path(d.path))
		return nil
	}
	if err := os.RemoveAll(d.path); err != nil {
		d.logger.Warn("Failed to reclaim workspace", logfields.Path(d.path), logfields.Error(err))
		return fmt.Errorf("failed to reclaim workspace: %w", err)
	}
	d.logger.Info("Reclaimed workspace", logfields.Path(d.path))
	return nil
}
