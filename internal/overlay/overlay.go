// Package overlay copies a per-repository template over an extracted snapshot.
package overlay

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/refbuilder/internal/build"
	"git.home.luguber.info/inful/refbuilder/internal/fsutil"
	"git.home.luguber.info/inful/refbuilder/internal/logfields"
)

// Overlay applies templates from <root>/templates/<owner>+<name>/.
type Overlay struct {
	templatesRoot string
	logger        *slog.Logger
}

// New creates an Overlay reading templates below templatesRoot. The
// template store is never written to.
func New(templatesRoot string, logger *slog.Logger) *Overlay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Overlay{templatesRoot: templatesRoot, logger: logger}
}

// TemplateDir returns the template directory for repo.
func (o *Overlay) TemplateDir(repo build.Repository) string {
	return filepath.Join(o.templatesRoot, repo.TemplateName())
}

// Apply copies the repository's template into snapshotDir, overwriting
// same-named entries. A missing template is a no-op and returns false.
// Applying the same template twice yields the same file set.
func (o *Overlay) Apply(repo build.Repository, snapshotDir string) (bool, error) {
	tmpl := o.TemplateDir(repo)

	info, err := os.Stat(tmpl)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		o.logger.Info("No template for repository, skipping overlay",
			logfields.Repository(repo.FullName()), logfields.Path(tmpl))
		return false, nil
	case err != nil:
		return false, &build.OverlayError{Template: tmpl, Target: snapshotDir, Err: err}
	case !info.IsDir():
		return false, &build.OverlayError{Template: tmpl, Target: snapshotDir, Err: fmt.Errorf("%s is not a directory", tmpl)}
	}

	o.logger.Info("Applying template", logfields.Path(tmpl))
	if err := fsutil.CopyDir(tmpl, snapshotDir, fsutil.CopyOptions{Logger: o.logger}); err != nil {
		return false, &build.OverlayError{Template: tmpl, Target: snapshotDir, Err: err}
	}
	return true, nil
}
