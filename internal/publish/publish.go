// Package publish copies build output to its production or preview destination.
package publish

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/refbuilder/internal/build"
	"git.home.luguber.info/inful/refbuilder/internal/fsutil"
	"git.home.luguber.info/inful/refbuilder/internal/logfields"
)

// PreviewSuffix is appended to the destination to form the preview root.
const PreviewSuffix = "-preview"

// ErrInvalidPreviewID is returned for preview ids that are not a single path segment.
var ErrInvalidPreviewID = errors.New("preview id must be a single path segment")

// ValidatePreviewID rejects ids that could address a path outside the
// preview root.
func ValidatePreviewID(id string) error {
	if id == "" {
		return nil
	}
	if id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidPreviewID, id)
	}
	return nil
}

// Resolve returns destination verbatim for production builds and
// "<destination>-preview/<previewID>" for previews.
func Resolve(destination, previewID string) string {
	if previewID == "" {
		return destination
	}
	return filepath.Join(destination+PreviewSuffix, previewID)
}

// Publisher copies build output into place.
type Publisher struct {
	logger *slog.Logger
}

// New creates a Publisher. A nil logger means slog.Default().
func New(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{logger: logger}
}

// Publish clears the resolved destination, recreates it and copies
// outputDir into it. If outputDir is missing the destination is left
// untouched. A failed copy may leave the destination partially populated.
func (p *Publisher) Publish(outputDir, destination, previewID string) (string, error) {
	dest := Resolve(destination, previewID)
	fail := func(err error) (string, error) {
		return "", &build.PublishError{Source: outputDir, Destination: dest, Err: err}
	}

	if err := ValidatePreviewID(previewID); err != nil {
		return fail(err)
	}
	info, err := os.Stat(outputDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fail(build.ErrMissingOutput)
	case err != nil:
		return fail(err)
	case !info.IsDir():
		return fail(fmt.Errorf("%w: %s is not a directory", build.ErrMissingOutput, outputDir))
	}

	p.logger.Info("Publishing build output", logfields.Path(dest))
	if err := fsutil.ResetDir(dest); err != nil {
		return fail(err)
	}
	if err := fsutil.CopyDir(outputDir, dest, fsutil.CopyOptions{Logger: p.logger}); err != nil {
		return fail(err)
	}
	return dest, nil
}
