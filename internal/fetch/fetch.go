// Package fetch downloads a repository snapshot and unpacks it into a task's
// working directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/refbuilder/internal/build"
	"git.home.luguber.info/inful/refbuilder/internal/logfields"
	"git.home.luguber.info/inful/refbuilder/internal/source"
)

// Workspace is the directory a snapshot is fetched into. *workspace.Dir
// implements it.
type Workspace interface {
	Path() string
	Reset() error
}

// Fetcher retrieves snapshots from an ArchiveSource.
type Fetcher struct {
	source source.ArchiveSource
	logger *slog.Logger
}

// New creates a Fetcher. A nil logger means slog.Default().
func New(src source.ArchiveSource, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{source: source.BindLogger(src, logger), logger: logger}
}

// Fetch resets ws, downloads repo at ref into it, extracts the archive and
// returns the single top-level directory it produced. On failure the
// workspace is removed, so it is either absent or holds exactly one snapshot.
func (f *Fetcher) Fetch(ctx context.Context, repo build.Repository, ref string, ws Workspace) (dir string, err error) {
	fail := func(op string, cause error) error {
		return &build.FetchError{Repository: repo.FullName(), Ref: ref, Op: op, Err: cause}
	}

	workDir := ws.Path()
	if err := ws.Reset(); err != nil {
		return "", fail("workspace", err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(workDir); rmErr != nil {
				f.logger.Warn("Failed to remove working directory after fetch failure",
					logfields.Path(workDir), logfields.Error(rmErr))
			}
		}
	}()

	f.logger.Info("Downloading snapshot", logfields.Repository(repo.FullName()), logfields.Ref(ref))
	payload, err := f.source.Archive(ctx, repo, ref)
	if err != nil {
		return "", fail("download", err)
	}
	if len(payload) == 0 {
		return "", fail("download", build.ErrEmptyArchive)
	}

	archivePath := filepath.Join(workDir, build.Identity(repo, ref)+".tar.gz")
	if err := os.WriteFile(archivePath, payload, 0o600); err != nil {
		return "", fail("write", err)
	}
	f.logger.Debug("Wrote archive", logfields.Path(archivePath), logfields.Bytes(int64(len(payload))))

	if err := Extract(ctx, archivePath, workDir, f.logger); err != nil {
		return "", fail("extract", err)
	}
	if err := os.Remove(archivePath); err != nil {
		return "", fail("extract", fmt.Errorf("remove archive: %w", err))
	}

	dir, err = singleTopLevelDir(workDir)
	if err != nil {
		return "", fail("layout", err)
	}
	f.logger.Info("Extracted snapshot", logfields.Path(dir))
	return dir, nil
}

// ErrLayout is the cause of a FetchError when the archive does not contain
// exactly one top-level directory.
var ErrLayout = errors.New("archive must contain exactly one top-level directory")

func singleTopLevelDir(workDir string) (string, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return "", err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return "", fmt.Errorf("%w: found %d entries", ErrLayout, len(entries))
	}
	return filepath.Join(workDir, entries[0].Name()), nil
}
