package source

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/klauspost/compress/gzip"

	"git.home.luguber.info/inful/refbuilder/internal/build"
	"git.home.luguber.info/inful/refbuilder/internal/logfields"
)

// GitSource clones a ref into memory and packs its tree as a tar.gz with a
// single "<owner>-<name>-<short sha>/" top-level directory, matching the
// layout of forge tarball endpoints.
type GitSource struct {
	baseURL string
	auth    transport.AuthMethod
	depth   int
	logger  *slog.Logger

	// CloneURL overrides how a clone URL is derived from a repository.
	CloneURL func(repo build.Repository) string
}

// NewGitSource returns a source cloning from baseURL/<owner>/<name>.git.
// depth 0 fetches full history.
func NewGitSource(baseURL string, auth transport.AuthMethod, depth int) *GitSource {
	return &GitSource{baseURL: baseURL, auth: auth, depth: depth, logger: slog.Default()}
}

// WithLogger returns a copy of the source that logs to logger.
func (s *GitSource) WithLogger(logger *slog.Logger) ArchiveSource {
	c := *s
	c.logger = logger
	return &c
}

func (s *GitSource) cloneURL(repo build.Repository) string {
	if s.CloneURL != nil {
		return s.CloneURL(repo)
	}
	return strings.TrimSuffix(s.baseURL, "/") + "/" + repo.Owner + "/" + repo.Name + ".git"
}

// Archive implements ArchiveSource.
func (s *GitSource) Archive(ctx context.Context, repo build.Repository, ref string) ([]byte, error) {
	url := s.cloneURL(repo)
	s.logger.Debug("Cloning snapshot", logfields.URL(url), logfields.Ref(ref))

	r, hash, err := s.resolve(ctx, url, ref)
	if err != nil {
		return nil, ClassifyGitError(err, "clone", url)
	}
	commit, err := r.CommitObject(hash)
	if err != nil {
		return nil, ClassifyGitError(err, "commit", url)
	}
	prefix := fmt.Sprintf("%s-%s-%s", repo.Owner, repo.Name, hash.String()[:7])
	return packCommit(commit, prefix)
}

// resolve tries ref as a branch, then as a tag, and finally as any revision
// (commit SHA) against a full clone.
func (s *GitSource) resolve(ctx context.Context, url, ref string) (*git.Repository, plumbing.Hash, error) {
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	} {
		r, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
			URL:           url,
			Auth:          s.auth,
			ReferenceName: name,
			SingleBranch:  true,
			Depth:         s.depth,
			Tags:          git.NoTags,
		})
		if err == nil {
			hash, headErr := peeledHead(r)
			return r, hash, headErr
		}
		if !isRefNotFound(err) {
			return nil, plumbing.ZeroHash, err
		}
	}

	r, err := git.CloneContext(ctx, memory.NewStorage(), nil, &git.CloneOptions{
		URL:  url,
		Auth: s.auth,
		Tags: git.NoTags,
	})
	if err != nil {
		return nil, plumbing.ZeroHash, err
	}
	hash, err := r.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, plumbing.ZeroHash, fmt.Errorf("ref %q not found: %w", ref, err)
	}
	return r, *hash, nil
}

// peeledHead returns the commit HEAD points at, dereferencing annotated tags.
func peeledHead(r *git.Repository) (plumbing.Hash, error) {
	head, err := r.Head()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	hash := head.Hash()
	if tag, err := r.TagObject(hash); err == nil {
		c, err := tag.Commit()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		hash = c.Hash
	}
	return hash, nil
}

func isRefNotFound(err error) bool {
	return errors.Is(err, git.NoMatchingRefSpecError{}) ||
		errors.Is(err, plumbing.ErrReferenceNotFound) ||
		strings.Contains(err.Error(), "couldn't find remote ref")
}

func packCommit(commit *object.Commit, prefix string) ([]byte, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read tree: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	modTime := commit.Committer.When
	if modTime.IsZero() {
		modTime = time.Now()
	}

	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     prefix + "/",
		Mode:     0o755,
		ModTime:  modTime,
	}); err != nil {
		return nil, err
	}

	err = tree.Files().ForEach(func(f *object.File) error {
		return writeTreeFile(tw, f, prefix, modTime)
	})
	if err != nil {
		return nil, fmt.Errorf("pack tree: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeTreeFile(tw *tar.Writer, f *object.File, prefix string, modTime time.Time) error {
	name := prefix + "/" + f.Name
	if f.Mode == filemode.Symlink {
		target, err := f.Contents()
		if err != nil {
			return err
		}
		return tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeSymlink,
			Name:     name,
			Linkname: target,
			Mode:     0o777,
			ModTime:  modTime,
		})
	}

	mode := int64(0o644)
	if f.Mode == filemode.Executable {
		mode = 0o755
	}
	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     f.Size,
		Mode:     mode,
		ModTime:  modTime,
	}); err != nil {
		return err
	}
	rd, err := f.Reader()
	if err != nil {
		return err
	}
	defer func() { _ = rd.Close() }()
	_, err = io.Copy(tw, rd)
	return err
}
