package fetch

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"git.home.luguber.info/inful/refbuilder/internal/logfields"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zipMagic  = []byte("PK\x03\x04")
)

// ErrUnsafePath is returned for archive entries that would land outside the
// extraction directory.
var ErrUnsafePath = errors.New("archive entry escapes extraction directory")

// ErrUnknownFormat is returned when the payload is neither gzip nor zip.
var ErrUnknownFormat = errors.New("unrecognized archive format")

// Extract unpacks the gzip-compressed tar or zip archive at archivePath into
// dir. The format is detected from the leading magic bytes.
func Extract(ctx context.Context, archivePath, dir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	dir = filepath.Clean(dir)
	f, err := os.Open(archivePath) // #nosec G304 -- path is inside the task workspace
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	br := bufio.NewReader(f)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return extractTarGz(ctx, br, dir, logger)
	case bytes.HasPrefix(head, zipMagic):
		info, err := f.Stat()
		if err != nil {
			return err
		}
		zr, err := zip.NewReader(f, info.Size())
		if err != nil {
			return err
		}
		return extractZip(ctx, zr, dir, logger)
	default:
		return ErrUnknownFormat
	}
}

// safeJoin resolves name under dir and rejects anything escaping it.
func safeJoin(dir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(dir, filepath.FromSlash(name))
	if target != dir && !strings.HasPrefix(target, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// checkLink rejects symlinks whose target resolves outside dir.
func checkLink(dir, linkPath, target string) error {
	if filepath.IsAbs(target) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, linkPath, target)
	}
	resolved := filepath.Join(filepath.Dir(linkPath), target)
	if resolved != dir && !strings.HasPrefix(resolved, dir+string(os.PathSeparator)) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrUnsafePath, linkPath, target)
	}
	return nil
}

// checkParents rejects targets whose existing parent components include a
// symlink. Earlier entries may plant links that a lexical check cannot see.
func checkParents(dir, target string) error {
	rel, err := filepath.Rel(dir, filepath.Dir(target))
	if err != nil || rel == "." {
		return err
	}
	cur := dir
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s is below symlink %s", ErrUnsafePath, target, cur)
		}
	}
	return nil
}

// entryPath combines safeJoin and checkParents.
func entryPath(dir, name string) (string, error) {
	target, err := safeJoin(dir, name)
	if err != nil {
		return "", err
	}
	if err := checkParents(dir, target); err != nil {
		return "", err
	}
	return target, nil
}

func extractTarGz(ctx context.Context, r io.Reader, dir string, logger *slog.Logger) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			continue
		}

		target, err := entryPath(dir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLink(dir, target, hdr.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			logger.Debug("Skipping unsupported archive entry",
				logfields.Path(hdr.Name), slog.String("type", string(hdr.Typeflag)))
		}
	}
}

func extractZip(ctx context.Context, zr *zip.Reader, dir string, logger *slog.Logger) error {
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := entryPath(dir, zf.Name)
		if err != nil {
			return err
		}
		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o750); err != nil {
				return err
			}
		case mode&fs.ModeSymlink != 0:
			logger.Debug("Skipping symlink in zip archive", logfields.Path(zf.Name))
		case mode.IsRegular():
			if err := extractZipFile(zf, target); err != nil {
				return err
			}
		default:
			logger.Debug("Skipping unsupported archive entry", logfields.Path(zf.Name))
		}
	}
	return nil
}

func extractZipFile(zf *zip.File, target string) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	return writeFile(target, rc, zf.Mode().Perm())
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	// Never write through a link left by an earlier entry.
	if info, err := os.Lstat(target); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return err
		}
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm) // #nosec G304 -- target validated by entryPath
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil { // #nosec G110 -- archive comes from the configured source
		_ = out.Close()
		return err
	}
	return out.Close()
}
