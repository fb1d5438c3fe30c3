// Package fsutil holds the filesystem helpers shared by the overlay and publish stages.
package fsutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/refbuilder/internal/logfields"
)

// CopyOptions tunes CopyDir.
type CopyOptions struct {
	// Logger receives debug lines for skipped entries. Nil means slog.Default().
	Logger *slog.Logger
}

// CopyDir recursively copies the contents of src into dst, creating dst if
// needed. Existing files are overwritten; an existing entry whose kind differs
// from the source (file vs directory) is removed first. Symlinks in src are
// skipped so a copy never writes outside dst.
func CopyDir(src, dst string, opts CopyOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return copyDir(src, dst, logger)
}

func copyDir(src, dst string, logger *slog.Logger) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	if err := ensureDir(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.Type()&os.ModeSymlink != 0:
			logger.Debug("Skipping symlink during copy", logfields.Path(srcPath))
		case entry.IsDir():
			if err := copyDir(srcPath, dstPath, logger); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := copyFile(srcPath, dstPath); err != nil {
				return fmt.Errorf("copy %s: %w", srcPath, err)
			}
		default:
			logger.Debug("Skipping irregular file during copy", logfields.Path(srcPath))
		}
	}

	return nil
}

// ensureDir creates dir, replacing a non-directory entry at that path.
func ensureDir(dir string, perm os.FileMode) error {
	if info, err := os.Lstat(dir); err == nil && !info.IsDir() {
		if err := os.Remove(dir); err != nil {
			return err
		}
	}
	return os.MkdirAll(dir, perm|0o700)
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) error {
	if info, err := os.Lstat(dst); err == nil && (info.IsDir() || info.Mode()&os.ModeSymlink != 0) {
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}
	if err := dstFile.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, srcInfo.Mode().Perm())
}

// ResetDir removes dir and everything below it, then recreates it empty.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
