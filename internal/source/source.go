// Package source provides authenticated clients that return a repository
// snapshot at a ref as a single compressed archive payload.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/refbuilder/internal/build"
	"git.home.luguber.info/inful/refbuilder/internal/config"
)

// ArchiveSource produces a compressed snapshot of repo at ref. Archives
// contain exactly one top-level directory.
type ArchiveSource interface {
	Archive(ctx context.Context, repo build.Repository, ref string) ([]byte, error)
}

// Func adapts a function to ArchiveSource.
type Func func(ctx context.Context, repo build.Repository, ref string) ([]byte, error)

func (f Func) Archive(ctx context.Context, repo build.Repository, ref string) ([]byte, error) {
	return f(ctx, repo, ref)
}

// LoggerBinder is implemented by sources that log their own progress.
// WithLogger returns a copy, so a source shared between tasks is untouched.
type LoggerBinder interface {
	WithLogger(logger *slog.Logger) ArchiveSource
}

// BindLogger returns src logging to logger, or src itself when it does not
// log or logger is nil.
func BindLogger(src ArchiveSource, logger *slog.Logger) ArchiveSource {
	if b, ok := src.(LoggerBinder); ok && logger != nil {
		return b.WithLogger(logger)
	}
	return src
}

const (
	defaultHTTPTimeout = 5 * time.Minute
	userAgent          = "refbuilder/1.0"
)

// maxArchiveSize caps a single downloaded payload.
const maxArchiveSize = 1 << 30

// New creates the source configured in cfg.
func New(cfg config.SourceConfig) (ArchiveSource, error) {
	switch cfg.Type {
	case config.SourceGitHub:
		return NewGitHubSource(cfg.APIURL, cfg.Auth), nil
	case config.SourceForgejo:
		return NewForgejoSource(cfg.APIURL, cfg.Auth), nil
	case config.SourceGit:
		auth, err := gitAuth(cfg.Auth)
		if err != nil {
			return nil, err
		}
		return NewGitSource(cfg.BaseURL, auth, cfg.Depth), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}
}
