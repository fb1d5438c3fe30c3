package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate validates the complete configuration structure.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}
	if !filepath.IsAbs(cfg.WorkingRoot) {
		return fmt.Errorf("working_root must be absolute, got %q", cfg.WorkingRoot)
	}
	if err := validateSource(&cfg.Source); err != nil {
		return err
	}
	return validateRepositories(cfg.Repositories)
}

func validateSource(s *SourceConfig) error {
	switch s.Type {
	case SourceGitHub, SourceForgejo:
		if s.APIURL == "" {
			return fmt.Errorf("source %s requires api_url", s.Type)
		}
	case SourceGit:
		if s.BaseURL == "" {
			return errors.New("source git requires base_url")
		}
	default:
		return fmt.Errorf("unsupported source type: %s", s.Type)
	}
	return s.Auth.Validate(s.Type)
}

func validateRepositories(repos []Repository) error {
	seen := make(map[string]struct{}, len(repos))
	for i, r := range repos {
		if err := r.Spec().Validate(); err != nil {
			return fmt.Errorf("repositories[%d]: %w", i, err)
		}
		key := r.Owner + "/" + r.Name
		if _, dup := seen[key]; dup {
			return fmt.Errorf("repositories[%d]: duplicate repository %s", i, key)
		}
		seen[key] = struct{}{}
		if len(r.Commands) == 0 {
			return fmt.Errorf("repository %s: at least one command is required", key)
		}
		for j, c := range r.Commands {
			if strings.TrimSpace(c) == "" {
				return fmt.Errorf("repository %s: command %d is empty", key, j)
			}
		}
		if err := r.BuildConfig().Validate(); err != nil {
			return fmt.Errorf("repository %s: %w", key, err)
		}
	}
	return nil
}
