package config

import (
	"path/filepath"
	"time"
)

const (
	DefaultWorkingRoot    = "/home"
	DefaultCommandTimeout = 30 * time.Minute
	DefaultShell          = "/bin/sh"
	DefaultEventSubject   = "refbuilder.tasks"
	DefaultMetricsJob     = "refbuilder"
	defaultGitHubAPIURL   = "https://api.github.com"
	defaultGitHubBaseURL  = "https://github.com"
)

func applyDefaults(cfg *Config) {
	if cfg.WorkingRoot == "" {
		cfg.WorkingRoot = DefaultWorkingRoot
	}
	cfg.WorkingRoot = filepath.Clean(cfg.WorkingRoot)

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))

	if cfg.Source.Type == "" {
		cfg.Source.Type = SourceGitHub
	} else if t := NormalizeSourceType(string(cfg.Source.Type)); t != "" {
		cfg.Source.Type = t
	}
	if cfg.Source.Type == SourceGitHub {
		if cfg.Source.APIURL == "" {
			cfg.Source.APIURL = defaultGitHubAPIURL
		}
		if cfg.Source.BaseURL == "" {
			cfg.Source.BaseURL = defaultGitHubBaseURL
		}
	}
	if cfg.Source.Type == SourceGit && cfg.Source.Depth == 0 {
		cfg.Source.Depth = 1
	}
	if cfg.Source.Depth < 0 {
		cfg.Source.Depth = 0
	}

	if !cfg.Execution.timeoutSpecified && cfg.Execution.CommandTimeout == 0 {
		cfg.Execution.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.Execution.CommandTimeout < 0 {
		cfg.Execution.CommandTimeout = 0
	}
	if cfg.Execution.Shell == "" {
		cfg.Execution.Shell = DefaultShell
	}

	if cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultEventSubject
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = DefaultMetricsJob
	}
}
