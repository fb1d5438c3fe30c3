package config

import "strings"

// SourceType enumerates the supported snapshot providers.
type SourceType string

const (
	SourceGitHub  SourceType = "github"
	SourceForgejo SourceType = "forgejo"
	SourceGit     SourceType = "git"
)

// NormalizeSourceType canonicalizes a source type string (case-insensitive) or returns empty if unknown.
func NormalizeSourceType(raw string) SourceType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(SourceGitHub):
		return SourceGitHub
	case string(SourceForgejo), "gitea":
		return SourceForgejo
	case string(SourceGit):
		return SourceGit
	default:
		return ""
	}
}
