package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// AuthType selects how refbuilder authenticates against the snapshot source.
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeSSH   AuthType = "ssh"
	AuthTypeToken AuthType = "token"
	AuthTypeBasic AuthType = "basic"
)

// AuthConfig holds source credentials. Token is overridden by
// REFBUILDER_SOURCE_TOKEN when set.
type AuthConfig struct {
	Type     AuthType `yaml:"type"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
	KeyPath  string   `yaml:"key_path,omitempty"`
}

// IsZero reports whether the source is accessed anonymously.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Type == "" || a.Type == AuthTypeNone }

// SSHKeyPath returns KeyPath, falling back to ~/.ssh/id_rsa.
func (a *AuthConfig) SSHKeyPath() string {
	if a != nil && a.KeyPath != "" {
		return a.KeyPath
	}
	return filepath.Join(os.Getenv("HOME"), ".ssh", "id_rsa")
}

// Validate checks that the credentials required by the auth type are present
// and that the type is usable with the given source.
func (a *AuthConfig) Validate(source SourceType) error {
	if a.IsZero() {
		return nil
	}
	switch a.Type {
	case AuthTypeToken:
		if a.Token == "" {
			return errors.New("token auth requires a token")
		}
	case AuthTypeBasic:
		if a.Username == "" || a.Password == "" {
			return errors.New("basic auth requires username and password")
		}
	case AuthTypeSSH:
		if source != SourceGit {
			return fmt.Errorf("ssh auth is only supported by the git source, not %s", source)
		}
	default:
		return fmt.Errorf("unsupported auth type: %s", a.Type)
	}
	return nil
}
