package source

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/refbuilder/internal/config"
)

func TestGitAuth(t *testing.T) {
	tests := []struct {
		name        string
		authConfig  *config.AuthConfig
		expectNil   bool
		expectError bool
	}{
		{name: "nil config", authConfig: nil, expectNil: true},
		{name: "none auth", authConfig: &config.AuthConfig{Type: config.AuthTypeNone}, expectNil: true},
		{name: "token auth - valid", authConfig: &config.AuthConfig{Type: config.AuthTypeToken, Token: "test-token"}},
		{name: "token auth - missing token", authConfig: &config.AuthConfig{Type: config.AuthTypeToken}, expectNil: true, expectError: true},
		{name: "basic auth - valid", authConfig: &config.AuthConfig{Type: config.AuthTypeBasic, Username: "u", Password: "p"}},
		{name: "basic auth - missing username", authConfig: &config.AuthConfig{Type: config.AuthTypeBasic, Password: "p"}, expectNil: true, expectError: true},
		{name: "ssh - missing key", authConfig: &config.AuthConfig{Type: config.AuthTypeSSH, KeyPath: "/nonexistent/id_rsa"}, expectNil: true, expectError: true},
		{name: "unsupported auth type", authConfig: &config.AuthConfig{Type: "unsupported"}, expectNil: true, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := gitAuth(tt.authConfig)
			if tt.expectError && err == nil {
				t.Errorf("gitAuth() expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("gitAuth() unexpected error: %v", err)
			}
			if tt.expectNil && auth != nil {
				t.Errorf("gitAuth() expected nil auth but got %T", auth)
			}
			if tt.expectNil || tt.expectError {
				return
			}
			basicAuth, ok := auth.(*http.BasicAuth)
			if !ok {
				t.Fatalf("expected *http.BasicAuth, got %T", auth)
			}
			switch tt.authConfig.Type {
			case config.AuthTypeToken:
				if basicAuth.Username != "token" || basicAuth.Password != tt.authConfig.Token {
					t.Errorf("token auth should map to token:<token>, got %s", basicAuth.Username)
				}
			case config.AuthTypeBasic:
				if basicAuth.Username != tt.authConfig.Username || basicAuth.Password != tt.authConfig.Password {
					t.Errorf("basic auth credentials mismatch")
				}
			}
		})
	}
}
