package source

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/refbuilder/internal/config"
)

// gitAuth converts source credentials into a go-git AuthMethod. A nil method
// means anonymous access.
func gitAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	if authCfg.IsZero() {
		return nil, nil
	}
	if err := authCfg.Validate(config.SourceGit); err != nil {
		return nil, err
	}
	switch authCfg.Type {
	case config.AuthTypeToken:
		// Forges accept any non-empty username alongside a token.
		return &http.BasicAuth{Username: "token", Password: authCfg.Token}, nil
	case config.AuthTypeBasic:
		return &http.BasicAuth{Username: authCfg.Username, Password: authCfg.Password}, nil
	default:
		keyPath := authCfg.SSHKeyPath()
		keys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
		if err != nil {
			return nil, fmt.Errorf("load ssh key %s: %w", keyPath, err)
		}
		return keys, nil
	}
}
