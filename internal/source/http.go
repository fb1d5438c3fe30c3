package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/refbuilder/internal/build"
	"git.home.luguber.info/inful/refbuilder/internal/config"
	"git.home.luguber.info/inful/refbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/refbuilder/internal/logfields"
)

// HTTPSource downloads archives from a forge REST API. GitHub and Forgejo
// differ only in the archive endpoint and the authorization header format.
type HTTPSource struct {
	httpClient *http.Client
	apiURL     string
	auth       *config.AuthConfig
	logger     *slog.Logger

	authHeaderPrefix string // "Bearer " for GitHub, "token " for Forgejo
	customHeaders    map[string]string
	endpoint         func(repo build.Repository, ref string) string
}

// NewGitHubSource returns a source for the GitHub tarball endpoint
// (GET /repos/{owner}/{repo}/tarball/{ref}).
func NewGitHubSource(apiURL string, auth *config.AuthConfig) *HTTPSource {
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	s := newHTTPSource(apiURL, auth)
	s.customHeaders["Accept"] = "application/vnd.github+json"
	s.customHeaders["X-GitHub-Api-Version"] = "2022-11-28"
	s.endpoint = func(repo build.Repository, ref string) string {
		return path.Join("repos", url.PathEscape(repo.Owner), url.PathEscape(repo.Name), "tarball", url.PathEscape(ref))
	}
	return s
}

// NewForgejoSource returns a source for the Forgejo/Gitea archive endpoint
// (GET /repos/{owner}/{repo}/archive/{ref}.tar.gz). apiURL includes /api/v1.
func NewForgejoSource(apiURL string, auth *config.AuthConfig) *HTTPSource {
	s := newHTTPSource(apiURL, auth)
	s.authHeaderPrefix = "token "
	s.endpoint = func(repo build.Repository, ref string) string {
		return path.Join("repos", url.PathEscape(repo.Owner), url.PathEscape(repo.Name), "archive", url.PathEscape(ref)+".tar.gz")
	}
	return s
}

func newHTTPSource(apiURL string, auth *config.AuthConfig) *HTTPSource {
	s := &HTTPSource{
		httpClient:       &http.Client{Timeout: defaultHTTPTimeout},
		apiURL:           apiURL,
		logger:           slog.Default(),
		authHeaderPrefix: "Bearer ",
		customHeaders:    make(map[string]string),
	}
	if !auth.IsZero() {
		s.auth = auth
	}
	return s
}

// WithHTTPClient replaces the default client.
func (s *HTTPSource) WithHTTPClient(c *http.Client) *HTTPSource {
	s.httpClient = c
	return s
}

// WithLogger returns a copy of the source that logs to logger.
func (s *HTTPSource) WithLogger(logger *slog.Logger) ArchiveSource {
	c := *s
	c.logger = logger
	return &c
}

// Archive downloads the snapshot of repo at ref.
func (s *HTTPSource) Archive(ctx context.Context, repo build.Repository, ref string) ([]byte, error) {
	req, err := s.newRequest(ctx, s.endpoint(repo, ref))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Requesting archive", logfields.URL(req.URL.Redacted()), logfields.Ref(ref))
	return s.doRequest(req)
}

func (s *HTTPSource) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	u, err := url.Parse(s.apiURL)
	if err != nil {
		return nil, errors.ConfigError("failed to parse API URL").
			WithCause(err).
			WithContext("api_url", s.apiURL).
			Build()
	}
	// Escaped segments must survive path joining.
	basePath := strings.TrimSuffix(u.EscapedPath(), "/")
	u.RawPath = basePath + "/" + endpoint
	u.Path, err = url.PathUnescape(u.RawPath)
	if err != nil {
		return nil, errors.ValidationError("invalid archive path").WithCause(err).Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, errors.NetworkError("failed to create request").
			WithCause(err).
			WithContext("url", u.String()).
			Build()
	}
	if s.auth != nil {
		switch s.auth.Type {
		case config.AuthTypeToken:
			req.Header.Set("Authorization", s.authHeaderPrefix+s.auth.Token)
		case config.AuthTypeBasic:
			req.SetBasicAuth(s.auth.Username, s.auth.Password)
		}
	}
	req.Header.Set("User-Agent", userAgent)
	for key, value := range s.customHeaders {
		req.Header.Set(key, value)
	}
	return req, nil
}

func (s *HTTPSource) doRequest(req *http.Request) ([]byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.NetworkError("failed to download archive").
			WithCause(err).
			WithContext("url", req.URL.String()).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		limitedBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		bodyStr := strings.ReplaceAll(string(limitedBody), "\n", " ")

		category := errors.CategoryNetwork
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			category = errors.CategoryAuth
		case http.StatusNotFound:
			category = errors.CategoryNotFound
		}
		return nil, errors.NewError(category, fmt.Sprintf("archive download failed: %s", resp.Status)).
			WithContext("code", resp.StatusCode).
			WithContext("url", req.URL.String()).
			WithContext("response", bodyStr).
			Build()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveSize+1))
	if err != nil {
		return nil, errors.NetworkError("failed to read archive body").WithCause(err).Build()
	}
	if len(data) > maxArchiveSize {
		return nil, errors.NetworkError("archive exceeds size limit").
			WithContext("limit", maxArchiveSize).
			Build()
	}
	return data, nil
}
