package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvWorkingRoot, EnvLogLevel, EnvSourceToken} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("SITE_TOKEN", "secret-token")
	configContent := "working_root: /srv/refbuilder\n" +
		"logging:\n" +
		"  level: DEBUG\n" +
		"  format: json\n" +
		"source:\n" +
		"  type: forgejo\n" +
		"  api_url: https://git.example.com\n" +
		"  auth:\n" +
		"    type: token\n" +
		"    token: ${SITE_TOKEN}\n" +
		"execution:\n" +
		"  command_timeout: 5m\n" +
		"workspace:\n" +
		"  keep_on_failure: true\n" +
		"repositories:\n" +
		"  - owner: acme\n" +
		"    name: site\n" +
		"    commands: [\"npm ci\", \"npm run build\"]\n" +
		"    build_dir: dist\n" +
		"    destination: /srv/site\n" +
		"events:\n" +
		"  sqlite_path: /var/lib/refbuilder/events.db\n"

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "/srv/refbuilder", cfg.WorkingRoot)
	require.Equal(t, LogLevelDebug, cfg.Logging.Level)
	require.Equal(t, LogFormatJSON, cfg.Logging.Format)
	require.Equal(t, SourceForgejo, cfg.Source.Type)
	require.Equal(t, "secret-token", cfg.Source.Auth.Token)
	require.Equal(t, 5*time.Minute, cfg.Execution.CommandTimeout)
	require.Equal(t, DefaultShell, cfg.Execution.Shell)
	require.True(t, cfg.Workspace.KeepOnFailure)
	require.Equal(t, DefaultEventSubject, cfg.Events.Subject)

	repo, ok := cfg.FindRepository("acme", "site")
	require.True(t, ok)
	bc := repo.BuildConfig()
	require.Equal(t, []string{"npm ci", "npm run build"}, bc.Commands)
	require.Equal(t, "dist", bc.BuildDir)
	require.Equal(t, "/srv/site", bc.Destination)

	_, ok = cfg.FindRepository("acme", "missing")
	require.False(t, ok)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "configuration file not found")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)
	require.Equal(t, DefaultWorkingRoot, cfg.WorkingRoot)
	require.Equal(t, SourceGitHub, cfg.Source.Type)
	require.Equal(t, "https://api.github.com", cfg.Source.APIURL)
	require.Equal(t, DefaultCommandTimeout, cfg.Execution.CommandTimeout)
	require.Equal(t, LogLevelInfo, cfg.Logging.Level)
	require.Equal(t, DefaultMetricsJob, cfg.Metrics.Job)
}

func TestExplicitZeroTimeoutDisablesLimit(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte("execution:\n  command_timeout: 0s\n"))
	require.NoError(t, err)
	require.Zero(t, cfg.Execution.CommandTimeout)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvWorkingRoot, "/data/builds")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvSourceToken, "env-token")

	cfg, err := Parse([]byte("working_root: /home\n"))
	require.NoError(t, err)
	require.Equal(t, "/data/builds", cfg.WorkingRoot)
	require.Equal(t, LogLevelWarn, cfg.Logging.Level)
	require.NotNil(t, cfg.Source.Auth)
	require.Equal(t, AuthTypeToken, cfg.Source.Auth.Type)
	require.Equal(t, "env-token", cfg.Source.Auth.Token)

	require.Equal(t, "/data/builds", Default().WorkingRoot)
}

func TestValidation(t *testing.T) {
	clearEnv(t)

	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"relative root", "working_root: build\n", "working_root must be absolute"},
		{"unknown source", "source:\n  type: svn\n", "unsupported source type"},
		{"git without base url", "source:\n  type: git\n", "requires base_url"},
		{"ssh over http", "source:\n  auth:\n    type: ssh\n", "only supported by the git source"},
		{"token without value", "source:\n  auth:\n    type: token\n", "requires a token"},
		{"no commands", "repositories:\n  - {owner: acme, name: site, destination: /srv/site}\n", "at least one command"},
		{"relative destination", "repositories:\n  - {owner: acme, name: site, commands: [make], destination: out}\n", "absolute"},
		{"path-like owner", "repositories:\n  - {owner: ../acme, name: site, commands: [make], destination: /srv}\n", "single path segment"},
		{
			"duplicate",
			"repositories:\n  - {owner: a, name: b, commands: [make], destination: /x}\n  - {owner: a, name: b, commands: [make], destination: /y}\n",
			"duplicate repository",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestInit(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "refbuilder.yaml")
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.ErrorContains(t, err, "already exists")
	require.NoError(t, Init(path, true))

	t.Setenv("GITHUB_TOKEN", "example")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Repositories, 1)
	require.Equal(t, DefaultCommandTimeout, cfg.Execution.CommandTimeout)
}

func TestSlogLevel(t *testing.T) {
	require.Equal(t, "DEBUG", LogLevel("debug").SlogLevel().String())
	require.Equal(t, "WARN", LogLevel("Warning").SlogLevel().String())
	require.Equal(t, "INFO", LogLevel("bogus").SlogLevel().String())
}
