package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/refbuilder/internal/build"
)

// Config represents the application configuration.
type Config struct {
	WorkingRoot  string          `yaml:"working_root"`
	Logging      LoggingConfig   `yaml:"logging"`
	Source       SourceConfig    `yaml:"source"`
	Execution    ExecutionConfig `yaml:"execution"`
	Workspace    WorkspaceConfig `yaml:"workspace"`
	Repositories []Repository    `yaml:"repositories"`
	Metrics      MetricsConfig   `yaml:"metrics"`
	Events       EventsConfig    `yaml:"events"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// SourceConfig selects where snapshots are downloaded from.
type SourceConfig struct {
	Type    SourceType  `yaml:"type"`     // github|forgejo|git
	APIURL  string      `yaml:"api_url"`  // API base URL for archive downloads
	BaseURL string      `yaml:"base_url"` // Clone URL prefix for the git source
	Depth   int         `yaml:"depth,omitempty"` // git only; 0 means 1, negative fetches full history
	Auth    *AuthConfig `yaml:"auth,omitempty"`
}

// ExecutionConfig controls how build commands are run.
type ExecutionConfig struct {
	// CommandTimeout bounds each build command. Zero disables the limit.
	CommandTimeout time.Duration `yaml:"command_timeout"`
	Shell          string        `yaml:"shell"`

	timeoutSpecified bool
}

// UnmarshalYAML records whether command_timeout was present so an explicit
// zero is not replaced by the default.
func (e *ExecutionConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw ExecutionConfig
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}
	*e = ExecutionConfig(r)
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "command_timeout" {
			e.timeoutSpecified = true
		}
	}
	return nil
}

// WorkspaceConfig controls the lifetime of the per-task working directory.
type WorkspaceConfig struct {
	// KeepOnFailure leaves the working directory in place after a failed run.
	KeepOnFailure bool `yaml:"keep_on_failure"`
}

// Repository is a buildable repository together with its build settings.
type Repository struct {
	Owner       string   `yaml:"owner"`
	Name        string   `yaml:"name"`
	Commands    []string `yaml:"commands"`
	BuildDir    string   `yaml:"build_dir"`
	Destination string   `yaml:"destination"`
}

// Spec returns the owner/name pair.
func (r Repository) Spec() build.Repository {
	return build.Repository{Owner: r.Owner, Name: r.Name}
}

// BuildConfig returns the per-task build settings for this repository.
func (r Repository) BuildConfig() build.Config {
	return build.Config{
		Commands:    append([]string(nil), r.Commands...),
		BuildDir:    r.BuildDir,
		Destination: r.Destination,
	}
}

// MetricsConfig selects where task metrics are exported at exit.
type MetricsConfig struct {
	Textfile    string `yaml:"textfile"`    // node_exporter textfile collector path
	Pushgateway string `yaml:"pushgateway"` // Pushgateway URL
	Job         string `yaml:"job,omitempty"`
}

// EventsConfig configures lifecycle event persistence and forwarding.
type EventsConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	NATSURL    string `yaml:"nats_url"`
	Subject    string `yaml:"subject"`
}

// FindRepository returns the configured entry for owner/name.
func (c *Config) FindRepository(owner, name string) (Repository, bool) {
	for _, r := range c.Repositories {
		if r.Owner == owner && r.Name == name {
			return r, true
		}
	}
	return Repository{}, false
}

// ErrNotFound is returned by Load when the configuration file does not exist.
var ErrNotFound = errors.New("configuration file not found")

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, configPath)
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references, then
// applies environment overrides and defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Default returns a configuration populated from the environment and
// defaults only. Used when no configuration file exists.
func Default() *Config {
	var cfg Config
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		WorkingRoot: DefaultWorkingRoot,
		Logging:     LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		Source: SourceConfig{
			Type:   SourceGitHub,
			APIURL: "https://api.github.com",
			Auth:   &AuthConfig{Type: AuthTypeToken, Token: "${GITHUB_TOKEN}"},
		},
		Execution: ExecutionConfig{CommandTimeout: DefaultCommandTimeout, Shell: DefaultShell},
		Repositories: []Repository{
			{
				Owner:       "acme",
				Name:        "site",
				Commands:    []string{"npm ci", "npm run build"},
				BuildDir:    "dist",
				Destination: "/srv/site",
			},
		},
		Events: EventsConfig{Subject: DefaultEventSubject},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
