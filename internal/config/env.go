package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables consulted after the YAML file is decoded. They win
// over file values.
const (
	EnvWorkingRoot = "REFBUILDER_ROOT"
	EnvLogLevel    = "REFBUILDER_LOG_LEVEL"
	EnvSourceToken = "REFBUILDER_SOURCE_TOKEN"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFile loads .env/.env.local into the process environment. Variables
// already set are never overwritten. It stops at the first file found.
func loadEnvFile() error {
	for _, envPath := range envFiles {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load %s: %w", envPath, err)
		}
		fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", envPath)
		return nil
	}
	return errors.New("no .env file found")
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvWorkingRoot)); v != "" {
		cfg.WorkingRoot = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = LogLevel(v)
	}
	if v := os.Getenv(EnvSourceToken); v != "" {
		if cfg.Source.Auth == nil || cfg.Source.Auth.IsZero() {
			cfg.Source.Auth = &AuthConfig{Type: AuthTypeToken}
		}
		cfg.Source.Auth.Token = v
	}
}
