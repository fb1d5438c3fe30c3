// Package commands implements the refbuilder command line.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/refbuilder/internal/config"
)

// Global carries process-wide handles into subcommands.
type Global struct {
	Stdout io.Writer
	Stderr io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"refbuilder.yaml" type:"path"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log format (text|json); overrides logging.format"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build  BuildCmd  `cmd:"" help:"Fetch, build and publish one repository at one ref"`
	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
	Events EventsCmd `cmd:"" help:"List stored lifecycle events of a task"`
}

// AfterApply runs after flag parsing; set up logging once. Commands that
// load a configuration call configureLogging again with its settings.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := config.NormalizeLogLevel(os.Getenv(config.EnvLogLevel))
	c.configureLogging(config.LoggingConfig{Level: level, Format: config.LogFormatText})
	return nil
}

func (c *CLI) configureLogging(cfg config.LoggingConfig) {
	slog.SetDefault(slog.New(NewLogHandler(os.Stderr, c.logLevel(cfg), c.logFormat(cfg))))
}

func (c *CLI) logLevel(cfg config.LoggingConfig) slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return cfg.Level.SlogLevel()
}

func (c *CLI) logFormat(cfg config.LoggingConfig) config.LogFormat {
	if c.LogFormat != "" {
		return config.NormalizeLogFormat(c.LogFormat)
	}
	return config.NormalizeLogFormat(string(cfg.Format))
}

// NewLogHandler returns the process log handler for format.
func NewLogHandler(w io.Writer, level slog.Level, format config.LogFormat) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
