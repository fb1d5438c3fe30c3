package build

import (
	"errors"
	"path/filepath"
)

// Config carries the per-task build settings. A task keeps its own copy and
// never mutates it.
type Config struct {
	// Commands run in order inside the snapshot with /bin/sh -c.
	Commands []string `yaml:"commands" json:"commands"`
	// BuildDir is the output directory relative to the snapshot root.
	BuildDir string `yaml:"build_dir" json:"build_dir"`
	// Destination is the absolute publish path.
	Destination string `yaml:"destination" json:"destination"`
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	c.Commands = append([]string(nil), c.Commands...)
	return c
}

// Validate checks the settings a task cannot run without.
func (c Config) Validate() error {
	if c.Destination == "" {
		return errors.New("destination is required")
	}
	if !filepath.IsAbs(c.Destination) {
		return errors.New("destination must be an absolute path")
	}
	if filepath.Clean(c.Destination) == string(filepath.Separator) {
		return errors.New("destination must not be the filesystem root")
	}
	if filepath.IsAbs(c.BuildDir) {
		return errors.New("build dir must be relative to the snapshot")
	}
	return nil
}
