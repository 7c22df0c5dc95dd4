// Package config loads the annlsh-demo application's configuration.
//
// The index core (pkg/annlsh) never reads this package or the environment
// directly; it is constructed from explicit Go values. This package exists
// only for the demo CLI, which needs somewhere to keep backend selection,
// storage location and projector dimensions between invocations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Backend selects the IndexStore implementation the demo CLI talks to.
type Backend string

const (
	BackendFilesystem Backend = "fs"
	BackendSQLite     Backend = "sqlite"
)

// Config is the complete annlsh-demo configuration.
type Config struct {
	Version int `yaml:"version"`

	// Backend selects "fs" or "sqlite".
	Backend Backend `yaml:"backend"`

	// Root is the filesystem index directory (fs backend) or the sqlite
	// file path (sqlite backend). An empty sqlite path opens an in-memory
	// database.
	Root string `yaml:"root"`

	Projector ProjectorConfig `yaml:"projector"`

	// MagnitudeRadius is the number of magnitude buckets on either side of
	// a query's own bucket to search. Default 2. Validate accepts 0, but
	// annlsh.NewIndex treats a radius <= 0 as unset and searches 2.
	MagnitudeRadius int `yaml:"magnitude_radius"`

	LogLevel string `yaml:"log_level"`
}

// ProjectorConfig configures the random-projection hash.
type ProjectorConfig struct {
	Tables    int `yaml:"tables"`     // T
	Bits      int `yaml:"bits"`       // H
	Dimension int `yaml:"dimension"`  // D
}

// Default returns the reference configuration (T=49, H=7, D=128), matching
// the values used as a worked example in the index design.
func Default() *Config {
	return &Config{
		Version: 1,
		Backend: BackendFilesystem,
		Root:    defaultRoot(),
		Projector: ProjectorConfig{
			Tables:    49,
			Bits:      7,
			Dimension: 128,
		},
		MagnitudeRadius: 2,
		LogLevel:        "info",
	}
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".annlsh", "index")
	}
	return filepath.Join(home, ".annlsh", "index")
}

// Load builds a Config in order of increasing precedence:
//  1. hardcoded defaults
//  2. a YAML file at path, if it exists
//  3. ANNLSH_* environment variable overrides
//
// An empty path skips step 2 entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ANNLSH_BACKEND"); v != "" {
		c.Backend = Backend(v)
	}
	if v := os.Getenv("ANNLSH_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("ANNLSH_TABLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Projector.Tables = n
		}
	}
	if v := os.Getenv("ANNLSH_BITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Projector.Bits = n
		}
	}
	if v := os.Getenv("ANNLSH_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Projector.Dimension = n
		}
	}
	if v := os.Getenv("ANNLSH_MAGNITUDE_RADIUS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MagnitudeRadius = n
		}
	}
	if v := os.Getenv("ANNLSH_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks that the configuration describes a usable index.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFilesystem, BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendFilesystem, BackendSQLite)
	}
	if c.Projector.Tables < 1 {
		return fmt.Errorf("projector.tables must be >= 1, got %d", c.Projector.Tables)
	}
	if c.Projector.Bits < 1 {
		return fmt.Errorf("projector.bits must be >= 1, got %d", c.Projector.Bits)
	}
	if c.Projector.Bits > 31 {
		return fmt.Errorf("projector.bits must be <= 31 to fit a packed hash code, got %d", c.Projector.Bits)
	}
	if c.Projector.Dimension < 1 {
		return fmt.Errorf("projector.dimension must be >= 1, got %d", c.Projector.Dimension)
	}
	if c.MagnitudeRadius < 0 {
		return fmt.Errorf("magnitude_radius must be >= 0, got %d", c.MagnitudeRadius)
	}
	return nil
}
