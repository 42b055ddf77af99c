// Package config handles configuration loading and validation for corkboard.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StorageBackend selects which task store backs the board.
type StorageBackend string

const (
	// BackendAuto probes the durable backend and falls back to memory.
	BackendAuto StorageBackend = "auto"
	// BackendSQLite requires the durable backend (still falls back if
	// the probe fails; the selector never hard-errors).
	BackendSQLite StorageBackend = "sqlite"
	// BackendMemory forces the transient in-memory store.
	BackendMemory StorageBackend = "memory"
)

// StorageConfig holds storage backend settings.
type StorageConfig struct {
	Backend      StorageBackend `yaml:"backend"`
	MaxOpenConns int            `yaml:"max_open_conns"`
	MaxIdleConns int            `yaml:"max_idle_conns"`
	BusyTimeout  int            `yaml:"busy_timeout_ms"`
}

// Config holds the application configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	DataDir string        `yaml:"-"` // set by caller, not from config file
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Backend:      BackendAuto,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5000,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}
	if c.Storage.MaxOpenConns == 0 {
		c.Storage.MaxOpenConns = defaults.Storage.MaxOpenConns
	}
	if c.Storage.MaxIdleConns == 0 {
		c.Storage.MaxIdleConns = defaults.Storage.MaxIdleConns
	}
	if c.Storage.BusyTimeout == 0 {
		c.Storage.BusyTimeout = defaults.Storage.BusyTimeout
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	switch c.Storage.Backend {
	case BackendAuto, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if c.Storage.MaxOpenConns < 1 {
		return fmt.Errorf("storage.max_open_conns must be at least 1")
	}

	return nil
}
