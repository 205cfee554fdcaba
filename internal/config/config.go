// Package config provides configuration management for storyroom.
// Precedence: defaults, then the optional YAML file, then STORYROOM_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultListenAddr    = "127.0.0.1:8787"
	DefaultLogLevel      = "info"
	DefaultMaxTurns      = 50
	DefaultInventoryCap  = 10
	DefaultTeardownGrace = 30 * time.Second
	DefaultSSETimeout    = 2 * time.Second
)

// Config holds all server settings.
type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	LogLevel        string        `yaml:"log_level"`
	MaxTurns        int           `yaml:"max_turns"`
	InventoryCap    int           `yaml:"inventory_cap"`
	ScenarioPath    string        `yaml:"scenario_path"`
	ArchivePath     string        `yaml:"archive_path"`
	TeardownGrace   time.Duration `yaml:"teardown_grace"`
	SSEWriteTimeout time.Duration `yaml:"sse_write_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:      DefaultListenAddr,
		LogLevel:        DefaultLogLevel,
		MaxTurns:        DefaultMaxTurns,
		InventoryCap:    DefaultInventoryCap,
		ArchivePath:     filepath.Join(DataDir(), "archive.db"),
		TeardownGrace:   DefaultTeardownGrace,
		SSEWriteTimeout: DefaultSSETimeout,
	}
}

// DataDir returns ~/.storyroom, creating nothing.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".storyroom"
	}
	return filepath.Join(home, ".storyroom")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// Load builds the configuration from path (may be empty for the
// default location; a missing file is not an error) plus environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.MaxTurns <= 0 {
		return nil, fmt.Errorf("max_turns must be positive, got %d", cfg.MaxTurns)
	}
	if cfg.InventoryCap <= 0 {
		return nil, fmt.Errorf("inventory_cap must be positive, got %d", cfg.InventoryCap)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("STORYROOM_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("STORYROOM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("STORYROOM_SCENARIO"); v != "" {
		c.ScenarioPath = v
	}
	if v := os.Getenv("STORYROOM_ARCHIVE"); v != "" {
		c.ArchivePath = v
	}
	if v := os.Getenv("STORYROOM_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxTurns = n
		}
	}
	if v := os.Getenv("STORYROOM_INVENTORY_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.InventoryCap = n
		}
	}
	if v := os.Getenv("STORYROOM_TEARDOWN_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.TeardownGrace = d
		}
	}
}
