// Package config provides configuration management for storyroom.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir     string
	origHomeDir string
}

func (s *ConfigSuite) SetupTest() {
	s.tempDir = s.T().TempDir()

	// Save and override HOME so DataDir lands in the sandbox
	s.origHomeDir = os.Getenv("HOME")
	os.Setenv("HOME", s.tempDir)
}

func (s *ConfigSuite) TearDownTest() {
	os.Setenv("HOME", s.origHomeDir)
	for _, key := range []string{
		"STORYROOM_LISTEN_ADDR", "STORYROOM_LOG_LEVEL", "STORYROOM_SCENARIO",
		"STORYROOM_ARCHIVE", "STORYROOM_MAX_TURNS", "STORYROOM_INVENTORY_CAP",
		"STORYROOM_TEARDOWN_GRACE",
	} {
		os.Unsetenv(key)
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultListenAddr, cfg.ListenAddr)
	s.Equal(DefaultLogLevel, cfg.LogLevel)
	s.Equal(DefaultMaxTurns, cfg.MaxTurns)
	s.Equal(DefaultInventoryCap, cfg.InventoryCap)
	s.Equal(DefaultTeardownGrace, cfg.TeardownGrace)
	s.Equal(DefaultSSETimeout, cfg.SSEWriteTimeout)
	s.Empty(cfg.ScenarioPath)
	s.Contains(cfg.ArchivePath, ".storyroom")
}

// TestLoadMissingFile tests that an absent config file yields defaults.
func (s *ConfigSuite) TestLoadMissingFile() {
	cfg, err := Load("")
	s.Require().NoError(err)
	s.Equal(DefaultListenAddr, cfg.ListenAddr)
}

// TestLoadFile tests reading settings from YAML.
func (s *ConfigSuite) TestLoadFile() {
	path := filepath.Join(s.tempDir, "config.yaml")
	content := `
listen_addr: "0.0.0.0:9900"
log_level: debug
max_turns: 25
inventory_cap: 4
scenario_path: /tmp/vale.yaml
teardown_grace: 5s
`
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	s.Require().NoError(err)

	s.Equal("0.0.0.0:9900", cfg.ListenAddr)
	s.Equal("debug", cfg.LogLevel)
	s.Equal(25, cfg.MaxTurns)
	s.Equal(4, cfg.InventoryCap)
	s.Equal("/tmp/vale.yaml", cfg.ScenarioPath)
	s.Equal(5*time.Second, cfg.TeardownGrace)
}

// TestEnvOverrides tests that environment variables beat the file.
func (s *ConfigSuite) TestEnvOverrides() {
	path := filepath.Join(s.tempDir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("listen_addr: \"0.0.0.0:9900\"\nmax_turns: 25\n"), 0o644))

	os.Setenv("STORYROOM_LISTEN_ADDR", "127.0.0.1:7000")
	os.Setenv("STORYROOM_MAX_TURNS", "10")
	os.Setenv("STORYROOM_TEARDOWN_GRACE", "1s")

	cfg, err := Load(path)
	s.Require().NoError(err)

	s.Equal("127.0.0.1:7000", cfg.ListenAddr)
	s.Equal(10, cfg.MaxTurns)
	s.Equal(time.Second, cfg.TeardownGrace)
}

// TestLoadRejectsInvalid tests validation of parsed values.
func (s *ConfigSuite) TestLoadRejectsInvalid() {
	path := filepath.Join(s.tempDir, "config.yaml")

	s.Require().NoError(os.WriteFile(path, []byte("max_turns: -1\n"), 0o644))
	_, err := Load(path)
	s.ErrorContains(err, "max_turns")

	s.Require().NoError(os.WriteFile(path, []byte("inventory_cap: 0\n"), 0o644))
	_, err = Load(path)
	s.ErrorContains(err, "inventory_cap")

	s.Require().NoError(os.WriteFile(path, []byte("{{nope"), 0o644))
	_, err = Load(path)
	s.ErrorContains(err, "parse config")
}
