// Package config loads the eventkeep configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/basket/eventkeep/internal/telemetry"
)

// Default decision names accepted in the compaction section.
const (
	DecisionKeep = "keep"
	DecisionDrop = "drop"
)

// CompactionConfig controls the compaction driver.
type CompactionConfig struct {
	// DefaultDecision applies when every registered filter abstains:
	// "keep" (default) or "drop".
	DefaultDecision string `yaml:"default_decision"`

	// EventLogDir is the directory holding JSON-lines event logs.
	EventLogDir string `yaml:"event_log_dir"`

	// Schedule is a 5-field cron expression for periodic passes; empty
	// disables scheduling.
	Schedule string `yaml:"schedule"`

	// Watch enables recompaction when a log file grows.
	Watch bool `yaml:"watch"`

	// WatchDebounceMS coalesces bursts of writes before triggering; zero
	// means the watcher's default.
	WatchDebounceMS int `yaml:"watch_debounce_ms"`
}

// WatchDebounce returns the debounce interval as a duration.
func (c CompactionConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

// Config is the root configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	// LogDir is where eventkeep writes its own logs; defaults to the
	// working directory.
	LogDir string `yaml:"log_dir"`

	Compaction CompactionConfig `yaml:"compaction"`
	Telemetry  telemetry.Config `yaml:"telemetry"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		LogDir:   ".",
		Compaction: CompactionConfig{
			DefaultDecision: DecisionKeep,
			EventLogDir:     ".",
		},
	}
}

// Load reads the config file at path, layering it over the defaults. An
// empty path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogDir == "" {
		c.LogDir = "."
	}
	if c.Compaction.DefaultDecision == "" {
		c.Compaction.DefaultDecision = DecisionKeep
	}
	if c.Compaction.EventLogDir == "" {
		c.Compaction.EventLogDir = "."
	}
}

// Validate checks values Load cannot default away.
func (c Config) Validate() error {
	switch c.Compaction.DefaultDecision {
	case DecisionKeep, DecisionDrop:
	default:
		return fmt.Errorf("compaction.default_decision: unknown value %q (want %q or %q)",
			c.Compaction.DefaultDecision, DecisionKeep, DecisionDrop)
	}
	if c.Compaction.WatchDebounceMS < 0 {
		return fmt.Errorf("compaction.watch_debounce_ms: must not be negative, got %d", c.Compaction.WatchDebounceMS)
	}
	return nil
}
