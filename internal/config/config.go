// Package config loads and validates the service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blue-harvest-ops/fieldaudit/internal/alert"
	"github.com/blue-harvest-ops/fieldaudit/internal/api"
	"github.com/blue-harvest-ops/fieldaudit/internal/detect"
	"github.com/blue-harvest-ops/fieldaudit/internal/notifier"
	"github.com/blue-harvest-ops/fieldaudit/internal/workflow"
)

// Config is the full service configuration.
type Config struct {
	Log           LogConfig           `yaml:"log"`
	Server        api.Config          `yaml:"server"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Storage       StorageConfig       `yaml:"storage"`
	Detection     detect.Config       `yaml:"detection"`
	Workflow      workflow.Config     `yaml:"workflow"`
	Directory     alert.Directory     `yaml:"directory"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Pretty bool   `yaml:"pretty"` // human-readable console output
}

// MetricsConfig controls the standalone Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // default :9090
}

// StorageConfig controls audit persistence.
type StorageConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `yaml:"path"`
	// Retention is how long lifecycle events are kept before pruning.
	Retention time.Duration `yaml:"retention"`
	// PruneInterval is the cadence of the retention sweep.
	PruneInterval time.Duration `yaml:"prune_interval"`
	// SnapshotInterval is the cadence of workflow state snapshots.
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// NotificationsConfig wires the delivery channels.
type NotificationsConfig struct {
	SlackEnabled bool                     `yaml:"slack_enabled"`
	Slack        notifier.SlackConfig     `yaml:"slack"`
	LogEnabled   bool                     `yaml:"log_enabled"` // default true
	RateLimit    notifier.RateLimitConfig `yaml:"rate_limit"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse parses, defaults, and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	cfg.Notifications.LogEnabled = true

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Notifications.LogEnabled = true
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Storage.Retention == 0 {
		c.Storage.Retention = 90 * 24 * time.Hour
	}
	if c.Storage.PruneInterval == 0 {
		c.Storage.PruneInterval = 24 * time.Hour
	}
	if c.Storage.SnapshotInterval == 0 {
		c.Storage.SnapshotInterval = time.Hour
	}

	c.Server.SetDefaults()
	c.Detection.SetDefaults()
	c.Workflow.SetDefaults()
	c.Directory.SetDefaults()

	defaults := notifier.DefaultRateLimitConfig()
	if c.Notifications.RateLimit.MaxPerWindow == 0 {
		c.Notifications.RateLimit.MaxPerWindow = defaults.MaxPerWindow
	}
	if c.Notifications.RateLimit.Window == 0 {
		c.Notifications.RateLimit.Window = defaults.Window
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not valid", c.Log.Level)
	}

	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection: %w", err)
	}
	if err := c.Workflow.Validate(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if c.Notifications.SlackEnabled {
		if err := c.Notifications.Slack.Validate(); err != nil {
			return fmt.Errorf("notifications.slack: %w", err)
		}
	}
	if c.Storage.Retention < 0 {
		return fmt.Errorf("storage.retention must not be negative")
	}
	return nil
}
