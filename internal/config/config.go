// Package config defines the client engine configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML accepts values like "30s" or "5m".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the top-level engine configuration.
type Config struct {
	Cache    CacheConfig   `json:"cache" yaml:"cache"`
	Views    ViewsConfig   `json:"views" yaml:"views"`
	Backend  BackendConfig `json:"backend" yaml:"backend"`
	LogLevel string        `json:"log_level" yaml:"log_level"`
}

// CacheConfig controls entry lifecycle in the store.
type CacheConfig struct {
	// GracePeriod keeps unmounted entries alive this long before Sweep
	// evicts them.
	GracePeriod Duration `json:"grace_period" yaml:"grace_period"`
	// SweepInterval is how often the refetcher runs a GC pass.
	SweepInterval Duration `json:"sweep_interval" yaml:"sweep_interval"`
}

// ViewsConfig tunes view shaping.
type ViewsConfig struct {
	DueSoonWindow Duration `json:"due_soon_window" yaml:"due_soon_window"`
}

// BackendConfig selects the authoritative backend.
type BackendConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "memory" or "sqlite"
	DBPath string `json:"db_path,omitempty" yaml:"db_path"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			GracePeriod:   Duration(5 * time.Minute),
			SweepInterval: Duration(time.Minute),
		},
		Views: ViewsConfig{
			DueSoonWindow: Duration(48 * time.Hour),
		},
		Backend: BackendConfig{
			Driver: "memory",
			DBPath: "./data/projectflow.db",
		},
		LogLevel: "info",
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects unusable settings.
func (c *Config) Validate() error {
	switch c.Backend.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown backend driver %q", c.Backend.Driver)
	}
	if c.Backend.Driver == "sqlite" && c.Backend.DBPath == "" {
		return fmt.Errorf("sqlite backend requires db_path")
	}
	if c.Cache.GracePeriod < 0 || c.Cache.SweepInterval < 0 {
		return fmt.Errorf("cache durations must not be negative")
	}
	return nil
}
