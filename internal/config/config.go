// Package config provides configuration management for patchbay.
//
// The config file describes how patchbay runs (store backend, poll interval,
// logging); the connection store holds what it has learned. Wiping the store
// never touches the config, and vice versa.
//
// Config file locations (priority order):
//  1. $PATCHBAY_CONFIG
//  2. ./patchbay.yaml
//  3. $XDG_CONFIG_HOME/patchbay/config.yaml
//  4. ~/.config/patchbay/config.yaml
//  5. /etc/patchbay/config.yaml
//
// Command-line flags and PATCHBAY_* environment variables are layered on top
// with ApplyOverrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultClientName    = "patchbay"
	DefaultPollInterval  = time.Second
	DefaultWatchDebounce = 250 * time.Millisecond
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{Version: 1}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "json"
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath(c.Store.Backend)
	}
	if c.Registry.ClientName == "" {
		c.Registry.ClientName = DefaultClientName
	}
	if c.PollInterval <= 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = Duration(DefaultWatchDebounce)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// WatchEnabled reports whether the store file should be watched for hand edits
func (c *Config) WatchEnabled() bool {
	return c.Watch == nil || *c.Watch
}

// Validate checks values that have no sensible fallback
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("store.backend must be json or sqlite, got %q", c.Store.Backend)
	}
	if c.PollInterval.Duration() <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// ApplyOverrides layers values explicitly set in v (bound flags, PATCHBAY_*
// environment variables) over the loaded file. Keys use the YAML names.
func (c *Config) ApplyOverrides(v *viper.Viper) {
	storePathSet := v.IsSet("store.path")
	if v.IsSet("store.backend") {
		backend := v.GetString("store.backend")
		if backend != c.Store.Backend && !storePathSet && c.Store.Path == DefaultStorePath(c.Store.Backend) {
			// Path was only the old backend's default; follow the new backend.
			c.Store.Path = DefaultStorePath(backend)
		}
		c.Store.Backend = backend
	}
	if storePathSet {
		c.Store.Path = v.GetString("store.path")
	}
	if v.IsSet("registry.topology") {
		c.Registry.Topology = v.GetString("registry.topology")
	}
	if v.IsSet("registry.client_name") {
		c.Registry.ClientName = v.GetString("registry.client_name")
	}
	if v.IsSet("poll_interval") {
		c.PollInterval = Duration(v.GetDuration("poll_interval"))
	}
	if v.IsSet("all") {
		c.All = v.GetBool("all")
	}
	if v.IsSet("watch") {
		watch := v.GetBool("watch")
		c.Watch = &watch
	}
	if v.IsSet("logging.level") {
		c.Logging.Level = strings.ToLower(v.GetString("logging.level"))
	}
	if v.IsSet("logging.format") {
		c.Logging.Format = strings.ToLower(v.GetString("logging.format"))
	}
	if v.IsSet("logging.file") {
		c.Logging.File = v.GetString("logging.file")
	}
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Store: %s (%s)\n", c.Store.Path, c.Store.Backend)
	summary += fmt.Sprintf("Poll: %s, All mode: %v, Watch: %v", c.PollInterval.Duration(), c.All, c.WatchEnabled())
	if c.Registry.Topology != "" {
		summary += fmt.Sprintf("\nTopology: %s", c.Registry.Topology)
	}
	return summary
}
