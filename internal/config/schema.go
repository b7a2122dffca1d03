package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version       int            `yaml:"version"`
	Store         StoreConfig    `yaml:"store"`
	Registry      RegistryConfig `yaml:"registry"`
	PollInterval  Duration       `yaml:"poll_interval"`
	All           bool           `yaml:"all"`             // connect every compatible pair across owners
	Watch         *bool          `yaml:"watch,omitempty"` // nil = enabled for file-backed stores
	WatchDebounce Duration       `yaml:"watch_debounce"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// StoreConfig selects where connections are persisted
type StoreConfig struct {
	Backend string `yaml:"backend"` // json, sqlite
	Path    string `yaml:"path"`    // empty = under the config directory
}

// RegistryConfig describes the port registry patchbay attaches to
type RegistryConfig struct {
	ClientName string `yaml:"client_name"`
	Topology   string `yaml:"topology,omitempty"` // YAML fixture seeding the in-memory registry
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`          // debug, info, warn, error
	Format string `yaml:"format"`         // console, json
	File   string `yaml:"file,omitempty"` // empty = stderr
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
