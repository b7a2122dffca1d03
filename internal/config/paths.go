package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "PATCHBAY_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "patchbay.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "patchbay"
	// StoreFileName is the connection file written by the json backend
	StoreFileName = "connections.json"
	// StoreDBName is the database written by the sqlite backend
	StoreDBName = "connections.db"
)

// FindConfigPath searches for config file in priority order:
// 1. $PATCHBAY_CONFIG (explicit path)
// 2. ./patchbay.yaml (working directory)
// 3. $XDG_CONFIG_HOME/patchbay/config.yaml
// 4. ~/.config/patchbay/config.yaml
// 5. /etc/patchbay/config.yaml
//
// Returns empty string if no config file found
func FindConfigPath() string {
	// 1. Explicit environment variable
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	// 2. Working directory
	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	// 3. XDG config home
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		path := filepath.Join(xdgHome, ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	// 4. Default XDG location (~/.config)
	if home := os.Getenv("HOME"); home != "" {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	// 5. System-wide
	systemPath := filepath.Join("/etc", ConfigDirName, "config.yaml")
	if fileExists(systemPath) {
		return systemPath
	}

	return ""
}

// Dir returns the per-user directory holding patchbay state.
// Prefers $XDG_CONFIG_HOME, then ~/.config, then the working directory.
func Dir() string {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, ConfigDirName)
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config", ConfigDirName)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, ConfigDirName)
	}
	return "."
}

// DefaultConfigPath returns the preferred location for a new config file
func DefaultConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultStorePath returns where the given backend keeps its data
func DefaultStorePath(backend string) string {
	if backend == "sqlite" {
		return filepath.Join(Dir(), StoreDBName)
	}
	return filepath.Join(Dir(), StoreFileName)
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir(configPath string) error {
	dir := filepath.Dir(configPath)
	return os.MkdirAll(dir, 0755)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
