// Package config holds configuration for the socket registry: where socket
// files live, their permissions, logging, and whether the watchdog runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Config represents socket registry configuration
type Config struct {
	// SocketDir is the directory where generated socket files are placed
	SocketDir string `json:"socket_dir"`
	// SocketPermissions is an octal mode string applied to socket files (e.g. "0600")
	SocketPermissions string `json:"socket_permissions"`
	// LogLevel is one of debug, info, warn, error, none
	LogLevel string `json:"log_level"`
	// LogPath is the log file location; empty disables file logging
	LogPath string `json:"log_path"`
	// WatchdogEnabled controls the out-of-band socket file removal watcher
	WatchdogEnabled bool `json:"watchdog_enabled"`
	// ProbeTimeoutMillis bounds liveness probes against socket files
	ProbeTimeoutMillis int `json:"probe_timeout_millis"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		SocketDir:          defaultSocketDir(),
		SocketPermissions:  "0600",
		LogLevel:           "info",
		LogPath:            "",
		WatchdogEnabled:    true,
		ProbeTimeoutMillis: 1000,
	}
}

// Load reads configuration from a JSON file, applying defaults for missing
// fields. A missing file yields the defaults without error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.SocketDir == "" {
		cfg.SocketDir = defaultSocketDir()
	}
	if cfg.SocketPermissions == "" {
		cfg.SocketPermissions = "0600"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ProbeTimeoutMillis <= 0 {
		cfg.ProbeTimeoutMillis = 1000
	}

	return cfg, nil
}

// Save writes the configuration as JSON
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FileMode parses the configured socket permission string, defaulting to
// 0600 when unset or malformed.
func (c *Config) FileMode() os.FileMode {
	var mode uint64
	if _, err := fmt.Sscanf(c.SocketPermissions, "%o", &mode); err != nil {
		return 0600
	}
	return os.FileMode(mode)
}

// defaultSocketDir picks a per-user runtime directory for socket files
func defaultSocketDir() string {
	if runtime.GOOS == "linux" {
		if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
			return filepath.Join(dir, "glide")
		}
	}
	return filepath.Join(os.TempDir(), "glide")
}
