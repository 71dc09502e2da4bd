// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config manages parley configuration.
//
// Configuration is read from ~/.parley/config.toml, then overridden by
// environment variables. Every field has a sensible default, so a missing
// config file is a normal first-run condition, not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// CONFIGURATION TYPES
// =============================================================================

// Config is the root configuration.
type Config struct {
	// General settings
	Version string `toml:"version"`
	// DefaultModel is the model preselected for new sessions.
	DefaultModel string `toml:"default_model"`
	// FallbackModel is tried when the default model is unavailable.
	FallbackModel string `toml:"fallback_model"`

	// Provider configuration
	Providers ProvidersConfig `toml:"providers"`

	// Network configuration
	Network NetworkConfig `toml:"network"`

	// Logging configuration
	Logging LoggingConfig `toml:"logging"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// ProvidersConfig holds API credentials for both backends.
type ProvidersConfig struct {
	// GeminiKey is the first-party API key.
	GeminiKey string `toml:"gemini_key"`
	// OpenRouterKey is the aggregator API key. The key saved from the
	// settings screen takes precedence over this value.
	OpenRouterKey string `toml:"openrouter_key"`
}

// NetworkConfig controls HTTP behavior for provider calls.
type NetworkConfig struct {
	// TimeoutSecs is the per-request timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
	// MaxRetries is how many times transient failures are retried.
	MaxRetries int `toml:"max_retries"`
	// CatalogRefreshMins is the minimum interval between aggregator
	// catalog fetches, in minutes.
	CatalogRefreshMins int `toml:"catalog_refresh_mins"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `toml:"level"`
	// File is the log file path (empty = ~/.parley/parley.log).
	File string `toml:"file"`
}

// UIConfig contains display preferences.
type UIConfig struct {
	// Theme is "dark" or "light".
	Theme string `toml:"theme"`
	// ShowCosts toggles the per-message cost line.
	ShowCosts bool `toml:"show_costs"`
	// CompactHistory collapses session previews to one line.
	CompactHistory bool `toml:"compact_history"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version:       "1.0",
		DefaultModel:  "googleai/gemini-2.0-flash",
		FallbackModel: "googleai/gemini-1.5-flash",
		Network: NetworkConfig{
			TimeoutSecs:        60,
			MaxRetries:         3,
			CatalogRefreshMins: 5,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Theme:     "dark",
			ShowCosts: true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the parley config directory (~/.parley).
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".parley"), nil
}

// Path returns the config file path (~/.parley/config.toml).
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir creates the config directory if missing.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration from the default path, applying defaults and
// environment overrides. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath reads configuration from a specific file. A missing file is
// not an error; the defaults are returned.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaults.DefaultModel
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = defaults.FallbackModel
	}
	if cfg.Network.TimeoutSecs <= 0 {
		cfg.Network.TimeoutSecs = defaults.Network.TimeoutSecs
	}
	if cfg.Network.MaxRetries < 0 {
		cfg.Network.MaxRetries = defaults.Network.MaxRetries
	}
	if cfg.Network.CatalogRefreshMins <= 0 {
		cfg.Network.CatalogRefreshMins = defaults.Network.CatalogRefreshMins
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	// PARLEY_MODEL
	if m := os.Getenv("PARLEY_MODEL"); m != "" {
		c.DefaultModel = m
	}

	// PARLEY_GEMINI_KEY
	if key := os.Getenv("PARLEY_GEMINI_KEY"); key != "" {
		c.Providers.GeminiKey = key
	}

	// PARLEY_OPENROUTER_KEY, with the conventional OPENROUTER_API_KEY
	// as fallback
	if key := os.Getenv("PARLEY_OPENROUTER_KEY"); key != "" {
		c.Providers.OpenRouterKey = key
	} else if key := os.Getenv("OPENROUTER_API_KEY"); key != "" && c.Providers.OpenRouterKey == "" {
		c.Providers.OpenRouterKey = key
	}

	// PARLEY_LOG_LEVEL
	if level := os.Getenv("PARLEY_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	switch c.UI.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("unknown theme %q", c.UI.Theme)
	}

	if _, _, ok := model.SplitModelID(c.DefaultModel); !ok {
		return fmt.Errorf("default_model %q is not a provider-qualified model id", c.DefaultModel)
	}
	if _, _, ok := model.SplitModelID(c.FallbackModel); !ok {
		return fmt.Errorf("fallback_model %q is not a provider-qualified model id", c.FallbackModel)
	}

	return nil
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
			cfg.ApplyEnvOverrides()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
