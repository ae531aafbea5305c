// Package config loads and saves tokenchat preferences.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"tokenchat/internal/provider"
)

// Config holds all tokenchat configuration.
type Config struct {
	General   GeneralConfig   `toml:"general"`
	Endpoints EndpointsConfig `toml:"endpoints"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	// HistoryLimit caps how many turns the chat view loads on start.
	HistoryLimit int `toml:"history_limit"`
	// DefaultModel preselects a model ID; empty uses the first listed.
	DefaultModel string `toml:"default_model,omitempty"`
	// DataDir overrides the database location.
	DataDir string `toml:"data_dir,omitempty"`
}

// EndpointsConfig overrides provider base URLs, e.g. for a self-hosted
// gateway in front of the real API.
type EndpointsConfig struct {
	OpenRouterBaseURL string `toml:"openrouter_base_url,omitempty"`
	DeepSeekBaseURL   string `toml:"deepseek_base_url,omitempty"`
}

// BaseURLFor returns the configured override for a provider, empty when
// the provider default should be used.
func (e EndpointsConfig) BaseURLFor(p provider.Provider) string {
	switch p {
	case provider.OpenRouter:
		return e.OpenRouterBaseURL
	case provider.DeepSeek:
		return e.DeepSeekBaseURL
	default:
		return ""
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			HistoryLimit: 200,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tokenchat")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tokenchat")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}
