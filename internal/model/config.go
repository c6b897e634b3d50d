package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// PersonOverride is one entry of the manual priority configuration: a
// per-identifier priority, optional display-name override, and an
// ignore flag that hides the conversation entirely.
type PersonOverride struct {
	// Identifier is the phone number, email address, or chat id.
	Identifier string `mapstructure:"identifier" yaml:"identifier"`

	// DisplayName overrides contact resolution when non-empty.
	DisplayName string `mapstructure:"display_name" yaml:"display_name"`

	// Priority is the manual priority (lower = more urgent). Zero
	// means unset; the aggregator substitutes DefaultPriority.
	Priority int `mapstructure:"priority" yaml:"priority"`

	// Ignored excludes this identifier from triage entirely.
	Ignored bool `mapstructure:"ignored" yaml:"ignored"`
}

// DefaultPriority is assigned to conversations without an override.
const DefaultPriority = 5

// StoreConfig holds settings for the message store reader.
type StoreConfig struct {
	// Path is the chat database location.
	Path string `mapstructure:"path" yaml:"path"`

	// ContextWindow is the number of recent messages kept per
	// conversation.
	ContextWindow int `mapstructure:"context_window" yaml:"context_window"`

	// BusyRetries is how many times a locked store is retried before
	// the fetch fails.
	BusyRetries int `mapstructure:"busy_retries" yaml:"busy_retries"`

	// BusyBackoffMs is the initial retry backoff in milliseconds; it
	// doubles on each attempt.
	BusyBackoffMs int `mapstructure:"busy_backoff_ms" yaml:"busy_backoff_ms"`
}

// SendConfig holds settings for the send orchestrator.
type SendConfig struct {
	// TimeoutSec bounds how long a single send may block.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// PerMinute paces outgoing sends; zero disables pacing.
	PerMinute int `mapstructure:"per_minute" yaml:"per_minute"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Store           StoreConfig      `mapstructure:"store" yaml:"store"`
	Send            SendConfig       `mapstructure:"send" yaml:"send"`
	PollIntervalSec int              `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	People          []PersonOverride `mapstructure:"people" yaml:"people"`
}

// Overrides returns the people entries keyed by identifier.
func (c *AppConfig) Overrides() map[string]PersonOverride {
	m := make(map[string]PersonOverride, len(c.People))
	for _, p := range c.People {
		if p.Identifier != "" {
			m[p.Identifier] = p
		}
	}
	return m
}

// DefaultStorePath returns the default chat database location,
// ~/Library/Messages/chat.db.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "chat.db")
	}
	return filepath.Join(home, "Library", "Messages", "chat.db")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/inboxsweep/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "inboxsweep", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Store: StoreConfig{
			Path:          DefaultStorePath(),
			ContextWindow: 15,
			BusyRetries:   5,
			BusyBackoffMs: 100,
		},
		Send: SendConfig{
			TimeoutSec: 10,
			PerMinute:  30,
		},
		PollIntervalSec: 120,
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.context_window", 15)
	v.SetDefault("store.busy_retries", 5)
	v.SetDefault("store.busy_backoff_ms", 100)
	v.SetDefault("send.timeout_sec", 10)
	v.SetDefault("send.per_minute", 30)
	v.SetDefault("poll_interval_sec", 120)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("store", cfg.Store)
	v.Set("send", cfg.Send)
	v.Set("poll_interval_sec", cfg.PollIntervalSec)
	v.Set("people", cfg.People)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
