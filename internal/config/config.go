// Package config loads Belya supervisor configuration from .belya/config.yaml
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Belya configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Session store
	Store StoreConfig `yaml:"store"`

	// Quota windows for the downstream code-generation service
	Quota QuotaConfig `yaml:"quota"`

	// Tool-call history compaction
	Compaction CompactionConfig `yaml:"compaction"`

	// LLM collaborator (code-generation service + fallback classifier)
	LLM LLMConfig `yaml:"llm"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the SQLite session store.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// WindowConfig configures one rolling quota window.
type WindowConfig struct {
	Duration string `yaml:"duration"` // e.g. "5h", "168h"
	Capacity int64  `yaml:"capacity"` // token ceiling; 0 disables threshold checks
}

// QuotaConfig configures the quota tracker.
type QuotaConfig struct {
	Short      WindowConfig `yaml:"short"`
	Long       WindowConfig `yaml:"long"`
	Thresholds []int        `yaml:"thresholds"` // percentages of capacity
}

// CompactionConfig configures tool-call history compaction.
type CompactionConfig struct {
	// MaxRecords triggers compaction when raw history exceeds this count.
	MaxRecords int `yaml:"max_records"`

	// RetainRecords is how many raw records survive a compaction pass.
	RetainRecords int `yaml:"retain_records"`
}

// LLMConfig configures the code-generation collaborator and the
// fallback intent classifier.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// LoggingConfig configures the categorized debug logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "belya",
		Version: "1.0.0",

		Store: StoreConfig{
			DatabasePath: filepath.Join(".belya", "sessions.db"),
		},

		Quota: QuotaConfig{
			Short: WindowConfig{
				Duration: "5h",
				Capacity: 0,
			},
			Long: WindowConfig{
				Duration: "168h",
				Capacity: 0,
			},
			Thresholds: []int{80, 90, 95},
		},

		Compaction: CompactionConfig{
			MaxRecords:    100,
			RetainRecords: 10,
		},

		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  "120s",
		},

		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// DefaultPath returns the standard config location inside a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".belya", "config.yaml")
}

// Load loads configuration from a YAML file.
// Missing file returns defaults; environment overrides always apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "gemini"
		}
	}
	if model := os.Getenv("BELYA_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("BELYA_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if cap := os.Getenv("BELYA_QUOTA_SHORT_CAPACITY"); cap != "" {
		if v, err := strconv.ParseInt(cap, 10, 64); err == nil {
			c.Quota.Short.Capacity = v
		}
	}
	if cap := os.Getenv("BELYA_QUOTA_LONG_CAPACITY"); cap != "" {
		if v, err := strconv.ParseInt(cap, 10, 64); err == nil {
			c.Quota.Long.Capacity = v
		}
	}
	if debug := os.Getenv("BELYA_DEBUG"); debug != "" {
		c.Logging.DebugMode = debug == "1" || debug == "true"
	}
}

// ShortWindowDuration returns the short quota window span.
func (c *Config) ShortWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.Quota.Short.Duration)
	if err != nil {
		return 5 * time.Hour
	}
	return d
}

// LongWindowDuration returns the long quota window span.
func (c *Config) LongWindowDuration() time.Duration {
	d, err := time.ParseDuration(c.Quota.Long.Duration)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// LLMTimeout returns the collaborator call timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}
