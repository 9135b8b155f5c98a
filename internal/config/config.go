// Package config loads the sable configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for sable.
type Config struct {
	Providers ProvidersConfig `yaml:"providers"`
	Engine    EngineConfig    `yaml:"engine"`
	Memory    MemoryConfig    `yaml:"memory"`
	Tools     ToolsConfig     `yaml:"tools"`
	Events    EventsConfig    `yaml:"events"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ProvidersConfig struct {
	Default string                    `yaml:"default"`
	Entries map[string]ProviderConfig `yaml:"entries"`
}

type ProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
	Priority     int    `yaml:"priority"`
	Enabled      *bool  `yaml:"enabled"`
}

// On reports whether the provider is enabled; unset means enabled.
func (p ProviderConfig) On() bool {
	return p.Enabled == nil || *p.Enabled
}

type EngineConfig struct {
	MaxIterations   int           `yaml:"max_iterations"`
	ThinkTimeout    time.Duration `yaml:"think_timeout"`
	ExecuteTimeout  time.Duration `yaml:"execute_timeout"`
	EvaluateTimeout time.Duration `yaml:"evaluate_timeout"`
	TurnTimeout     time.Duration `yaml:"turn_timeout"`
	SystemPrompt    string        `yaml:"system_prompt"`
}

type MemoryConfig struct {
	ArchiveDir    string        `yaml:"archive_dir"`
	SnapshotDir   string        `yaml:"snapshot_dir"`
	IdleThreshold time.Duration `yaml:"idle_threshold"`
}

type ToolsConfig struct {
	WorkDir             string        `yaml:"work_dir"`
	MaxTools            int           `yaml:"max_tools"`
	ToolTimeout         time.Duration `yaml:"tool_timeout"`
	DisableCoordination bool          `yaml:"disable_coordination"`
}

type EventsConfig struct {
	HighPriBuffer int `yaml:"high_pri_buffer"`
	LowPriBuffer  int `yaml:"low_pri_buffer"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file. Environment variables in the
// file body are expanded before parsing, so api_key fields can reference
// ${ANTHROPIC_API_KEY} and friends.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Providers.Default == "" {
		cfg.Providers.Default = "anthropic"
	}
	if cfg.Engine.MaxIterations == 0 {
		cfg.Engine.MaxIterations = 10
	}
	if cfg.Engine.ThinkTimeout == 0 {
		cfg.Engine.ThinkTimeout = 60 * time.Second
	}
	if cfg.Engine.ExecuteTimeout == 0 {
		cfg.Engine.ExecuteTimeout = 120 * time.Second
	}
	if cfg.Engine.EvaluateTimeout == 0 {
		cfg.Engine.EvaluateTimeout = 60 * time.Second
	}
	if cfg.Memory.IdleThreshold == 0 {
		cfg.Memory.IdleThreshold = 30 * time.Minute
	}
	if cfg.Tools.MaxTools == 0 {
		cfg.Tools.MaxTools = 3
	}
	if cfg.Tools.ToolTimeout == 0 {
		cfg.Tools.ToolTimeout = 30 * time.Second
	}
	if cfg.Events.HighPriBuffer == 0 {
		cfg.Events.HighPriBuffer = 32
	}
	if cfg.Events.LowPriBuffer == 0 {
		cfg.Events.LowPriBuffer = 256
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = "127.0.0.1:9090"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
