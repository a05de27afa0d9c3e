// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the agent configuration.
type Config struct {
	Agent   AgentConfig   `toml:"agent"`
	Model   ModelConfig   `toml:"model"`
	Device  DeviceConfig  `toml:"device"`
	Session SessionConfig `toml:"session"`
}

// AgentConfig controls the observe-decide-act loop.
type AgentConfig struct {
	MaxSteps             int      `toml:"max_steps"`
	BadResponseThreshold int      `toml:"bad_response_threshold"`
	StepDelayMS          int      `toml:"step_delay_ms"`
	ConfirmDefault       string   `toml:"confirm_default"` // approve or deny when no confirmer is attached
	SensitiveActions     []string `toml:"sensitive_actions"`
}

// ModelConfig contains vision model endpoint settings.
type ModelConfig struct {
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	APIKeyEnv   string  `toml:"api_key_env"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	TimeoutSec  int     `toml:"timeout_sec"`
}

// DeviceConfig contains device transport and retry settings.
type DeviceConfig struct {
	ID            string      `toml:"id"` // adb serial, empty means the only connected device
	Screen        ScreenSize  `toml:"screen"`
	Retry         RetryConfig `toml:"retry"`
	AppsPath      string      `toml:"apps_path"` // optional YAML catalog overrides
	ADBPath       string      `toml:"adb_path"`
}

// ScreenSize is the physical resolution gestures are scaled to.
type ScreenSize struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// RetryConfig tunes the transient failure retry loop for device commands.
type RetryConfig struct {
	Attempts      int     `toml:"attempts"`
	BaseDelayMS   int     `toml:"base_delay_ms"`
	BackoffFactor float64 `toml:"backoff_factor"`
	MaxDelayMS    int     `toml:"max_delay_ms"`
}

// SessionConfig contains run storage settings.
type SessionConfig struct {
	Store string `toml:"store"` // sqlite or file
	Path  string `toml:"path"`
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxSteps:             50,
			BadResponseThreshold: 3,
			StepDelayMS:          500,
			ConfirmDefault:       "deny",
			SensitiveActions:     []string{"Type"},
		},
		Model: ModelConfig{
			BaseURL:     "http://localhost:8000/v1",
			Model:       "autoglm-phone",
			APIKeyEnv:   "PHONE_MODEL_API_KEY",
			Temperature: 0.1,
			MaxTokens:   1024,
			TimeoutSec:  120,
		},
		Device: DeviceConfig{
			Screen:  ScreenSize{Width: 1080, Height: 1920},
			ADBPath: "adb",
			Retry: RetryConfig{
				Attempts:      3,
				BaseDelayMS:   500,
				BackoffFactor: 2.0,
				MaxDelayMS:    5000,
			},
		},
		Session: SessionConfig{
			Store: "file",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from phonepilot.toml in the current directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return LoadFile(filepath.Join(cwd, "phonepilot.toml"))
}

// Validate rejects settings the loop cannot run with. Configuration problems
// surface here, before a device or model endpoint is touched.
func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be positive, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.BadResponseThreshold <= 0 {
		return fmt.Errorf("agent.bad_response_threshold must be positive, got %d", c.Agent.BadResponseThreshold)
	}
	switch c.Agent.ConfirmDefault {
	case "approve", "deny":
	default:
		return fmt.Errorf("agent.confirm_default must be approve or deny, got %q", c.Agent.ConfirmDefault)
	}
	if c.Model.BaseURL == "" {
		return fmt.Errorf("model.base_url is required")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model.model is required")
	}
	if c.Device.Screen.Width <= 0 || c.Device.Screen.Height <= 0 {
		return fmt.Errorf("device.screen must have positive dimensions, got %dx%d",
			c.Device.Screen.Width, c.Device.Screen.Height)
	}
	if c.Device.Retry.Attempts <= 0 {
		return fmt.Errorf("device.retry.attempts must be positive, got %d", c.Device.Retry.Attempts)
	}
	if c.Device.Retry.BackoffFactor < 1 {
		return fmt.Errorf("device.retry.backoff_factor must be at least 1, got %g", c.Device.Retry.BackoffFactor)
	}
	switch c.Session.Store {
	case "file", "sqlite":
	default:
		return fmt.Errorf("session.store must be file or sqlite, got %q", c.Session.Store)
	}
	return nil
}

// GetAPIKey returns the model API key from the configured environment variable.
func (c *Config) GetAPIKey() string {
	if c.Model.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Model.APIKeyEnv)
}

// StepDelay returns the pause between loop steps.
func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.Agent.StepDelayMS) * time.Millisecond
}

// ModelTimeout returns the per-request model call timeout.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSec) * time.Second
}

// RetryBaseDelay returns the first retry pause for device commands.
func (r RetryConfig) RetryBaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the upper bound on a retry pause.
func (r RetryConfig) RetryMaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMS) * time.Millisecond
}
