// Package config provides configuration loading and management.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig_LoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "phonepilot.toml")
	os.WriteFile(configPath, []byte(`
[agent]
max_steps = 25
bad_response_threshold = 5
confirm_default = "approve"
sensitive_actions = ["Type", "Launch"]

[model]
base_url = "http://10.0.0.5:8000/v1"
model = "autoglm-phone"
api_key_env = "PHONE_MODEL_API_KEY"
max_tokens = 2048

[device]
id = "emulator-5554"

[device.screen]
width = 1440
height = 3120

[session]
store = "sqlite"
path = "runs.db"
`), 0644)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	if cfg.Agent.MaxSteps != 25 {
		t.Errorf("expected max_steps 25, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.BadResponseThreshold != 5 {
		t.Errorf("expected bad_response_threshold 5, got %d", cfg.Agent.BadResponseThreshold)
	}
	if cfg.Agent.ConfirmDefault != "approve" {
		t.Errorf("expected confirm_default 'approve', got %s", cfg.Agent.ConfirmDefault)
	}
	if len(cfg.Agent.SensitiveActions) != 2 {
		t.Errorf("expected 2 sensitive actions, got %v", cfg.Agent.SensitiveActions)
	}
	if cfg.Model.BaseURL != "http://10.0.0.5:8000/v1" {
		t.Errorf("expected base_url 'http://10.0.0.5:8000/v1', got %s", cfg.Model.BaseURL)
	}
	if cfg.Device.ID != "emulator-5554" {
		t.Errorf("expected device id 'emulator-5554', got %s", cfg.Device.ID)
	}
	if cfg.Device.Screen.Width != 1440 || cfg.Device.Screen.Height != 3120 {
		t.Errorf("unexpected screen size: %+v", cfg.Device.Screen)
	}
	if cfg.Session.Store != "sqlite" {
		t.Errorf("expected store 'sqlite', got %s", cfg.Session.Store)
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := New()
	if cfg.Agent.MaxSteps != 50 {
		t.Errorf("expected default max_steps 50, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.ConfirmDefault != "deny" {
		t.Errorf("expected default confirm_default 'deny', got %s", cfg.Agent.ConfirmDefault)
	}
	if cfg.Device.Retry.Attempts != 3 {
		t.Errorf("expected default retry attempts 3, got %d", cfg.Device.Retry.Attempts)
	}
	if cfg.Device.Retry.RetryBaseDelay() != 500*time.Millisecond {
		t.Errorf("expected base delay 500ms, got %v", cfg.Device.Retry.RetryBaseDelay())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_PartialFileKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "phonepilot.toml")
	os.WriteFile(configPath, []byte(`
[device]
id = "R38M20BDXHE"
`), 0644)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Device.ID != "R38M20BDXHE" {
		t.Errorf("expected device id from file, got %s", cfg.Device.ID)
	}
	if cfg.Agent.MaxSteps != 50 {
		t.Errorf("expected default max_steps to survive, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Model.Model == "" {
		t.Error("expected default model name to survive")
	}
}

func TestConfig_ValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero max_steps", func(c *Config) { c.Agent.MaxSteps = 0 }, "max_steps"},
		{"bad confirm_default", func(c *Config) { c.Agent.ConfirmDefault = "maybe" }, "confirm_default"},
		{"empty base_url", func(c *Config) { c.Model.BaseURL = "" }, "base_url"},
		{"zero screen", func(c *Config) { c.Device.Screen.Width = 0 }, "screen"},
		{"zero attempts", func(c *Config) { c.Device.Retry.Attempts = 0 }, "attempts"},
		{"backoff below one", func(c *Config) { c.Device.Retry.BackoffFactor = 0.5 }, "backoff_factor"},
		{"unknown store", func(c *Config) { c.Session.Store = "redis" }, "store"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := New()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestConfig_GetAPIKey(t *testing.T) {
	cfg := New()
	cfg.Model.APIKeyEnv = "PHONEPILOT_TEST_KEY"
	t.Setenv("PHONEPILOT_TEST_KEY", "secret-123")
	if got := cfg.GetAPIKey(); got != "secret-123" {
		t.Errorf("expected key from env, got %q", got)
	}

	cfg.Model.APIKeyEnv = ""
	if got := cfg.GetAPIKey(); got != "" {
		t.Errorf("expected empty key when no env var configured, got %q", got)
	}
}
