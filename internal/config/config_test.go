package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if cfg.Provider.Default != "anthropic" {
		t.Fatalf("Provider.Default = %q, want %q", cfg.Provider.Default, "anthropic")
	}
	if cfg.Provider.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Fatalf("Provider.Anthropic.Model = %q, want %q", cfg.Provider.Anthropic.Model, "claude-sonnet-4-20250514")
	}
	if cfg.Provider.Anthropic.Retry.MaxRetries != 3 {
		t.Fatalf("Provider.Anthropic.Retry.MaxRetries = %d, want %d", cfg.Provider.Anthropic.Retry.MaxRetries, 3)
	}
	if cfg.Agent.MaxSteps != 20 {
		t.Fatalf("Agent.MaxSteps = %d, want %d", cfg.Agent.MaxSteps, 20)
	}
	if cfg.Agent.Mode != "code" {
		t.Fatalf("Agent.Mode = %q, want %q", cfg.Agent.Mode, "code")
	}
	if cfg.Agent.OnMaxSteps != "best-effort-answer" {
		t.Fatalf("Agent.OnMaxSteps = %q, want %q", cfg.Agent.OnMaxSteps, "best-effort-answer")
	}
	if want := []string{"json", "math", "time"}; !reflect.DeepEqual(cfg.Sandbox.AllowedModules, want) {
		t.Fatalf("Sandbox.AllowedModules = %v, want %v", cfg.Sandbox.AllowedModules, want)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

func TestLoadFromFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[provider]
default = "anthropic"

[provider.anthropic]
api_key = "file-key"
model = "file-model"
base_url = "https://file.example"
version = "2024-01-01"

[provider.anthropic.retry]
max_retries = 9
base_delay = "900ms"
max_delay = "9s"

[agent]
max_steps = 5
step_timeout = "30s"
planning_interval = 2
max_tokens = 2048
mode = "tool-call"
on_max_steps = "fail"

[sandbox]
allowed_modules = ["math"]
allow_builtins = ["getattr"]
max_ops = 500000

[log]
level = "debug"
file = "/tmp/warden.log"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	t.Setenv("WARDEN_ANTHROPIC_MODEL", "env-model")
	t.Setenv("WARDEN_ANTHROPIC_RETRY_MAX_RETRIES", "4")
	t.Setenv("WARDEN_AGENT_MAX_STEPS", "7")
	t.Setenv("WARDEN_LOG_LEVEL", "warn")

	cfg, err := Load(LoadOptions{Path: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Environment wins over the file.
	if cfg.Provider.Anthropic.APIKey != "env-key" {
		t.Fatalf("APIKey = %q, want %q", cfg.Provider.Anthropic.APIKey, "env-key")
	}
	if cfg.Provider.Anthropic.Model != "env-model" {
		t.Fatalf("Model = %q, want %q", cfg.Provider.Anthropic.Model, "env-model")
	}
	if cfg.Provider.Anthropic.Retry.MaxRetries != 4 {
		t.Fatalf("MaxRetries = %d, want %d", cfg.Provider.Anthropic.Retry.MaxRetries, 4)
	}
	if cfg.Agent.MaxSteps != 7 {
		t.Fatalf("Agent.MaxSteps = %d, want %d", cfg.Agent.MaxSteps, 7)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// The file wins over defaults where no env override exists.
	if cfg.Provider.Anthropic.BaseURL != "https://file.example" {
		t.Fatalf("BaseURL = %q, want %q", cfg.Provider.Anthropic.BaseURL, "https://file.example")
	}
	if cfg.Agent.Mode != "tool-call" {
		t.Fatalf("Agent.Mode = %q, want %q", cfg.Agent.Mode, "tool-call")
	}
	if cfg.Agent.OnMaxSteps != "fail" {
		t.Fatalf("Agent.OnMaxSteps = %q, want %q", cfg.Agent.OnMaxSteps, "fail")
	}
	if want := []string{"math"}; !reflect.DeepEqual(cfg.Sandbox.AllowedModules, want) {
		t.Fatalf("Sandbox.AllowedModules = %v, want %v", cfg.Sandbox.AllowedModules, want)
	}
	if cfg.Sandbox.MaxOps != 500000 {
		t.Fatalf("Sandbox.MaxOps = %d, want %d", cfg.Sandbox.MaxOps, 500000)
	}
	if cfg.Log.File != "/tmp/warden.log" {
		t.Fatalf("Log.File = %q, want %q", cfg.Log.File, "/tmp/warden.log")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(LoadOptions{Path: filepath.Join(dir, "absent.toml")})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.MaxSteps != 20 {
		t.Fatalf("Agent.MaxSteps = %d, want the default", cfg.Agent.MaxSteps)
	}
}

func TestAnthropicSettingsParsesRetryDurations(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Provider.Anthropic.APIKey = "test-key"
	cfg.Provider.Anthropic.Retry.MaxRetries = 6
	cfg.Provider.Anthropic.Retry.BaseDelay = "650ms"
	cfg.Provider.Anthropic.Retry.MaxDelay = "7s"

	settings, err := cfg.AnthropicSettings()
	if err != nil {
		t.Fatalf("AnthropicSettings() error = %v", err)
	}
	if settings.APIKey != "test-key" {
		t.Fatalf("APIKey = %q, want %q", settings.APIKey, "test-key")
	}
	if settings.Retry.MaxRetries != 6 {
		t.Fatalf("Retry.MaxRetries = %d, want %d", settings.Retry.MaxRetries, 6)
	}
	if settings.Retry.BaseDelay != 650*time.Millisecond {
		t.Fatalf("Retry.BaseDelay = %s, want %s", settings.Retry.BaseDelay, 650*time.Millisecond)
	}
	if settings.Retry.MaxDelay != 7*time.Second {
		t.Fatalf("Retry.MaxDelay = %s, want %s", settings.Retry.MaxDelay, 7*time.Second)
	}
}

func TestAnthropicSettingsRejectsInvalidDuration(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Provider.Anthropic.Retry.BaseDelay = "bad-duration"
	if _, err := cfg.AnthropicSettings(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("AnthropicSettings() error = %v, want ErrInvalidConfig", err)
	}
}

func TestAgentSettings(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Agent.StepTimeout = "45s"
	cfg.Agent.PlanningInterval = 3

	settings, err := cfg.AgentSettings()
	if err != nil {
		t.Fatalf("AgentSettings() error = %v", err)
	}
	if settings.StepTimeout != 45*time.Second {
		t.Fatalf("StepTimeout = %s, want %s", settings.StepTimeout, 45*time.Second)
	}
	if settings.PlanningInterval != 3 {
		t.Fatalf("PlanningInterval = %d, want %d", settings.PlanningInterval, 3)
	}
	if settings.MaxSteps != 20 || settings.MaxTokens != 4096 {
		t.Fatalf("settings = %+v, want the defaults for unset fields", settings)
	}
}

func TestAgentSettingsEmptyTimeoutDisablesBound(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Agent.StepTimeout = ""

	settings, err := cfg.AgentSettings()
	if err != nil {
		t.Fatalf("AgentSettings() error = %v", err)
	}
	if settings.StepTimeout != 0 {
		t.Fatalf("StepTimeout = %s, want 0", settings.StepTimeout)
	}
}

func TestAgentSettingsRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max_steps", func(c *Config) { c.Agent.MaxSteps = 0 }},
		{"negative max_tokens", func(c *Config) { c.Agent.MaxTokens = -1 }},
		{"negative planning_interval", func(c *Config) { c.Agent.PlanningInterval = -1 }},
		{"bad step_timeout", func(c *Config) { c.Agent.StepTimeout = "soon" }},
		{"negative step_timeout", func(c *Config) { c.Agent.StepTimeout = "-5s" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			if _, err := cfg.AgentSettings(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("AgentSettings() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLogSettings(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Log.Level = "debug"
	cfg.Log.File = " /var/log/warden.jsonl "

	settings, err := cfg.LogSettings()
	if err != nil {
		t.Fatalf("LogSettings() error = %v", err)
	}
	if settings.Level != slog.LevelDebug {
		t.Fatalf("Level = %v, want %v", settings.Level, slog.LevelDebug)
	}
	if settings.File != "/var/log/warden.jsonl" {
		t.Fatalf("File = %q, want the trimmed path", settings.File)
	}

	cfg.Log.Level = "catastrophic"
	if _, err := cfg.LogSettings(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("LogSettings() error = %v, want ErrInvalidConfig", err)
	}
}
