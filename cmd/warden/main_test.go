package main

import (
	"errors"
	"testing"
	"time"

	"warden/internal/config"
	"warden/internal/model"
)

func TestBuildCompleterFromConfigAnthropic(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Provider.Anthropic.APIKey = "test-key"
	cfg.Provider.Anthropic.BaseURL = "https://api.example"
	cfg.Provider.Anthropic.Retry.MaxRetries = 7
	cfg.Provider.Anthropic.Retry.BaseDelay = "700ms"
	cfg.Provider.Anthropic.Retry.MaxDelay = "9s"

	completer, modelName, err := buildCompleterFromConfig(cfg)
	if err != nil {
		t.Fatalf("buildCompleterFromConfig() error = %v", err)
	}
	if completer == nil {
		t.Fatal("expected completer, got nil")
	}
	if modelName != "claude-sonnet-4-20250514" {
		t.Fatalf("model = %q, want %q", modelName, "claude-sonnet-4-20250514")
	}
}

func TestBuildCompleterFromConfigUnsupportedProvider(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Provider.Default = "openai"

	if _, _, err := buildCompleterFromConfig(cfg); !errors.Is(err, errUnsupportedProvider) {
		t.Fatalf("buildCompleterFromConfig() error = %v, want errUnsupportedProvider", err)
	}
}

func TestBuildCompleterFromConfigMissingAPIKeyFailsFast(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Provider.Anthropic.APIKey = ""

	if _, _, err := buildCompleterFromConfig(cfg); !errors.Is(err, model.ErrMissingAPIKey) {
		t.Fatalf("buildCompleterFromConfig() error = %v, want model.ErrMissingAPIKey", err)
	}
}

func TestBuildToolRegistry(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	registry, err := buildToolRegistry(cfg, "tool-call")
	if err != nil {
		t.Fatalf("buildToolRegistry() error = %v", err)
	}
	if !registry.Has("interpreter") {
		t.Fatalf("registry names = %v, want the interpreter tool", registry.Names())
	}

	// Code mode needs no registry: the sandbox itself is the action medium.
	registry, err = buildToolRegistry(cfg, "code")
	if err != nil {
		t.Fatalf("buildToolRegistry() error = %v", err)
	}
	if registry != nil {
		t.Fatalf("registry = %v, want nil in code mode", registry.Names())
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	t.Parallel()

	cmd := newRunCmd()
	for flag, value := range map[string]string{
		"mode":              "tool-call",
		"max-steps":         "3",
		"step-timeout":      "15s",
		"planning-interval": "2",
	} {
		if err := cmd.Flags().Set(flag, value); err != nil {
			t.Fatalf("set flag %s: %v", flag, err)
		}
	}

	cfg := config.Default()
	applyFlagOverrides(&cfg, cmd)

	if cfg.Agent.Mode != "tool-call" {
		t.Fatalf("Agent.Mode = %q, want %q", cfg.Agent.Mode, "tool-call")
	}
	if cfg.Agent.MaxSteps != 3 {
		t.Fatalf("Agent.MaxSteps = %d, want %d", cfg.Agent.MaxSteps, 3)
	}
	if cfg.Agent.StepTimeout != (15 * time.Second).String() {
		t.Fatalf("Agent.StepTimeout = %q, want %q", cfg.Agent.StepTimeout, "15s")
	}
	if cfg.Agent.PlanningInterval != 2 {
		t.Fatalf("Agent.PlanningInterval = %d, want %d", cfg.Agent.PlanningInterval, 2)
	}
}

func TestApplyFlagOverridesUntouchedFlagsKeepConfig(t *testing.T) {
	t.Parallel()

	cmd := newRunCmd()
	cfg := config.Default()
	cfg.Agent.MaxSteps = 9

	applyFlagOverrides(&cfg, cmd)
	if cfg.Agent.MaxSteps != 9 {
		t.Fatalf("Agent.MaxSteps = %d, want the config value untouched", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.Mode != "code" {
		t.Fatalf("Agent.Mode = %q, want the default", cfg.Agent.Mode)
	}
}

func TestFormatAnswer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		answer any
		want   string
	}{
		{"string", "Paris", "Paris"},
		{"integer", int64(42), "42"},
		{"nil", nil, "None"},
		{"float", 2.5, "2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatAnswer(tt.answer); got != tt.want {
				t.Fatalf("formatAnswer(%v) = %q, want %q", tt.answer, got, tt.want)
			}
		})
	}
}
