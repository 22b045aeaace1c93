package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"warden/internal/sandbox"
)

const (
	defaultProviderName     = "anthropic"
	defaultAnthropicModel   = "claude-sonnet-4-20250514"
	defaultAnthropicVersion = "2023-06-01"
	defaultRetryMaxRetries  = 3
	defaultRetryBaseDelay   = "300ms"
	defaultRetryMaxDelay    = "5s"

	defaultAgentMaxSteps    = 20
	defaultAgentStepTimeout = "60s"
	defaultAgentMaxTokens   = 4096
	defaultAgentMode        = "code"
	defaultAgentOnMaxSteps  = "best-effort-answer"

	defaultLogLevel = "info"

	defaultConfigRelativePath = ".config/warden/config.toml"

	envProviderDefault  = "WARDEN_PROVIDER_DEFAULT"
	envAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	envAnthropicModel   = "WARDEN_ANTHROPIC_MODEL"
	envAnthropicBaseURL = "WARDEN_ANTHROPIC_BASE_URL"
	envAnthropicVersion = "WARDEN_ANTHROPIC_VERSION"
	envRetryMaxRetries  = "WARDEN_ANTHROPIC_RETRY_MAX_RETRIES"
	envRetryBaseDelay   = "WARDEN_ANTHROPIC_RETRY_BASE_DELAY"
	envRetryMaxDelay    = "WARDEN_ANTHROPIC_RETRY_MAX_DELAY"
	envAgentMaxSteps    = "WARDEN_AGENT_MAX_STEPS"
	envAgentMode        = "WARDEN_AGENT_MODE"
	envLogLevel         = "WARDEN_LOG_LEVEL"
	envLogFile          = "WARDEN_LOG_FILE"
)

var (
	// ErrInvalidConfig indicates malformed configuration input.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the application configuration root.
type Config struct {
	Provider ProviderConfig `toml:"provider"`
	Agent    AgentConfig    `toml:"agent"`
	Sandbox  SandboxConfig  `toml:"sandbox"`
	Log      LogConfig      `toml:"log"`
}

// ProviderConfig configures model providers.
type ProviderConfig struct {
	Default   string                  `toml:"default"`
	Anthropic AnthropicProviderConfig `toml:"anthropic"`
}

// AnthropicProviderConfig configures Anthropic-specific runtime values.
type AnthropicProviderConfig struct {
	APIKey  string      `toml:"api_key"`
	Model   string      `toml:"model"`
	BaseURL string      `toml:"base_url"`
	Version string      `toml:"version"`
	Retry   RetryConfig `toml:"retry"`
}

// RetryConfig stores retry policy as config-friendly values.
type RetryConfig struct {
	MaxRetries int    `toml:"max_retries"`
	BaseDelay  string `toml:"base_delay"`
	MaxDelay   string `toml:"max_delay"`
}

// AgentConfig configures run-loop behavior.
type AgentConfig struct {
	MaxSteps         int    `toml:"max_steps"`
	StepTimeout      string `toml:"step_timeout"`
	PlanningInterval int    `toml:"planning_interval"`
	MaxTokens        int    `toml:"max_tokens"`
	Mode             string `toml:"mode"`
	OnMaxSteps       string `toml:"on_max_steps"`
}

// SandboxConfig configures the action execution engine.
type SandboxConfig struct {
	AllowedModules []string `toml:"allowed_modules"`
	AllowBuiltins  []string `toml:"allow_builtins"`
	MaxOps         int64    `toml:"max_ops"`
}

// LogConfig configures diagnostics output.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadOptions controls config loading behavior.
type LoadOptions struct {
	Path string
}

// AnthropicSettings is a validated Anthropic runtime settings snapshot.
type AnthropicSettings struct {
	APIKey  string
	Model   string
	BaseURL string
	Version string
	Retry   AnthropicRetrySettings
}

// AnthropicRetrySettings is the parsed retry policy.
type AnthropicRetrySettings struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// AgentSettings is the parsed run-loop configuration.
type AgentSettings struct {
	MaxSteps         int
	StepTimeout      time.Duration
	PlanningInterval int
	MaxTokens        int
	Mode             string
	OnMaxSteps       string
}

// LogSettings is the parsed diagnostics configuration.
type LogSettings struct {
	Level slog.Level
	File  string
}

// Default returns application defaults.
func Default() Config {
	return Config{
		Provider: ProviderConfig{
			Default: defaultProviderName,
			Anthropic: AnthropicProviderConfig{
				Model:   defaultAnthropicModel,
				Version: defaultAnthropicVersion,
				Retry: RetryConfig{
					MaxRetries: defaultRetryMaxRetries,
					BaseDelay:  defaultRetryBaseDelay,
					MaxDelay:   defaultRetryMaxDelay,
				},
			},
		},
		Agent: AgentConfig{
			MaxSteps:    defaultAgentMaxSteps,
			StepTimeout: defaultAgentStepTimeout,
			MaxTokens:   defaultAgentMaxTokens,
			Mode:        defaultAgentMode,
			OnMaxSteps:  defaultAgentOnMaxSteps,
		},
		Sandbox: SandboxConfig{
			AllowedModules: sandbox.KnownModuleNames(),
		},
		Log: LogConfig{
			Level: defaultLogLevel,
		},
	}
}

// Load reads the config file then applies environment variable overrides.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = defaultConfigPath()
	}

	if err := mergeConfigFile(&cfg, path); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AnthropicSettings returns validated settings suitable for runtime wiring.
func (c Config) AnthropicSettings() (AnthropicSettings, error) {
	baseDelay, err := time.ParseDuration(strings.TrimSpace(c.Provider.Anthropic.Retry.BaseDelay))
	if err != nil {
		return AnthropicSettings{}, fmt.Errorf("%w: parse anthropic retry base_delay: %v", ErrInvalidConfig, err)
	}
	maxDelay, err := time.ParseDuration(strings.TrimSpace(c.Provider.Anthropic.Retry.MaxDelay))
	if err != nil {
		return AnthropicSettings{}, fmt.Errorf("%w: parse anthropic retry max_delay: %v", ErrInvalidConfig, err)
	}
	if c.Provider.Anthropic.Retry.MaxRetries < 0 {
		return AnthropicSettings{}, fmt.Errorf("%w: anthropic retry max_retries must be >= 0", ErrInvalidConfig)
	}

	return AnthropicSettings{
		APIKey:  strings.TrimSpace(c.Provider.Anthropic.APIKey),
		Model:   strings.TrimSpace(c.Provider.Anthropic.Model),
		BaseURL: strings.TrimSpace(c.Provider.Anthropic.BaseURL),
		Version: strings.TrimSpace(c.Provider.Anthropic.Version),
		Retry: AnthropicRetrySettings{
			MaxRetries: c.Provider.Anthropic.Retry.MaxRetries,
			BaseDelay:  baseDelay,
			MaxDelay:   maxDelay,
		},
	}, nil
}

// AgentSettings returns the parsed run-loop configuration.
func (c Config) AgentSettings() (AgentSettings, error) {
	if c.Agent.MaxSteps <= 0 {
		return AgentSettings{}, fmt.Errorf("%w: agent max_steps must be > 0", ErrInvalidConfig)
	}
	if c.Agent.MaxTokens <= 0 {
		return AgentSettings{}, fmt.Errorf("%w: agent max_tokens must be > 0", ErrInvalidConfig)
	}
	if c.Agent.PlanningInterval < 0 {
		return AgentSettings{}, fmt.Errorf("%w: agent planning_interval must be >= 0", ErrInvalidConfig)
	}

	stepTimeout := time.Duration(0)
	if raw := strings.TrimSpace(c.Agent.StepTimeout); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return AgentSettings{}, fmt.Errorf("%w: parse agent step_timeout: %v", ErrInvalidConfig, err)
		}
		if parsed < 0 {
			return AgentSettings{}, fmt.Errorf("%w: agent step_timeout must be >= 0", ErrInvalidConfig)
		}
		stepTimeout = parsed
	}

	return AgentSettings{
		MaxSteps:         c.Agent.MaxSteps,
		StepTimeout:      stepTimeout,
		PlanningInterval: c.Agent.PlanningInterval,
		MaxTokens:        c.Agent.MaxTokens,
		Mode:             strings.TrimSpace(c.Agent.Mode),
		OnMaxSteps:       strings.TrimSpace(c.Agent.OnMaxSteps),
	}, nil
}

// LogSettings returns the parsed diagnostics configuration.
func (c Config) LogSettings() (LogSettings, error) {
	level, err := parseLogLevel(c.Log.Level)
	if err != nil {
		return LogSettings{}, err
	}
	return LogSettings{
		Level: level,
		File:  strings.TrimSpace(c.Log.File),
	}, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, raw)
	}
}

func mergeConfigFile(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if value, ok := os.LookupEnv(envProviderDefault); ok && strings.TrimSpace(value) != "" {
		cfg.Provider.Default = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envAnthropicAPIKey); ok {
		cfg.Provider.Anthropic.APIKey = value
	}
	if value, ok := os.LookupEnv(envAnthropicModel); ok && strings.TrimSpace(value) != "" {
		cfg.Provider.Anthropic.Model = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envAnthropicBaseURL); ok && strings.TrimSpace(value) != "" {
		cfg.Provider.Anthropic.BaseURL = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envAnthropicVersion); ok && strings.TrimSpace(value) != "" {
		cfg.Provider.Anthropic.Version = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envRetryMaxRetries); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, envRetryMaxRetries, err)
		}
		cfg.Provider.Anthropic.Retry.MaxRetries = parsed
	}
	if value, ok := os.LookupEnv(envRetryBaseDelay); ok && strings.TrimSpace(value) != "" {
		cfg.Provider.Anthropic.Retry.BaseDelay = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envRetryMaxDelay); ok && strings.TrimSpace(value) != "" {
		cfg.Provider.Anthropic.Retry.MaxDelay = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envAgentMaxSteps); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, envAgentMaxSteps, err)
		}
		cfg.Agent.MaxSteps = parsed
	}
	if value, ok := os.LookupEnv(envAgentMode); ok && strings.TrimSpace(value) != "" {
		cfg.Agent.Mode = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envLogLevel); ok && strings.TrimSpace(value) != "" {
		cfg.Log.Level = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envLogFile); ok && strings.TrimSpace(value) != "" {
		cfg.Log.File = strings.TrimSpace(value)
	}
	return nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Provider.Default) == "" {
		return fmt.Errorf("%w: provider.default is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Provider.Anthropic.Model) == "" {
		return fmt.Errorf("%w: provider.anthropic.model is required", ErrInvalidConfig)
	}
	if _, err := cfg.AnthropicSettings(); err != nil {
		return err
	}
	if _, err := cfg.AgentSettings(); err != nil {
		return err
	}
	if _, err := cfg.LogSettings(); err != nil {
		return err
	}
	return nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultConfigRelativePath)
}
