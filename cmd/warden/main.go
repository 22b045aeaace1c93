package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"

	"warden/internal/agent"
	"warden/internal/config"
	"warden/internal/model"
	anthropicprovider "warden/internal/model/anthropic"
	"warden/internal/tool"
)

var errUnsupportedProvider = errors.New("unsupported provider")

func main() {
	if err := execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "warden: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "warden",
		Short:         "warden drives a language model through a sandboxed act-observe loop",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run one task to completion and print the final answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(config.LoadOptions{Path: strings.TrimSpace(configPath)})
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyFlagOverrides(&cfg, cmd)
			return runTask(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("config", "", "Path to config file")
	cmd.Flags().String("mode", "", "Action mode: code or tool-call")
	cmd.Flags().Int("max-steps", 0, "Step budget for the run")
	cmd.Flags().Duration("step-timeout", 0, "Wall-clock bound for one action execution (0 disables)")
	cmd.Flags().Int("planning-interval", 0, "Insert a planning step every N actions (0 disables)")
	return cmd
}

// applyFlagOverrides lets explicitly set flags win over file and environment
// configuration.
func applyFlagOverrides(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("mode") {
		v, _ := cmd.Flags().GetString("mode")
		cfg.Agent.Mode = v
	}
	if cmd.Flags().Changed("max-steps") {
		v, _ := cmd.Flags().GetInt("max-steps")
		cfg.Agent.MaxSteps = v
	}
	if cmd.Flags().Changed("step-timeout") {
		v, _ := cmd.Flags().GetDuration("step-timeout")
		cfg.Agent.StepTimeout = v.String()
	}
	if cmd.Flags().Changed("planning-interval") {
		v, _ := cmd.Flags().GetInt("planning-interval")
		cfg.Agent.PlanningInterval = v
	}
}

func runTask(ctx context.Context, cfg config.Config, task string, stdout io.Writer) error {
	logSettings, err := cfg.LogSettings()
	if err != nil {
		return err
	}
	logger, closeLog, err := buildLogger(logSettings)
	if err != nil {
		return err
	}
	defer closeLog()

	completer, modelName, err := buildCompleterFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("build completer: %w", err)
	}
	agentSettings, err := cfg.AgentSettings()
	if err != nil {
		return err
	}
	registry, err := buildToolRegistry(cfg, agentSettings.Mode)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	monitor := agent.NewMonitor()
	ag, err := agent.New(agent.Config{
		Completer:        completer,
		Tools:            registry,
		Mode:             agent.Mode(agentSettings.Mode),
		MaxSteps:         agentSettings.MaxSteps,
		StepTimeout:      agentSettings.StepTimeout,
		PlanningInterval: agentSettings.PlanningInterval,
		OnMaxSteps:       agent.MaxStepsPolicy(agentSettings.OnMaxSteps),
		MaxTokens:        agentSettings.MaxTokens,
		// The provider runs its own retry loop; disable the agent's.
		Retry:          model.RetryPolicy{MaxRetries: -1},
		AllowedModules: cfg.Sandbox.AllowedModules,
		AllowBuiltins:  cfg.Sandbox.AllowBuiltins,
		MaxOps:         cfg.Sandbox.MaxOps,
		Callbacks:      []agent.StepCallback{agent.LogCallback(logger), monitor.Observe},
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}

	logger.Info("agent ready",
		"model", modelName,
		"mode", agentSettings.Mode,
		"max_steps", agentSettings.MaxSteps,
		"planning_interval", agentSettings.PlanningInterval)

	result, runErr := ag.Run(ctx, task, agent.RunOptions{})
	if result != nil {
		usage := monitor.TotalUsage()
		logger.Info("run summary",
			"status", string(result.Status),
			"steps", len(monitor.StepDurations()),
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"duration", result.Duration)
		// A best-effort degraded answer is still worth printing.
		if result.Answer != nil {
			_, _ = fmt.Fprintln(stdout, formatAnswer(result.Answer))
		}
	}
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	return nil
}

// buildLogger composes the stderr text handler with an optional JSON file
// handler.
func buildLogger(settings config.LogSettings) (*slog.Logger, func(), error) {
	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: settings.Level}),
	}
	closeLog := func() {}
	if settings.File != "" {
		f, err := os.OpenFile(settings.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: settings.Level}))
		closeLog = func() { _ = f.Close() }
	}
	return slog.New(slogmulti.Fanout(handlers...)), closeLog, nil
}

func buildCompleterFromConfig(cfg config.Config) (model.Completer, string, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider.Default)) {
	case "", "anthropic":
		settings, err := cfg.AnthropicSettings()
		if err != nil {
			return nil, "", fmt.Errorf("resolve anthropic settings: %w", err)
		}
		if settings.APIKey == "" {
			return nil, "", model.ErrMissingAPIKey
		}

		completer := anthropicprovider.New(anthropicprovider.Config{
			APIKey:  settings.APIKey,
			Model:   settings.Model,
			BaseURL: settings.BaseURL,
			Version: settings.Version,
			Retry: model.RetryPolicy{
				MaxRetries: settings.Retry.MaxRetries,
				BaseDelay:  settings.Retry.BaseDelay,
				MaxDelay:   settings.Retry.MaxDelay,
			},
		})
		return completer, settings.Model, nil
	default:
		return nil, "", fmt.Errorf("%w: %s", errUnsupportedProvider, cfg.Provider.Default)
	}
}

// buildToolRegistry assembles the run's tool set. Code mode needs no
// registry: the sandbox is the action medium and final_answer is ensured by
// the agent. Tool-call mode gets the sandbox exposed as an ordinary tool.
func buildToolRegistry(cfg config.Config, mode string) (*tool.Registry, error) {
	if mode != string(agent.ModeToolCall) {
		return nil, nil
	}
	interp, err := tool.NewInterpreter(cfg.Sandbox.AllowedModules, cfg.Sandbox.MaxOps)
	if err != nil {
		return nil, err
	}
	return tool.NewRegistry(interp)
}

func formatAnswer(answer any) string {
	switch v := answer.(type) {
	case nil:
		return "None"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
