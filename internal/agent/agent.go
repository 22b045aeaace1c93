// Package agent drives a language model through a bounded reason-act loop:
// project memory into messages, get a completion, parse the proposed action,
// perform it in the sandbox or against the tool registry, fold the
// observation back into memory, repeat until a final answer or a budget
// boundary.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"warden/internal/model"
	"warden/internal/parse"
	"warden/internal/sandbox"
	"warden/internal/tool"
)

const (
	defaultMaxSteps  = 20
	defaultMaxTokens = 4096
)

// Mode selects the action format the agent asks for and parses.
type Mode string

const (
	// ModeCode has the model write sandboxed code snippets.
	ModeCode Mode = "code"
	// ModeToolCall has the model emit structured JSON tool calls.
	ModeToolCall Mode = "tool-call"
)

// MaxStepsPolicy decides what happens when the step budget runs out
// without a final answer.
type MaxStepsPolicy string

const (
	// MaxStepsFail ends the run immediately.
	MaxStepsFail MaxStepsPolicy = "fail"
	// MaxStepsBestEffort makes one last model call for a degraded answer,
	// records it, and still fails the run.
	MaxStepsBestEffort MaxStepsPolicy = "best-effort-answer"
)

// Config configures Agent creation.
type Config struct {
	// Completer is the model backend. Required.
	Completer model.Completer
	// Tools callable by actions. The reserved final_answer tool is added
	// when absent.
	Tools *tool.Registry
	// Mode selects the action format. Default: ModeCode.
	Mode Mode
	// MaxSteps bounds budget-consuming steps per run.
	MaxSteps int
	// StepTimeout bounds one action execution. 0 disables the bound.
	StepTimeout time.Duration
	// PlanningInterval inserts a planning step before the first action and
	// after every N completed actions. 0 disables planning.
	PlanningInterval int
	// OnMaxSteps is the budget-exhaustion policy. Default: MaxStepsFail.
	OnMaxSteps MaxStepsPolicy
	// MaxTokens bounds one completion.
	MaxTokens int
	// Temperature passes through to the model when set.
	Temperature *float64
	// SystemPrompt overrides the synthesized prompt when non-empty.
	SystemPrompt string
	// Retry governs model retries on transient failures.
	Retry model.RetryPolicy
	// AllowedModules is the sandbox import allow-list. Code mode only.
	AllowedModules []string
	// AllowBuiltins re-enables names from the denied builtin set. Code
	// mode only.
	AllowBuiltins []string
	// MaxOps bounds interpreter operations per execution. Code mode only.
	MaxOps int64
	// Callbacks observe every appended step, in order.
	Callbacks []StepCallback
	// Logger receives run diagnostics. Default: discard.
	Logger *slog.Logger
}

// Agent runs tasks against a model. One agent owns one memory and one
// sandbox scope; a second Run while one is active is rejected. Independent
// agents may run concurrently, including over a shared registry.
type Agent struct {
	completer        model.Completer
	registry         *tool.Registry
	strategy         parse.Strategy
	engine           *sandbox.Engine
	mode             Mode
	maxSteps         int
	stepTimeout      time.Duration
	planningInterval int
	onMaxSteps       MaxStepsPolicy
	maxTokens        int
	temperature      *float64
	systemPrompt     string
	callbacks        []StepCallback
	logger           *slog.Logger
	memory           *Memory

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New creates an agent with explicit dependencies. Configuration problems
// fail here, never during a run.
func New(cfg Config) (*Agent, error) {
	if cfg.Completer == nil {
		return nil, ErrCompleterRequired
	}
	mode, err := normalizeMode(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("configure mode: %w", err)
	}
	onMaxSteps, err := normalizeMaxStepsPolicy(cfg.OnMaxSteps)
	if err != nil {
		return nil, fmt.Errorf("configure max-steps policy: %w", err)
	}
	registry, err := ensureFinalAnswer(cfg.Tools)
	if err != nil {
		return nil, fmt.Errorf("configure tools: %w", err)
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	a := &Agent{
		completer:        model.WithRetry(cfg.Completer, cfg.Retry),
		registry:         registry,
		mode:             mode,
		maxSteps:         maxSteps,
		stepTimeout:      cfg.StepTimeout,
		planningInterval: cfg.PlanningInterval,
		onMaxSteps:       onMaxSteps,
		maxTokens:        maxTokens,
		temperature:      cfg.Temperature,
		systemPrompt:     cfg.SystemPrompt,
		callbacks:        append([]StepCallback(nil), cfg.Callbacks...),
		logger:           logger,
		memory:           NewMemory(),
	}

	switch mode {
	case ModeToolCall:
		a.strategy = parse.NewToolCallStrategy(registry)
	default:
		engine, err := sandbox.New(sandbox.Config{
			AllowedModules: cfg.AllowedModules,
			AllowBuiltins:  cfg.AllowBuiltins,
			Bindings:       toolBindings(registry),
			MaxOps:         cfg.MaxOps,
		})
		if err != nil {
			return nil, fmt.Errorf("configure sandbox: %w", err)
		}
		a.engine = engine
		a.strategy = parse.NewCodeStrategy()
	}

	if a.systemPrompt == "" {
		a.systemPrompt = BuildSystemPrompt(mode, registry.All(), cfg.AllowedModules)
	}
	return a, nil
}

// RunOptions tunes one run.
type RunOptions struct {
	// Continue keeps the prior memory and sandbox scope and appends only a
	// new task step. The step budget starts fresh.
	Continue bool
	// MaxSteps overrides the agent's step budget when > 0.
	MaxSteps int
	// StepTimeout overrides the agent's per-step execution bound when > 0.
	StepTimeout time.Duration
}

// RunResult is the outcome of one run: the terminal status, the answer when
// one was produced, and the full step log for inspection.
type RunResult struct {
	ID          string
	Task        string
	Status      Status
	Answer      any
	FailureKind ErrorKind
	Steps       []Step
	Usage       model.Usage
	Duration    time.Duration
}

// Run drives one task to a terminal status. A failed or cancelled run
// returns both the result, carrying the full step log, and a non-nil
// error; RunResult.FailureKind classifies terminal failures.
func (a *Agent) Run(ctx context.Context, task string, opts RunOptions) (*RunResult, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrTaskRequired
	}

	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil, ErrAgentBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.running = true
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		cancel()
		a.mu.Lock()
		a.running = false
		a.cancel = nil
		a.mu.Unlock()
	}()

	run := &runState{
		id:          uuid.NewString(),
		task:        task,
		maxSteps:    a.maxSteps,
		stepTimeout: a.stepTimeout,
		started:     time.Now(),
		plannedAt:   -1,
	}
	if opts.MaxSteps > 0 {
		run.maxSteps = opts.MaxSteps
	}
	if opts.StepTimeout > 0 {
		run.stepTimeout = opts.StepTimeout
	}

	if !opts.Continue {
		a.memory.Clear()
		if a.engine != nil {
			a.engine.Reset()
		}
	}
	if a.memory.Len() == 0 {
		if err := a.record(run, SystemPromptStep{Text: a.systemPrompt}); err != nil {
			return nil, err
		}
	}
	if err := a.record(run, TaskStep{Text: task}); err != nil {
		return nil, err
	}

	a.logger.Info("run started",
		"run", run.id,
		"mode", string(a.mode),
		"max_steps", run.maxSteps,
		"continue", opts.Continue)

	result, err := a.loop(runCtx, run)
	a.logger.Info("run finished",
		"run", run.id,
		"status", string(result.Status),
		"steps", run.stepsTaken,
		"tokens", result.Usage.TokenCount(),
		"duration", result.Duration)
	return result, err
}

// Cancel requests cooperative cancellation of the active run, if any. The
// run observes it at the next step boundary or statement.
func (a *Agent) Cancel() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Running reports whether a run is active.
func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// ensureFinalAnswer returns a registry that includes the reserved
// final_answer tool, appending the built-in one when absent.
func ensureFinalAnswer(registry *tool.Registry) (*tool.Registry, error) {
	if registry == nil {
		return tool.NewRegistry(tool.FinalAnswer{})
	}
	if registry.Has(sandbox.FinalAnswerName) {
		return registry, nil
	}
	return tool.NewRegistry(append(registry.All(), tool.FinalAnswer{})...)
}

// toolBindings exposes every registered tool except the reserved
// final_answer as a sandbox callable routed through the registry, so code
// actions get the same argument validation as structured calls.
func toolBindings(registry *tool.Registry) []sandbox.Binding {
	var bindings []sandbox.Binding
	for _, t := range registry.All() {
		if t.Name() == sandbox.FinalAnswerName {
			continue
		}
		args := t.Args()
		params := make([]string, 0, len(args))
		for _, arg := range args {
			params = append(params, arg.Name)
		}
		name := t.Name()
		bindings = append(bindings, sandbox.Binding{
			Name:   name,
			Doc:    t.Description(),
			Params: params,
			Fn: func(ctx context.Context, callArgs map[string]any) (any, error) {
				return registry.Invoke(ctx, name, callArgs)
			},
		})
	}
	return bindings
}

func normalizeMode(mode Mode) (Mode, error) {
	switch mode {
	case "", ModeCode:
		return ModeCode, nil
	case ModeToolCall:
		return ModeToolCall, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

func normalizeMaxStepsPolicy(policy MaxStepsPolicy) (MaxStepsPolicy, error) {
	switch policy {
	case "", MaxStepsFail:
		return MaxStepsFail, nil
	case MaxStepsBestEffort:
		return MaxStepsBestEffort, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMaxStepsPolicy, policy)
	}
}
