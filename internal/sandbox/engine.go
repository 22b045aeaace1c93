// Package sandbox executes model-proposed code under an explicit capability
// allow-list: a fixed module set, registered tool bindings, a denied-builtin
// check, wall-clock and instruction budgets, and a persistent scope that
// carries bindings from step to step.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// fileOptions enables the imperative dialect action code is written in:
// set literals, while loops, top-level control flow, and reassignment of
// scope bindings across steps.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

const defaultMaxOps = 10_000_000

var (
	// ErrUnknownModule indicates an allow-list entry the engine cannot provide.
	ErrUnknownModule = errors.New("unknown sandbox module")
	// ErrReservedBinding indicates a binding tried to use a reserved name.
	ErrReservedBinding = errors.New("binding name is reserved")
	// ErrDuplicateBinding indicates two bindings share one name.
	ErrDuplicateBinding = errors.New("duplicate binding name")
	// ErrBindingInvalid indicates a binding without a name or function.
	ErrBindingInvalid = errors.New("binding requires a name and a function")
)

// Config configures engine construction.
type Config struct {
	// AllowedModules lists module names importable by action code. Anything
	// else is rejected before execution. See KnownModuleNames.
	AllowedModules []string
	// AllowBuiltins re-enables names from the default denied builtin set.
	AllowBuiltins []string
	// Bindings are host capabilities callable from action code.
	Bindings []Binding
	// MaxOps bounds interpreter operations per execution. 0 means default;
	// negative disables the budget.
	MaxOps int64
}

// Result is the outcome of one sandboxed execution.
type Result struct {
	// Value is the Go-native value of the trailing expression, if any.
	Value any
	// Output is everything the action printed, newline-terminated per call.
	Output string
	// FinalAnswer reports that the reserved final_answer capability ran;
	// Value then holds its argument.
	FinalAnswer bool
	// Fault is the classified failure, nil on success.
	Fault *Fault
	// Ops is the number of interpreter operations consumed.
	Ops uint64
}

// Engine interprets action code against a persistent scope. It is owned by
// a single loop: methods must not be called concurrently.
type Engine struct {
	allowedModules map[string]bool
	deniedBuiltins map[string]bool
	protected      map[string]bool
	initial        starlark.StringDict
	maxOps         uint64

	globals starlark.StringDict
}

// New validates the capability configuration and builds an engine whose
// scope starts with the allow-listed modules and bindings.
func New(cfg Config) (*Engine, error) {
	modules, err := resolveModules(cfg.AllowedModules)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]bool, len(cfg.AllowedModules))
	for _, name := range cfg.AllowedModules {
		allowed[name] = true
	}

	denied := make(map[string]bool, len(defaultDeniedBuiltins))
	for _, name := range defaultDeniedBuiltins {
		denied[name] = true
	}
	for _, name := range cfg.AllowBuiltins {
		delete(denied, name)
	}

	initial := starlark.StringDict{}
	for name, mod := range modules {
		initial[name] = mod
	}

	protected := map[string]bool{FinalAnswerName: true}
	for _, b := range cfg.Bindings {
		if strings.TrimSpace(b.Name) == "" || b.Fn == nil {
			return nil, ErrBindingInvalid
		}
		if b.Name == FinalAnswerName {
			return nil, fmt.Errorf("%w: %s", ErrReservedBinding, b.Name)
		}
		if _, exists := initial[b.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBinding, b.Name)
		}
		initial[b.Name] = makeBuiltin(b)
		protected[b.Name] = true
	}
	initial[FinalAnswerName] = finalAnswerBuiltin()

	maxOps := uint64(defaultMaxOps)
	switch {
	case cfg.MaxOps > 0:
		maxOps = uint64(cfg.MaxOps)
	case cfg.MaxOps < 0:
		maxOps = 0
	}

	e := &Engine{
		allowedModules: allowed,
		deniedBuiltins: denied,
		protected:      protected,
		initial:        initial,
		maxOps:         maxOps,
	}
	e.Reset()
	return e, nil
}

// Reset discards the persistent scope, keeping only construction-time
// capabilities.
func (e *Engine) Reset() {
	e.globals = cloneScope(e.initial)
}

// Globals returns a plain-Go snapshot of scope bindings created or rebound
// by executed actions. Construction-time capabilities are excluded.
func (e *Engine) Globals() map[string]any {
	out := map[string]any{}
	for name, value := range e.globals {
		if original, ok := e.initial[name]; ok && original == value {
			continue
		}
		out[name] = fromStarlark(value)
	}
	return out
}

// Execute runs one source chunk against the persistent scope and returns a
// classified result. The trailing expression statement, if any, supplies
// Result.Value. The error return is reserved for context cancellation;
// every in-sandbox failure comes back as Result.Fault.
//
// Timeout policy: when the wall clock or instruction budget runs out, the
// scope rolls back to its pre-step bindings. In-place mutation of container
// values bound before the step is not rolled back.
func (e *Engine) Execute(ctx context.Context, source string, timeout time.Duration) (Result, error) {
	f, err := fileOptions.Parse("<action>", source, 0)
	if err != nil {
		return Result{Fault: &Fault{Kind: FaultSyntax, Msg: err.Error()}}, nil
	}
	if fault := checkSource(f, e.allowedModules, e.deniedBuiltins, e.protected); fault != nil {
		return Result{Fault: fault}, nil
	}

	var last syntax.Expr
	if n := len(f.Stmts); n > 0 {
		if exprStmt, ok := f.Stmts[n-1].(*syntax.ExprStmt); ok {
			last = exprStmt.X
			f.Stmts = f.Stmts[:n-1]
		}
	}

	snapshot := cloneScope(e.globals)

	var output strings.Builder
	var opsExceeded atomic.Bool
	thread := &starlark.Thread{
		Name: "action",
		Print: func(_ *starlark.Thread, msg string) {
			output.WriteString(msg)
			output.WriteByte('\n')
		},
		Load: e.load,
	}
	thread.SetLocal(threadContextKey, ctx)
	if e.maxOps > 0 {
		thread.SetMaxExecutionSteps(e.maxOps)
		thread.OnMaxSteps = func(th *starlark.Thread) {
			opsExceeded.Store(true)
			th.Cancel("instruction budget exceeded")
		}
	}

	w := startWatchdog(ctx, thread, timeout)
	var value starlark.Value = starlark.None
	var execErr error
	if len(f.Stmts) > 0 {
		execErr = starlark.ExecREPLChunk(f, thread, e.globals)
	}
	if execErr == nil && last != nil {
		value, execErr = starlark.EvalExprOptions(fileOptions, thread, last, e.globals)
	}
	timedOut := w.stop()

	result := Result{Output: output.String(), Ops: thread.ExecutionSteps()}

	if execErr == nil {
		if last != nil {
			result.Value = fromStarlark(value)
		}
		return result, nil
	}

	var halt *finalAnswerHalt
	if errors.As(execErr, &halt) {
		result.Value = fromStarlark(halt.value)
		result.FinalAnswer = true
		return result, nil
	}

	if timedOut {
		e.globals = snapshot
		result.Fault = &Fault{
			Kind: FaultTimeout,
			Msg:  fmt.Sprintf("execution exceeded %v; scope restored to the previous step", timeout),
		}
		return result, nil
	}
	if opsExceeded.Load() {
		e.globals = snapshot
		result.Fault = &Fault{
			Kind: FaultTimeout,
			Msg:  fmt.Sprintf("instruction budget of %d operations exceeded; scope restored to the previous step", e.maxOps),
		}
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		e.globals = snapshot
		return Result{Output: output.String()}, ctxErr
	}

	var evalErr *starlark.EvalError
	if errors.As(execErr, &evalErr) {
		result.Fault = &Fault{
			Kind:    FaultRuntime,
			Msg:     evalErr.Msg,
			Context: evalErr.Backtrace(),
		}
		return result, nil
	}

	// Resolver failures (undefined names and friends) arrive here; nothing
	// has executed yet, so the scope is intact.
	result.Fault = &Fault{Kind: FaultRuntime, Msg: execErr.Error()}
	return result, nil
}

// load serves load() statements from the allow-listed module set. The
// static check rejects disallowed names first; this is the second fence.
func (e *Engine) load(_ *starlark.Thread, name string) (starlark.StringDict, error) {
	if !e.allowedModules[name] {
		return nil, fmt.Errorf("import of %q is not allowed", name)
	}
	return knownModules[name].Members, nil
}

func cloneScope(scope starlark.StringDict) starlark.StringDict {
	out := make(starlark.StringDict, len(scope))
	for name, value := range scope {
		out[name] = value
	}
	return out
}

// watchdog cancels the interpreter when the step deadline passes or the
// surrounding context ends. Cancellation lands at statement granularity.
type watchdog struct {
	timer    *time.Timer
	done     chan struct{}
	timedOut atomic.Bool
}

func startWatchdog(ctx context.Context, thread *starlark.Thread, timeout time.Duration) *watchdog {
	w := &watchdog{done: make(chan struct{})}
	var deadline <-chan time.Time
	if timeout > 0 {
		w.timer = time.NewTimer(timeout)
		deadline = w.timer.C
	}
	go func() {
		select {
		case <-deadline:
			w.timedOut.Store(true)
			thread.Cancel("step timeout")
		case <-ctx.Done():
			thread.Cancel("run cancelled")
		case <-w.done:
		}
	}()
	return w
}

// stop ends the watch and reports whether the step deadline fired.
func (w *watchdog) stop() bool {
	close(w.done)
	if w.timer != nil {
		w.timer.Stop()
	}
	return w.timedOut.Load()
}
