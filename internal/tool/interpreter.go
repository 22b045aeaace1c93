package tool

import (
	"context"
	"fmt"

	"warden/internal/sandbox"
)

// Interpreter evaluates a code snippet in a sandbox and returns what it
// printed together with the value of its trailing expression. Each call runs
// in a fresh scope, so the tool is safe to share between agents.
type Interpreter struct {
	modules []string
	maxOps  int64
}

// NewInterpreter builds an interpreter tool whose sandbox may import the
// given modules. The configuration is validated eagerly so a bad module list
// fails at construction rather than on first use.
func NewInterpreter(modules []string, maxOps int64) (*Interpreter, error) {
	if _, err := sandbox.New(sandbox.Config{AllowedModules: modules, MaxOps: maxOps}); err != nil {
		return nil, fmt.Errorf("interpreter: %w", err)
	}
	return &Interpreter{modules: modules, maxOps: maxOps}, nil
}

func (t *Interpreter) Name() string { return "interpreter" }

func (t *Interpreter) Description() string {
	return "Evaluates a snippet of code and returns what it printed and the value of its final expression. Use it to perform calculations or transform data."
}

func (t *Interpreter) Args() []Arg {
	return []Arg{{
		Name:        "code",
		Type:        "string",
		Description: "The code snippet to evaluate. All variables used must be defined in this snippet.",
	}}
}

func (t *Interpreter) OutputType() string { return "string" }

func (t *Interpreter) Invoke(ctx context.Context, args map[string]any) (any, error) {
	code, ok := args["code"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: interpreter: argument %q expects string, got %T", ErrInvalidArgs, "code", args["code"])
	}
	engine, err := sandbox.New(sandbox.Config{AllowedModules: t.modules, MaxOps: t.maxOps})
	if err != nil {
		return nil, fmt.Errorf("interpreter: %w", err)
	}
	res, err := engine.Execute(ctx, code, 0)
	if err != nil {
		return nil, err
	}
	if res.Fault != nil {
		return nil, res.Fault
	}
	return fmt.Sprintf("Stdout:\n%s\nOutput: %s", res.Output, renderInterpreterValue(res.Value)), nil
}

func renderInterpreterValue(value any) string {
	if value == nil {
		return "None"
	}
	return fmt.Sprintf("%v", value)
}
