package tool

import (
	"context"
	"fmt"
)

type funcTool struct {
	name        string
	description string
	outputType  string
	args        []Arg
	fn          func(context.Context, map[string]any) (any, error)
}

// NewFunc wraps a plain function as a Tool. The argument declaration is
// reflected from params, a struct whose json tags name the arguments; pass
// nil for a tool that takes none. An empty outputType defaults to "any".
func NewFunc(name, description, outputType string, params any, fn func(context.Context, map[string]any) (any, error)) (Tool, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %q: function is nil", name)
	}
	if outputType == "" {
		outputType = "any"
	}
	if !IsAuthorizedType(outputType) {
		return nil, fmt.Errorf("%w: tool %q: output type %q", ErrInvalidType, name, outputType)
	}
	args, err := ArgsFromStruct(params)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	for _, arg := range args {
		if !IsAuthorizedType(arg.Type) {
			return nil, fmt.Errorf("%w: tool %q: argument %q has type %q", ErrInvalidType, name, arg.Name, arg.Type)
		}
	}
	return &funcTool{
		name:        name,
		description: description,
		outputType:  outputType,
		args:        args,
		fn:          fn,
	}, nil
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) Description() string { return t.description }
func (t *funcTool) OutputType() string  { return t.outputType }

func (t *funcTool) Args() []Arg {
	out := make([]Arg, len(t.args))
	copy(out, t.args)
	return out
}

func (t *funcTool) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return t.fn(ctx, args)
}
