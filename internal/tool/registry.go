package tool

import (
	"context"
	"fmt"
	"strings"
)

// Registry resolves tools by name. It is immutable after construction and
// safe to share across concurrent runs.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools. A duplicate or empty
// name fails here, at construction, never at call time.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		order: make([]string, 0, len(tools)),
		tools: make(map[string]Tool, len(tools)),
	}
	for _, t := range tools {
		if t == nil {
			return nil, ErrToolRequired
		}
		name := strings.TrimSpace(t.Name())
		if name == "" {
			return nil, ErrNameRequired
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		if out := t.OutputType(); out != "" && !IsAuthorizedType(out) {
			return nil, fmt.Errorf("%w: tool %s declares output type %q", ErrInvalidType, name, out)
		}
		for _, arg := range t.Args() {
			if arg.Type != "" && !IsAuthorizedType(arg.Type) {
				return nil, fmt.Errorf("%w: tool %s declares argument %q of type %q", ErrInvalidType, name, arg.Name, arg.Type)
			}
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[strings.TrimSpace(name)]
	return ok
}

// Names returns every registered name in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// All returns every registered tool in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Invoke resolves a tool, validates the arguments against its declaration,
// and runs it.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	t, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if err := ValidateArgs(t, args); err != nil {
		return nil, err
	}
	value, err := t.Invoke(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.Name(), err)
	}
	return value, nil
}
