package sandbox

import (
	"context"
	"fmt"

	"go.starlark.net/starlark"
)

// FinalAnswerName is the reserved capability that ends a run. The engine
// installs it itself; configured bindings may not use the name.
const FinalAnswerName = "final_answer"

const threadContextKey = "sandbox.context"

// Binding exposes a host capability as a callable inside the sandbox.
// Positional arguments map onto Params in declaration order; keyword
// arguments pass through by name.
type Binding struct {
	Name   string
	Doc    string
	Params []string
	Fn     func(ctx context.Context, args map[string]any) (any, error)
}

// threadContext recovers the context Execute attached to the thread.
func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local(threadContextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

func makeBuiltin(b Binding) *starlark.Builtin {
	return starlark.NewBuiltin(b.Name, func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		callArgs, err := bindCallArgs(b, args, kwargs)
		if err != nil {
			return nil, err
		}
		result, err := b.Fn(threadContext(thread), callArgs)
		if err != nil {
			return nil, err
		}
		value, err := toStarlark(result)
		if err != nil {
			return nil, fmt.Errorf("%s: convert result: %w", b.Name, err)
		}
		return value, nil
	})
}

func bindCallArgs(b Binding, args starlark.Tuple, kwargs []starlark.Tuple) (map[string]any, error) {
	if len(args) > len(b.Params) {
		return nil, fmt.Errorf("%s: accepts at most %d positional arguments, got %d", b.Name, len(b.Params), len(args))
	}

	out := make(map[string]any, len(args)+len(kwargs))
	for i, arg := range args {
		out[b.Params[i]] = fromStarlark(arg)
	}
	for _, kv := range kwargs {
		name := string(kv[0].(starlark.String))
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("%s: got multiple values for argument %q", b.Name, name)
		}
		out[name] = fromStarlark(kv[1])
	}
	return out, nil
}

// finalAnswerHalt carries the captured answer out of the interpreter. It is
// unreachable by sandboxed code: the language has no way to intercept it.
type finalAnswerHalt struct {
	value starlark.Value
}

func (h *finalAnswerHalt) Error() string { return "final answer" }

func finalAnswerBuiltin() *starlark.Builtin {
	return starlark.NewBuiltin(FinalAnswerName, func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var answer starlark.Value = starlark.None
		switch {
		case len(args) == 1 && len(kwargs) == 0:
			answer = args[0]
		case len(args) == 0 && len(kwargs) == 1 && string(kwargs[0][0].(starlark.String)) == "answer":
			answer = kwargs[0][1]
		default:
			return nil, fmt.Errorf("%s: expects exactly one answer argument", FinalAnswerName)
		}
		return nil, &finalAnswerHalt{value: answer}
	})
}
