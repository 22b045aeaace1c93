package tool

import (
	"fmt"
	"math"
)

// ValidateArgs checks the supplied arguments against a tool's declaration.
// Missing required arguments, unknown names, and type mismatches are all
// rejected before the tool runs.
func ValidateArgs(t Tool, args map[string]any) error {
	declared := make(map[string]Arg, len(t.Args()))
	for _, arg := range t.Args() {
		declared[arg.Name] = arg
		if arg.Optional {
			continue
		}
		if _, ok := args[arg.Name]; !ok {
			return fmt.Errorf("%w: %s: missing required argument %q", ErrInvalidArgs, t.Name(), arg.Name)
		}
	}
	for name, value := range args {
		arg, ok := declared[name]
		if !ok {
			return fmt.Errorf("%w: %s: unknown argument %q", ErrInvalidArgs, t.Name(), name)
		}
		if !matchesArgType(arg.Type, value) {
			return fmt.Errorf("%w: %s: argument %q expects %s, got %T", ErrInvalidArgs, t.Name(), name, arg.Type, value)
		}
	}
	return nil
}

// matchesArgType reports whether a decoded JSON value satisfies the declared
// type. JSON numbers arrive as float64, so integer accepts integral floats.
func matchesArgType(declared string, value any) bool {
	switch declared {
	case "any", "":
		return true
	case "null":
		return value == nil
	}
	if value == nil {
		// Absent optional values pass; explicit null only binds to "null" or "any".
		return false
	}
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "integer":
		switch n := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == math.Trunc(n)
		}
		return false
	case "number":
		switch value.(type) {
		case int, int32, int64, float64:
			return true
		}
		return false
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}
