package parse

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"warden/internal/tool"
)

// ToolCallStrategy locates a JSON object of the form
// {"name": ..., "arguments": ...} in the completion, validates the name
// against the registry and the arguments against the tool's declared
// schema. When several candidate objects appear, the last one wins,
// mirroring the code strategy's revision policy.
type ToolCallStrategy struct {
	registry *tool.Registry
}

// NewToolCallStrategy returns the structured-call extraction strategy
// bound to a registry. The registry is read, never mutated.
func NewToolCallStrategy(registry *tool.Registry) *ToolCallStrategy {
	return &ToolCallStrategy{registry: registry}
}

// Extract implements Strategy.
func (s *ToolCallStrategy) Extract(completion string) (Action, error) {
	call, ok := lastNamedObject(completion)
	if !ok {
		return nil, fmt.Errorf(
			"%w: provide the action as a JSON object, i.e.\nAction:\n{\"name\": \"tool_name\", \"arguments\": {\"arg\": \"value\"}}",
			ErrNoToolCall,
		)
	}

	name := call.Get("name").String()
	target, err := s.registry.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown tool %q (known tools: %s)",
			ErrInvalidToolCall, name, strings.Join(s.registry.Names(), ", "))
	}

	args, err := callArguments(target, call.Get("arguments"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToolCall, err)
	}
	if err := tool.ValidateArgs(target, args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToolCall, err)
	}

	return ToolCallAction{Name: name, Args: args}, nil
}

// StopSequences implements Strategy.
func (s *ToolCallStrategy) StopSequences() []string {
	return []string{"Observation:"}
}

// callArguments normalizes the arguments payload into named arguments.
// Objects map directly; JSON-encoded strings are decoded first; a bare
// scalar binds to the tool's only argument when it has exactly one.
func callArguments(target tool.Tool, raw gjson.Result) (map[string]any, error) {
	switch {
	case !raw.Exists() || raw.Type == gjson.Null:
		return map[string]any{}, nil
	case raw.IsObject():
		args, _ := raw.Value().(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		return args, nil
	case raw.Type == gjson.String:
		decoded := tool.ParseArgValue(raw.String())
		if args, ok := decoded.(map[string]any); ok {
			return args, nil
		}
		return bindSoleArgument(target, decoded)
	default:
		return bindSoleArgument(target, raw.Value())
	}
}

func bindSoleArgument(target tool.Tool, value any) (map[string]any, error) {
	args := target.Args()
	if len(args) != 1 {
		return nil, fmt.Errorf("tool %q expects named arguments, got a bare value", target.Name())
	}
	return map[string]any{args[0].Name: value}, nil
}

// lastNamedObject scans for balanced top-level JSON objects and returns
// the last valid one carrying a string "name" field.
func lastNamedObject(text string) (gjson.Result, bool) {
	spans := objectSpans(text)
	for i := len(spans) - 1; i >= 0; i-- {
		if !gjson.Valid(spans[i]) {
			continue
		}
		candidate := gjson.Parse(spans[i])
		if name := candidate.Get("name"); name.Exists() && name.Type == gjson.String {
			return candidate, true
		}
	}
	return gjson.Result{}, false
}

// objectSpans returns every balanced top-level {...} span, skipping braces
// inside JSON string literals.
func objectSpans(text string) []string {
	var spans []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				spans = append(spans, text[start:i+1])
				start = -1
			}
		}
	}
	return spans
}
