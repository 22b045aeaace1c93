// Package tool defines the capability contract callable from agent actions
// and the immutable registry resolving capabilities by name.
package tool

import (
	"context"
	"errors"
)

var (
	// ErrToolRequired indicates a nil tool passed to the registry.
	ErrToolRequired = errors.New("tool is required")
	// ErrNameRequired indicates a tool without a name.
	ErrNameRequired = errors.New("tool name is required")
	// ErrDuplicateTool indicates two tools registered under one name.
	ErrDuplicateTool = errors.New("duplicate tool name")
	// ErrUnknownTool indicates a lookup for an unregistered name.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArgs indicates call arguments the tool's schema rejects.
	ErrInvalidArgs = errors.New("invalid tool arguments")
	// ErrInvalidType indicates an argument or output type outside AuthorizedTypes.
	ErrInvalidType = errors.New("invalid tool type")
)

// AuthorizedTypes are the wire types an argument or output may declare.
// "any" accepts every value; "null" only the absent one.
var AuthorizedTypes = []string{
	"string", "boolean", "integer", "number", "array", "object", "any", "null",
}

// Arg declares one named tool argument.
type Arg struct {
	Name        string
	Type        string
	Description string
	// Optional arguments may be omitted from a call.
	Optional bool
}

// Tool is the canonical capability contract. Implementations must be safe
// for concurrent invocation or document that they are not: a registry may
// be shared across concurrent agent runs.
type Tool interface {
	Name() string
	Description() string
	// Args is the ordered argument declaration; order matters for the
	// system prompt and for positional binding inside code actions.
	Args() []Arg
	OutputType() string
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// IsAuthorizedType reports whether t names an authorized wire type.
func IsAuthorizedType(t string) bool {
	for _, known := range AuthorizedTypes {
		if t == known {
			return true
		}
	}
	return false
}
