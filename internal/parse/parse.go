// Package parse extracts a proposed action from raw model output. Both
// strategies are pure functions of the completion text: no side effects,
// no model calls.
package parse

import "errors"

var (
	// ErrNoCodeBlock indicates a completion without a fenced code region.
	ErrNoCodeBlock = errors.New("no code block found")
	// ErrNoToolCall indicates a completion without a recognizable tool call object.
	ErrNoToolCall = errors.New("no tool call found")
	// ErrInvalidToolCall indicates a tool call naming an unknown tool or
	// carrying arguments its schema rejects.
	ErrInvalidToolCall = errors.New("invalid tool call")
)

// Action is the proposed action extracted from one completion. A value is
// produced once per completion, consumed once, and never mutated.
type Action interface {
	isAction()
}

// CodeAction is a code blob to run in the sandboxed execution engine.
type CodeAction struct {
	Source string
}

// ToolCallAction is a structured invocation of one registered tool.
type ToolCallAction struct {
	Name string
	Args map[string]any
}

func (CodeAction) isAction()     {}
func (ToolCallAction) isAction() {}

// Strategy turns completion text into an action proposal.
type Strategy interface {
	Extract(completion string) (Action, error)
	// StopSequences are the model stop strings this strategy's action
	// format relies on. A fresh slice is returned on every call.
	StopSequences() []string
}
