package model

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidRequest indicates missing or malformed completion request input.
	ErrInvalidRequest = errors.New("invalid model request")
	// ErrMissingAPIKey indicates missing provider API key.
	ErrMissingAPIKey = errors.New("missing api key")
)

// Role identifies the message author in the canonical request format.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is the provider-agnostic conversation record. Content is plain
// text; adapters convert roles their backend has no native slot for.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage tracks provider token accounting for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// TokenCount returns the total tokens consumed across both directions.
func (u Usage) TokenCount() int {
	return u.InputTokens + u.OutputTokens
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Request is the provider-agnostic completion request.
type Request struct {
	Messages      []Message
	StopSequences []string
	MaxTokens     int
	Temperature   *float64
}

// Completion is one full model response. Text must not contain any of the
// request's stop sequences; adapters trim defensively with TrimAtStop.
type Completion struct {
	Text         string
	Usage        Usage
	StopSequence string
}

// Completer produces a single completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// CompleterFunc adapts a plain function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (Completion, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (Completion, error) {
	return f(ctx, req)
}

// TrimAtStop cuts text at the earliest occurrence of any stop sequence and
// returns the trimmed text plus the sequence that matched, if any.
func TrimAtStop(text string, stops []string) (string, string) {
	cut := -1
	matched := ""
	for _, stop := range stops {
		if stop == "" {
			continue
		}
		idx := strings.Index(text, stop)
		if idx < 0 {
			continue
		}
		if cut < 0 || idx < cut {
			cut = idx
			matched = stop
		}
	}
	if cut < 0 {
		return text, ""
	}
	return text[:cut], matched
}
