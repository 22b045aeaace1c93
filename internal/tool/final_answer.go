package tool

import (
	"context"

	"warden/internal/sandbox"
)

// FinalAnswer is the built-in tool that ends a run. Invoking it returns the
// answer argument unchanged; the agent records the value and stops stepping.
type FinalAnswer struct{}

func (FinalAnswer) Name() string { return sandbox.FinalAnswerName }

func (FinalAnswer) Description() string {
	return "Provides a final answer to the given problem."
}

func (FinalAnswer) Args() []Arg {
	return []Arg{{Name: "answer", Type: "any", Description: "The final answer to the problem"}}
}

func (FinalAnswer) OutputType() string { return "any" }

func (FinalAnswer) Invoke(_ context.Context, args map[string]any) (any, error) {
	return args["answer"], nil
}
