package agent

import (
	"context"
	"strings"
	"testing"

	"warden/internal/tool"
)

func promptTools(t *testing.T) []tool.Tool {
	t.Helper()
	type searchParams struct {
		Query string `json:"query" jsonschema_description:"What to look for."`
		Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results."`
	}
	search, err := tool.NewFunc("search", "Searches the corpus.", "string", searchParams{},
		func(context.Context, map[string]any) (any, error) { return "", nil })
	if err != nil {
		t.Fatalf("NewFunc() error = %v", err)
	}
	return []tool.Tool{search, tool.FinalAnswer{}}
}

func TestBuildSystemPromptCodeMode(t *testing.T) {
	t.Parallel()

	prompt := BuildSystemPrompt(ModeCode, promptTools(t), []string{"time", "json"})

	for _, want := range []string{
		"Code:\n```py",
		"<end_code>",
		"- search(query, limit) -> string: Searches the corpus.",
		"    query (string): What to look for.",
		"    limit (integer, optional): Maximum number of results.",
		"- final_answer(answer) -> any",
		// The allow-list renders sorted regardless of configuration order.
		"You may only use these modules: json, time.",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}

	if again := BuildSystemPrompt(ModeCode, promptTools(t), []string{"time", "json"}); again != prompt {
		t.Fatal("BuildSystemPrompt() is not deterministic")
	}
}

func TestBuildSystemPromptCodeModeNoModules(t *testing.T) {
	t.Parallel()

	prompt := BuildSystemPrompt(ModeCode, promptTools(t), nil)
	if !strings.Contains(prompt, "No modules may be imported.") {
		t.Fatalf("prompt does not state the empty allow-list:\n%s", prompt)
	}
}

func TestBuildSystemPromptToolCallMode(t *testing.T) {
	t.Parallel()

	prompt := BuildSystemPrompt(ModeToolCall, promptTools(t), nil)

	for _, want := range []string{
		`{"name": "tool_name", "arguments": {"argument": "value"}}`,
		"- search(query, limit) -> string: Searches the corpus.",
		"final_answer",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "modules") {
		t.Fatal("tool-call prompt mentions sandbox modules")
	}
}
