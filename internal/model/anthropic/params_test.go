package anthropicprovider

import (
	"encoding/json"
	"errors"
	"testing"

	"warden/internal/model"
)

type serializedParams struct {
	Model         string              `json:"model"`
	MaxTokens     int64               `json:"max_tokens"`
	Messages      []serializedMessage `json:"messages"`
	System        []serializedBlock   `json:"system"`
	StopSequences []string            `json:"stop_sequences"`
	Temperature   float64             `json:"temperature"`
}

type serializedMessage struct {
	Role    string            `json:"role"`
	Content []serializedBlock `json:"content"`
}

type serializedBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func decodeParams(t *testing.T, params any) serializedParams {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	var body serializedParams
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	return body
}

func TestToMessageParamsSystemAndStops(t *testing.T) {
	t.Parallel()

	req := model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Content: "You solve tasks with code."},
			{Role: model.RoleUser, Content: "New task:\nwhat is 2+2?"},
		},
		StopSequences: []string{"Observation:", "<end_code>"},
		MaxTokens:     512,
	}

	params, err := toMessageParams("claude-sonnet-4-20250514", req)
	if err != nil {
		t.Fatalf("toMessageParams() error = %v", err)
	}

	body := decodeParams(t, params)
	if body.Model != "claude-sonnet-4-20250514" {
		t.Fatalf("model mismatch: got %q", body.Model)
	}
	if body.MaxTokens != 512 {
		t.Fatalf("max_tokens = %d, want 512", body.MaxTokens)
	}
	if len(body.System) != 1 || body.System[0].Text != "You solve tasks with code." {
		t.Fatalf("unexpected system mapping: %+v", body.System)
	}
	if len(body.StopSequences) != 2 || body.StopSequences[0] != "Observation:" {
		t.Fatalf("unexpected stop sequences: %+v", body.StopSequences)
	}
	if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
		t.Fatalf("unexpected messages: %+v", body.Messages)
	}
}

func TestToMessageParamsConvertsToolRoleAndMerges(t *testing.T) {
	t.Parallel()

	req := model.Request{
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "New task:\ncount"},
			{Role: model.RoleAssistant, Content: "Code:\n```py\nprint(1)\n```"},
			{Role: model.RoleTool, Content: "Observation:\n1"},
			{Role: model.RoleUser, Content: "keep going"},
		},
	}

	params, err := toMessageParams("claude-sonnet-4-20250514", req)
	if err != nil {
		t.Fatalf("toMessageParams() error = %v", err)
	}

	body := decodeParams(t, params)
	if len(body.Messages) != 3 {
		t.Fatalf("message count = %d, want 3 (tool observation merged into user turn)", len(body.Messages))
	}
	roles := []string{body.Messages[0].Role, body.Messages[1].Role, body.Messages[2].Role}
	if roles[0] != "user" || roles[1] != "assistant" || roles[2] != "user" {
		t.Fatalf("unexpected role sequence: %v", roles)
	}
	merged := body.Messages[2].Content[0].Text
	if merged != "Observation:\n1\n\nkeep going" {
		t.Fatalf("tool+user merge mismatch: %q", merged)
	}
	if body.MaxTokens != defaultMaxTokens {
		t.Fatalf("default max_tokens = %d, want %d", body.MaxTokens, defaultMaxTokens)
	}
}

func TestToMessageParamsRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	if _, err := toMessageParams("", model.Request{Messages: []model.Message{{Role: model.RoleUser, Content: "x"}}}); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("missing model error = %v, want ErrInvalidRequest", err)
	}
	if _, err := toMessageParams("claude-sonnet-4-20250514", model.Request{}); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("empty messages error = %v, want ErrInvalidRequest", err)
	}
	onlySystem := model.Request{Messages: []model.Message{{Role: model.RoleSystem, Content: "sys"}}}
	if _, err := toMessageParams("claude-sonnet-4-20250514", onlySystem); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("system-only error = %v, want ErrInvalidRequest", err)
	}
	badRole := model.Request{Messages: []model.Message{{Role: "bot", Content: "x"}}}
	if _, err := toMessageParams("claude-sonnet-4-20250514", badRole); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("unsupported role error = %v, want ErrInvalidRequest", err)
	}
}
