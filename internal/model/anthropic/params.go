package anthropicprovider

import (
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"warden/internal/model"
)

// defaultMaxTokens is used when callers do not provide an explicit token budget.
const defaultMaxTokens = 4096

// toMessageParams validates and converts a canonical request into SDK params.
// System messages become the request system prompt; tool-role observations
// become user turns because the Messages API has no bare tool slot, and
// consecutive same-role turns are merged.
func toMessageParams(modelName string, req model.Request) (anthropic.MessageNewParams, error) {
	if strings.TrimSpace(modelName) == "" {
		return anthropic.MessageNewParams{}, fmt.Errorf("%w: model is required", model.ErrInvalidRequest)
	}
	if len(req.Messages) == 0 {
		return anthropic.MessageNewParams{}, fmt.Errorf("%w: messages are required", model.ErrInvalidRequest)
	}

	system, turns, err := splitConversation(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	if len(turns) == 0 {
		return anthropic.MessageNewParams{}, fmt.Errorf("%w: at least one non-system message is required", model.ErrInvalidRequest)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelName),
		MaxTokens: int64(maxTokens),
		Messages:  toSDKMessages(turns),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = append([]string(nil), req.StopSequences...)
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	return params, nil
}

// splitConversation separates system text from conversational turns and
// normalizes roles the API cannot express.
func splitConversation(messages []model.Message) (string, []model.Message, error) {
	var system []string
	turns := make([]model.Message, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if msg.Content != "" {
				system = append(system, msg.Content)
			}
		case model.RoleUser, model.RoleAssistant, model.RoleTool:
			role := msg.Role
			if role == model.RoleTool {
				role = model.RoleUser
			}
			if msg.Content == "" {
				continue
			}
			if n := len(turns); n > 0 && turns[n-1].Role == role {
				turns[n-1].Content += "\n\n" + msg.Content
				continue
			}
			turns = append(turns, model.Message{Role: role, Content: msg.Content})
		default:
			return "", nil, fmt.Errorf("%w: unsupported role %q", model.ErrInvalidRequest, msg.Role)
		}
	}

	return strings.Join(system, "\n\n"), turns, nil
}

// toSDKMessages converts normalized turns into Anthropic SDK messages.
func toSDKMessages(turns []model.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, msg := range turns {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == model.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}
