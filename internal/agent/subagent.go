package agent

import (
	"context"
	"fmt"

	"warden/internal/tool"
)

type subAgentParams struct {
	Task string `json:"task" jsonschema_description:"Long detailed description of the task for the team member, with all the context it needs."`
}

// AsTool adapts an agent into a tool so a parent agent can delegate whole
// sub-tasks. Invoking the tool runs the sub-agent to completion on the task
// argument and returns its final answer; a failed sub-run surfaces as a
// tool invocation error. The sub-agent owns its memory, so nothing leaks
// into the parent's scope, and its busy guard rejects two concurrent
// parents. The parent loop sees an ordinary tool.
func AsTool(sub *Agent, name, description string) (tool.Tool, error) {
	if sub == nil {
		return nil, ErrSubAgentRequired
	}
	return tool.NewFunc(name, description, "any", subAgentParams{},
		func(ctx context.Context, args map[string]any) (any, error) {
			task, _ := args["task"].(string)
			result, err := sub.Run(ctx, task, RunOptions{})
			if err != nil {
				return nil, fmt.Errorf("sub-agent run: %w", err)
			}
			return result.Answer, nil
		})
}
