package agent

import (
	"fmt"
	"strings"

	"warden/internal/model"
	"warden/internal/parse"
)

const taskPrefix = "New task:\n"

const retryGuidance = "\nNow let's retry: take care not to repeat previous errors! " +
	"If you have retried several times, try a completely new approach."

// Project turns a step log into the message sequence for the next model
// call. It is pure: deterministic, idempotent, and it never consults or
// mutates anything outside the given steps. Messages reach the model only
// through this function.
func Project(steps []Step) []model.Message {
	messages := make([]model.Message, 0, len(steps)*2)
	for _, step := range steps {
		switch s := step.(type) {
		case SystemPromptStep:
			messages = append(messages, model.Message{Role: model.RoleSystem, Content: s.Text})
		case TaskStep:
			messages = append(messages, model.Message{Role: model.RoleUser, Content: taskPrefix + s.Text})
		case PlanningStep:
			messages = append(messages, model.Message{Role: model.RoleAssistant, Content: renderPlanning(s)})
		case ActionStep:
			if s.ModelOutput != "" {
				messages = append(messages, model.Message{Role: model.RoleAssistant, Content: s.ModelOutput})
			}
			messages = append(messages, model.Message{Role: model.RoleTool, Content: renderObservation(s)})
		case FinalAnswerStep:
			messages = append(messages, model.Message{Role: model.RoleAssistant, Content: "Final answer: " + renderValue(s.Value)})
		}
	}
	return messages
}

// DegradedAnswerMessages builds the one-shot "answer now" request used when
// the step budget runs out under the best-effort policy.
func DegradedAnswerMessages(steps []Step, task string) []model.Message {
	messages := []model.Message{{
		Role: model.RoleSystem,
		Content: "An agent attempted to solve a user task but ran out of steps. " +
			"Below is its transcript. Write the best answer you can for the task.",
	}}
	messages = append(messages, withoutSystem(Project(steps))...)
	messages = append(messages, model.Message{
		Role:    model.RoleUser,
		Content: "Based on the steps above, answer the following task as well as you can:\n" + task,
	})
	return messages
}

// withoutSystem drops system messages so a projection can be re-framed
// under a different instruction.
func withoutSystem(messages []model.Message) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func renderPlanning(s PlanningStep) string {
	return "Facts:\n" + s.Facts + "\n\nPlan:\n" + s.Plan
}

// renderObservation folds an action's outcome into the tool message the
// model sees next step. Faults render as errors with retry guidance so the
// model can self-correct.
func renderObservation(step ActionStep) string {
	if step.ErrorKind != "" {
		return "Error:\n" + truncateObservation(step.ErrorMsg) + retryGuidance
	}
	if _, ok := step.Action.(parse.ToolCallAction); ok {
		return "Observation:\n" + truncateObservation(renderValue(step.Value))
	}
	body := strings.TrimRight(step.Output, "\n")
	if step.Value != nil {
		if body != "" {
			body += "\n"
		}
		body += "Out: " + renderValue(step.Value)
	}
	if body == "" {
		body = "(no output)"
	}
	return "Observation:\n" + truncateObservation(body)
}

func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "None"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
