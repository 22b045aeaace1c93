package agent

import (
	"strings"

	"warden/internal/model"
)

const planningSystemPrompt = "You are a world expert at analyzing a situation and planning next steps. " +
	"Below is a task an agent is working on and the transcript of its attempts so far. " +
	"Do not attempt to solve the task yourself."

const planningRequest = "Survey what has been established so far, then lay out a short plan for the next steps. " +
	"Answer with exactly two sections:\n" +
	"Facts:\n<everything known so far that matters for the task>\n" +
	"Plan:\n<numbered next steps>"

// PlanningMessages builds the model request for a planning step: the
// transcript so far, re-framed under a planning instruction. The task is
// already part of the transcript.
func PlanningMessages(steps []Step) []model.Message {
	messages := []model.Message{{Role: model.RoleSystem, Content: planningSystemPrompt}}
	messages = append(messages, withoutSystem(Project(steps))...)
	messages = append(messages, model.Message{Role: model.RoleUser, Content: planningRequest})
	return messages
}

// splitPlanning separates a planning completion into its facts and plan
// sections. A completion without the expected markers becomes all plan.
func splitPlanning(text string) (facts, plan string) {
	head, tail, hasPlan := strings.Cut(text, "Plan:")
	if _, afterFacts, hasFacts := strings.Cut(head, "Facts:"); hasFacts {
		head = afterFacts
	} else if !hasPlan {
		return "", strings.TrimSpace(text)
	}
	return strings.TrimSpace(head), strings.TrimSpace(tail)
}
