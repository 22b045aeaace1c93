package agent

import (
	"time"

	"warden/internal/model"
	"warden/internal/parse"
)

// StepKind tags the variants of the step record union.
type StepKind string

const (
	StepKindSystemPrompt StepKind = "system_prompt"
	StepKindTask         StepKind = "task"
	StepKindPlanning     StepKind = "planning"
	StepKindAction       StepKind = "action"
	StepKindFinalAnswer  StepKind = "final_answer"
)

// Step is one immutable record in an agent's memory.
type Step interface {
	Kind() StepKind
}

// SystemPromptStep is the synthesized system prompt, appended once at run
// start.
type SystemPromptStep struct {
	Text string
}

// TaskStep is one user request. A continuation run appends a new TaskStep
// on top of the prior memory.
type TaskStep struct {
	Text string
}

// PlanningStep is a periodic facts/plan synthesis. It consumes one model
// call and counts toward the step budget.
type PlanningStep struct {
	Facts    string
	Plan     string
	Usage    model.Usage
	Duration time.Duration
}

// ActionStep is one reason-act-observe iteration: the raw completion, the
// action parsed from it, and the outcome of performing that action. On a
// fault, ErrorKind and ErrorMsg are set and Output/Value hold whatever the
// action produced before faulting.
type ActionStep struct {
	ModelOutput string
	Action      parse.Action
	Output      string
	Value       any
	ErrorKind   ErrorKind
	ErrorMsg    string
	Usage       model.Usage
	Duration    time.Duration
}

// FinalAnswerStep carries the run's answer. At most one per run segment,
// always the last record of the segment.
type FinalAnswerStep struct {
	Value any
}

func (SystemPromptStep) Kind() StepKind { return StepKindSystemPrompt }
func (TaskStep) Kind() StepKind         { return StepKindTask }
func (PlanningStep) Kind() StepKind     { return StepKindPlanning }
func (ActionStep) Kind() StepKind       { return StepKindAction }
func (FinalAnswerStep) Kind() StepKind  { return StepKindFinalAnswer }
