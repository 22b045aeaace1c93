package agent

import (
	"errors"

	"warden/internal/sandbox"
)

// Status is the lifecycle state of one run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// ErrorKind classifies a fault recorded on a step. Most kinds are recovered
// locally: the fault becomes the step's observation and the loop continues.
// Only model_error and max_steps_exceeded terminate a run.
type ErrorKind string

const (
	// ErrorKindParse marks a completion without an extractable action.
	ErrorKindParse ErrorKind = "parse_error"
	// ErrorKindSafety marks an action rejected by the sandbox capability fence.
	ErrorKindSafety ErrorKind = "safety_violation"
	// ErrorKindTool marks a failed tool invocation.
	ErrorKindTool ErrorKind = "tool_invocation_error"
	// ErrorKindRuntime marks an unhandled fault inside authorized code.
	ErrorKindRuntime ErrorKind = "runtime_error"
	// ErrorKindSyntax marks a malformed code action.
	ErrorKindSyntax ErrorKind = "syntax_error"
	// ErrorKindTimeout marks a step that exceeded its wall-clock or
	// instruction budget.
	ErrorKindTimeout ErrorKind = "timeout_error"
	// ErrorKindModel marks exhausted model retries.
	ErrorKindModel ErrorKind = "model_error"
	// ErrorKindMaxSteps marks a run that spent its step budget without a
	// final answer.
	ErrorKindMaxSteps ErrorKind = "max_steps_exceeded"
)

var (
	// ErrCompleterRequired indicates a missing model dependency.
	ErrCompleterRequired = errors.New("completer is required")
	// ErrTaskRequired indicates an empty run task.
	ErrTaskRequired = errors.New("task is required")
	// ErrAgentBusy indicates an attempt to start a run while one is active.
	ErrAgentBusy = errors.New("agent is already running")
	// ErrInvalidMode indicates an unknown action mode.
	ErrInvalidMode = errors.New("invalid action mode")
	// ErrInvalidMaxStepsPolicy indicates an unknown budget-exhaustion policy.
	ErrInvalidMaxStepsPolicy = errors.New("invalid max-steps policy")
	// ErrMaxStepsExceeded indicates the step budget ran out before a final
	// answer.
	ErrMaxStepsExceeded = errors.New("max steps exceeded")
	// ErrModelFailed indicates the model contract failed after retries.
	ErrModelFailed = errors.New("model call failed")
	// ErrMemorySealed indicates an append after a final answer that is not
	// the task step of a continuation.
	ErrMemorySealed = errors.New("memory is sealed by a final answer")
	// ErrSubAgentRequired indicates a nil sub-agent passed to AsTool.
	ErrSubAgentRequired = errors.New("sub-agent is required")
)

// faultErrorKind maps a sandbox fault classification onto the step taxonomy.
func faultErrorKind(kind sandbox.FaultKind) ErrorKind {
	switch kind {
	case sandbox.FaultSyntax:
		return ErrorKindSyntax
	case sandbox.FaultSafety:
		return ErrorKindSafety
	case sandbox.FaultTimeout:
		return ErrorKindTimeout
	default:
		return ErrorKindRuntime
	}
}
