package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/internal/model"
	"warden/internal/parse"
	"warden/internal/sandbox"
)

// runState is the mutable state of one run. It lives on the loop's stack
// and is mutated only between step boundaries.
type runState struct {
	id          string
	task        string
	maxSteps    int
	stepTimeout time.Duration
	started     time.Time

	stepsTaken   int
	actionsTaken int
	plannedAt    int
	usage        model.Usage
	status       Status
	failure      ErrorKind
	answer       any
}

// loop iterates steps until a terminal status. Each iteration checks
// cancellation and the step budget, runs a planning step when one is due,
// and otherwise performs one action step.
func (a *Agent) loop(ctx context.Context, run *runState) (*RunResult, error) {
	run.status = StatusRunning
	for {
		if err := ctx.Err(); err != nil {
			run.status = StatusCancelled
			return a.result(run), err
		}
		if run.stepsTaken >= run.maxSteps {
			return a.concludeExhausted(ctx, run)
		}

		if a.planningDue(run) {
			if err := a.planningStep(ctx, run); err != nil {
				return a.result(run), err
			}
			continue
		}

		if err := a.actionStep(ctx, run); err != nil {
			return a.result(run), err
		}
		if run.status == StatusSucceeded {
			return a.result(run), nil
		}
	}
}

// record appends a step, updates the budget counters, and runs the
// callback pipeline on a read-only copy of the memory.
func (a *Agent) record(run *runState, step Step) error {
	if err := a.memory.Append(step); err != nil {
		return err
	}
	switch step.(type) {
	case ActionStep:
		run.stepsTaken++
		run.actionsTaken++
	case PlanningStep:
		run.stepsTaken++
	}
	runCallbacks(a.logger, a.callbacks, step, a.memory.Steps())
	return nil
}

func (a *Agent) result(run *runState) *RunResult {
	return &RunResult{
		ID:          run.id,
		Task:        run.task,
		Status:      run.status,
		Answer:      run.answer,
		FailureKind: run.failure,
		Steps:       a.memory.Steps(),
		Usage:       run.usage,
		Duration:    time.Since(run.started),
	}
}

func (a *Agent) complete(ctx context.Context, messages []model.Message, stops []string) (model.Completion, error) {
	return a.completer.Complete(ctx, model.Request{
		Messages:      messages,
		StopSequences: stops,
		MaxTokens:     a.maxTokens,
		Temperature:   a.temperature,
	})
}

// planningDue reports whether a planning step should run now: before the
// first action, then after every planningInterval completed actions, at
// most once per action count.
func (a *Agent) planningDue(run *runState) bool {
	if a.planningInterval <= 0 {
		return false
	}
	return run.actionsTaken != run.plannedAt && run.actionsTaken%a.planningInterval == 0
}

// planningStep makes one model call for a facts/plan synthesis and records
// it. Planning consumes step budget like an action.
func (a *Agent) planningStep(ctx context.Context, run *runState) error {
	started := time.Now()
	completion, err := a.complete(ctx, PlanningMessages(a.memory.Steps()), nil)
	if err != nil {
		return a.modelFailure(ctx, run, err)
	}
	run.usage.Add(completion.Usage)
	run.plannedAt = run.actionsTaken

	facts, plan := splitPlanning(completion.Text)
	step := PlanningStep{
		Facts:    facts,
		Plan:     plan,
		Usage:    completion.Usage,
		Duration: time.Since(started),
	}
	if err := a.record(run, step); err != nil {
		return a.internalFailure(run, err)
	}
	return nil
}

// actionStep performs one reason-act-observe iteration: completion, parse,
// execute, record. Recoverable faults become the step's observation and
// return nil so the loop continues.
func (a *Agent) actionStep(ctx context.Context, run *runState) error {
	started := time.Now()
	completion, err := a.complete(ctx, Project(a.memory.Steps()), a.strategy.StopSequences())
	if err != nil {
		return a.modelFailure(ctx, run, err)
	}
	run.usage.Add(completion.Usage)

	step := ActionStep{
		ModelOutput: completion.Text,
		Usage:       completion.Usage,
	}

	action, err := a.strategy.Extract(completion.Text)
	if err != nil {
		step.ErrorKind = ErrorKindParse
		step.ErrorMsg = err.Error()
		step.Duration = time.Since(started)
		if recErr := a.record(run, step); recErr != nil {
			return a.internalFailure(run, recErr)
		}
		return nil
	}
	step.Action = action

	switch act := action.(type) {
	case parse.CodeAction:
		return a.performCode(ctx, run, step, act, started)
	case parse.ToolCallAction:
		return a.performToolCall(ctx, run, step, act, started)
	default:
		return a.internalFailure(run, fmt.Errorf("unsupported action type %T", action))
	}
}

// performCode runs a code action in the sandbox. Faults fold into the
// observation; a final_answer call succeeds the run.
func (a *Agent) performCode(ctx context.Context, run *runState, step ActionStep, action parse.CodeAction, started time.Time) error {
	res, err := a.engine.Execute(ctx, action.Source, run.stepTimeout)
	if err != nil {
		// The engine reserves its error return for cancellation; the
		// in-flight step is not appended.
		run.status = StatusCancelled
		return err
	}
	step.Output = res.Output
	step.Duration = time.Since(started)

	if res.Fault != nil {
		step.ErrorKind = faultErrorKind(res.Fault.Kind)
		step.ErrorMsg = res.Fault.Error()
		if recErr := a.record(run, step); recErr != nil {
			return a.internalFailure(run, recErr)
		}
		return nil
	}

	step.Value = res.Value
	if recErr := a.record(run, step); recErr != nil {
		return a.internalFailure(run, recErr)
	}
	if res.FinalAnswer {
		return a.finish(run, res.Value)
	}
	return nil
}

// performToolCall invokes a registered tool under the step timeout. Calling
// the reserved final_answer tool succeeds the run.
func (a *Agent) performToolCall(ctx context.Context, run *runState, step ActionStep, action parse.ToolCallAction, started time.Time) error {
	invokeCtx := ctx
	cancel := context.CancelFunc(func() {})
	if run.stepTimeout > 0 {
		invokeCtx, cancel = context.WithTimeout(ctx, run.stepTimeout)
	}
	value, err := a.registry.Invoke(invokeCtx, action.Name, action.Args)
	cancel()
	step.Duration = time.Since(started)

	switch {
	case err == nil:
		step.Value = value
	case ctx.Err() != nil:
		run.status = StatusCancelled
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		step.ErrorKind = ErrorKindTimeout
		step.ErrorMsg = fmt.Sprintf("tool %s exceeded the step timeout of %v", action.Name, run.stepTimeout)
	default:
		step.ErrorKind = ErrorKindTool
		step.ErrorMsg = err.Error()
	}

	if recErr := a.record(run, step); recErr != nil {
		return a.internalFailure(run, recErr)
	}
	if err == nil && action.Name == sandbox.FinalAnswerName {
		return a.finish(run, value)
	}
	return nil
}

// finish appends the final answer and succeeds the run.
func (a *Agent) finish(run *runState, answer any) error {
	if err := a.record(run, FinalAnswerStep{Value: answer}); err != nil {
		return a.internalFailure(run, err)
	}
	run.status = StatusSucceeded
	run.answer = answer
	return nil
}

// concludeExhausted ends a run whose step budget ran out without a final
// answer. The best-effort policy adds one degraded-answer model call; the
// run fails with max_steps_exceeded either way.
func (a *Agent) concludeExhausted(ctx context.Context, run *runState) (*RunResult, error) {
	run.status = StatusFailed
	run.failure = ErrorKindMaxSteps

	if a.onMaxSteps == MaxStepsBestEffort {
		if err := a.bestEffortAnswer(ctx, run); err != nil {
			run.status = StatusCancelled
			run.failure = ""
			return a.result(run), err
		}
	}
	return a.result(run), fmt.Errorf("%w: budget of %d steps spent without a final answer", ErrMaxStepsExceeded, run.maxSteps)
}

// bestEffortAnswer makes one last "answer now" model call and records the
// degraded answer. A model failure here is logged and swallowed: the run
// is already failing for its budget. The error return is cancellation only.
func (a *Agent) bestEffortAnswer(ctx context.Context, run *runState) error {
	started := time.Now()
	completion, err := a.complete(ctx, DegradedAnswerMessages(a.memory.Steps(), run.task), nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		a.logger.Warn("best-effort answer failed", "run", run.id, "error", err)
		return nil
	}
	run.usage.Add(completion.Usage)
	run.answer = completion.Text

	step := ActionStep{
		ModelOutput: completion.Text,
		Value:       completion.Text,
		ErrorKind:   ErrorKindMaxSteps,
		ErrorMsg:    fmt.Sprintf("reached the step budget of %d; answering with what was gathered so far", run.maxSteps),
		Usage:       completion.Usage,
		Duration:    time.Since(started),
	}
	if recErr := a.record(run, step); recErr != nil {
		a.logger.Error("record degraded answer", "run", run.id, "error", recErr)
		return nil
	}
	if recErr := a.record(run, FinalAnswerStep{Value: completion.Text}); recErr != nil {
		a.logger.Error("record degraded final answer", "run", run.id, "error", recErr)
	}
	return nil
}

// modelFailure ends the run after the model contract failed past its retry
// budget. External cancellation is reported as cancelled, not failed.
func (a *Agent) modelFailure(ctx context.Context, run *runState, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		run.status = StatusCancelled
		return ctxErr
	}
	run.status = StatusFailed
	run.failure = ErrorKindModel
	step := ActionStep{ErrorKind: ErrorKindModel, ErrorMsg: err.Error()}
	if recErr := a.record(run, step); recErr != nil {
		a.logger.Error("record model failure", "run", run.id, "error", recErr)
	}
	return fmt.Errorf("%w: %w", ErrModelFailed, err)
}

// internalFailure covers faults of the loop itself, not of the episode.
func (a *Agent) internalFailure(run *runState, err error) error {
	run.status = StatusFailed
	return err
}
