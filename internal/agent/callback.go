package agent

import (
	"log/slog"
	"sync"
	"time"

	"warden/internal/model"
)

// StepCallback observes one appended step together with a read-only copy of
// the memory at that point. Callbacks run in registration order, strictly
// after the step is appended, and are for side effects only: a panicking
// callback is recovered and logged, never allowed to abort the run.
type StepCallback func(step Step, memory []Step)

func runCallbacks(logger *slog.Logger, callbacks []StepCallback, step Step, memory []Step) {
	for i, cb := range callbacks {
		if cb == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("step callback panicked",
						"callback", i,
						"step", string(step.Kind()),
						"panic", r)
				}
			}()
			cb(step, memory)
		}()
	}
}

// Monitor is a step callback accumulating token usage and step durations
// across a run. Safe for concurrent reads while a run is active.
type Monitor struct {
	mu        sync.Mutex
	usage     model.Usage
	durations []time.Duration
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Observe implements StepCallback.
func (m *Monitor) Observe(step Step, _ []Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch s := step.(type) {
	case ActionStep:
		m.usage.Add(s.Usage)
		m.durations = append(m.durations, s.Duration)
	case PlanningStep:
		m.usage.Add(s.Usage)
		m.durations = append(m.durations, s.Duration)
	}
}

// TotalUsage returns the tokens consumed by every observed step.
func (m *Monitor) TotalUsage() model.Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

// StepDurations returns the duration of every observed step, in order.
func (m *Monitor) StepDurations() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.durations...)
}

// Reset drops all accumulated measurements.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = model.Usage{}
	m.durations = nil
}

// LogCallback renders per-step progress through a logger.
func LogCallback(logger *slog.Logger) StepCallback {
	return func(step Step, memory []Step) {
		switch s := step.(type) {
		case TaskStep:
			logger.Info("task", "text", s.Text)
		case PlanningStep:
			logger.Info("planning step",
				"steps", len(memory),
				"tokens", s.Usage.TokenCount(),
				"duration", s.Duration)
		case ActionStep:
			if s.ErrorKind != "" {
				logger.Warn("action step failed",
					"steps", len(memory),
					"error_kind", string(s.ErrorKind),
					"error", s.ErrorMsg,
					"duration", s.Duration)
				return
			}
			logger.Info("action step",
				"steps", len(memory),
				"tokens", s.Usage.TokenCount(),
				"duration", s.Duration)
		case FinalAnswerStep:
			logger.Info("final answer", "value", renderValue(s.Value))
		}
	}
}
