package agent

// Memory is the ordered step log of one agent. It is append-only within a
// run and exclusively owned by one agent: the loop is its only writer, and
// it must not be touched by more than one run at a time.
type Memory struct {
	steps []Step
}

// NewMemory returns an empty step log.
func NewMemory() *Memory {
	return &Memory{}
}

// Append adds a step. After a FinalAnswerStep the memory accepts only a
// TaskStep, the start of a continuation; anything else is rejected so a
// final answer stays the last record of its run segment.
func (m *Memory) Append(step Step) error {
	if n := len(m.steps); n > 0 {
		if _, done := m.steps[n-1].(FinalAnswerStep); done {
			if _, ok := step.(TaskStep); !ok {
				return ErrMemorySealed
			}
		}
	}
	m.steps = append(m.steps, step)
	return nil
}

// Steps returns a copy of the step log.
func (m *Memory) Steps() []Step {
	return append([]Step(nil), m.steps...)
}

// Len reports the total number of records.
func (m *Memory) Len() int {
	return len(m.steps)
}

// StepCount reports the number of budget-consuming records: action steps
// plus planning steps.
func (m *Memory) StepCount() int {
	count := 0
	for _, step := range m.steps {
		switch step.(type) {
		case ActionStep, PlanningStep:
			count++
		}
	}
	return count
}

// FinalAnswer returns the answer of the trailing FinalAnswerStep, if any.
func (m *Memory) FinalAnswer() (any, bool) {
	if n := len(m.steps); n > 0 {
		if final, ok := m.steps[n-1].(FinalAnswerStep); ok {
			return final.Value, true
		}
	}
	return nil, false
}

// Clear drops every record. Only a run boundary may call this.
func (m *Memory) Clear() {
	m.steps = nil
}
