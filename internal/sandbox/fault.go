package sandbox

import "fmt"

// FaultKind classifies execution faults surfaced by the engine.
type FaultKind string

const (
	// FaultSyntax covers malformed source, rejected before anything executes.
	FaultSyntax FaultKind = "syntax"
	// FaultSafety covers references to capabilities outside the allow-list,
	// rejected before anything executes.
	FaultSafety FaultKind = "safety"
	// FaultRuntime covers unhandled faults raised while executing; effects of
	// already-executed statements persist in the scope.
	FaultRuntime FaultKind = "runtime"
	// FaultTimeout covers wall-clock or instruction budget exhaustion; the
	// scope is restored to its pre-step bindings.
	FaultTimeout FaultKind = "timeout"
)

// Fault is a classified, recoverable execution fault. Callers fold it into
// an observation and keep going; it never aborts a run by itself.
type Fault struct {
	Kind    FaultKind
	Msg     string
	Context string
}

func (f *Fault) Error() string {
	if f.Context != "" {
		return fmt.Sprintf("%s: %s (%s)", f.Kind, f.Msg, f.Context)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
}
