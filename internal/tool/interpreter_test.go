package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"warden/internal/sandbox"
)

func TestInterpreterEvaluatesCode(t *testing.T) {
	t.Parallel()

	interp, err := NewInterpreter([]string{"math"}, 0)
	if err != nil {
		t.Fatalf("NewInterpreter() error = %v", err)
	}

	value, err := interp.Invoke(context.Background(), map[string]any{"code": "print(\"working\")\n2 + 2"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if value != "Stdout:\nworking\n\nOutput: 4" {
		t.Fatalf("Invoke() = %q", value)
	}

	value, err = interp.Invoke(context.Background(), map[string]any{"code": "x = 1"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if value != "Stdout:\n\nOutput: None" {
		t.Fatalf("statement-only snippet = %q", value)
	}
}

func TestInterpreterIsStatelessAcrossCalls(t *testing.T) {
	t.Parallel()

	interp, err := NewInterpreter(nil, 0)
	if err != nil {
		t.Fatalf("NewInterpreter() error = %v", err)
	}

	if _, err := interp.Invoke(context.Background(), map[string]any{"code": "leftover = 1"}); err != nil {
		t.Fatalf("first Invoke() error = %v", err)
	}
	_, err = interp.Invoke(context.Background(), map[string]any{"code": "leftover + 1"})
	if err == nil || !strings.Contains(err.Error(), "leftover") {
		t.Fatalf("second Invoke() error = %v, want undefined binding", err)
	}
}

func TestInterpreterSurfacesFaults(t *testing.T) {
	t.Parallel()

	interp, err := NewInterpreter(nil, 0)
	if err != nil {
		t.Fatalf("NewInterpreter() error = %v", err)
	}

	_, err = interp.Invoke(context.Background(), map[string]any{"code": "1 // 0"})
	if err == nil || !strings.Contains(err.Error(), "division by zero") {
		t.Fatalf("runtime fault error = %v", err)
	}

	_, err = interp.Invoke(context.Background(), map[string]any{"code": "load(\"os\", \"getenv\")"})
	if err == nil || !strings.Contains(err.Error(), "os") {
		t.Fatalf("safety fault error = %v", err)
	}

	_, err = interp.Invoke(context.Background(), map[string]any{"code": 42})
	if !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("bad argument error = %v, want ErrInvalidArgs", err)
	}
}

func TestNewInterpreterRejectsUnknownModule(t *testing.T) {
	t.Parallel()

	if _, err := NewInterpreter([]string{"os"}, 0); !errors.Is(err, sandbox.ErrUnknownModule) {
		t.Fatalf("NewInterpreter() error = %v, want ErrUnknownModule", err)
	}
}

func TestFinalAnswerReturnsItsArgument(t *testing.T) {
	t.Parallel()

	var fa FinalAnswer
	if fa.Name() != sandbox.FinalAnswerName {
		t.Fatalf("Name() = %q, want %q", fa.Name(), sandbox.FinalAnswerName)
	}

	value, err := fa.Invoke(context.Background(), map[string]any{"answer": 42})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if value != 42 {
		t.Fatalf("Invoke() = %v, want 42", value)
	}

	registry, err := NewRegistry(fa, newStubTool("search"))
	if err != nil {
		t.Fatalf("final_answer must register cleanly: %v", err)
	}
	if !registry.Has(sandbox.FinalAnswerName) {
		t.Fatalf("registry should expose final_answer")
	}
}
