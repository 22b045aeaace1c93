package parse

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestCodeStrategyExtractsFencedBlock(t *testing.T) {
	t.Parallel()

	completion := "Thought: add the numbers.\nCode:\n```py\nresult = 2 + 2\nfinal_answer(result)\n```<end_code>"
	action, err := NewCodeStrategy().Extract(completion)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	code, ok := action.(CodeAction)
	if !ok {
		t.Fatalf("Extract() = %T, want CodeAction", action)
	}
	if code.Source != "result = 2 + 2\nfinal_answer(result)" {
		t.Fatalf("Source = %q", code.Source)
	}
}

func TestCodeStrategyAcceptsFenceVariants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		completion string
		want       string
	}{
		{"python tag", "```python\nx = 1\n```", "x = 1"},
		{"no tag", "```\nx = 1\n```", "x = 1"},
		{"surrounding prose", "Let me check.\n```py\nprint(\"hi\")\n```\nThat should do it.", "print(\"hi\")"},
		{"indented fence content", "```py\n  x = 1\nx\n```", "x = 1\nx"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			action, err := NewCodeStrategy().Extract(tc.completion)
			if err != nil {
				t.Fatalf("Extract(%q) error = %v", tc.completion, err)
			}
			if got := action.(CodeAction).Source; got != tc.want {
				t.Fatalf("Source = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCodeStrategyLastBlockWins(t *testing.T) {
	t.Parallel()

	completion := "First attempt:\n```py\nwrong = 1\n```\nActually, better:\n```py\nright = 2\n```"
	action, err := NewCodeStrategy().Extract(completion)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := action.(CodeAction).Source; got != "right = 2" {
		t.Fatalf("Source = %q, want the last block", got)
	}
}

func TestCodeStrategyRejectsMissingOrEmptyBlock(t *testing.T) {
	t.Parallel()

	_, err := NewCodeStrategy().Extract("I think the answer is 4.")
	if !errors.Is(err, ErrNoCodeBlock) {
		t.Fatalf("prose-only error = %v, want ErrNoCodeBlock", err)
	}
	if !strings.Contains(err.Error(), "```py") {
		t.Fatalf("error should show the expected format: %v", err)
	}

	_, err = NewCodeStrategy().Extract("```py\n\n```")
	if !errors.Is(err, ErrNoCodeBlock) {
		t.Fatalf("empty block error = %v, want ErrNoCodeBlock", err)
	}
}

func TestCodeStrategyStopSequences(t *testing.T) {
	t.Parallel()

	want := []string{"<end_code>", "Observation:"}
	got := NewCodeStrategy().StopSequences()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("StopSequences() = %v, want %v", got, want)
	}

	got[0] = "mutated"
	if again := NewCodeStrategy().StopSequences(); !reflect.DeepEqual(again, want) {
		t.Fatalf("StopSequences() must return a fresh slice, got %v", again)
	}
}
