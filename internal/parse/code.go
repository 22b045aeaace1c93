package parse

import (
	"fmt"
	"regexp"
	"strings"
)

// codeFence matches one fenced code region. The language tag is optional
// and restricted to the dialect the system prompt asks for.
var codeFence = regexp.MustCompile("(?s)```(?:py|python)?\\s*\\n(.*?)```")

// CodeStrategy locates a fenced code region in the completion and proposes
// it as a CodeAction. Leading and trailing prose is tolerated. When the
// completion carries several blocks, the last one wins: later blocks are
// the model's revision of earlier ones.
type CodeStrategy struct{}

// NewCodeStrategy returns the fenced-code extraction strategy.
func NewCodeStrategy() CodeStrategy { return CodeStrategy{} }

// Extract implements Strategy.
func (CodeStrategy) Extract(completion string) (Action, error) {
	matches := codeFence.FindAllStringSubmatch(completion, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf(
			"%w: provide the action as a fenced snippet, i.e.\nCode:\n```py\n# your code\n```<end_code>",
			ErrNoCodeBlock,
		)
	}

	source := strings.TrimSpace(matches[len(matches)-1][1])
	if source == "" {
		return nil, fmt.Errorf("%w: the code block is empty", ErrNoCodeBlock)
	}
	return CodeAction{Source: source}, nil
}

// StopSequences implements Strategy.
func (CodeStrategy) StopSequences() []string {
	return []string{"<end_code>", "Observation:"}
}
