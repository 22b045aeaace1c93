package scripted

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"warden/internal/model"
)

// ErrScriptExhausted indicates more completions were requested than scripted.
var ErrScriptExhausted = errors.New("scripted completer exhausted")

// Response is one scripted completion or failure.
type Response struct {
	Text  string
	Usage model.Usage
	Err   error
}

// Completer replays a fixed response script for deterministic tests and
// offline runs. Stop sequences are trimmed the way a live backend would.
type Completer struct {
	Delay time.Duration

	mu        sync.Mutex
	responses []Response
	calls     int
}

// New builds a completer that returns the given responses in order.
func New(responses ...Response) *Completer {
	return &Completer{responses: responses}
}

// Complete implements model.Completer.
func (c *Completer) Complete(ctx context.Context, req model.Request) (model.Completion, error) {
	if c.Delay > 0 {
		if err := model.SleepContext(ctx, c.Delay); err != nil {
			return model.Completion{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return model.Completion{}, err
	}

	c.mu.Lock()
	index := c.calls
	c.calls++
	c.mu.Unlock()

	if index >= len(c.responses) {
		return model.Completion{}, fmt.Errorf("%w: call %d of %d", ErrScriptExhausted, index+1, len(c.responses))
	}

	resp := c.responses[index]
	if resp.Err != nil {
		return model.Completion{}, resp.Err
	}

	text, matched := model.TrimAtStop(resp.Text, req.StopSequences)
	return model.Completion{
		Text:         text,
		Usage:        resp.Usage,
		StopSequence: matched,
	}, nil
}

// Calls reports how many completions have been requested so far.
func (c *Completer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
