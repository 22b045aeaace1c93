package anthropicprovider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"warden/internal/model"
)

// Config configures the Anthropic completer.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Version    string
	HTTPClient *http.Client
	Retry      model.RetryPolicy
}

// Completer is a thin wrapper around the official anthropic-sdk-go client.
type Completer struct {
	apiKey string
	model  string
	retry  model.RetryPolicy

	client anthropic.Client
}

// New constructs a completer with sane defaults.
func New(cfg Config) *Completer {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	version := strings.TrimSpace(cfg.Version)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	clientOptions := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0), // explicit retry behavior in this package
	}
	if baseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(baseURL))
	}
	if version != "" {
		clientOptions = append(clientOptions, option.WithHeader("anthropic-version", version))
	}

	return &Completer{
		apiKey: apiKey,
		model:  strings.TrimSpace(cfg.Model),
		retry:  model.NormalizeRetryPolicy(cfg.Retry),
		client: anthropic.NewClient(clientOptions...),
	}
}

// Complete executes a single Anthropic Messages API request.
func (c *Completer) Complete(ctx context.Context, req model.Request) (model.Completion, error) {
	if c == nil {
		return model.Completion{}, fmt.Errorf("anthropic completer is nil")
	}
	if c.apiKey == "" {
		return model.Completion{}, model.ErrMissingAPIKey
	}

	params, err := toMessageParams(c.model, req)
	if err != nil {
		return model.Completion{}, err
	}

	msg, err := c.completeWithRetry(ctx, params)
	if err != nil {
		return model.Completion{}, err
	}

	text := extractText(msg)
	trimmed, matched := model.TrimAtStop(text, req.StopSequences)
	if matched == "" && msg.StopSequence != "" {
		matched = msg.StopSequence
	}

	return model.Completion{
		Text: trimmed,
		Usage: model.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
		StopSequence: matched,
	}, nil
}

// completeWithRetry retries transient API failures within the configured budget.
// Transient errors that exhaust the budget stay marked retryable so an outer
// policy may keep going.
func (c *Completer) completeWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	attempt := 0
	for {
		msg, err := c.client.Messages.New(ctx, params)
		if err == nil {
			return msg, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		wrapped := fmt.Errorf("anthropic messages: %w", err)
		if !isRetryableProviderError(err) {
			return nil, wrapped
		}
		if attempt >= c.retry.MaxRetries {
			return nil, model.MarkRetryable(wrapped)
		}

		delay := model.ComputeBackoffDelay(c.retry, attempt)
		if sleepErr := model.SleepContext(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
		attempt++
	}
}

// extractText concatenates all text blocks of one response message.
func extractText(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	return b.String()
}
