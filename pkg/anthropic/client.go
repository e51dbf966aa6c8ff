// Package anthropic wraps the official SDK behind the narrow completion
// contract the engine consumes: prompt in, text out, bounded latency.
package anthropic

import (
	"context"
	"errors"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/gradpath/advisor/internal/resilience"
)

// Completer is the completion-provider contract. The provider is a source
// of prose only; it never decides scores, statuses, or rankings.
type Completer interface {
	Complete(ctx context.Context, req CompleteRequest) (string, error)
}

// CompleteRequest describes one completion call. Grounding carries the
// already-computed structured data the model may phrase but not invent.
type CompleteRequest struct {
	System      string
	Prompt      string
	Grounding   string
	MaxTokens   int64
	Temperature *float64
}

// ProviderError marks a non-timeout failure from the completion provider.
// Callers treat it as soft: narrative is omitted, structured results stand.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return "completion provider: " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err chains to a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsTimeout reports whether err is a deadline or cancellation failure.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// Config holds client settings.
type Config struct {
	Key        string
	Model      string
	MaxTokens  int64
	Timeout    time.Duration
	RatePerSec float64
}

// Client implements Completer over anthropic-sdk-go with a per-call
// timeout, a rate limiter, and a single transient retry. Retry policy
// lives here, client-side: the router never retries.
type Client struct {
	sdk     sdk.Client
	cfg     Config
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a completion client.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	return &Client{
		sdk:     sdk.NewClient(option.WithAPIKey(cfg.Key)),
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: 300 * time.Millisecond,
			OnRetry:        resilience.RetryLogger("anthropic", "complete"),
		},
	}
}

// Complete sends one message and returns the concatenated text blocks.
func (c *Client) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}

	prompt := req.Prompt
	if req.Grounding != "" {
		prompt = prompt + "\n\nGrounding data (do not invent entries beyond it):\n" + req.Grounding
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.cfg.Model),
		MaxTokens: maxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*sdk.Message, error) {
		return c.sdk.Messages.New(ctx, params)
	})
	if err != nil {
		if IsTimeout(err) || ctx.Err() != nil {
			return "", context.DeadlineExceeded
		}
		return "", &ProviderError{Err: err}
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", &ProviderError{Err: eris.New("empty completion")}
	}
	return text, nil
}
