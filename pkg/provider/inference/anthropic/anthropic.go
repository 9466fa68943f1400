// Package anthropic provides an inference.Adapter backed by the Anthropic
// Messages API. It mirrors the structure of the sibling openai adapter —
// same functional-option constructor, same cancel-via-context approach —
// adapted to the Messages streaming event shape.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/solenai/backtrack/pkg/provider/inference"
)

// defaultMaxTokens caps a single generation when the caller does not
// configure one explicitly. The core contract has no MaxTokens field — the
// inference request carries only messages, system prompt, and temperature —
// so this is a fixed, generous ceiling rather than a tunable.
const defaultMaxTokens = 4096

// Adapter implements inference.Adapter using the Anthropic Messages API.
type Adapter struct {
	client anthropic.Client
	model  anthropic.Model

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for New.
type Option func(*config)

// WithBaseURL overrides the default Anthropic API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an Anthropic-backed Adapter for the given model (e.g.
// "claude-3-5-sonnet-latest").
func New(apiKey, model string, opts ...Option) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anthropic: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Adapter{
		client: anthropic.NewClient(reqOpts...),
		model:  anthropic.Model(model),
	}, nil
}

// Ensure Adapter implements inference.Adapter at compile time.
var _ inference.Adapter = (*Adapter)(nil)

// Stream implements inference.Adapter.
func (a *Adapter) Stream(ctx context.Context, req inference.Request) (<-chan inference.Delta, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	a.mu.Lock()
	a.cancel = cancel
	a.done = done
	a.mu.Unlock()

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: defaultMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		},
		Temperature: anthropic.Float(req.Temperature),
		Messages:    buildMessages(req),
	}

	stream := a.client.Messages.NewStreaming(streamCtx, params)
	if err := stream.Err(); err != nil {
		cancel()
		close(done)
		return nil, fmt.Errorf("anthropic: start stream: %w", err)
	}

	ch := make(chan inference.Delta, 32)
	go func() {
		defer close(done)
		defer close(ch)
		defer stream.Close()
		defer cancel()

		for stream.Next() {
			switch event := stream.Current().AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if text := event.Delta.Text; text != "" {
					select {
					case ch <- inference.Delta{Text: text}:
					case <-streamCtx.Done():
						return
					}
				}
			case anthropic.MessageStopEvent:
				select {
				case ch <- inference.Delta{Done: true}:
				case <-streamCtx.Done():
				}
				return
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case ch <- inference.Delta{Err: fmt.Errorf("anthropic: stream: %w", err)}:
			case <-streamCtx.Done():
			}
		}
	}()

	return ch, nil
}

// Cancel implements inference.Adapter. It blocks until the in-flight
// streaming goroutine (if any) has fully exited, so that no further delta
// can arrive on a channel returned by a prior Stream call once Cancel
// returns.
func (a *Adapter) Cancel(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	done := a.done
	a.cancel = nil
	a.done = nil
	a.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildMessages converts req into Anthropic's message param list. The
// system prompt is carried separately (see Stream), matching Anthropic's
// dedicated system field rather than being injected as a message.
func buildMessages(req inference.Request) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}
	return msgs
}
