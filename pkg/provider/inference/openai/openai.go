// Package openai provides an inference.Adapter backed by the OpenAI API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/solenai/backtrack/pkg/provider/inference"
)

// Adapter implements inference.Adapter using the OpenAI chat completions API.
type Adapter struct {
	client oai.Client
	model  string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// config holds optional configuration for the adapter.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for New.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs an OpenAI-backed Adapter.
func New(apiKey, model string, opts ...Option) (*Adapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
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

	return &Adapter{client: oai.NewClient(reqOpts...), model: model}, nil
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

	params := oai.ChatCompletionNewParams{
		Model:       a.model,
		Temperature: oai.Float(req.Temperature),
		Messages:    buildMessages(req),
	}

	stream := a.client.Chat.Completions.NewStreaming(streamCtx, params)
	if err := stream.Err(); err != nil {
		cancel()
		close(done)
		return nil, fmt.Errorf("openai: start stream: %w", err)
	}

	ch := make(chan inference.Delta, 32)
	go func() {
		defer close(done)
		defer close(ch)
		defer stream.Close()
		defer cancel()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			delta := inference.Delta{
				Text: choice.Delta.Content,
				Done: choice.FinishReason != "",
			}
			select {
			case ch <- delta:
			case <-streamCtx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case ch <- inference.Delta{Err: fmt.Errorf("openai: stream: %w", err)}:
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

// buildMessages converts req into the OpenAI chat message list, prepending
// the system prompt as a leading system message since the chat completions
// API has no dedicated system-prompt field.
func buildMessages(req inference.Request) []oai.ChatCompletionMessageParamUnion {
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			msgs = append(msgs, oai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, oai.UserMessage(m.Content))
		}
	}
	return msgs
}
