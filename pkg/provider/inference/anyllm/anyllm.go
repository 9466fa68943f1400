// Package anyllm provides an inference.Adapter backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface
// covering OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and
// local llama.cpp/llamafile servers behind one API. It exists alongside the
// dedicated openai and anthropic adapters so a deployment can pick a single
// provider SDK or this passthrough, depending on how many backends it needs
// to support at once.
package anyllm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/solenai/backtrack/pkg/provider/inference"
)

// Adapter implements inference.Adapter by wrapping a single any-llm-go
// backend, selected once at construction time.
type Adapter struct {
	backend anyllmlib.Provider
	model   string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs an Adapter backed by providerName, one of: "openai",
// "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq",
// "llamacpp", "llamafile". opts are forwarded to the underlying any-llm-go
// provider constructor (e.g. anyllmlib.WithAPIKey, anyllmlib.WithBaseURL);
// if no API key option is given, each backend falls back to its usual
// environment variable.
func New(providerName, model string, opts ...anyllmlib.Option) (*Adapter, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	return &Adapter{backend: backend, model: model}, nil
}

// createBackend constructs the underlying any-llm-go provider for the given
// provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
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

	params := a.buildParams(req)

	backendChunks, backendErrs := a.backend.CompletionStream(streamCtx, params)

	ch := make(chan inference.Delta, 32)
	go func() {
		defer close(done)
		defer close(ch)
		defer cancel()

		for chunk := range backendChunks {
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

		if err := <-backendErrs; err != nil {
			select {
			case ch <- inference.Delta{Err: fmt.Errorf("anyllm: stream: %w", err)}:
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

// buildParams converts req into any-llm-go's CompletionParams. The system
// prompt is prepended as a system-role message, matching how backends
// without a dedicated system field expect it.
func (a *Adapter) buildParams(req inference.Request) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		role := anyllmlib.RoleUser
		if m.Role == "assistant" {
			role = anyllmlib.RoleAssistant
		}
		messages = append(messages, anyllmlib.Message{Role: role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{
		Model:    a.model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	return params
}
