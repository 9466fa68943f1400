// Package mock provides a test double for the inference.Adapter interface.
//
// Use Adapter in unit and orchestrator-level tests to script a sequence of
// streaming responses — optionally across several retries — without a live
// model backend, and to assert on cancellation behaviour.
package mock

import (
	"context"
	"sync"

	"github.com/solenai/backtrack/pkg/provider/inference"
)

// StreamCall records a single invocation of Stream.
type StreamCall struct {
	Ctx context.Context
	Req inference.Request
}

// Adapter is a scriptable mock of inference.Adapter.
//
// Scripts is consumed one entry per call to Stream: the first call to
// Stream gets Scripts[0], the second gets Scripts[1], and so on. A Stream
// call beyond len(Scripts) returns the last script entry again, or an empty
// completed stream if Scripts is empty — this lets tests that only care
// about the first retry omit later entries.
//
// All fields are safe to set before the test begins; mutating them
// concurrently with a Stream call is the caller's responsibility.
type Adapter struct {
	mu sync.Mutex

	// Scripts is the ordered list of responses, one per retry.
	Scripts []Script

	// StreamCalls records every invocation of Stream, in order.
	StreamCalls []StreamCall

	// CancelCalls counts invocations of Cancel.
	CancelCalls int

	// CancelErr, if non-nil, is returned by every call to Cancel.
	CancelErr error

	callIndex int
}

// Script describes one scripted Stream response.
type Script struct {
	// Deltas is the sequence of deltas sent on the channel, in order. The
	// mock does not append a synthetic Done delta — include one explicitly
	// if the script should represent a clean completion.
	Deltas []inference.Delta

	// StartErr, if non-nil, is returned directly from Stream instead of
	// opening a channel.
	StartErr error
}

// Ensure Adapter implements inference.Adapter at compile time.
var _ inference.Adapter = (*Adapter)(nil)

// Stream records the call and returns the next scripted response.
func (a *Adapter) Stream(ctx context.Context, req inference.Request) (<-chan inference.Delta, error) {
	a.mu.Lock()
	a.StreamCalls = append(a.StreamCalls, StreamCall{Ctx: ctx, Req: req})
	script := a.nextScript()
	a.mu.Unlock()

	if script.StartErr != nil {
		return nil, script.StartErr
	}

	ch := make(chan inference.Delta, len(script.Deltas))
	go func() {
		defer close(ch)
		for _, d := range script.Deltas {
			select {
			case <-ctx.Done():
				return
			case ch <- d:
			}
		}
	}()
	return ch, nil
}

// nextScript returns the script for the current call and advances the
// index. Must be called with a.mu held.
func (a *Adapter) nextScript() Script {
	defer func() { a.callIndex++ }()

	if len(a.Scripts) == 0 {
		return Script{Deltas: []inference.Delta{{Done: true}}}
	}
	idx := a.callIndex
	if idx >= len(a.Scripts) {
		idx = len(a.Scripts) - 1
	}
	return a.Scripts[idx]
}

// Cancel records the call and returns CancelErr.
func (a *Adapter) Cancel(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.CancelCalls++
	return a.CancelErr
}

// Reset clears all recorded calls and rewinds the script index. Thread-safe.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.StreamCalls = nil
	a.CancelCalls = 0
	a.callIndex = 0
}
