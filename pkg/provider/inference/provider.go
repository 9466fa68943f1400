// Package inference defines the Adapter interface: the abstract contract
// between the backtracking orchestrator and whatever service actually runs
// the model.
//
// An Adapter wraps a remote or local model API and exposes exactly two
// operations: start a streaming generation, and cancel the active one.
// Implementors must be safe for concurrent use; Stream must propagate
// context cancellation promptly.
package inference

import (
	"context"

	"github.com/solenai/backtrack/pkg/signal"
)

// Message is a single entry in the conversation history sent to the model.
type Message struct {
	// Role is "user" or "assistant". The core never sends a "system" role
	// message here — system instructions travel via Request.SystemPrompt.
	Role string

	// Content is the message text.
	Content string
}

// Request carries everything needed to start one streaming generation.
type Request struct {
	// Messages is the ordered conversation history, including any
	// continuation messages injected to resume after a rewind.
	Messages []Message

	// SystemPrompt is the freshly-built system prompt for this retry
	// iteration, already incorporating the current hints, mode, and
	// temperature.
	SystemPrompt string

	// Temperature controls output randomness, expected in [0.0, 1.0].
	Temperature float64
}

// Delta is one increment of text produced by a streaming generation. Unlike
// richer provider SDKs, the core contract carries no structured events —
// only plain text deltas — because tool calls and non-text content are
// explicitly out of scope.
type Delta struct {
	// Text is the incremental text content of this delta. May be empty on
	// the final delta.
	Text string

	// Done marks the last delta of a clean completion. When Done is true,
	// Text may still carry a final non-empty fragment.
	Done bool

	// Err is set on the terminal delta of a stream that ended because the
	// adapter failed (provider error, network failure, unexpected
	// exception). When Err is non-nil the channel closes immediately after
	// this delta and Done is never set. Cancellation is never reported
	// through Err — a cancelled stream simply closes its channel with no
	// further deltas.
	Err error
}

// Adapter is the abstraction over any LLM backend the orchestrator drives.
//
// Implementations must be safe for concurrent use. Each method must
// propagate context cancellation promptly.
type Adapter interface {
	// Stream opens a streaming generation and returns a channel of text
	// deltas. The channel is closed by the implementation when generation
	// finishes (the last value sent has Done == true) or when ctx is
	// cancelled. The initial error return is non-nil only for failures
	// that prevent the stream from starting; mid-stream failures arrive as a
	// final delta with Err set. A channel that closes without a Done delta
	// is never a clean completion.
	//
	// Callers must drain the channel to avoid goroutine leaks.
	Stream(ctx context.Context, req Request) (<-chan Delta, error)

	// Cancel cancels the currently active stream, if any. It is safe to
	// call when no stream is active. Cancel blocks until any underlying
	// async close completes, so that the caller can safely start a new
	// stream immediately after Cancel returns.
	Cancel(ctx context.Context) error
}

// ParserFactory is the seam the orchestrator uses to obtain a fresh
// [signal/scanner.Scanner]-shaped parser per retry iteration. It is defined
// here, alongside the adapter contract, because both are the stream
// processor's only two external collaborators besides the checkpoint store.
type ParserFactory func() Parser

// Parser is the minimal surface the processor needs from a streaming
// scanner. github.com/solenai/backtrack/pkg/signal/scanner.Scanner satisfies
// this interface; tests may substitute a scripted fake.
type Parser interface {
	Feed(chunk string) []signal.Event
	Flush() []signal.Event
}
