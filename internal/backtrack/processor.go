// Package backtrack implements the stream processor: the orchestrator that
// drives an inference adapter and a streaming signal parser together,
// maintaining checkpoint state, enforcing rewind budgets, and invoking a
// fixed set of callbacks as a response is generated.
package backtrack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solenai/backtrack/internal/budget"
	"github.com/solenai/backtrack/internal/checkpoint"
	"github.com/solenai/backtrack/internal/history"
	"github.com/solenai/backtrack/internal/observe"
	"github.com/solenai/backtrack/pkg/provider/inference"
	"github.com/solenai/backtrack/pkg/signal"
)

// defaultMaxRewinds and defaultMinSpacing are the recommended budget and
// spacing defaults.
const (
	defaultMaxRewinds = 3
	defaultMinSpacing = 30
)

// SystemPromptBuilder renders the system prompt for one retry iteration from
// the hints accumulated so far, the current mode, and the effective
// temperature. Implementations are expected to be pure.
type SystemPromptBuilder func(hints []string, mode signal.Mode, temperature float64) string

// Callbacks is the fixed set of notifications the processor drives while
// running a turn. Every field is required; callers that don't care about a
// particular event should still supply a no-op function.
//
// Callbacks may be implemented synchronously or by handing work to another
// goroutine — the processor never assumes either and simply calls them
// inline, in strict event order, on its own goroutine.
type Callbacks struct {
	// OnText is invoked once per contiguous visible-text segment produced.
	OnText func(segment string)

	// OnBacktrack is invoked immediately after a rewind takes effect.
	// newVisiblePrefix is the authoritative new user-visible text; a caller
	// rendering incrementally may safely replace its view with this value
	// and then continue appending from subsequent OnText calls.
	OnBacktrack func(b signal.Backtrack, newVisiblePrefix string)

	// OnError is invoked when the turn terminates due to an adapter
	// failure. The turn's user message has already been rolled back from
	// committed history by the time this is called.
	OnError func(message string)

	// OnDone is invoked once, after the assistant response has been
	// committed to history.
	OnDone func(fullText string)
}

// Config bundles the tunables the processor itself reads. Everything else a
// deployment needs (model identifier, provider credentials, ...) belongs to
// the adapter, not here.
type Config struct {
	// MaxRewinds caps the number of backtracks honoured per turn. Defaults
	// to 3 when zero.
	MaxRewinds int

	// MinSpacing is the minimum number of characters that must have been
	// produced since the last checkpoint or backtrack before a new
	// checkpoint marker is honoured. Defaults to 30 when zero.
	MinSpacing int

	// Metrics, when non-nil, receives instrumentation for every retry
	// iteration, checkpoint decision, and backtrack decision the processor
	// makes. A nil value disables instrumentation.
	Metrics *observe.Metrics

	// Provider identifies the inference adapter for AdapterErrors metric
	// attribution. Only meaningful when Metrics is set.
	Provider string

	// TemperatureOverrides replaces a mode's built-in default temperature
	// when present. Modes absent from this map keep signal.Mode's default.
	TemperatureOverrides map[signal.Mode]float64

	// Budget, when non-nil, estimates token usage of the composed message
	// list on every retry iteration so the processor can warn when a
	// continuation is about to outgrow the model's context window. A nil
	// value disables the check.
	Budget *budget.Estimator

	// Model identifies the model in use, for Budget's per-model encoding
	// lookup. Required when Budget is set.
	Model string

	// ContextWindow is the model's context window size in tokens. Zero
	// disables the budget check even when Budget is set.
	ContextWindow int
}

// Processor orchestrates inference, parsing, and checkpoint bookkeeping
// across a single conversation's turns. It owns the committed history and
// is not safe for concurrent use — callers launching a new Run while a
// previous one is active must cancel the previous one first.
type Processor struct {
	adapter     inference.Adapter
	newParser   inference.ParserFactory
	history     *history.History
	buildPrompt SystemPromptBuilder

	maxRewinds int
	minSpacing int

	metrics  *observe.Metrics
	provider string

	temperatureOverrides map[signal.Mode]float64

	budget        *budget.Estimator
	model         string
	contextWindow int
}

// New constructs a Processor. adapter drives generation, newParser produces
// a fresh parser instance for every retry iteration, and buildPrompt renders
// the system prompt on each iteration.
func New(adapter inference.Adapter, newParser inference.ParserFactory, buildPrompt SystemPromptBuilder, cfg Config) *Processor {
	maxRewinds := cfg.MaxRewinds
	if maxRewinds == 0 {
		maxRewinds = defaultMaxRewinds
	}
	minSpacing := cfg.MinSpacing
	if minSpacing == 0 {
		minSpacing = defaultMinSpacing
	}

	return &Processor{
		adapter:              adapter,
		newParser:            newParser,
		history:              history.New(),
		buildPrompt:          buildPrompt,
		maxRewinds:           maxRewinds,
		minSpacing:           minSpacing,
		metrics:              cfg.Metrics,
		provider:             cfg.Provider,
		temperatureOverrides: cfg.TemperatureOverrides,
		budget:               cfg.Budget,
		model:                cfg.Model,
		contextWindow:        cfg.ContextWindow,
	}
}

// defaultTemperature returns the temperature for mode, preferring a
// deployment-configured override over signal.Mode's built-in default.
func (p *Processor) defaultTemperature(mode signal.Mode) float64 {
	if t, ok := p.temperatureOverrides[mode]; ok {
		return t
	}
	return mode.DefaultTemperature()
}

// History returns the processor's committed conversation history. The
// returned value must not be mutated directly by callers.
func (p *Processor) History() *history.History {
	return p.history
}

// runState is the transient, per-turn state of a single call to Run.
type runState struct {
	visibleAccum strings.Builder
	rawAccum     strings.Builder
	checkpoints  *checkpoint.Store
	hints        []string
	mode         signal.Mode
	temperature  float64

	rewindsUsed          int
	charsSinceLastMarker int
}

func (p *Processor) newRunState() *runState {
	return &runState{
		checkpoints:          checkpoint.New(),
		mode:                 signal.DefaultMode,
		temperature:          p.defaultTemperature(signal.DefaultMode),
		charsSinceLastMarker: p.minSpacing,
	}
}

// Run drives one full user turn to completion: it appends userMessage to
// history, repeatedly streams generations and reacts to backtracks until the
// model finishes cleanly or the adapter fails, and finally commits the
// assistant reply (or rolls the turn back on failure).
//
// Run blocks until the turn completes. Cancelling ctx cancels the active
// inference stream and causes Run to return ctx.Err() after rolling the turn
// back.
func (p *Processor) Run(ctx context.Context, userMessage string, cb Callbacks) error {
	turnID := p.history.AppendUser(userMessage)
	rs := p.newRunState()

	if p.metrics != nil {
		p.metrics.ActiveTurns.Add(ctx, 1)
		defer p.metrics.ActiveTurns.Add(ctx, -1)
	}
	turnStart := time.Now()

	for {
		req := inference.Request{
			Messages:     composeMessages(p.history.Messages(), rs.rawAccum.String()),
			SystemPrompt: p.buildPrompt(rs.hints, rs.mode, rs.temperature),
			Temperature:  rs.temperature,
		}

		p.checkBudget(req)

		streamStart := time.Now()
		deltas, err := p.adapter.Stream(ctx, req)
		if err != nil {
			p.recordAdapterError(ctx)
			return p.fail(turnID, cb, fmt.Errorf("backtrack: start stream: %w", err))
		}

		parser := p.newParser()
		rewound, streamErr := p.drain(ctx, deltas, parser, rs, cb)
		p.recordStreamDuration(ctx, time.Since(streamStart))
		if streamErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(streamErr, ctxErr) {
				// Cancellation is not an adapter failure: roll back without
				// counting an adapter error or invoking OnError.
				p.history.RollbackTurn(turnID)
				return streamErr
			}
			p.recordAdapterError(ctx)
			return p.fail(turnID, cb, streamErr)
		}
		if rewound {
			continue
		}
		break
	}

	p.recordTurnDuration(ctx, time.Since(turnStart))

	full := rs.visibleAccum.String()
	p.history.AppendAssistant(turnID, full)
	cb.OnDone(full)
	return nil
}

// checkBudget logs a warning when req's estimated token count exceeds the
// configured context window. It never blocks or mutates req — enforcement
// is out of scope, this is visibility only.
func (p *Processor) checkBudget(req inference.Request) {
	if p.budget == nil || p.contextWindow <= 0 {
		return
	}
	fits, err := p.budget.Fits(p.model, req, p.contextWindow)
	if err != nil {
		slog.Debug("backtrack: budget estimate failed", "model", p.model, "err", err)
		return
	}
	if !fits {
		n, _ := p.budget.Estimate(p.model, req.SystemPrompt, req.Messages)
		slog.Warn("backtrack: continuation may exceed context window",
			"model", p.model, "estimated_tokens", n, "limit", p.contextWindow)
	}
}

func (p *Processor) recordStreamDuration(ctx context.Context, d time.Duration) {
	if p.metrics != nil {
		p.metrics.StreamDuration.Record(ctx, d.Seconds())
	}
}

func (p *Processor) recordTurnDuration(ctx context.Context, d time.Duration) {
	if p.metrics != nil {
		p.metrics.TurnDuration.Record(ctx, d.Seconds())
	}
}

func (p *Processor) recordAdapterError(ctx context.Context) {
	if p.metrics != nil {
		p.metrics.RecordAdapterError(ctx, p.provider)
	}
}

// drain consumes deltas until the stream ends, an adapter failure occurs, or
// a backtrack is honoured. It returns rewound == true when a backtrack
// triggered a return to the outer retry loop in Run.
func (p *Processor) drain(ctx context.Context, deltas <-chan inference.Delta, parser inference.Parser, rs *runState, cb Callbacks) (rewound bool, err error) {
	for d := range deltas {
		if d.Err != nil {
			return false, d.Err
		}

		if d.Text != "" {
			events := parser.Feed(d.Text)
			if rewound, err := p.applyEvents(ctx, events, rs, cb); rewound || err != nil {
				return rewound, err
			}
		}

		if d.Done {
			events := parser.Flush()
			// Flush only ever yields Text events (any dangling marker
			// fragment becomes literal text), so no backtrack can occur
			// here.
			if _, err := p.applyEvents(ctx, events, rs, cb); err != nil {
				return false, err
			}
			return false, nil
		}
	}

	// The channel closed without a Done delta: either the caller cancelled
	// ctx or the adapter closed early without reporting Err. Either way
	// this is not a clean completion.
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return false, errors.New("backtrack: stream closed without a Done delta")
}

// applyEvents processes events in order, mutating rs and invoking callbacks.
// It stops at the first honoured backtrack (rewound == true) since the
// stream that produced any later events in the same batch is about to be
// cancelled.
func (p *Processor) applyEvents(ctx context.Context, events []signal.Event, rs *runState, cb Callbacks) (rewound bool, err error) {
	for _, ev := range events {
		switch ev.Kind {
		case signal.KindText:
			rs.visibleAccum.WriteString(ev.Text)
			rs.rawAccum.WriteString(ev.Text)
			rs.charsSinceLastMarker += len(ev.Text)
			cb.OnText(ev.Text)

		case signal.KindCheckpoint:
			p.applyCheckpoint(ctx, ev.CheckpointID, rs)

		case signal.KindBacktrack:
			honoured, err := p.applyBacktrack(ctx, ev.Backtrack, rs, cb)
			if err != nil {
				return false, err
			}
			if honoured {
				return true, nil
			}
		}
	}
	return false, nil
}

func (p *Processor) applyCheckpoint(ctx context.Context, id string, rs *runState) {
	if rs.charsSinceLastMarker < p.minSpacing {
		if p.metrics != nil {
			p.metrics.CheckpointsRejectedSpacing.Add(ctx, 1)
		}
		return
	}
	rs.checkpoints.Register(id, rs.visibleAccum.String(), rs.rawAccum.String())
	fmt.Fprintf(&rs.rawAccum, "<<checkpoint:%s>>", id)
	rs.charsSinceLastMarker = 0
	if p.metrics != nil {
		p.metrics.CheckpointsRegistered.Add(ctx, 1)
	}
}

// applyBacktrack validates and, if honoured, applies b's rewind. It returns
// honoured == false for every silently-ignored case: an exhausted budget or
// an unknown checkpoint ID.
func (p *Processor) applyBacktrack(ctx context.Context, b signal.Backtrack, rs *runState, cb Callbacks) (honoured bool, err error) {
	if rs.rewindsUsed >= p.maxRewinds {
		slog.Debug("backtrack: budget exhausted, ignoring", "id", b.ID)
		if p.metrics != nil {
			p.metrics.RecordRewindIgnored(ctx, "budget_exhausted")
		}
		return false, nil
	}

	rec, ok := rs.checkpoints.Lookup(b.ID)
	if !ok {
		slog.Debug("backtrack: unknown checkpoint, ignoring", "id", b.ID)
		if p.metrics != nil {
			p.metrics.RecordRewindIgnored(ctx, "unknown_checkpoint")
		}
		return false, nil
	}

	if err := p.adapter.Cancel(ctx); err != nil {
		return false, fmt.Errorf("backtrack: cancel stream: %w", err)
	}

	rs.visibleAccum.Reset()
	rs.visibleAccum.WriteString(rec.VisiblePrefix)
	rs.rawAccum.Reset()
	rs.rawAccum.WriteString(rec.RawPrefix)
	rs.checkpoints.PruneAfter(rec.Position)
	rs.hints = append(rs.hints, b.Reason)

	if b.Mode != "" {
		rs.mode = b.Mode
	}
	switch {
	case b.HasTemperature && signal.ValidTemperature(b.Temperature):
		rs.temperature = b.Temperature
	default:
		rs.temperature = p.defaultTemperature(rs.mode)
	}

	rs.rewindsUsed++
	rs.charsSinceLastMarker = 0

	if p.metrics != nil {
		p.metrics.RecordRewindHonoured(ctx, string(rs.mode))
	}
	cb.OnBacktrack(b, rs.visibleAccum.String())
	return true, nil
}

// fail rolls the turn back and invokes OnError: the optimistically-appended
// user message never survives a failed turn.
func (p *Processor) fail(turnID string, cb Callbacks, err error) error {
	p.history.RollbackTurn(turnID)
	cb.OnError(err.Error())
	return err
}

// composeMessages builds the outgoing message list for one retry iteration:
// the full committed history, plus — only when rawAccum is non-empty — the
// ephemeral continuation pair that stands in for true assistant-message
// prefill. Neither ephemeral message is ever committed to history.
func composeMessages(committed []history.Message, rawAccum string) []inference.Message {
	msgs := make([]inference.Message, 0, len(committed)+2)
	for _, m := range committed {
		role := "user"
		if m.Role == history.RoleAssistant {
			role = "assistant"
		}
		msgs = append(msgs, inference.Message{Role: role, Content: m.Content})
	}
	if rawAccum != "" {
		msgs = append(msgs, inference.Message{Role: "assistant", Content: rawAccum})
		msgs = append(msgs, inference.Message{Role: "user", Content: "Continue directly from where you left off."})
	}
	return msgs
}
