// Package prompt builds the system prompt the orchestrator sends on every
// retry iteration, folding in the accumulated hints and the current
// cognitive mode and temperature.
package prompt

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/solenai/backtrack/pkg/signal"
)

// Builder constructs system prompts. It is pure and safe for concurrent use.
type Builder struct {
	base          string
	hintCharLimit int
}

// Option is a functional option for New.
type Option func(*Builder)

// WithBaseInstructions sets the fixed instructions prepended to every
// generated prompt, ahead of the mode/hint sections. Defaults to a generic
// instruction describing the marker grammar so the model knows how to emit
// checkpoints and backtracks.
func WithBaseInstructions(s string) Option {
	return func(b *Builder) { b.base = s }
}

// WithHintCharLimit caps the length of each individual hint line after
// sanitisation. Hints longer than the limit are truncated. A limit of 0 (the
// default if unset) disables truncation.
func WithHintCharLimit(n int) Option {
	return func(b *Builder) { b.hintCharLimit = n }
}

// New returns a Builder with sensible defaults.
func New(opts ...Option) *Builder {
	b := &Builder{base: defaultBaseInstructions}
	for _, o := range opts {
		o(b)
	}
	return b
}

const defaultBaseInstructions = "You may emit <<checkpoint:ID>> to mark a point you might later rewind to, " +
	"and <<backtrack:ID|REASON>> to discard everything generated after checkpoint ID and try again with REASON " +
	"in mind. Never mention these markers to the user."

// Build renders the system prompt for one retry iteration. hints is the
// ordered list of backtrack reasons accumulated so far this turn; mode and
// temperature describe the current generation parameters.
//
// Build sanitises each hint to printable characters only and, if a limit was
// configured via WithHintCharLimit, truncates it. This is the builder's
// responsibility, not the orchestrator's.
func (b *Builder) Build(hints []string, mode signal.Mode, temperature float64) string {
	var sb strings.Builder
	sb.WriteString(b.base)

	fmt.Fprintf(&sb, "\n\nCurrent mode: %s (temperature %.2f).", mode, temperature)

	if len(hints) > 0 {
		sb.WriteString("\n\nPrior attempts in this turn were abandoned for these reasons, most recent last:")
		for _, h := range hints {
			sb.WriteString("\n- ")
			sb.WriteString(b.sanitiseHint(h))
		}
	}

	return sb.String()
}

// sanitiseHint strips non-printable characters and applies the configured
// length cap.
func (b *Builder) sanitiseHint(hint string) string {
	var sb strings.Builder
	for _, r := range hint {
		if unicode.IsPrint(r) {
			sb.WriteRune(r)
		}
	}
	s := sb.String()
	if r := []rune(s); b.hintCharLimit > 0 && len(r) > b.hintCharLimit {
		s = string(r[:b.hintCharLimit])
	}
	return s
}
