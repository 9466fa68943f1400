// Package scanner implements the streaming signal parser: a four-state
// character-level machine that separates ordinary text from embedded
// "<<checkpoint:...>>" and "<<backtrack:...>>" markers while the stream is
// still being produced.
//
// A [Scanner] never blocks on incomplete input and never mis-recognises
// ordinary text — including sequences like "x << 1" that merely contain the
// opening delimiter — as a marker. It accepts arbitrarily chunked input:
// feeding the input one character at a time and feeding it in one call
// produce the same event sequence once adjacent Text events are
// concatenated. Each chunk is decoded as UTF-8 on its own, so a multi-byte
// character split across two chunks is not reassembled.
package scanner

import (
	"strings"
	"unicode/utf8"

	"github.com/solenai/backtrack/pkg/signal"
)

// state names the four positions of the scanner's internal machine.
type state int

const (
	stateText state = iota
	stateMaybeOpen
	stateTagCheck
	stateInSignal
)

// Scanner is a single-use, stateful streaming parser. It is not safe for
// concurrent use — create one Scanner per stream. The orchestrator must
// reinitialise the parser instance on every retry iteration to defend
// against late deltas arriving from a cancelled stream.
type Scanner struct {
	state state

	// textBuf accumulates consecutive plain characters so that a whole run
	// can be emitted as a single Text event rather than one per byte.
	textBuf strings.Builder

	// tagBuf accumulates the characters consumed while disambiguating
	// "checkpoint:" from "backtrack:" in stateTagCheck, and the chars seen
	// so far in stateMaybeOpen/stateTagCheck that must be replayed as text
	// on a failed match.
	tagBuf strings.Builder

	// kind records which keyword matched once stateInSignal is entered.
	kind markerKind

	// bodyBuf accumulates the marker body once inside stateInSignal.
	bodyBuf strings.Builder
}

type markerKind int

const (
	kindCheckpoint markerKind = iota
	kindBacktrack
)

// New creates a fresh Scanner positioned at the start of a stream.
func New() *Scanner {
	return &Scanner{}
}

// Feed advances the scanner over chunk and returns the events produced.
// chunk may be any length, including a single character or an empty string;
// the scanner never requires a complete marker to arrive in one call.
func (s *Scanner) Feed(chunk string) []signal.Event {
	var events []signal.Event
	for _, r := range chunk {
		events = s.step(r, events)
	}
	return events
}

// Flush must be called once at end-of-stream. It emits any partially
// buffered content (an unterminated "<", a partial "<<check", or an
// in-progress but never-closed marker body) as literal text, and resets the
// scanner to a clean state. Calling Flush twice in a row emits nothing the
// second time.
func (s *Scanner) Flush() []signal.Event {
	var events []signal.Event
	switch s.state {
	case stateText:
		// Nothing buffered beyond textBuf, handled below.
	case stateMaybeOpen:
		s.textBuf.WriteString("<")
	case stateTagCheck:
		s.textBuf.WriteString("<<")
		s.textBuf.WriteString(s.tagBuf.String())
	case stateInSignal:
		s.textBuf.WriteString("<<")
		s.textBuf.WriteString(keywordFor(s.kind))
		s.textBuf.WriteString(s.bodyBuf.String())
	}
	s.tagBuf.Reset()
	s.bodyBuf.Reset()
	s.state = stateText

	if s.textBuf.Len() > 0 {
		events = append(events, signal.TextEvent(s.textBuf.String()))
		s.textBuf.Reset()
	}
	return events
}

func keywordFor(k markerKind) string {
	if k == kindCheckpoint {
		return "checkpoint:"
	}
	return "backtrack:"
}

// step advances the machine by one rune, appending any emitted events to out
// and returning the updated slice.
func (s *Scanner) step(r rune, out []signal.Event) []signal.Event {
	switch s.state {
	case stateText:
		return s.stepText(r, out)
	case stateMaybeOpen:
		return s.stepMaybeOpen(r, out)
	case stateTagCheck:
		return s.stepTagCheck(r, out)
	case stateInSignal:
		return s.stepInSignal(r, out)
	default:
		return out
	}
}

func (s *Scanner) stepText(r rune, out []signal.Event) []signal.Event {
	if r == '<' {
		s.state = stateMaybeOpen
		return out
	}
	s.textBuf.WriteRune(r)
	return out
}

func (s *Scanner) stepMaybeOpen(r rune, out []signal.Event) []signal.Event {
	if r == '<' {
		s.state = stateTagCheck
		s.tagBuf.Reset()
		return out
	}
	// A lone "<" followed by a non-"<" character is never a marker opener.
	s.textBuf.WriteRune('<')
	s.textBuf.WriteRune(r)
	s.state = stateText
	return out
}

func (s *Scanner) stepTagCheck(r rune, out []signal.Event) []signal.Event {
	candidate := s.tagBuf.String() + string(r)

	if strings.HasPrefix("checkpoint:", candidate) {
		s.tagBuf.WriteRune(r)
		if candidate == "checkpoint:" {
			s.kind = kindCheckpoint
			s.bodyBuf.Reset()
			s.state = stateInSignal
		}
		return out
	}
	if strings.HasPrefix("backtrack:", candidate) {
		s.tagBuf.WriteRune(r)
		if candidate == "backtrack:" {
			s.kind = kindBacktrack
			s.bodyBuf.Reset()
			s.state = stateInSignal
		}
		return out
	}

	// Diverged from both keyword prefixes: flush "<<" + whatever we'd
	// accumulated, plus the character that caused the divergence, and
	// restart scanning from stateText. A literal "<" inside that replay
	// (e.g. "<<<") must itself be re-evaluated as a possible opener, so we
	// feed it back through step rather than writing it straight to textBuf.
	s.textBuf.WriteString("<<")
	s.textBuf.WriteString(s.tagBuf.String())
	s.tagBuf.Reset()
	s.state = stateText
	return s.step(r, out)
}

func (s *Scanner) stepInSignal(r rune, out []signal.Event) []signal.Event {
	if r == '>' && strings.HasSuffix(s.bodyBuf.String(), ">") {
		// The previous character already queued a possible close; together
		// with this one they form ">>", which unconditionally ends the
		// marker — either as a parsed event, or, if the body failed to
		// parse, as the literal bracketed text.
		body := strings.TrimSuffix(s.bodyBuf.String(), ">")
		s.bodyBuf.Reset()
		s.state = stateText

		if ev, ok := s.finalise(body); ok {
			return append(out, ev...)
		}

		s.textBuf.WriteString("<<")
		s.textBuf.WriteString(keywordFor(s.kind))
		s.textBuf.WriteString(body)
		s.textBuf.WriteString(">>")
		return out
	}

	s.bodyBuf.WriteRune(r)
	return s.checkBodyLimit(out)
}

// checkBodyLimit enforces the marker body length cap. If exceeded, the
// buffered "<<" + keyword + body is flushed as literal text.
func (s *Scanner) checkBodyLimit(out []signal.Event) []signal.Event {
	if utf8.RuneCountInString(s.bodyBuf.String()) <= signal.MaxMarkerBody {
		return out
	}
	s.textBuf.WriteString("<<")
	s.textBuf.WriteString(keywordFor(s.kind))
	s.textBuf.WriteString(s.bodyBuf.String())
	s.bodyBuf.Reset()
	s.state = stateText
	return out
}

// finalise attempts to parse body (the marker content with its trailing
// ">>" already stripped) into an Event. It returns the events to emit and
// whether body parsed as a valid, complete marker. On success it also
// flushes any text accumulated before the marker.
func (s *Scanner) finalise(body string) ([]signal.Event, bool) {
	var ev signal.Event
	switch s.kind {
	case kindCheckpoint:
		id, ok := signal.ParseCheckpointBody(body)
		if !ok {
			return nil, false
		}
		ev = signal.CheckpointEvent(id)
	case kindBacktrack:
		b, ok := signal.ParseBacktrackBody(body)
		if !ok {
			return nil, false
		}
		ev = signal.BacktrackEvent(b)
	default:
		return nil, false
	}

	var events []signal.Event
	if s.textBuf.Len() > 0 {
		events = append(events, signal.TextEvent(s.textBuf.String()))
		s.textBuf.Reset()
	}
	events = append(events, ev)
	return events, true
}
