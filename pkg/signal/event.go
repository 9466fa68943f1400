package signal

// Kind discriminates the three event variants a [scanner.Scanner] emits.
type Kind int

const (
	// KindText marks a contiguous run of user-visible characters.
	KindText Kind = iota
	// KindCheckpoint marks a named rewind point.
	KindCheckpoint
	// KindBacktrack marks a rewind directive.
	KindBacktrack
)

// String implements fmt.Stringer for log output.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCheckpoint:
		return "checkpoint"
	case KindBacktrack:
		return "backtrack"
	default:
		return "unknown"
	}
}

// Backtrack carries the fully-parsed fields of a validated backtrack marker.
// Fields beyond ID and Reason are optional and left at their zero value when
// absent. An unrecognised mode also leaves [Backtrack.Mode] empty, while a
// well-formed but out-of-range temperature is kept with
// [Backtrack.HasTemperature] set — see those fields.
type Backtrack struct {
	// ID names the checkpoint to rewind to.
	ID string

	// Reason is the free-text explanation accumulated into the run's hints.
	Reason string

	// Rephrase is an optional replacement instruction for the model.
	Rephrase string

	// Mode is the requested cognitive mode, or "" if absent or unrecognised.
	Mode Mode

	// HasTemperature reports whether a "temp:" field was present and
	// syntactically well-formed (a plain float). It may be true even when
	// Temperature is out of range — the caller is responsible for checking
	// [ValidTemperature] before trusting the value: a syntactically valid but
	// out-of-range temperature still leaves the marker a valid Backtrack,
	// only the temperature field itself is discarded.
	HasTemperature bool

	// Temperature is the requested override. Only meaningful when
	// HasTemperature is true.
	Temperature float64
}

// Event is a single item emitted by the streaming scanner, in stream order.
// Exactly one of the three forms applies, selected by Kind:
//   - KindText: Text holds the visible segment.
//   - KindCheckpoint: CheckpointID holds the marker's ID.
//   - KindBacktrack: Backtrack holds the parsed directive.
type Event struct {
	Kind Kind

	// Text is populated when Kind == KindText.
	Text string

	// CheckpointID is populated when Kind == KindCheckpoint.
	CheckpointID string

	// Backtrack is populated when Kind == KindBacktrack.
	Backtrack Backtrack
}

// TextEvent constructs a [KindText] event.
func TextEvent(s string) Event { return Event{Kind: KindText, Text: s} }

// CheckpointEvent constructs a [KindCheckpoint] event.
func CheckpointEvent(id string) Event { return Event{Kind: KindCheckpoint, CheckpointID: id} }

// BacktrackEvent constructs a [KindBacktrack] event.
func BacktrackEvent(b Backtrack) Event { return Event{Kind: KindBacktrack, Backtrack: b} }
