package signal

import (
	"strconv"
	"strings"
)

// ParseCheckpointBody parses the text between "checkpoint:" and the closing
// ">>" of a checkpoint marker. It returns the checkpoint ID and true on
// success. It returns false if the ID is empty or contains a reserved
// character — the caller must then treat the whole marker as invalid and
// emit it as literal text.
func ParseCheckpointBody(body string) (id string, ok bool) {
	if !ValidMarkerID(body) {
		return "", false
	}
	return body, true
}

// ParseBacktrackBody parses the text between "backtrack:" and the closing
// ">>" of a backtrack marker. The body has the form:
//
//	ID|REASON[|rephrase:TEXT][|mode:NAME][|temp:FLOAT]
//
// Fields after REASON are unordered and optional; each must start with one
// of the recognised prefixes. Any unknown prefix, a missing ID/REASON, or a
// malformed ID makes the whole marker invalid — ParseBacktrackBody returns
// ok == false and the caller must emit the literal text instead.
//
// A syntactically valid but out-of-range "temp:" value does NOT invalidate
// the marker: it remains a valid Backtrack and only the temperature field is
// discarded (Backtrack.HasTemperature stays true so callers can distinguish
// "present but out of range" from "absent"; callers must additionally check
// [ValidTemperature]).
func ParseBacktrackBody(body string) (b Backtrack, ok bool) {
	parts := strings.Split(body, "|")
	if len(parts) < 2 {
		return Backtrack{}, false
	}

	id := parts[0]
	if !ValidMarkerID(id) {
		return Backtrack{}, false
	}

	// REASON excludes '|' (already split on it above) and '>>' (cannot
	// appear inside a buffered body by construction of the scanner).
	reason := parts[1]

	result := Backtrack{ID: id, Reason: reason}

	for _, field := range parts[2:] {
		switch {
		case strings.HasPrefix(field, fieldRephrase):
			result.Rephrase = strings.TrimPrefix(field, fieldRephrase)
		case strings.HasPrefix(field, fieldMode):
			name := strings.TrimPrefix(field, fieldMode)
			if mode, ok := ParseMode(name); ok {
				result.Mode = mode
			}
			// An unrecognised mode name is not a parse error — mode is
			// simply treated as absent, leaving result.Mode at its zero value.
		case strings.HasPrefix(field, fieldTemp):
			raw := strings.TrimPrefix(field, fieldTemp)
			t, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return Backtrack{}, false
			}
			result.HasTemperature = true
			result.Temperature = t
		default:
			// Unknown field prefix invalidates the whole marker.
			return Backtrack{}, false
		}
	}

	return result, true
}
