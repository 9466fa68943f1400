package api

import (
	"fmt"
	"net/http"
	"strings"
)

// sseEvent is a single Server-Sent Event with an event type and a JSON data
// payload.
type sseEvent struct {
	Event string
	Data  string
}

// sseWriter writes Server-Sent Events to an http.ResponseWriter, flushing
// after each event so the client sees turn output as it is produced rather
// than buffered until the response closes.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter creates an sseWriter and writes the SSE response headers. It
// returns ok == false if w does not support flushing, in which case no
// headers have been written and the caller should fall back to a plain error
// response.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, true
}

// writeEvent writes a single SSE event and flushes. Multi-line data is split
// into multiple "data:" lines per the SSE wire format.
func (s *sseWriter) writeEvent(evt sseEvent) error {
	if evt.Event != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", evt.Event); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(evt.Data, "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(s.w, "\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
