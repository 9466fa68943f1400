package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/solenai/backtrack/internal/backtrack"
	"github.com/solenai/backtrack/pkg/signal"
)

// turnRequest is the JSON body for POST /v1/turns.
type turnRequest struct {
	Message string `json:"message"`
}

// textEventPayload is the SSE data payload for an "on_text" event.
type textEventPayload struct {
	Text string `json:"text"`
}

// backtrackEventPayload is the SSE data payload for an "on_backtrack" event.
type backtrackEventPayload struct {
	CheckpointID string `json:"checkpoint_id"`
	Reason       string `json:"reason"`
	Mode         string `json:"mode,omitempty"`
	VisiblePrefix string `json:"visible_prefix"`
}

// errorEventPayload is the SSE data payload for an "on_error" event.
type errorEventPayload struct {
	Message string `json:"message"`
}

// doneEventPayload is the SSE data payload for an "on_done" event.
type doneEventPayload struct {
	Text string `json:"text"`
}

// TurnHandler drives a single backtrack.Processor over HTTP, translating its
// Callbacks into an SSE event stream per request.
//
// The wrapped Processor is not safe for concurrent Run calls — turnSem
// serialises requests so a second POST while one turn is in flight is
// rejected with 409 Conflict rather than corrupting shared history state.
type TurnHandler struct {
	processor *backtrack.Processor
	turnSem   chan struct{}
}

// NewTurnHandler wraps processor for HTTP/SSE access.
func NewTurnHandler(processor *backtrack.Processor) *TurnHandler {
	return &TurnHandler{
		processor: processor,
		turnSem:   make(chan struct{}, 1),
	}
}

// HandleTurn handles POST /v1/turns: decode the request body, run one turn
// to completion, and stream its Callbacks events back as SSE. The handler
// blocks for the duration of the turn.
func (h *TurnHandler) HandleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Message == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}

	select {
	case h.turnSem <- struct{}{}:
		defer func() { <-h.turnSem }()
	default:
		http.Error(w, `{"error":"a turn is already in progress"}`, http.StatusConflict)
		return
	}

	sw, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, `{"error":"streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	cb := backtrack.Callbacks{
		OnText: func(segment string) {
			writeJSONEvent(sw, "on_text", textEventPayload{Text: segment})
		},
		OnBacktrack: func(b signal.Backtrack, newVisiblePrefix string) {
			writeJSONEvent(sw, "on_backtrack", backtrackEventPayload{
				CheckpointID:  b.ID,
				Reason:        b.Reason,
				Mode:          string(b.Mode),
				VisiblePrefix: newVisiblePrefix,
			})
		},
		OnError: func(message string) {
			writeJSONEvent(sw, "on_error", errorEventPayload{Message: message})
		},
		OnDone: func(fullText string) {
			writeJSONEvent(sw, "on_done", doneEventPayload{Text: fullText})
		},
	}

	if err := h.processor.Run(r.Context(), req.Message, cb); err != nil {
		slog.Debug("api: turn ended with error", "err", err)
	}
}

func writeJSONEvent(sw *sseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("api: failed to marshal SSE payload", "event", event, "err", err)
		return
	}
	if err := sw.writeEvent(sseEvent{Event: event, Data: string(data)}); err != nil {
		slog.Debug("api: failed to write SSE event, client likely disconnected", "event", event, "err", err)
	}
}
