// Package history holds the committed conversation across turns: the
// sequence of completed user/assistant message pairs the orchestrator
// replays as context on every retry.
//
// History is deliberately non-persistent — it lives only in process memory
// for the lifetime of a conversation and is discarded when the caller drops
// its reference. Nothing in this package touches disk or a database.
package history

import "github.com/google/uuid"

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one committed turn.
type Message struct {
	// TurnID uniquely identifies the user/assistant exchange this message
	// belongs to. Both the user message and its corresponding assistant
	// reply share a TurnID.
	TurnID  string
	Role    Role
	Content string
}

// History is an append-only (except for rollback) ordered list of committed
// messages. It is not safe for concurrent use; the owning processor
// serialises all access to it by construction.
type History struct {
	messages []Message
}

// New returns an empty History.
func New() *History {
	return &History{}
}

// AppendUser appends a new user message under a freshly generated turn ID
// and returns that ID, so the caller can later commit or roll back the
// matching assistant reply.
func (h *History) AppendUser(content string) string {
	turnID := uuid.New().String()
	h.messages = append(h.messages, Message{TurnID: turnID, Role: RoleUser, Content: content})
	return turnID
}

// AppendAssistant commits the assistant's reply for turnID.
func (h *History) AppendAssistant(turnID, content string) {
	h.messages = append(h.messages, Message{TurnID: turnID, Role: RoleAssistant, Content: content})
}

// RollbackTurn removes every message tagged with turnID. It is used when a
// turn fails before an assistant reply was committed, to undo the
// optimistically appended user message.
func (h *History) RollbackTurn(turnID string) {
	kept := h.messages[:0]
	for _, m := range h.messages {
		if m.TurnID == turnID {
			continue
		}
		kept = append(kept, m)
	}
	h.messages = kept
}

// Len reports the number of committed messages.
func (h *History) Len() int {
	return len(h.messages)
}

// Messages returns the committed messages in order. The returned slice must
// not be mutated by the caller.
func (h *History) Messages() []Message {
	return h.messages
}
