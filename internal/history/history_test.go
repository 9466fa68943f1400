package history

import "testing"

func TestHistory_AppendAndCommit(t *testing.T) {
	h := New()
	turnID := h.AppendUser("hello")
	h.AppendAssistant(turnID, "hi there")

	msgs := h.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(Messages()) = %d, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "hello" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "hi there" {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
	if msgs[0].TurnID != msgs[1].TurnID {
		t.Error("expected both messages to share a turn ID")
	}
}

func TestHistory_RollbackTurn(t *testing.T) {
	h := New()
	first := h.AppendUser("first")
	h.AppendAssistant(first, "first reply")

	second := h.AppendUser("second")
	h.RollbackTurn(second)

	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after rollback", h.Len())
	}
	for _, m := range h.Messages() {
		if m.TurnID == second {
			t.Fatalf("found message from rolled-back turn: %+v", m)
		}
	}
}

func TestHistory_RollbackPreservesPriorTurns(t *testing.T) {
	h := New()
	first := h.AppendUser("u1")
	h.AppendAssistant(first, "a1")
	before := h.Len()

	second := h.AppendUser("u2")
	h.RollbackTurn(second)

	if h.Len() != before {
		t.Errorf("Len() = %d, want %d (unchanged)", h.Len(), before)
	}
}
