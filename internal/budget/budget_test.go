package budget

import (
	"testing"

	"github.com/solenai/backtrack/pkg/provider/inference"
)

func TestEstimate_CountsGrowWithContent(t *testing.T) {
	e := New()

	short := []inference.Message{{Role: "user", Content: "hi"}}
	long := []inference.Message{{Role: "user", Content: "this is quite a bit longer than the short message above"}}

	n1, err := e.Estimate("gpt-4o", "", short)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	n2, err := e.Estimate("gpt-4o", "", long)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if n2 <= n1 {
		t.Errorf("longer message should produce a higher token count: got %d and %d", n1, n2)
	}
}

func TestEstimate_SystemPromptAddsOverhead(t *testing.T) {
	e := New()
	messages := []inference.Message{{Role: "user", Content: "hello there"}}

	withoutPrompt, err := e.Estimate("gpt-4o", "", messages)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	withPrompt, err := e.Estimate("gpt-4o", "you are a careful assistant", messages)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if withPrompt <= withoutPrompt {
		t.Errorf("system prompt should add to the total: got %d and %d", withoutPrompt, withPrompt)
	}
}

func TestEstimate_UnknownModelFallsBackToCl100k(t *testing.T) {
	e := New()
	messages := []inference.Message{{Role: "user", Content: "hello"}}

	n, err := e.Estimate("some-future-model-9000", "", messages)
	if err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if n <= 0 {
		t.Errorf("expected a positive token count, got %d", n)
	}
}

func TestEstimate_CachesEncoderAcrossCalls(t *testing.T) {
	e := New()
	messages := []inference.Message{{Role: "user", Content: "hello"}}

	if _, err := e.Estimate("gpt-4o", "", messages); err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if e.o200kEnc == nil {
		t.Fatal("expected o200k encoder to be cached after first call")
	}
	if _, err := e.Estimate("gpt-4o-mini", "", messages); err != nil {
		t.Fatalf("Estimate: %v", err)
	}
	if e.cl100kEnc != nil {
		t.Error("cl100k encoder should not have been initialised by o200k-family models")
	}
}

func TestFits_RespectsLimit(t *testing.T) {
	e := New()
	req := inference.Request{
		Messages: []inference.Message{{Role: "user", Content: "a short message"}},
	}

	ok, err := e.Fits("gpt-4o", req, 1000)
	if err != nil {
		t.Fatalf("Fits: %v", err)
	}
	if !ok {
		t.Error("expected a short message to fit within a generous limit")
	}

	ok, err = e.Fits("gpt-4o", req, 0)
	if err != nil {
		t.Fatalf("Fits: %v", err)
	}
	if ok {
		t.Error("expected any non-empty message to exceed a zero limit")
	}
}

func TestEncodingFor_PrefixMatching(t *testing.T) {
	cases := map[string]string{
		"gpt-4o":          "o200k_base",
		"gpt-4o-mini":     "o200k_base",
		"gpt-4-turbo":     "cl100k_base",
		"claude-opus-4-1": "cl100k_base",
		"unknown-model":   "cl100k_base",
	}
	for model, want := range cases {
		if got := encodingFor(model); got != want {
			t.Errorf("encodingFor(%q) = %q, want %q", model, got, want)
		}
	}
}
