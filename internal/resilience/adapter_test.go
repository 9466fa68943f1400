package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/solenai/backtrack/pkg/provider/inference"
	"github.com/solenai/backtrack/pkg/provider/inference/mock"
)

func TestAdapter_PassesThroughOnSuccess(t *testing.T) {
	inner := &mock.Adapter{
		Scripts: []mock.Script{{Deltas: []inference.Delta{{Text: "hi"}, {Done: true}}}},
	}
	a := NewAdapter(inner, CircuitBreakerConfig{Name: "test"})

	ch, err := a.Stream(context.Background(), inference.Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []inference.Delta
	for d := range ch {
		got = append(got, d)
	}
	if len(got) != 2 {
		t.Fatalf("got %d deltas, want 2", len(got))
	}
	if a.BreakerState() != StateClosed {
		t.Errorf("breaker state = %v, want closed", a.BreakerState())
	}
}

func TestAdapter_OpensAfterConsecutiveFailures(t *testing.T) {
	startErr := errors.New("adapter: unreachable")
	inner := &mock.Adapter{
		Scripts: []mock.Script{{StartErr: startErr}},
	}
	a := NewAdapter(inner, CircuitBreakerConfig{Name: "test", MaxFailures: 2})

	for i := 0; i < 2; i++ {
		if _, err := a.Stream(context.Background(), inference.Request{}); !errors.Is(err, startErr) {
			t.Fatalf("call %d: got %v, want %v", i, err, startErr)
		}
	}

	_, err := a.Stream(context.Background(), inference.Request{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after breaker trips, got %v", err)
	}
	if a.BreakerState() != StateOpen {
		t.Errorf("breaker state = %v, want open", a.BreakerState())
	}
}

func TestAdapter_CancelAlwaysForwards(t *testing.T) {
	inner := &mock.Adapter{}
	a := NewAdapter(inner, CircuitBreakerConfig{Name: "test"})

	if err := a.Cancel(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.CancelCalls != 1 {
		t.Errorf("Cancel forwarded %d times, want 1", inner.CancelCalls)
	}
}
