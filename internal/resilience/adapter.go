package resilience

import (
	"context"

	"github.com/solenai/backtrack/pkg/provider/inference"
)

// Adapter wraps an inference.Adapter with a [CircuitBreaker] so that a
// provider outage trips the breaker instead of letting every retry
// iteration hang against a backend that is already down.
//
// Stream itself is fast to fail or succeed (the slow part, token
// generation, happens on the returned channel), so the breaker only
// protects the call that opens the stream; a mid-stream failure surfaces
// normally through a Delta.Err and does not count against the breaker.
type Adapter struct {
	inner   inference.Adapter
	breaker *CircuitBreaker
}

// NewAdapter wraps inner with a circuit breaker configured by cfg.
func NewAdapter(inner inference.Adapter, cfg CircuitBreakerConfig) *Adapter {
	return &Adapter{inner: inner, breaker: NewCircuitBreaker(cfg)}
}

// Ensure Adapter implements inference.Adapter at compile time.
var _ inference.Adapter = (*Adapter)(nil)

// Stream opens a stream through the circuit breaker. Returns [ErrCircuitOpen]
// without contacting inner when the breaker is open.
func (a *Adapter) Stream(ctx context.Context, req inference.Request) (<-chan inference.Delta, error) {
	var ch <-chan inference.Delta
	err := a.breaker.Execute(func() error {
		var innerErr error
		ch, innerErr = a.inner.Stream(ctx, req)
		return innerErr
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Cancel forwards to the wrapped adapter. Cancellation never counts as a
// circuit breaker failure.
func (a *Adapter) Cancel(ctx context.Context) error {
	return a.inner.Cancel(ctx)
}

// BreakerState returns the current state of the underlying circuit breaker,
// useful for health checks and metrics.
func (a *Adapter) BreakerState() State {
	return a.breaker.State()
}
