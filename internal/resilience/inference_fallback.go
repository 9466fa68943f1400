package resilience

import (
	"context"
	"sync"

	"github.com/solenai/backtrack/pkg/provider/inference"
)

// InferenceFallback implements [inference.Adapter] with automatic failover
// across multiple inference backends. Each backend has its own circuit
// breaker; when the primary fails or its breaker is open, the next healthy
// fallback is tried.
type InferenceFallback struct {
	group *FallbackGroup[inference.Adapter]

	mu     sync.Mutex
	active inference.Adapter
}

// Ensure InferenceFallback implements inference.Adapter at compile time.
var _ inference.Adapter = (*InferenceFallback)(nil)

// NewInferenceFallback creates an [InferenceFallback] with primary as the
// preferred backend.
func NewInferenceFallback(primary inference.Adapter, primaryName string, cfg FallbackConfig) *InferenceFallback {
	return &InferenceFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional inference adapter as a fallback.
func (f *InferenceFallback) AddFallback(name string, adapter inference.Adapter) {
	f.group.AddFallback(name, adapter)
}

// Stream opens a stream against the first healthy backend. Note: only the
// initial connection attempt is covered by failover; once a stream is
// established, mid-stream errors surface through the returned channel's
// Delta.Err and are the caller's responsibility, same as a plain adapter.
func (f *InferenceFallback) Stream(ctx context.Context, req inference.Request) (<-chan inference.Delta, error) {
	var chosen inference.Adapter
	ch, err := ExecuteWithResult(f.group, func(a inference.Adapter) (<-chan inference.Delta, error) {
		out, err := a.Stream(ctx, req)
		if err == nil {
			chosen = a
		}
		return out, err
	})
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.active = chosen
	f.mu.Unlock()
	return ch, nil
}

// Cancel forwards to whichever backend most recently served a successful
// Stream call. It is a no-op if no stream has been started.
func (f *InferenceFallback) Cancel(ctx context.Context) error {
	f.mu.Lock()
	active := f.active
	f.mu.Unlock()

	if active == nil {
		return nil
	}
	return active.Cancel(ctx)
}
