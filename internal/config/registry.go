package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/solenai/backtrack/pkg/provider/inference"
)

// ErrProviderNotRegistered is returned by Create when no factory has been
// registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps inference provider names to their constructor functions. It
// is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]func(InferenceConfig) (inference.Adapter, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]func(InferenceConfig) (inference.Adapter, error)),
	}
}

// Register registers an inference adapter factory under name. Subsequent
// calls with the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory func(InferenceConfig) (inference.Adapter, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = factory
}

// Create instantiates an inference adapter using the factory registered
// under cfg.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) Create(cfg InferenceConfig) (inference.Adapter, error) {
	r.mu.RLock()
	factory, ok := r.adapters[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}
