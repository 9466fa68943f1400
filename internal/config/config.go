// Package config provides the configuration schema, loader, and provider
// registry for the backtracking orchestrator.
package config

import "github.com/solenai/backtrack/pkg/signal"

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Inference    InferenceConfig    `yaml:"inference"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
}

// ServerConfig holds network and logging settings for the backtrackd
// HTTP/SSE surface.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	// Empty disables the HTTP surface; the CLI driver still works.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// InferenceConfig selects and configures the inference adapter. Name picks
// the adapter factory; APIKey, BaseURL and Model are passed to the adapter
// constructor; Model and ContextWindow also feed the processor's budget
// check; Fallbacks builds additional adapters.
type InferenceConfig struct {
	// Name selects the registered adapter implementation, e.g. "openai",
	// "anthropic", or "anyllm:<backend>" for a specific any-llm-go backend.
	Name string `yaml:"name"`

	// APIKey is the provider authentication key. The openai and anthropic
	// adapters require it; anyllm backends fall back to their usual
	// environment variable when it is empty.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// ContextWindow is the model's context window size in tokens. Zero
	// disables internal/budget's context-window warning. Only the top-level
	// entry's value is read; a fallback entry's ContextWindow is not used.
	ContextWindow int `yaml:"context_window"`

	// Fallbacks lists additional providers tried, in order, when the
	// primary adapter's circuit breaker opens or a Stream call fails
	// outright. Each entry must have a name and a model; Fallbacks within a
	// fallback entry are ignored.
	Fallbacks []InferenceConfig `yaml:"fallbacks"`
}

// OrchestratorConfig bundles the orchestrator settings: HintCharLimit feeds
// internal/prompt, MaxRewinds and MinSpacing feed internal/backtrack,
// Temperatures overrides the mode-to-temperature table, and DefaultMode is
// validated and shown in the startup summary.
type OrchestratorConfig struct {
	// MaxRewinds caps honoured backtracks per turn. Defaults to 3 when zero.
	MaxRewinds int `yaml:"max_rewinds"`

	// MinSpacing is the minimum number of characters produced since the
	// last honoured checkpoint or backtrack before a new checkpoint marker
	// is honoured. Defaults to 30 when zero.
	MinSpacing int `yaml:"min_spacing"`

	// DefaultMode names a cognitive mode; it must be one of the recognised
	// modes and resolves to "balanced" when empty (see ResolvedMode). The
	// processor does not read it: every turn starts in signal.DefaultMode.
	DefaultMode string `yaml:"default_mode"`

	// HintCharLimit caps each sanitised hint line injected into the system
	// prompt. Zero disables truncation.
	HintCharLimit int `yaml:"hint_char_limit"`

	// Temperatures overrides the default mode→temperature table. Modes
	// absent from this map keep their built-in default.
	Temperatures map[string]float64 `yaml:"temperatures"`
}

// ResolvedMode returns cfg's default mode, falling back to
// [signal.DefaultMode] when unset or unrecognised.
func (c OrchestratorConfig) ResolvedMode() signal.Mode {
	if c.DefaultMode == "" {
		return signal.DefaultMode
	}
	if mode, ok := signal.ParseMode(c.DefaultMode); ok {
		return mode
	}
	return signal.DefaultMode
}
