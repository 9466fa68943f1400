package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solenai/backtrack/pkg/signal"
)

// ValidLogLevels lists the recognised ServerConfig.LogLevel values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// ValidInferenceNames lists known adapter names used to warn about likely
// typos; any-llm-go backend selectors ("anyllm:openai", etc.) are accepted
// by their "anyllm:" prefix in [Validate] without a warning.
var ValidInferenceNames = []string{"openai", "anthropic", "anyllm"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found; non-fatal oddities
// are logged as warnings instead of failing validation.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !slices.Contains(ValidLogLevels, cfg.Server.LogLevel) {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: %v", cfg.Server.LogLevel, ValidLogLevels))
	}

	if cfg.Inference.Name == "" {
		errs = append(errs, errors.New("inference.name is required"))
	} else if !slices.Contains(ValidInferenceNames, cfg.Inference.Name) && !strings.HasPrefix(cfg.Inference.Name, "anyllm:") {
		slog.Warn("unrecognised inference provider name — may be a typo",
			"name", cfg.Inference.Name, "known", ValidInferenceNames)
	}
	if cfg.Inference.Model == "" {
		errs = append(errs, errors.New("inference.model is required"))
	}
	if cfg.Inference.ContextWindow < 0 {
		errs = append(errs, fmt.Errorf("inference.context_window %d must not be negative", cfg.Inference.ContextWindow))
	}
	for i, fb := range cfg.Inference.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("inference.fallbacks[%d].name is required", i))
		}
		if fb.Model == "" {
			errs = append(errs, fmt.Errorf("inference.fallbacks[%d].model is required", i))
		}
	}

	if cfg.Orchestrator.MaxRewinds < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.max_rewinds %d must not be negative", cfg.Orchestrator.MaxRewinds))
	}
	if cfg.Orchestrator.MinSpacing < 0 {
		errs = append(errs, fmt.Errorf("orchestrator.min_spacing %d must not be negative", cfg.Orchestrator.MinSpacing))
	}
	if cfg.Orchestrator.DefaultMode != "" {
		if _, ok := signal.ParseMode(cfg.Orchestrator.DefaultMode); !ok {
			errs = append(errs, fmt.Errorf("orchestrator.default_mode %q is not a recognised cognitive mode", cfg.Orchestrator.DefaultMode))
		}
	}
	for name, temp := range cfg.Orchestrator.Temperatures {
		if _, ok := signal.ParseMode(name); !ok {
			errs = append(errs, fmt.Errorf("orchestrator.temperatures: %q is not a recognised cognitive mode", name))
			continue
		}
		if !signal.ValidTemperature(temp) {
			errs = append(errs, fmt.Errorf("orchestrator.temperatures[%s] = %.2f is out of range [0.0, 1.0]", name, temp))
		}
	}

	return errors.Join(errs...)
}
