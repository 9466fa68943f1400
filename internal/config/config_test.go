package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/solenai/backtrack/internal/config"
	"github.com/solenai/backtrack/pkg/provider/inference"
)

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info

inference:
  name: openai
  api_key: sk-test
  model: gpt-4o

orchestrator:
  max_rewinds: 5
  min_spacing: 40
  default_mode: precise
  hint_char_limit: 200
  temperatures:
    precise: 0.2
    exploratory: 0.9
`

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, "info")
	}
	if cfg.Inference.Name != "openai" {
		t.Errorf("inference.name: got %q, want %q", cfg.Inference.Name, "openai")
	}
	if cfg.Inference.Model != "gpt-4o" {
		t.Errorf("inference.model: got %q, want %q", cfg.Inference.Model, "gpt-4o")
	}
	if cfg.Orchestrator.MaxRewinds != 5 {
		t.Errorf("orchestrator.max_rewinds: got %d, want 5", cfg.Orchestrator.MaxRewinds)
	}
	if cfg.Orchestrator.Temperatures["exploratory"] != 0.9 {
		t.Errorf("orchestrator.temperatures[exploratory]: got %.2f, want 0.9", cfg.Orchestrator.Temperatures["exploratory"])
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
server:
  log_level: verbose
inference:
  name: openai
  model: gpt-4o
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_MissingInferenceName(t *testing.T) {
	yaml := `
inference:
  model: gpt-4o
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing inference.name, got nil")
	}
	if !strings.Contains(err.Error(), "inference.name") {
		t.Errorf("error should mention inference.name, got: %v", err)
	}
}

func TestValidate_MissingInferenceModel(t *testing.T) {
	yaml := `
inference:
  name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing inference.model, got nil")
	}
	if !strings.Contains(err.Error(), "inference.model") {
		t.Errorf("error should mention inference.model, got: %v", err)
	}
}

func TestValidate_NegativeMaxRewinds(t *testing.T) {
	yaml := `
inference:
  name: openai
  model: gpt-4o
orchestrator:
  max_rewinds: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative max_rewinds, got nil")
	}
	if !strings.Contains(err.Error(), "max_rewinds") {
		t.Errorf("error should mention max_rewinds, got: %v", err)
	}
}

func TestValidate_UnknownDefaultMode(t *testing.T) {
	yaml := `
inference:
  name: openai
  model: gpt-4o
orchestrator:
  default_mode: overdrive
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unrecognised default_mode, got nil")
	}
	if !strings.Contains(err.Error(), "default_mode") {
		t.Errorf("error should mention default_mode, got: %v", err)
	}
}

func TestValidate_TemperatureOutOfRange(t *testing.T) {
	yaml := `
inference:
  name: openai
  model: gpt-4o
orchestrator:
  temperatures:
    precise: 3.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range temperature, got nil")
	}
	if !strings.Contains(err.Error(), "temperatures") {
		t.Errorf("error should mention temperatures, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	yaml := `
orchestrator:
  max_rewinds: -2
  min_spacing: -3
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "max_rewinds") || !strings.Contains(errStr, "min_spacing") {
		t.Errorf("expected both max_rewinds and min_spacing mentioned, got: %v", err)
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.Create(config.InferenceConfig{Name: "nonexistent"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got: %v", err)
	}
}

func TestRegistry_RegisteredProvider(t *testing.T) {
	reg := config.NewRegistry()
	want := &stubAdapter{}
	reg.Register("stub", func(c config.InferenceConfig) (inference.Adapter, error) {
		return want, nil
	})
	got, err := reg.Create(config.InferenceConfig{Name: "stub"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Error("returned adapter is not the expected instance")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.Register("broken", func(c config.InferenceConfig) (inference.Adapter, error) {
		return nil, wantErr
	})
	_, err := reg.Create(config.InferenceConfig{Name: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

// stubAdapter implements inference.Adapter with no-op methods.
type stubAdapter struct{}

func (s *stubAdapter) Stream(_ context.Context, _ inference.Request) (<-chan inference.Delta, error) {
	ch := make(chan inference.Delta)
	close(ch)
	return ch, nil
}
func (s *stubAdapter) Cancel(_ context.Context) error { return nil }
