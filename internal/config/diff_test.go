package config_test

import (
	"testing"

	"github.com/solenai/backtrack/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:       config.ServerConfig{LogLevel: "info"},
		Orchestrator: config.OrchestratorConfig{MaxRewinds: 3, MinSpacing: 30},
	}
	d := config.Diff(cfg, cfg)
	if d.LogLevelChanged || d.MaxRewindsChanged || d.MinSpacingChanged || d.DefaultModeChanged || d.TemperaturesChanged {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: "info"}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: "debug"}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != "debug" {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_MaxRewindsChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Orchestrator: config.OrchestratorConfig{MaxRewinds: 3}}
	new := &config.Config{Orchestrator: config.OrchestratorConfig{MaxRewinds: 5}}

	d := config.Diff(old, new)
	if !d.MaxRewindsChanged {
		t.Error("expected MaxRewindsChanged=true")
	}
	if d.NewMaxRewinds != 5 {
		t.Errorf("expected NewMaxRewinds=5, got %d", d.NewMaxRewinds)
	}
}

func TestDiff_MinSpacingChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Orchestrator: config.OrchestratorConfig{MinSpacing: 30}}
	new := &config.Config{Orchestrator: config.OrchestratorConfig{MinSpacing: 60}}

	d := config.Diff(old, new)
	if !d.MinSpacingChanged {
		t.Error("expected MinSpacingChanged=true")
	}
	if d.NewMinSpacing != 60 {
		t.Errorf("expected NewMinSpacing=60, got %d", d.NewMinSpacing)
	}
}

func TestDiff_DefaultModeChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Orchestrator: config.OrchestratorConfig{DefaultMode: "balanced"}}
	new := &config.Config{Orchestrator: config.OrchestratorConfig{DefaultMode: "careful"}}

	d := config.Diff(old, new)
	if !d.DefaultModeChanged {
		t.Error("expected DefaultModeChanged=true")
	}
	if d.NewDefaultMode != "careful" {
		t.Errorf("expected NewDefaultMode=careful, got %q", d.NewDefaultMode)
	}
}

func TestDiff_TemperaturesChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Orchestrator: config.OrchestratorConfig{Temperatures: map[string]float64{"careful": 0.2}}}
	new := &config.Config{Orchestrator: config.OrchestratorConfig{Temperatures: map[string]float64{"careful": 0.3}}}

	d := config.Diff(old, new)
	if !d.TemperaturesChanged {
		t.Error("expected TemperaturesChanged=true")
	}
}

func TestDiff_TemperaturesUnchangedWhenEqual(t *testing.T) {
	t.Parallel()
	old := &config.Config{Orchestrator: config.OrchestratorConfig{Temperatures: map[string]float64{"careful": 0.2, "bold": 0.8}}}
	new := &config.Config{Orchestrator: config.OrchestratorConfig{Temperatures: map[string]float64{"bold": 0.8, "careful": 0.2}}}

	d := config.Diff(old, new)
	if d.TemperaturesChanged {
		t.Error("expected TemperaturesChanged=false for equal maps in different iteration order")
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:       config.ServerConfig{LogLevel: "info"},
		Orchestrator: config.OrchestratorConfig{MaxRewinds: 3, DefaultMode: "balanced"},
	}
	new := &config.Config{
		Server:       config.ServerConfig{LogLevel: "warn"},
		Orchestrator: config.OrchestratorConfig{MaxRewinds: 1, DefaultMode: "careful"},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged || !d.MaxRewindsChanged || !d.DefaultModeChanged {
		t.Errorf("expected all three fields to be flagged changed, got %+v", d)
	}
}
