package config

// ConfigDiff describes what changed between two configs. Only fields that
// are safe to apply to a running orchestrator without restarting it are
// tracked; a changed Inference block is not among them since it requires
// reconstructing the adapter.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     string

	MaxRewindsChanged bool
	NewMaxRewinds     int

	MinSpacingChanged bool
	NewMinSpacing     int

	DefaultModeChanged bool
	NewDefaultMode     string

	TemperaturesChanged bool
}

// Diff compares old and new configs and returns what changed between them.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Orchestrator.MaxRewinds != new.Orchestrator.MaxRewinds {
		d.MaxRewindsChanged = true
		d.NewMaxRewinds = new.Orchestrator.MaxRewinds
	}
	if old.Orchestrator.MinSpacing != new.Orchestrator.MinSpacing {
		d.MinSpacingChanged = true
		d.NewMinSpacing = new.Orchestrator.MinSpacing
	}
	if old.Orchestrator.DefaultMode != new.Orchestrator.DefaultMode {
		d.DefaultModeChanged = true
		d.NewDefaultMode = new.Orchestrator.DefaultMode
	}
	d.TemperaturesChanged = !temperaturesEqual(old.Orchestrator.Temperatures, new.Orchestrator.Temperatures)

	return d
}

func temperaturesEqual(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
