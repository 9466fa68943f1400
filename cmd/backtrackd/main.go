// Command backtrackd runs the cognitive backtracking orchestrator as a
// standalone HTTP/SSE service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/solenai/backtrack/internal/api"
	"github.com/solenai/backtrack/internal/backtrack"
	"github.com/solenai/backtrack/internal/budget"
	"github.com/solenai/backtrack/internal/config"
	"github.com/solenai/backtrack/internal/observe"
	"github.com/solenai/backtrack/internal/prompt"
	"github.com/solenai/backtrack/internal/resilience"
	"github.com/solenai/backtrack/pkg/provider/inference"
	"github.com/solenai/backtrack/pkg/provider/inference/anthropic"
	"github.com/solenai/backtrack/pkg/provider/inference/anyllm"
	"github.com/solenai/backtrack/pkg/provider/inference/openai"
	sig "github.com/solenai/backtrack/pkg/signal"
	"github.com/solenai/backtrack/pkg/signal/scanner"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	messageFlag := flag.String("message", "", "user message to drive a single turn (CLI mode); reads stdin if omitted")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "backtrackd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "backtrackd: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("backtrackd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"inference", cfg.Inference.Name,
	)

	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceName: "backtrackd",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	rawAdapter, err := reg.Create(cfg.Inference)
	if err != nil {
		slog.Error("failed to create inference adapter", "name", cfg.Inference.Name, "err", err)
		return 1
	}

	var adapter inference.Adapter
	if len(cfg.Inference.Fallbacks) == 0 {
		adapter = resilience.NewAdapter(rawAdapter, resilience.CircuitBreakerConfig{
			Name: cfg.Inference.Name,
		})
	} else {
		fb := resilience.NewInferenceFallback(rawAdapter, cfg.Inference.Name, resilience.FallbackConfig{})
		for _, fc := range cfg.Inference.Fallbacks {
			fbAdapter, ferr := reg.Create(fc)
			if ferr != nil {
				slog.Error("failed to create fallback inference adapter", "name", fc.Name, "err", ferr)
				return 1
			}
			fb.AddFallback(fc.Name, fbAdapter)
		}
		adapter = fb
	}

	builder := prompt.New(prompt.WithHintCharLimit(cfg.Orchestrator.HintCharLimit))

	processor := backtrack.New(adapter, func() inference.Parser { return scanner.New() }, builder.Build, backtrack.Config{
		MaxRewinds:           cfg.Orchestrator.MaxRewinds,
		MinSpacing:           cfg.Orchestrator.MinSpacing,
		Metrics:              metrics,
		Provider:             cfg.Inference.Name,
		TemperatureOverrides: resolveTemperatureOverrides(cfg.Orchestrator.Temperatures),
		Budget:               budget.New(),
		Model:                cfg.Inference.Model,
		ContextWindow:        cfg.Inference.ContextWindow,
	})

	printStartupSummary(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.ListenAddr == "" {
		slog.Info("server.listen_addr is empty — running as a one-shot CLI driver")
		return runCLI(ctx, processor, *messageFlag)
	}

	srv := api.NewServer(cfg.Server.ListenAddr, processor, metrics, 30*time.Second, 5*time.Minute, 2*time.Minute)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)

	select {
	case err := <-serveErr:
		if err != nil {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltinProviders registers the inference adapter factories
// backtrackd ships with. The any-llm-go backend is registered under its
// fully qualified "anyllm:<backend>" name since a single deployment only
// ever talks to one backend at a time and the backend choice is fixed at
// construction, not per-request.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	reg.Register("openai", func(c config.InferenceConfig) (inference.Adapter, error) {
		var opts []openai.Option
		if c.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.BaseURL))
		}
		return openai.New(c.APIKey, c.Model, opts...)
	})

	reg.Register("anthropic", func(c config.InferenceConfig) (inference.Adapter, error) {
		var opts []anthropic.Option
		if c.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(c.BaseURL))
		}
		return anthropic.New(c.APIKey, c.Model, opts...)
	})

	registerAnyLLM := func(name string) {
		backend, ok := strings.CutPrefix(name, "anyllm:")
		if !ok {
			return
		}
		reg.Register(name, func(c config.InferenceConfig) (inference.Adapter, error) {
			var opts []anyllmlib.Option
			if c.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(c.APIKey))
			}
			if c.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(c.BaseURL))
			}
			return anyllm.New(backend, c.Model, opts...)
		})
	}
	registerAnyLLM(cfg.Inference.Name)
	for _, fb := range cfg.Inference.Fallbacks {
		registerAnyLLM(fb.Name)
	}
}

// resolveTemperatureOverrides converts the validated
// orchestrator.temperatures map into the Mode-keyed form backtrack.Config
// expects. A name that fails to parse is unreachable in a config that
// passed [config.Validate], so it is silently skipped rather than treated
// as a runtime error.
func resolveTemperatureOverrides(raw map[string]float64) map[sig.Mode]float64 {
	if len(raw) == 0 {
		return nil
	}
	overrides := make(map[sig.Mode]float64, len(raw))
	for name, temp := range raw {
		if mode, ok := sig.ParseMode(name); ok {
			overrides[mode] = temp
		}
	}
	return overrides
}

// runCLI drives a single turn in line mode: it reads a user message (from
// message, falling back to stdin), prints each visible segment to stdout as
// it is produced along with a one-line rewind notice, and exits. This is
// deliberately not a terminal renderer — no cursor control, no redraw, just
// the segments as the processor emits them.
func runCLI(ctx context.Context, processor *backtrack.Processor, message string) int {
	if message == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "backtrackd: read stdin: %v\n", err)
			return 1
		}
		message = strings.TrimSpace(string(data))
	}
	if message == "" {
		fmt.Fprintln(os.Stderr, "backtrackd: no message given (use -message or pipe one via stdin)")
		return 1
	}

	cb := backtrack.Callbacks{
		OnText: func(segment string) {
			fmt.Print(segment)
		},
		OnBacktrack: func(b sig.Backtrack, newVisiblePrefix string) {
			fmt.Printf("\n[rewound to %q: %s]\n", b.ID, b.Reason)
		},
		OnError: func(message string) {
			fmt.Fprintf(os.Stderr, "\nbacktrackd: %s\n", message)
		},
		OnDone: func(fullText string) {
			fmt.Println()
		},
	}

	if err := processor.Run(ctx, message, cb); err != nil {
		return 1
	}
	return 0
}

// printStartupSummary prints a short ASCII-box overview of the effective
// configuration.
func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        backtrackd — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Inference", cfg.Inference.Name+" / "+cfg.Inference.Model)
	printField("Mode", string(cfg.Orchestrator.ResolvedMode()))
	printField("Max rewinds", fmt.Sprintf("%d", cfg.Orchestrator.MaxRewinds))
	printField("Min spacing", fmt.Sprintf("%d", cfg.Orchestrator.MinSpacing))
	if cfg.Server.ListenAddr != "" {
		printField("Listen addr", cfg.Server.ListenAddr)
	} else {
		printField("Listen addr", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s : %-19s ║\n", label, value)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
