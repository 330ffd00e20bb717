// Command voxlate is the main entry point for the Voxlate live caption server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voxlate/voxlate/internal/config"
	"github.com/voxlate/voxlate/internal/observe"
	"github.com/voxlate/voxlate/internal/pipeline"
	"github.com/voxlate/voxlate/internal/resilience"
	"github.com/voxlate/voxlate/internal/server"
	"github.com/voxlate/voxlate/internal/session"
	"github.com/voxlate/voxlate/pkg/provider/detect"
	"github.com/voxlate/voxlate/pkg/provider/recognize"
	"github.com/voxlate/voxlate/pkg/provider/translate"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Environment ────────────────────────────────────────────────────────────
	// Provider credentials are usually referenced as ${VAR} in the config;
	// a local .env file is a convenience, not a requirement.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "voxlate: load .env: %v\n", err)
		return 1
	}

	// ── Logger ─────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config reload can adjust it without
	// a restart.
	logLevel := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// ── Configuration (watched for changes) ────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(d.NewLogLevel.SlogLevel())
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.RestartRequired {
			slog.Warn("configuration change requires a restart to take effect")
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxlate: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxlate: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()

	cfg := watcher.Current()
	logLevel.Set(cfg.Server.LogLevel.SlogLevel())

	slog.Info("voxlate starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ──────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxlate",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ──────────────────────────────────────────────────────────────
	recognizer, detector, translator, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Pipeline + sessions ────────────────────────────────────────────────────
	proc, err := pipeline.New(recognizer, detector, translator,
		pipeline.WithMetrics(metrics),
		pipeline.WithConfidenceThreshold(cfg.Pipeline.ConfidenceThreshold),
		pipeline.WithFallbackLanguage(cfg.Pipeline.FallbackLanguage),
		pipeline.WithRecognitionLanguage(cfg.Pipeline.RecognitionLanguage),
	)
	if err != nil {
		slog.Error("failed to assemble pipeline", "err", err)
		return 1
	}

	sessions := session.NewManager(proc, metrics,
		session.WithQueueDepth(cfg.Pipeline.QueueDepth),
		session.WithOverflowPolicy(cfg.Pipeline.OverflowPolicy),
	)

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	if err := server.New(cfg, sessions, metrics).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders instantiates the three stage backends named in cfg and wraps
// each in a circuit-breaker fallback group. The detector may be nil when the
// detection stage is disabled.
func buildProviders(cfg *config.Config) (recognize.Provider, detect.Provider, translate.Provider, error) {
	reg := config.DefaultRegistry()

	fallbackCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Resilience.MaxFailures,
			ResetTimeout: cfg.Resilience.ResetTimeout,
		},
	}

	recognizer, err := reg.CreateRecognize(cfg.Providers.Recognize)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create recognize provider %q: %w", cfg.Providers.Recognize.Name, err)
	}
	slog.Info("provider created", "stage", "recognize", "name", cfg.Providers.Recognize.Name)
	recognizer = resilience.NewRecognizeFallback(recognizer, cfg.Providers.Recognize.Name, fallbackCfg)

	translator, err := reg.CreateTranslate(cfg.Providers.Translate)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create translate provider %q: %w", cfg.Providers.Translate.Name, err)
	}
	slog.Info("provider created", "stage", "translate", "name", cfg.Providers.Translate.Name)
	translator = resilience.NewTranslateFallback(translator, cfg.Providers.Translate.Name, fallbackCfg)

	detector, err := reg.CreateDetect(cfg.Providers.Detect)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create detect provider %q: %w", cfg.Providers.Detect.Name, err)
	}
	if detector != nil {
		slog.Info("provider created", "stage", "detect", "name", cfg.Providers.Detect.Name)
		wrapped := resilience.NewDetectFallback(detector, cfg.Providers.Detect.Name, fallbackCfg)
		detector = detect.NewCache(wrapped, cfg.Pipeline.DetectionCacheTTL)
	} else {
		slog.Info("language detection disabled, captions assume the fallback language",
			"fallback", cfg.Pipeline.FallbackLanguage)
	}

	return recognizer, detector, translator, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Voxlate — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printEntry("Recognize", cfg.Providers.Recognize.Name)
	printEntry("Detect", cfg.Providers.Detect.Name)
	printEntry("Translate", cfg.Providers.Translate.Name)
	printEntry("Target lang", cfg.Pipeline.TargetLanguage)
	printEntry("Frame length", cfg.Audio.FrameDuration.String())
	printEntry("Queue depth", fmt.Sprintf("%d (%s)", cfg.Pipeline.QueueDepth, cfg.Pipeline.OverflowPolicy))
	printEntry("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printEntry(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s : %-20s ║\n", kind, value)
}
