// Command chronicles is the Azeroth Chronicles narrator server.
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
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MrWong99/chronicles/internal/app"
	"github.com/MrWong99/chronicles/internal/catalog"
	"github.com/MrWong99/chronicles/internal/config"
	"github.com/MrWong99/chronicles/internal/narrator"
	"github.com/MrWong99/chronicles/internal/observe"
	"github.com/MrWong99/chronicles/pkg/provider/llm"
	"github.com/MrWong99/chronicles/pkg/provider/llm/anyllm"
	"github.com/MrWong99/chronicles/pkg/provider/llm/gemini"
	"github.com/MrWong99/chronicles/pkg/provider/llm/openai"
	"github.com/MrWong99/chronicles/pkg/provider/tts"
	"github.com/MrWong99/chronicles/pkg/provider/tts/elevenlabs"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to the YAML configuration file (defaults only when empty)")
	envFile := flag.String("env", ".env", "dotenv file with provider keys, skipped when missing")
	flag.Parse()

	env, err := config.LoadEnv(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chronicles: %v\n", err)
		return 1
	}
	overlay := func(c *config.Config) error { return config.ApplyEnv(c, env) }

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = overlay(cfg)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "chronicles: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "chronicles: %v\n", err)
		}
		return 1
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Slog())
	slog.SetDefault(newLogger(level))

	slog.Info("chronicles starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "chronicles",
		ServiceVersion: version,
		Registerer:     metricsReg,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	opts := []app.Option{
		app.WithLevel(level),
		app.WithGatherer(metricsReg),
		app.WithCloser(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdownTelemetry(ctx)
		}),
	}
	speech, err := buildSpeech(cfg, reg)
	if err != nil {
		slog.Error("failed to build speech provider", "err", err)
		return 1
	}
	if speech != nil {
		opts = append(opts, app.WithSpeech(speech))
	}

	var application *app.App
	application, err = app.New(cfg, narratorBuilder(reg, func() *config.Config { return application.Config() }), opts...)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if *configPath != "" {
		w, err := config.NewWatcher(*configPath, application.Reload, config.WithOverlay(overlay))
		if err != nil {
			slog.Error("failed to watch config", "err", err)
			return 1
		}
		defer w.Stop()
	}

	printStartupSummary(cfg, reg, speech != nil)
	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltinProviders wires the narrator and speech factories into reg.
// Gemini and OpenAI use their vendor SDKs; the remaining catalog providers go
// through any-llm-go.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM(catalog.Gemini, func(ctx context.Context, entry config.ProviderEntry) (llm.Provider, error) {
		var opts []gemini.Option
		if entry.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, gemini.WithTimeout(d))
		}
		return gemini.New(ctx, entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM(catalog.OpenAI, func(_ context.Context, entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// anthropic and ollama share the any-llm-go pattern: optional APIKey and
	// optional BaseURL. Ollama is local and only needs the address.
	for _, name := range []string{catalog.Anthropic, catalog.Ollama} {
		reg.RegisterLLM(name, func(_ context.Context, entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if f := optString(entry.Options, "output_format"); f != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(f))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	for _, name := range reg.LLMNames() {
		slog.Debug("registered provider", "kind", "llm", "name", name)
	}
}

// narratorBuilder adapts reg to [narrator.BuildFunc]. The request supplies
// provider, key and model; base URL and options come from the live config.
func narratorBuilder(reg *config.Registry, current func() *config.Config) narrator.BuildFunc {
	return func(ctx context.Context, provider, apiKey, model string) (llm.Provider, error) {
		entry := current().LLMEntry(provider)
		entry.APIKey = apiKey
		entry.Model = model
		return reg.CreateLLM(ctx, entry)
	}
}

// buildSpeech creates the configured speech provider, or nil when none is
// configured.
func buildSpeech(cfg *config.Config, reg *config.Registry) (tts.Provider, error) {
	entry := cfg.Providers.TTS
	if entry.Name == "" {
		return nil, nil
	}
	p, err := reg.CreateTTS(entry)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("speech provider not available, skipping", "name", entry.Name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", entry.Name)
	return p, nil
}

func printStartupSummary(cfg *config.Config, reg *config.Registry, speech bool) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║   Azeroth Chronicles, startup summary ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	def := cfg.LLMEntry(cfg.Providers.Default)
	printRow("Narrator", def.Name+modelSuffix(def.Model))
	keyed := 0
	for _, id := range catalog.IDs() {
		if cfg.LLMEntry(id).APIKey != "" {
			keyed++
		}
	}
	printRow("Server keys", fmt.Sprintf("%d of %d providers", keyed, len(reg.LLMNames())))
	if speech {
		printRow("Speech", cfg.Providers.TTS.Name)
	} else {
		printRow("Speech", "(disabled)")
	}
	printRow("Turn timeout", cfg.Stream.TurnTimeout.String())
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func modelSuffix(model string) string {
	if model == "" {
		return ""
	}
	return " / " + model
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:18]) + "…"
	}
	fmt.Printf("║  %-13s  : %-19s ║\n", kind, value)
}

func newLogger(level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optDuration parses a duration string such as "30s" from a provider
// Options map. Missing or malformed values yield 0.
func optDuration(opts map[string]any, key string) time.Duration {
	d, err := time.ParseDuration(optString(opts, key))
	if err != nil {
		return 0
	}
	return d
}
