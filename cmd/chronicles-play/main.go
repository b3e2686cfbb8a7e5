// Command chronicles-play is the terminal client for Azeroth Chronicles.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/MrWong99/chronicles/internal/api"
	"github.com/MrWong99/chronicles/internal/config"
	"github.com/MrWong99/chronicles/internal/game"
	"github.com/MrWong99/chronicles/internal/resilience"
	"github.com/MrWong99/chronicles/internal/settings"
	"github.com/MrWong99/chronicles/internal/speech"
	"github.com/MrWong99/chronicles/internal/storage/sqlite"
	"github.com/MrWong99/chronicles/internal/tui"
	"github.com/MrWong99/chronicles/pkg/provider/tts"
	"github.com/MrWong99/chronicles/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	dataDir := defaultDataDir()
	serverURL := flag.String("server", "http://localhost:8080", "narrator server base URL")
	dbPath := flag.String("db", filepath.Join(dataDir, "chronicles.db"), "save game database")
	logPath := flag.String("log", filepath.Join(dataDir, "chronicles.log"), "log file, empty disables logging")
	debug := flag.Bool("debug", false, "log at debug level")
	ttsKey := flag.String("tts-key", "", "ElevenLabs API key for local speech (default $ELEVENLABS_API_KEY, else the server's speech)")
	player := flag.String("player", "", `command that plays raw 16 kHz mono PCM from stdin, e.g. "aplay -q -f S16_LE -r 16000 -c 1"; empty disables speech`)
	altScreen := flag.Bool("alt-screen", true, "run full screen")
	flag.Parse()

	closeLog, err := setupLogging(*logPath, *debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chronicles-play: %v\n", err)
		return 1
	}
	defer closeLog()

	if *ttsKey == "" {
		if env, err := config.LoadEnv(".env"); err == nil {
			*ttsKey = env.ElevenLabsAPIKey
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "chronicles-play: %v\n", err)
		return 1
	}
	store, err := sqlite.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chronicles-play: %v\n", err)
		return 1
	}
	defer store.Close()

	prefs, err := settings.Load(ctx, store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chronicles-play: %v\n", err)
		return 1
	}

	client := api.New(*serverURL, api.WithSettings(prefs.LLM))
	cooling := func(name string) { slog.Warn("rate limited, cooling down", "limiter", name) }
	recapLimiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "recap", OnRateLimited: cooling})
	defer recapLimiter.Close()
	voiceLimiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "voice", OnRateLimited: cooling})
	defer voiceLimiter.Close()

	var engine *game.Engine
	speaker, forgetVoices, closeSpeech, err := newSpeaker(*player, *ttsKey, client, voiceLimiter, func() string {
		return engine.State().Scenario
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "chronicles-play: %v\n", err)
		return 1
	}
	defer closeSpeech()

	bridge := tui.NewBridge()
	presenter := game.NewPresenter(speaker, func() settings.UI { return prefs.Get().UI }, bridge.OnReveal)
	defer presenter.Close()

	engine = game.New(client,
		game.WithStorage(store),
		game.WithSettings(prefs),
		game.WithRecapLimiter(recapLimiter),
		game.WithPresenter(presenter),
		game.WithOnChange(bridge.OnChange),
		game.WithOnReset(forgetVoices),
	)
	defer engine.Close()

	if err := engine.Restore(ctx); err != nil {
		slog.Warn("could not restore saved game", "err", err)
	}
	slog.Info("client starting", "server", *serverURL, "db", *dbPath, "speech", *player != "")

	err = tui.Run(ctx, tui.Config{
		Game:      engine,
		Settings:  prefs,
		Bridge:    bridge,
		Presenter: presenter,
		Keys:      client,
		AltScreen: *altScreen,
	})
	if err != nil {
		slog.Error("client error", "err", err)
		fmt.Fprintf(os.Stderr, "chronicles-play: %v\n", err)
		return 1
	}
	return 0
}

// newSpeaker builds the speech output. Without a player command speech is
// off. With one, ElevenLabs is used directly when a key is known, failing
// over to the server's speech. forget drops the cached voice casting.
func newSpeaker(player, ttsKey string, client *api.Client, limiter *resilience.RateLimiter, scenario func() string) (s speech.Speaker, forget, closeFn func(), err error) {
	if player == "" {
		return speech.Nop{}, func() {}, func() {}, nil
	}
	var provider tts.Provider = client.Speech()
	if ttsKey != "" {
		p, err := elevenlabs.New(ttsKey)
		if err != nil {
			return nil, nil, nil, err
		}
		f := speech.NewFailover(p, "elevenlabs", resilience.FailoverConfig{})
		f.Add("server", provider)
		provider = f
	}
	out, err := startPlayer(player)
	if err != nil {
		return nil, nil, nil, err
	}
	chooser := speech.NewChooser(provider,
		speech.WithRecommender(client, limiter),
		speech.WithScenario(scenario),
	)
	closeFn = func() {
		if err := out.Close(); err != nil {
			slog.Warn("audio player exited", "err", err)
		}
	}
	return speech.NewTTS(provider, chooser, out), chooser.Reset, closeFn, nil
}

func setupLogging(path string, debug bool) (func(), error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if path == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	return func() { _ = f.Close() }, nil
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "chronicles")
}
