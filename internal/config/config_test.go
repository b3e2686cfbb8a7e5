package config_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/chronicles/internal/config"
	"github.com/MrWong99/chronicles/pkg/provider/llm"
	llmmock "github.com/MrWong99/chronicles/pkg/provider/llm/mock"
	"github.com/MrWong99/chronicles/pkg/provider/tts"
	ttsmock "github.com/MrWong99/chronicles/pkg/provider/tts/mock"
)

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  allowed_origin: "https://play.example"

stream:
  turn_timeout: 45s
  chunk_delay: 20ms

providers:
  default: openai
  llm:
    openai:
      api_key: sk-test
      model: gpt-4o
    ollama:
      base_url: http://localhost:11434
  tts:
    name: elevenlabs
    api_key: el-test
    options:
      output_format: pcm_24000
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("server.listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Stream.TurnTimeout != 45*time.Second || cfg.Stream.ChunkDelay != 20*time.Millisecond {
		t.Errorf("stream: got %+v", cfg.Stream)
	}
	if cfg.Providers.Default != "openai" {
		t.Errorf("providers.default: got %q", cfg.Providers.Default)
	}
	if e := cfg.LLMEntry("openai"); e.Name != "openai" || e.APIKey != "sk-test" || e.Model != "gpt-4o" {
		t.Errorf("openai entry: got %+v", e)
	}
	if e := cfg.LLMEntry("ollama"); e.BaseURL != "http://localhost:11434" {
		t.Errorf("ollama entry: got %+v", e)
	}
	if cfg.Providers.TTS.Options["output_format"] != "pcm_24000" {
		t.Errorf("tts options: got %v", cfg.Providers.TTS.Options)
	}
}

func TestLoadFromReader_EmptyAppliesDefaults(t *testing.T) {
	for _, doc := range []string{"", "{}"} {
		cfg, err := config.LoadFromReader(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", doc, err)
		}
		if cfg.Server.ListenAddr != config.DefaultListenAddr ||
			cfg.Server.LogLevel != config.LogInfo ||
			cfg.Server.AllowedOrigin != "*" ||
			cfg.Stream.TurnTimeout != config.DefaultTurnTimeout ||
			cfg.Stream.ChunkDelay != config.DefaultChunkDelay ||
			cfg.Providers.Default != config.DefaultProvider {
			t.Errorf("defaults not applied for %q: %+v", doc, cfg)
		}
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_port: 8080\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.Default != config.DefaultProvider {
		t.Errorf("default provider: got %q", cfg.Providers.Default)
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		mention string
	}{
		{"invalid log level", "server:\n  log_level: verbose\n", "log_level"},
		{"unknown default provider", "providers:\n  default: skynet\n", "providers.default"},
		{"negative timeout", "stream:\n  turn_timeout: -1s\n", "turn_timeout"},
		{"negative chunk delay", "stream:\n  chunk_delay: -5ms\n", "chunk_delay"},
		{"partial tls", "server:\n  tls:\n    cert_file: a.pem\n", "tls"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.mention) {
				t.Errorf("error should mention %q, got: %v", tc.mention, err)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := &config.Config{
		Server:    config.ServerConfig{LogLevel: "loud"},
		Stream:    config.StreamConfig{TurnTimeout: -time.Second},
		Providers: config.ProvidersConfig{Default: "nope"},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"log_level", "turn_timeout", "providers.default"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	reg := config.NewRegistry()
	if _, err := reg.CreateLLM(context.Background(), config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateTTS(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateTTS err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_Registered(t *testing.T) {
	reg := config.NewRegistry()
	wantLLM := &llmmock.Provider{}
	wantTTS := &ttsmock.Provider{}

	var gotEntry config.ProviderEntry
	reg.RegisterLLM("stub", func(_ context.Context, e config.ProviderEntry) (llm.Provider, error) {
		gotEntry = e
		return wantLLM, nil
	})
	reg.RegisterTTS("stub", func(config.ProviderEntry) (tts.Provider, error) {
		return wantTTS, nil
	})

	p, err := reg.CreateLLM(context.Background(), config.ProviderEntry{Name: "stub", Model: "m"})
	if err != nil || p != wantLLM {
		t.Errorf("CreateLLM = %v, %v", p, err)
	}
	if gotEntry.Model != "m" {
		t.Errorf("factory received %+v", gotEntry)
	}
	s, err := reg.CreateTTS(config.ProviderEntry{Name: "stub"})
	if err != nil || s != wantTTS {
		t.Errorf("CreateTTS = %v, %v", s, err)
	}
	if names := reg.LLMNames(); len(names) != 1 || names[0] != "stub" {
		t.Errorf("LLMNames = %v", names)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	sentinel := errors.New("bad key")
	reg.RegisterLLM("broken", func(context.Context, config.ProviderEntry) (llm.Provider, error) {
		return nil, sentinel
	})
	if _, err := reg.CreateLLM(context.Background(), config.ProviderEntry{Name: "broken"}); !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want factory error", err)
	}
}
