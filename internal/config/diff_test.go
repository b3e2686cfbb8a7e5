package config_test

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/chronicles/internal/config"
)

func stringsReader(s string) *strings.Reader { return strings.NewReader(s) }

func baseConfig() *config.Config {
	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			LLM: map[string]config.ProviderEntry{
				"gemini": {APIKey: "g1"},
				"openai": {APIKey: "o1"},
			},
		},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func clone(c *config.Config) *config.Config {
	out := *c
	out.Providers.LLM = make(map[string]config.ProviderEntry, len(c.Providers.LLM))
	for k, v := range c.Providers.LLM {
		out.Providers.LLM[k] = v
	}
	return &out
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	if d := config.Diff(cfg, clone(cfg)); !d.IsEmpty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_LiveChanges(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := clone(old)
	new.Server.LogLevel = config.LogDebug
	new.Stream.ChunkDelay = 5 * time.Millisecond
	new.Providers.Default = "openai"

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level: %+v", d)
	}
	if !d.StreamChanged || d.NewChunkDelay != 5*time.Millisecond || d.NewTurnTimeout != config.DefaultTurnTimeout {
		t.Errorf("stream: %+v", d)
	}
	if !d.DefaultProviderChanged || d.NewDefaultProvider != "openai" {
		t.Errorf("default provider: %+v", d)
	}
	if d.RestartRequired {
		t.Error("live changes must not require a restart")
	}
}

func TestDiff_Credentials(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := clone(old)
	new.Providers.LLM["gemini"] = config.ProviderEntry{APIKey: "g2"}
	delete(new.Providers.LLM, "openai")
	new.Providers.LLM["anthropic"] = config.ProviderEntry{APIKey: "a1"}

	d := config.Diff(old, new)
	slices.Sort(d.CredentialsChanged)
	want := []string{"anthropic", "gemini", "openai"}
	if !slices.Equal(d.CredentialsChanged, want) {
		t.Errorf("credentials changed = %v, want %v", d.CredentialsChanged, want)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":1" }},
		{"tls", func(c *config.Config) { c.Server.TLS = &config.TLSConfig{CertFile: "a", KeyFile: "b"} }},
		{"tts", func(c *config.Config) { c.Providers.TTS.APIKey = "el" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			old := baseConfig()
			new := clone(old)
			tc.mutate(new)
			if d := config.Diff(old, new); !d.RestartRequired {
				t.Errorf("expected RestartRequired for %s", tc.name)
			}
		})
	}
}

func TestDiff_OriginAppliesLive(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := clone(old)
	new.Server.AllowedOrigin = "https://chronicles.example"

	d := config.Diff(old, new)
	if !d.OriginChanged || d.NewAllowedOrigin != "https://chronicles.example" {
		t.Errorf("diff = %+v", d)
	}
	if d.RestartRequired || d.IsEmpty() {
		t.Errorf("origin change: restart %v, empty %v", d.RestartRequired, d.IsEmpty())
	}
}
