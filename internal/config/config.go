// Package config provides the configuration schema, loader, environment
// overlay and provider registry for the Chronicles narrator server.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the Chronicles server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog converts l to a [slog.Level]. Unknown levels map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Defaults applied by [ApplyDefaults] to unset fields.
const (
	DefaultListenAddr    = ":8080"
	DefaultProvider      = "gemini"
	DefaultTurnTimeout   = 60 * time.Second
	DefaultChunkDelay    = 50 * time.Millisecond
	DefaultAllowedOrigin = "*"
)

// Config is the root configuration structure for Chronicles.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Stream    StreamConfig    `yaml:"stream"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigin is sent as Access-Control-Allow-Origin. Default "*".
	AllowedOrigin string `yaml:"allowed_origin"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StreamConfig tunes the turn event stream.
type StreamConfig struct {
	// TurnTimeout bounds one narrator generation. Default 60s.
	TurnTimeout time.Duration `yaml:"turn_timeout"`

	// ChunkDelay is the pause between text_chunk frames. Default 50ms.
	ChunkDelay time.Duration `yaml:"chunk_delay"`
}

// ProvidersConfig declares the narrator backends the server may use when a
// request carries no credentials of its own.
type ProvidersConfig struct {
	// Default is the provider id used when a request names none.
	Default string `yaml:"default"`

	// LLM holds per-provider defaults keyed by provider id ("gemini",
	// "openai", "anthropic", "ollama").
	LLM map[string]ProviderEntry `yaml:"llm"`

	// TTS configures the speech backend offered to clients.
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// LLMEntry returns the configured entry for provider with Name filled in.
// A provider absent from the config yields an entry carrying only its name.
func (c *Config) LLMEntry(provider string) ProviderEntry {
	e := c.Providers.LLM[provider]
	e.Name = provider
	return e
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.AllowedOrigin == "" {
		cfg.Server.AllowedOrigin = DefaultAllowedOrigin
	}
	if cfg.Stream.TurnTimeout == 0 {
		cfg.Stream.TurnTimeout = DefaultTurnTimeout
	}
	if cfg.Stream.ChunkDelay == 0 {
		cfg.Stream.ChunkDelay = DefaultChunkDelay
	}
	if cfg.Providers.Default == "" {
		cfg.Providers.Default = DefaultProvider
	}
	if cfg.Providers.LLM == nil {
		cfg.Providers.LLM = make(map[string]ProviderEntry)
	}
}
