package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/chronicles/internal/catalog"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"gemini", "openai", "anthropic", "ollama"},
	"tts": {"elevenlabs"},
}

// Load reads the YAML configuration file at path, applies defaults and
// returns a validated [Config]. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromReader(bytes.NewReader(nil))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document is valid.
func LoadFromReader(r io.Reader) (*Config, error) {
	return decode(r, nil)
}

// decode parses r, applies defaults and then overlay, and validates the
// outcome.
func decode(r io.Reader, overlay func(*Config) error) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if overlay != nil {
		if err := overlay(cfg); err != nil {
			return nil, fmt.Errorf("config: overlay: %w", err)
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	if cfg.Stream.TurnTimeout < 0 {
		errs = append(errs, fmt.Errorf("stream.turn_timeout %s must not be negative", cfg.Stream.TurnTimeout))
	}
	if cfg.Stream.ChunkDelay < 0 {
		errs = append(errs, fmt.Errorf("stream.chunk_delay %s must not be negative", cfg.Stream.ChunkDelay))
	}

	if d := cfg.Providers.Default; d != "" {
		if _, ok := catalog.Lookup(d); !ok {
			errs = append(errs, fmt.Errorf("providers.default %q is not a known narrator provider; valid values: %v", d, catalog.IDs()))
		}
	}
	for id := range cfg.Providers.LLM {
		validateProviderName("llm", id)
	}
	validateProviderName("tts", cfg.Providers.TTS.Name)

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
