package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MrWong99/chronicles/internal/catalog"
)

// Env holds the environment overrides. Non-empty values take precedence over
// the YAML file.
type Env struct {
	ListenAddr      string `env:"CHRONICLES_LISTEN_ADDR"`
	LogLevel        string `env:"CHRONICLES_LOG_LEVEL"`
	DefaultProvider string `env:"DEFAULT_LLM_PROVIDER"`

	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OllamaBaseURL   string `env:"OLLAMA_BASE_URL"`

	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
}

// LoadEnv loads the given dotenv files, skipping ones that do not exist, and
// parses the process environment into an [Env]. Variables already set in the
// process are never overwritten by a dotenv file.
func LoadEnv(files ...string) (Env, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("config: load %q: %w", f, err)
		}
	}
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("config: parse environment: %w", err)
	}
	return e, nil
}

// ApplyEnv overlays e onto cfg and revalidates it.
func ApplyEnv(cfg *Config, e Env) error {
	if e.ListenAddr != "" {
		cfg.Server.ListenAddr = e.ListenAddr
	}
	if e.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(e.LogLevel)
	}
	if e.DefaultProvider != "" {
		cfg.Providers.Default = e.DefaultProvider
	}
	if cfg.Providers.LLM == nil {
		cfg.Providers.LLM = make(map[string]ProviderEntry)
	}
	setKey := func(id, key string) {
		if key == "" {
			return
		}
		entry := cfg.Providers.LLM[id]
		entry.APIKey = key
		cfg.Providers.LLM[id] = entry
	}
	setKey(catalog.Gemini, e.GeminiAPIKey)
	setKey(catalog.OpenAI, e.OpenAIAPIKey)
	setKey(catalog.Anthropic, e.AnthropicAPIKey)
	if e.OllamaBaseURL != "" {
		entry := cfg.Providers.LLM[catalog.Ollama]
		entry.BaseURL = e.OllamaBaseURL
		cfg.Providers.LLM[catalog.Ollama] = entry
	}
	if e.ElevenLabsAPIKey != "" {
		if cfg.Providers.TTS.Name == "" {
			cfg.Providers.TTS.Name = "elevenlabs"
		}
		cfg.Providers.TTS.APIKey = e.ElevenLabsAPIKey
	}
	return Validate(cfg)
}
