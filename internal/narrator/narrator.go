// Package narrator turns game state into narrator calls against a pluggable
// LLM backend. A [Narrator] wraps one vendor [llm.Provider] with the prompt
// tiers, generation defaults and response validation, and never surfaces a
// vendor failure as a panic: turns degrade to [turn.Fallback] and recaps to an
// apology line. A [Manager] keeps one Narrator in sync with the current
// settings.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/chronicles/internal/catalog"
	"github.com/MrWong99/chronicles/internal/observe"
	"github.com/MrWong99/chronicles/internal/settings"
	"github.com/MrWong99/chronicles/internal/turn"
	"github.com/MrWong99/chronicles/pkg/provider/llm"
)

// Generation defaults applied when the settings leave a value unset.
const (
	DefaultHistoryLength = 5

	turnTemperature  = 0.8
	turnMaxTokens    = 1024
	recapTemperature = 0.7
	recapMaxTokens   = 512
	textTemperature  = 0.7
	textMaxTokens    = 256

	topK = 40
	topP = 0.95
)

// Call kinds used as the "kind" metric attribute.
const (
	kindTurn  = "turn"
	kindRecap = "recap"
	kindText  = "text"
)

var (
	// ErrUnknownProvider is returned when the configured provider id is not in
	// the catalog.
	ErrUnknownProvider = errors.New("narrator: unknown provider")

	// ErrNotConfigured is returned when a provider that needs an API key has
	// none.
	ErrNotConfigured = errors.New("narrator: LLM provider not configured or API key missing")

	// ErrEmptyResponse is returned when the vendor answers with no text.
	ErrEmptyResponse = errors.New("narrator: no response generated")
)

// BuildFunc constructs a vendor provider for one credential set.
type BuildFunc func(ctx context.Context, provider, apiKey, model string) (llm.Provider, error)

// Settings is the narrator configuration. A nil Temperature and zero
// MaxTokens or HistoryLength select the per-call defaults.
type Settings struct {
	Provider      string
	APIKey        string
	Model         string
	Temperature   *float64
	MaxTokens     int
	HistoryLength int
	ContextDetail settings.ContextDetail
}

// FromLLM converts persisted LLM preferences into narrator settings.
func FromLLM(l settings.LLM) Settings {
	return Settings{
		Provider:      l.Provider,
		APIKey:        l.APIKey,
		Model:         l.Model,
		Temperature:   llm.Float64(l.Temperature),
		MaxTokens:     l.MaxTokens,
		HistoryLength: l.HistoryLength,
		ContextDetail: l.ContextDetail,
	}
}

// fingerprint identifies the settings that require a rebuild when changed.
func (s Settings) fingerprint() string {
	temp := "-"
	if s.Temperature != nil {
		temp = fmt.Sprint(*s.Temperature)
	}
	return strings.Join([]string{
		s.Provider, s.APIKey, s.Model, temp,
		fmt.Sprint(s.MaxTokens), fmt.Sprint(s.HistoryLength), string(s.ContextDetail),
	}, "\x00")
}

// TextOptions tunes a free-form [Narrator.GenerateText] call.
type TextOptions struct {
	MaxOutputTokens int
	Temperature     *float64
}

// Option is a functional option for [New].
type Option func(*Narrator)

// WithMetrics records calls on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(n *Narrator) { n.metrics = m }
}

// Narrator generates turns, recaps and free text through one vendor.
// It is safe for concurrent use when the underlying provider is.
type Narrator struct {
	info     catalog.ProviderInfo
	cfg      Settings
	provider llm.Provider
	build    BuildFunc
	metrics  *observe.Metrics
}

// New resolves cfg against the catalog and builds the vendor provider.
func New(ctx context.Context, cfg Settings, build BuildFunc, opts ...Option) (*Narrator, error) {
	info, ok := catalog.Lookup(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if info.RequiresAPIKey && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = info.DefaultModel
	}
	if cfg.HistoryLength <= 0 {
		cfg.HistoryLength = DefaultHistoryLength
	}
	if !cfg.ContextDetail.Valid() {
		cfg.ContextDetail = settings.Standard
	}

	p, err := build(ctx, info.ID, cfg.APIKey, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("narrator: build %s provider: %w", info.ID, err)
	}

	n := &Narrator{info: info, cfg: cfg, provider: p, build: build}
	for _, o := range opts {
		o(n)
	}
	if n.metrics == nil {
		n.metrics = observe.DefaultMetrics()
	}
	return n, nil
}

// Info returns the catalog entry of the active provider.
func (n *Narrator) Info() catalog.ProviderInfo { return n.info }

// Model returns the resolved model id.
func (n *Narrator) Model() string { return n.cfg.Model }

// Settings returns the resolved settings.
func (n *Narrator) Settings() Settings { return n.cfg }

// ValidateAPIKey reports whether key is accepted by the active provider's
// vendor. Any failure, including a panic inside the vendor client, yields
// false.
func (n *Narrator) ValidateAPIKey(ctx context.Context, key string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			observe.Logger(ctx).Error("narrator: key validation panicked", "provider", n.info.ID, "panic", r)
			ok = false
		}
	}()

	if n.info.RequiresAPIKey && strings.TrimSpace(key) == "" {
		return false
	}
	p, err := n.build(ctx, n.info.ID, key, n.cfg.Model)
	if err != nil {
		return false
	}
	if v, isValidator := p.(llm.KeyValidator); isValidator {
		err = v.ValidateKey(ctx)
	} else {
		_, err = p.Complete(ctx, llm.CompletionRequest{
			Messages:  []llm.Message{{Role: llm.RoleUser, Content: "ping"}},
			MaxTokens: 1,
		})
	}
	if err != nil {
		observe.Logger(ctx).Info("narrator: api key rejected", "provider", n.info.ID, "err", err)
		return false
	}
	return true
}

// GenerateResponse asks the narrator for the next turn. It never returns nil:
// every vendor, parse or validation failure yields [turn.Fallback].
func (n *Narrator) GenerateResponse(ctx context.Context, gc turn.GameContext, action string) *turn.Response {
	ctx, span := observe.StartSpan(ctx, "narrator.GenerateResponse", n.spanAttrs()...)
	defer span.End()

	req := llm.CompletionRequest{
		SystemPrompt: SystemPrompt(n.cfg.ContextDetail),
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: TurnPrompt(gc, action, n.cfg.ContextDetail, n.cfg.HistoryLength),
		}},
		Temperature: llm.Float64(orFloat(n.cfg.Temperature, turnTemperature)),
		MaxTokens:   orInt(n.cfg.MaxTokens, turnMaxTokens),
		TopK:        topK,
		TopP:        topP,
		JSONMode:    n.provider.Capabilities().SupportsJSONMode,
	}

	content, err := n.complete(ctx, kindTurn, req)
	if err != nil {
		return n.fallback(ctx, err)
	}
	r, err := turn.Parse([]byte(content))
	if err != nil {
		observe.Logger(ctx).Warn("narrator: invalid turn response",
			"provider", n.info.ID, "model", n.cfg.Model, "err", err)
		return n.fallback(ctx, err)
	}
	return r
}

// GenerateStoryRecap writes a journal-style summary of recent events. On
// failure it returns an in-world apology carrying the error message.
func (n *Narrator) GenerateStoryRecap(ctx context.Context, gc turn.GameContext, prompt string) string {
	ctx, span := observe.StartSpan(ctx, "narrator.GenerateStoryRecap", n.spanAttrs()...)
	defer span.End()

	req := llm.CompletionRequest{
		SystemPrompt: chroniclerPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: RecapPrompt(gc, prompt, n.cfg.ContextDetail, n.cfg.HistoryLength),
		}},
		Temperature: llm.Float64(orFloat(n.cfg.Temperature, recapTemperature)),
		MaxTokens:   orInt(n.cfg.MaxTokens, recapMaxTokens),
		TopK:        topK,
		TopP:        topP,
	}

	content, err := n.complete(ctx, kindRecap, req)
	if err == nil {
		if recap := turn.CleanRecap(content); recap != "" {
			return recap
		}
		err = ErrEmptyResponse
	}
	return "The chronicle keeper's quill seems to have run dry. " +
		"A summary of recent events cannot be penned at this time. (" + err.Error() + ")"
}

// GenerateText runs a free-form prompt and returns the trimmed completion.
// Unlike turns and recaps, errors propagate to the caller.
func (n *Narrator) GenerateText(ctx context.Context, prompt string, opts TextOptions) (string, error) {
	ctx, span := observe.StartSpan(ctx, "narrator.GenerateText", n.spanAttrs()...)
	defer span.End()

	temp := textTemperature
	switch {
	case opts.Temperature != nil:
		temp = *opts.Temperature
	case n.cfg.Temperature != nil:
		temp = *n.cfg.Temperature
	}

	content, err := n.complete(ctx, kindText, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: llm.Float64(temp),
		MaxTokens:   orInt(opts.MaxOutputTokens, textMaxTokens),
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (n *Narrator) spanAttrs() []attribute.KeyValue {
	return []attribute.KeyValue{observe.Attr("provider", n.info.ID), observe.Attr("model", n.cfg.Model)}
}

// complete performs one vendor call and records its metrics.
func (n *Narrator) complete(ctx context.Context, kind string, req llm.CompletionRequest) (string, error) {
	start := time.Now()
	resp, err := n.provider.Complete(ctx, req)
	n.metrics.RecordLLMDuration(ctx, n.info.ID, kind, time.Since(start).Seconds())

	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = ErrEmptyResponse
	}
	if err != nil {
		observe.Fail(ctx, err)
		n.metrics.RecordProviderRequest(ctx, n.info.ID, kind, "error")
		n.metrics.RecordProviderError(ctx, n.info.ID, kind)
		observe.Logger(ctx).Warn("narrator: completion failed",
			"provider", n.info.ID, "model", n.cfg.Model, "kind", kind, "err", err)
		return "", err
	}
	n.metrics.RecordProviderRequest(ctx, n.info.ID, kind, "ok")
	observe.Logger(ctx).Debug("narrator: completion",
		"provider", n.info.ID, "model", n.cfg.Model, "kind", kind,
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	return resp.Content, nil
}

func (n *Narrator) fallback(ctx context.Context, err error) *turn.Response {
	n.metrics.RecordFallback(ctx, n.info.ID)
	return turn.Fallback(err)
}

// orFloat treats nil and zero as unset.
func orFloat(v *float64, def float64) float64 {
	if v == nil || *v == 0 {
		return def
	}
	return *v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
