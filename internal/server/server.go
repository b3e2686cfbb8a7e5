// Package server implements the narrator HTTP API: the streamed game turn,
// the story recap, voice casting, the provider catalog and optional speech.
//
// Every request builds its own [narrator.Manager] from the request headers
// layered over the server configuration, so requests never share
// credentials.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/chronicles/internal/config"
	"github.com/MrWong99/chronicles/internal/narrator"
	"github.com/MrWong99/chronicles/internal/observe"
	"github.com/MrWong99/chronicles/internal/settings"
	"github.com/MrWong99/chronicles/internal/voice"
	"github.com/MrWong99/chronicles/pkg/provider/tts"
)

// Request headers carrying client-side narrator settings.
const (
	HeaderProvider      = "x-llm-provider"
	HeaderAPIKey        = "x-llm-api-key"
	HeaderModel         = "x-llm-model"
	HeaderTemperature   = "x-llm-temperature"
	HeaderMaxTokens     = "x-llm-max-tokens"
	HeaderHistoryLength = "x-llm-history-length"
	HeaderContextDetail = "x-llm-context-detail"
)

// Error bodies.
const (
	msgNotConfigured    = "LLM provider not configured or API key missing"
	msgInternal         = "Internal server error"
	msgNoRecommendation = "No voice recommendation received"
	msgTimedOut         = "generation timed out"
)

// maxBodyBytes bounds a request body.
const maxBodyBytes = 1 << 20

// Option is a functional option for [New].
type Option func(*Server)

// WithMetrics records on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithVoiceSelector replaces the default voice selector.
func WithVoiceSelector(v *voice.Selector) Option {
	return func(s *Server) { s.voices = v }
}

// Server serves the narrator API. It is safe for concurrent use.
type Server struct {
	current func() *config.Config
	build   narrator.BuildFunc
	metrics *observe.Metrics
	voices  *voice.Selector
	speech  tts.Provider
}

// New returns a Server. current is called on every request so that a
// hot-reloaded configuration takes effect immediately.
func New(current func() *config.Config, build narrator.BuildFunc, opts ...Option) *Server {
	s := &Server{current: current, build: build}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.voices == nil {
		s.voices = voice.NewSelector(nil)
	}
	return s
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/game-response", s.handleGameResponse)
	mux.HandleFunc("POST /api/generate-story-recap", s.handleStoryRecap)
	mux.HandleFunc("POST /api/voice-selection", s.handleVoiceSelection)
	mux.HandleFunc("POST /api/validate-key", s.handleValidateKey)
	mux.HandleFunc("GET /api/providers", s.handleProviders)
	mux.HandleFunc("GET /api/voices", s.handleVoices)
	mux.HandleFunc("POST /api/speech", s.handleSpeech)
}

// CORS wraps next with the cross-origin headers and answers preflight
// requests with 204.
func CORS(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = config.DefaultAllowedOrigin
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+strings.Join(llmHeaders, ", "))
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

var llmHeaders = []string{
	HeaderProvider, HeaderAPIKey, HeaderModel, HeaderTemperature,
	HeaderMaxTokens, HeaderHistoryLength, HeaderContextDetail,
}

// errBadHeader marks a header value that cannot be parsed.
var errBadHeader = errors.New("server: invalid header")

// resolveSettings layers the request headers over cfg. The API key and model
// fall back to the configured entry of the resolved provider.
func resolveSettings(h http.Header, cfg *config.Config) (narrator.Settings, error) {
	provider := strings.TrimSpace(h.Get(HeaderProvider))
	if provider == "" {
		provider = cfg.Providers.Default
	}
	entry := cfg.LLMEntry(provider)

	st := narrator.Settings{
		Provider: provider,
		APIKey:   firstNonEmpty(h.Get(HeaderAPIKey), entry.APIKey),
		Model:    firstNonEmpty(h.Get(HeaderModel), entry.Model),
	}

	if v := h.Get(HeaderTemperature); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 2 {
			return st, fmt.Errorf("%w: %s=%q", errBadHeader, HeaderTemperature, v)
		}
		st.Temperature = &f
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{HeaderMaxTokens, &st.MaxTokens},
		{HeaderHistoryLength, &st.HistoryLength},
	} {
		v := h.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return st, fmt.Errorf("%w: %s=%q", errBadHeader, p.name, v)
		}
		*p.dst = n
	}
	if v := h.Get(HeaderContextDetail); v != "" {
		d := settings.ContextDetail(v)
		if !d.Valid() {
			return st, fmt.Errorf("%w: %s=%q", errBadHeader, HeaderContextDetail, v)
		}
		st.ContextDetail = d
	}
	return st, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// manager resolves the request's narrator and builds it eagerly so that
// configuration problems surface before any response is written. On failure
// it has already written the error response.
func (s *Server) manager(w http.ResponseWriter, r *http.Request) (*narrator.Manager, bool) {
	cfg := s.current()
	st, err := resolveSettings(r.Header, cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	m := narrator.NewManager(func() narrator.Settings { return st }, s.build, narrator.WithMetrics(s.metrics))
	if _, err := m.Ensure(r.Context()); err != nil {
		observe.Logger(r.Context()).Warn("narrator unavailable", "provider", st.Provider, "err", err)
		writeError(w, http.StatusInternalServerError, msgNotConfigured)
		return nil, false
	}
	return m, true
}

// decode reads a JSON body into v, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
