package narrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/chronicles/internal/catalog"
	"github.com/MrWong99/chronicles/internal/observe"
	"github.com/MrWong99/chronicles/internal/settings"
	"github.com/MrWong99/chronicles/internal/turn"
	"github.com/MrWong99/chronicles/pkg/provider/llm"
	"github.com/MrWong99/chronicles/pkg/provider/llm/mock"
)

const validTurn = `{
  "response_type": "dialogue",
  "content": {"text": "Lok'tar, traveler.", "speaker": "Grunt", "speaker_title": "Orgrimmar Guard"},
  "environment": {"description": "The gates of Orgrimmar", "npcs_present": ["Grunt"], "atmosphere": "Dusty"},
  "action_choices": [{"id": "enter", "text": "Enter", "description": "Walk into the city"}],
  "character_updates": {"hp": 90},
  "game_state": {"status": "continue", "context": "gates"}
}`

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// fixedBuild returns a BuildFunc that always hands out p and counts calls.
func fixedBuild(p llm.Provider, calls *atomic.Int32) BuildFunc {
	return func(_ context.Context, _, _, _ string) (llm.Provider, error) {
		if calls != nil {
			calls.Add(1)
		}
		return p, nil
	}
}

func newTestNarrator(t *testing.T, p *mock.Provider, cfg Settings) *Narrator {
	t.Helper()
	if cfg.Provider == "" {
		cfg.Provider = catalog.OpenAI
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "sk-test"
	}
	n, err := New(context.Background(), cfg, fixedBuild(p, nil), WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func testContext() turn.GameContext {
	return turn.GameContext{
		Scenario:         "Trouble in Durotar",
		Character:        testCharacter(),
		NarrativeHistory: []string{"You arrive at the gates."},
	}
}

func TestNew_Errors(t *testing.T) {
	build := fixedBuild(&mock.Provider{}, nil)
	if _, err := New(context.Background(), Settings{Provider: "nope"}, build); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("unknown provider err = %v, want ErrUnknownProvider", err)
	}
	if _, err := New(context.Background(), Settings{Provider: catalog.Gemini}, build); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("missing key err = %v, want ErrNotConfigured", err)
	}
	if _, err := New(context.Background(), Settings{Provider: catalog.Ollama}, build, WithMetrics(testMetrics(t))); err != nil {
		t.Errorf("keyless provider: unexpected error %v", err)
	}

	failing := func(context.Context, string, string, string) (llm.Provider, error) {
		return nil, errors.New("boom")
	}
	if _, err := New(context.Background(), Settings{Provider: catalog.OpenAI, APIKey: "k"}, failing); err == nil {
		t.Error("expected build error")
	}
}

func TestNew_DefaultsModel(t *testing.T) {
	n := newTestNarrator(t, &mock.Provider{}, Settings{Provider: catalog.Gemini})
	if n.Model() != "gemini-1.5-flash" {
		t.Errorf("model = %q, want gemini-1.5-flash", n.Model())
	}
	if n.Settings().HistoryLength != DefaultHistoryLength {
		t.Errorf("history length = %d, want %d", n.Settings().HistoryLength, DefaultHistoryLength)
	}
	if n.Info().ID != catalog.Gemini {
		t.Errorf("info id = %q", n.Info().ID)
	}
}

func TestGenerateResponse_Success(t *testing.T) {
	p := &mock.Provider{
		CompleteResponse:  &llm.CompletionResponse{Content: "```json\n" + validTurn + "\n```"},
		ModelCapabilities: llm.ModelCapabilities{SupportsJSONMode: true},
	}
	n := newTestNarrator(t, p, Settings{ContextDetail: settings.Rich})

	r := n.GenerateResponse(context.Background(), testContext(), "I greet the guard")
	if turn.IsFallback(r) {
		t.Fatal("unexpected fallback response")
	}
	if r.Content.Speaker != "Grunt" {
		t.Errorf("speaker = %q, want Grunt", r.Content.Speaker)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("complete calls = %d, want 1", len(calls))
	}
	req := calls[0].Req
	if !req.JSONMode {
		t.Error("expected JSON mode")
	}
	if req.Temperature == nil || *req.Temperature != turnTemperature {
		t.Errorf("temperature = %v, want %v", req.Temperature, turnTemperature)
	}
	if req.MaxTokens != turnMaxTokens || req.TopK != topK || req.TopP != topP {
		t.Errorf("generation params = %d/%v/%v", req.MaxTokens, req.TopK, req.TopP)
	}
	if req.SystemPrompt != SystemPrompt(settings.Rich) {
		t.Error("system prompt does not match the rich tier")
	}
	if !strings.HasSuffix(req.Messages[0].Content, "Player Action: I greet the guard\n\nRespond with JSON only:") {
		t.Errorf("user prompt = %q", req.Messages[0].Content)
	}
}

func TestGenerateResponse_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		p    *mock.Provider
	}{
		{"vendor error", &mock.Provider{CompleteErr: errors.New("503 unavailable")}},
		{"empty content", &mock.Provider{CompleteResponse: &llm.CompletionResponse{}}},
		{"not json", &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Once upon a time"}}},
		{"schema violation", &mock.Provider{CompleteResponse: &llm.CompletionResponse{
			Content: `{"response_type":"poem","content":{"text":"x"}}`,
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := newTestNarrator(t, tc.p, Settings{})
			r := n.GenerateResponse(context.Background(), testContext(), "look")
			if !turn.IsFallback(r) {
				t.Fatalf("expected fallback, got %+v", r)
			}
		})
	}
}

func TestGenerateResponse_UsesConfiguredParams(t *testing.T) {
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: validTurn}}
	n := newTestNarrator(t, p, Settings{Temperature: llm.Float64(1.2), MaxTokens: 300})
	n.GenerateResponse(context.Background(), testContext(), "look")

	req := p.Calls()[0].Req
	if *req.Temperature != 1.2 || req.MaxTokens != 300 {
		t.Errorf("params = %v/%d, want 1.2/300", *req.Temperature, req.MaxTokens)
	}
	if req.JSONMode {
		t.Error("JSON mode requested from a backend without support")
	}
}

func TestGenerateStoryRecap(t *testing.T) {
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "```\n{\"text\": \"Our hero walked the red sands.\"}\n```",
	}}
	n := newTestNarrator(t, p, Settings{})

	got := n.GenerateStoryRecap(context.Background(), testContext(), "Summarise.")
	if got != "Our hero walked the red sands." {
		t.Errorf("recap = %q", got)
	}
	req := p.Calls()[0].Req
	if req.SystemPrompt != chroniclerPrompt {
		t.Error("recap should use the chronicler prompt")
	}
	if *req.Temperature != recapTemperature || req.MaxTokens != recapMaxTokens {
		t.Errorf("recap params = %v/%d", *req.Temperature, req.MaxTokens)
	}
	if req.JSONMode {
		t.Error("recap must not request JSON mode")
	}
}

func TestGenerateStoryRecap_Failure(t *testing.T) {
	p := &mock.Provider{CompleteErr: errors.New("quota exceeded")}
	n := newTestNarrator(t, p, Settings{})

	got := n.GenerateStoryRecap(context.Background(), testContext(), "Summarise.")
	want := "The chronicle keeper's quill seems to have run dry. A summary of recent events cannot be penned at this time. (quota exceeded)"
	if got != want {
		t.Errorf("recap = %q, want %q", got, want)
	}
}

func TestGenerateText(t *testing.T) {
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  Stormwind  \n"}}

	t.Run("defaults", func(t *testing.T) {
		p.Reset()
		n := newTestNarrator(t, p, Settings{})
		got, err := n.GenerateText(context.Background(), "Name a city", TextOptions{})
		if err != nil {
			t.Fatalf("GenerateText: %v", err)
		}
		if got != "Stormwind" {
			t.Errorf("text = %q", got)
		}
		req := p.Calls()[0].Req
		if *req.Temperature != textTemperature || req.MaxTokens != textMaxTokens {
			t.Errorf("params = %v/%d", *req.Temperature, req.MaxTokens)
		}
		if req.SystemPrompt != "" {
			t.Error("free text must not carry a system prompt")
		}
	})

	t.Run("options override settings", func(t *testing.T) {
		p.Reset()
		n := newTestNarrator(t, p, Settings{Temperature: llm.Float64(0.9)})
		_, _ = n.GenerateText(context.Background(), "x", TextOptions{Temperature: llm.Float64(0), MaxOutputTokens: 10})
		req := p.Calls()[0].Req
		if *req.Temperature != 0 || req.MaxTokens != 10 {
			t.Errorf("params = %v/%d, want 0/10", *req.Temperature, req.MaxTokens)
		}
	})

	t.Run("settings temperature", func(t *testing.T) {
		p.Reset()
		n := newTestNarrator(t, p, Settings{Temperature: llm.Float64(0.9)})
		_, _ = n.GenerateText(context.Background(), "x", TextOptions{})
		if got := *p.Calls()[0].Req.Temperature; got != 0.9 {
			t.Errorf("temperature = %v, want 0.9", got)
		}
	})

	t.Run("error propagates", func(t *testing.T) {
		bad := &mock.Provider{CompleteErr: errors.New("nope")}
		n := newTestNarrator(t, bad, Settings{})
		if _, err := n.GenerateText(context.Background(), "x", TextOptions{}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestValidateAPIKey(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		p := &mock.Provider{}
		n := newTestNarrator(t, p, Settings{})
		if !n.ValidateAPIKey(context.Background(), "sk-good") {
			t.Error("expected key to be accepted")
		}
		if p.ValidateCallCount != 1 {
			t.Errorf("validate calls = %d, want 1", p.ValidateCallCount)
		}
	})

	t.Run("rejected", func(t *testing.T) {
		p := &mock.Provider{ValidateErr: errors.New("401")}
		n := newTestNarrator(t, p, Settings{})
		if n.ValidateAPIKey(context.Background(), "sk-bad") {
			t.Error("expected key to be rejected")
		}
	})

	t.Run("empty key", func(t *testing.T) {
		n := newTestNarrator(t, &mock.Provider{}, Settings{})
		if n.ValidateAPIKey(context.Background(), " ") {
			t.Error("empty key must be rejected")
		}
	})

	t.Run("panic is contained", func(t *testing.T) {
		n := newTestNarrator(t, &mock.Provider{}, Settings{})
		n.build = func(context.Context, string, string, string) (llm.Provider, error) {
			panic("vendor bug")
		}
		if n.ValidateAPIKey(context.Background(), "sk") {
			t.Error("panicking validation must report false")
		}
	})
}
