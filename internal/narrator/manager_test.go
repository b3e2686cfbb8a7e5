package narrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/chronicles/internal/catalog"
	"github.com/MrWong99/chronicles/pkg/provider/llm"
	"github.com/MrWong99/chronicles/pkg/provider/llm/mock"
)

// settingsSource is a mutable settings supplier for manager tests.
type settingsSource struct {
	mu  sync.Mutex
	cfg Settings
}

func (s *settingsSource) get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *settingsSource) set(fn func(*Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
}

func TestManager_CachesUntilSettingsChange(t *testing.T) {
	var builds atomic.Int32
	src := &settingsSource{cfg: Settings{Provider: catalog.OpenAI, APIKey: "k1"}}
	m := NewManager(src.get, fixedBuild(&mock.Provider{}, &builds), WithMetrics(testMetrics(t)))
	ctx := context.Background()

	a, err := m.Ensure(ctx)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	b, _ := m.Ensure(ctx)
	if a != b || builds.Load() != 1 {
		t.Fatalf("expected cached narrator, builds = %d", builds.Load())
	}

	changes := []func(*Settings){
		func(s *Settings) { s.APIKey = "k2" },
		func(s *Settings) { s.Model = "gpt-4o" },
		func(s *Settings) { s.Temperature = llm.Float64(0.3) },
		func(s *Settings) { s.MaxTokens = 200 },
		func(s *Settings) { s.Provider = catalog.Gemini },
	}
	for i, change := range changes {
		src.set(change)
		n, err := m.Ensure(ctx)
		if err != nil {
			t.Fatalf("change %d: %v", i, err)
		}
		if got := builds.Load(); got != int32(i+2) {
			t.Errorf("change %d: builds = %d, want %d", i, got, i+2)
		}
		if n == a {
			t.Errorf("change %d: narrator was not rebuilt", i)
		}
	}
}

func TestManager_ProviderSwitchBindsNewProvider(t *testing.T) {
	var mu sync.Mutex
	var built []string
	build := func(_ context.Context, provider, _, model string) (llm.Provider, error) {
		mu.Lock()
		defer mu.Unlock()
		built = append(built, provider+"/"+model)
		return &mock.Provider{}, nil
	}
	src := &settingsSource{cfg: Settings{Provider: catalog.OpenAI, APIKey: "k1", Model: "gpt-4o-mini"}}
	m := NewManager(src.get, build, WithMetrics(testMetrics(t)))
	ctx := context.Background()

	if _, err := m.Ensure(ctx); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	src.set(func(s *Settings) { s.Provider = catalog.Gemini; s.Model = "gemini-1.5-flash" })
	n, err := m.Ensure(ctx)
	if err != nil {
		t.Fatalf("Ensure after switch: %v", err)
	}
	if n.Info().ID != catalog.Gemini || n.Model() != "gemini-1.5-flash" {
		t.Errorf("narrator bound to %s/%s, want gemini", n.Info().ID, n.Model())
	}
	mu.Lock()
	defer mu.Unlock()
	want := []string{catalog.OpenAI + "/gpt-4o-mini", catalog.Gemini + "/gemini-1.5-flash"}
	if len(built) != 2 || built[0] != want[0] || built[1] != want[1] {
		t.Errorf("builds = %v, want %v", built, want)
	}
}

func TestManager_ConfigErrors(t *testing.T) {
	src := &settingsSource{cfg: Settings{Provider: "unknown"}}
	m := NewManager(src.get, fixedBuild(&mock.Provider{}, nil))
	ctx := context.Background()

	if _, err := m.GenerateResponse(ctx, testContext(), "look"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}
	src.set(func(s *Settings) { s.Provider = catalog.OpenAI })
	if _, err := m.GenerateStoryRecap(ctx, testContext(), "p"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
	if _, err := m.Info(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Info err = %v, want ErrNotConfigured", err)
	}
}

func TestManager_Facade(t *testing.T) {
	p := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: validTurn}}
	src := &settingsSource{cfg: Settings{Provider: catalog.Anthropic, APIKey: "sk-ant"}}
	m := NewManager(src.get, fixedBuild(p, nil), WithMetrics(testMetrics(t)))
	ctx := context.Background()

	r, err := m.GenerateResponse(ctx, testContext(), "look")
	if err != nil || r == nil {
		t.Fatalf("GenerateResponse: %v", err)
	}
	info, err := m.Info(ctx)
	if err != nil || info.DefaultModel != "claude-3-5-haiku-latest" {
		t.Errorf("info = %+v, err = %v", info, err)
	}
	if _, err := m.GenerateText(ctx, "hi", TextOptions{}); err != nil {
		t.Errorf("GenerateText: %v", err)
	}
	if !m.ValidateAPIKey(ctx, "sk-other") {
		t.Error("expected key to validate")
	}
	if m.ValidateAPIKey(ctx, "") {
		t.Error("empty key must not validate")
	}
}
