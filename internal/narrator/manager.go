package narrator

import (
	"context"
	"sync"

	"github.com/MrWong99/chronicles/internal/catalog"
	"github.com/MrWong99/chronicles/internal/turn"
)

// Manager owns the active [Narrator] and rebuilds it whenever the settings
// returned by its source change provider, key, model or generation
// parameters. All methods are safe for concurrent use.
type Manager struct {
	source func() Settings
	build  BuildFunc
	opts   []Option

	mu      sync.Mutex
	current *Narrator
	fp      string
}

// NewManager returns a Manager reading its configuration from source on every
// call.
func NewManager(source func() Settings, build BuildFunc, opts ...Option) *Manager {
	return &Manager{source: source, build: build, opts: opts}
}

// Ensure returns a Narrator matching the current settings, building one when
// none exists yet or the settings changed. Configuration failures are
// returned as [ErrUnknownProvider] or [ErrNotConfigured].
func (m *Manager) Ensure(ctx context.Context) (*Narrator, error) {
	cfg := m.source()
	fp := cfg.fingerprint()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.fp == fp {
		return m.current, nil
	}
	n, err := New(ctx, cfg, m.build, m.opts...)
	if err != nil {
		return nil, err
	}
	m.current, m.fp = n, fp
	return n, nil
}

// Info returns the catalog entry of the active provider.
func (m *Manager) Info(ctx context.Context) (catalog.ProviderInfo, error) {
	n, err := m.Ensure(ctx)
	if err != nil {
		return catalog.ProviderInfo{}, err
	}
	return n.Info(), nil
}

// GenerateResponse delegates to [Narrator.GenerateResponse]. Only
// configuration errors are returned; narrator failures become fallbacks.
func (m *Manager) GenerateResponse(ctx context.Context, gc turn.GameContext, action string) (*turn.Response, error) {
	n, err := m.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	return n.GenerateResponse(ctx, gc, action), nil
}

// GenerateStoryRecap delegates to [Narrator.GenerateStoryRecap].
func (m *Manager) GenerateStoryRecap(ctx context.Context, gc turn.GameContext, prompt string) (string, error) {
	n, err := m.Ensure(ctx)
	if err != nil {
		return "", err
	}
	return n.GenerateStoryRecap(ctx, gc, prompt), nil
}

// GenerateText delegates to [Narrator.GenerateText].
func (m *Manager) GenerateText(ctx context.Context, prompt string, opts TextOptions) (string, error) {
	n, err := m.Ensure(ctx)
	if err != nil {
		return "", err
	}
	return n.GenerateText(ctx, prompt, opts)
}

// ValidateAPIKey checks key against the configured provider. It reports false
// when the manager cannot be configured at all.
func (m *Manager) ValidateAPIKey(ctx context.Context, key string) bool {
	cfg := m.source()
	cfg.APIKey = key
	n, err := New(ctx, cfg, m.build, m.opts...)
	if err != nil {
		return false
	}
	return n.ValidateAPIKey(ctx, key)
}
