// Package tui is the terminal client: scenario and character selection,
// the narrative screen with its action input, and the settings screen.
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/chronicles/internal/game"
	"github.com/MrWong99/chronicles/internal/settings"
)

// Game is the part of [game.Engine] the client drives.
type Game interface {
	State() game.State
	SelectScenario(s game.Scenario)
	SelectCharacter(ctx context.Context, p game.Pick) error
	BackToScenarioSelection(ctx context.Context) error
	TakeTurn(ctx context.Context, action string) error
	CheckRecap(ctx context.Context) error
	Reset(ctx context.Context) error
}

// Reveal is the part of [game.Presenter] the client drives.
type Reveal interface {
	Skip()
	Revealing() bool
}

// KeyChecker confirms an API key with the server before it is stored.
type KeyChecker interface {
	ValidateKey(ctx context.Context, provider, key string) (bool, error)
}

// Config wires the client.
type Config struct {
	Game     Game
	Settings *settings.Store
	Bridge   *Bridge

	// Presenter and Keys are optional.
	Presenter Reveal
	Keys      KeyChecker

	// AltScreen runs the program full screen.
	AltScreen bool
}

// Run starts the program and blocks until the player quits or ctx ends.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Game == nil || cfg.Settings == nil || cfg.Bridge == nil {
		return fmt.Errorf("tui: game, settings and bridge are required")
	}
	m, err := newModel(ctx, cfg)
	if err != nil {
		return err
	}
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	defer cfg.Bridge.Close()
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
