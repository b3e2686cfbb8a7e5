package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/chronicles/internal/storage"
	"github.com/MrWong99/chronicles/internal/turn"
)

// SaveVersion is the game blob format written by [Engine].
const SaveVersion = 1

// save writes the persistent part of the state. Saves are serialised so the
// stored blob never goes back in time.
func (e *Engine) save(ctx context.Context) error {
	if e.kv == nil {
		return nil
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	data, err := json.Marshal(e.st)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("game: marshal save: %w", err)
	}
	if err := e.kv.Put(ctx, storage.KeyGame, storage.Blob{Version: SaveVersion, Data: data}); err != nil {
		return fmt.Errorf("game: save: %w", err)
	}
	return nil
}

// Restore loads the saved game, if any. A save of an unknown version or one
// that does not decode is ignored so that a broken save never blocks play.
func (e *Engine) Restore(ctx context.Context) error {
	if e.kv == nil {
		return nil
	}
	b, err := e.kv.Get(ctx, storage.KeyGame)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("game: restore: %w", err)
	}
	if b.Version != SaveVersion {
		slog.Warn("game: unsupported save version, starting fresh", "version", b.Version)
		return nil
	}
	loaded := initialState()
	if err := json.Unmarshal(b.Data, &loaded); err != nil {
		slog.Warn("game: corrupt save, starting fresh", "err", err)
		return nil
	}
	normalize(&loaded)

	var sc *Scenario
	if s, ok := LookupScenario(loaded.ScenarioID); ok {
		sc = &s
	}
	e.update(func(st *State) {
		*st = loaded
		e.scenario = sc
	})
	return nil
}

// normalize fills nil collections and resets transient fields of a loaded
// state.
func normalize(st *State) {
	if st.Narrative == nil {
		st.Narrative = []Entry{}
	}
	if st.ActionChoices == nil {
		st.ActionChoices = []turn.ActionChoice{}
	}
	if st.Character.Inventory == nil {
		st.Character.Inventory = []string{}
	}
	if st.Character.Abilities == nil {
		st.Character.Abilities = []string{}
	}
	if st.Environment != nil && st.Environment.NPCsPresent == nil {
		st.Environment.NPCsPresent = []string{}
	}
	st.Current = nil
	st.Phase = PhaseIdle
	st.Processing = false
	st.Loading = false
	st.Status = ""
}
