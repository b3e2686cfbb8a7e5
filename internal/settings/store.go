package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/chronicles/internal/storage"
)

// Version is the blob format version written by [Store].
const Version = 1

// Store is the persisted settings aggregate. Reads are served from memory;
// every successful Update is written through to the KV.
type Store struct {
	kv storage.KV

	mu  sync.RWMutex
	cur Settings
}

// Load reads settings from kv. Missing, unreadable or future-version blobs
// fall back to [Defaults] so a broken save never blocks the game.
func Load(ctx context.Context, kv storage.KV) (*Store, error) {
	s := &Store{kv: kv, cur: Defaults()}
	b, err := kv.Get(ctx, storage.KeySettings)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("settings: load: %w", err)
	}
	if b.Version != Version {
		slog.Warn("settings: unsupported blob version, using defaults", "version", b.Version)
		return s, nil
	}
	loaded := Defaults()
	if err := json.Unmarshal(b.Data, &loaded); err != nil {
		slog.Warn("settings: corrupt blob, using defaults", "err", err)
		return s, nil
	}
	if err := loaded.Validate(); err != nil {
		slog.Warn("settings: invalid stored values, using defaults", "err", err)
		return s, nil
	}
	s.cur = loaded
	return s, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// LLM returns the current narrator settings. It has the signature the
// narrator manager expects for its settings accessor.
func (s *Store) LLM() LLM {
	return s.Get().LLM
}

// Update applies fn to a copy of the settings, validates the result and
// persists it. On any error the previous settings stay in effect.
func (s *Store) Update(ctx context.Context, fn func(*Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.cur = next
	return nil
}

// ResetToDefaults restores and persists the defaults.
func (s *Store) ResetToDefaults(ctx context.Context) error {
	return s.Update(ctx, func(st *Settings) error {
		*st = Defaults()
		return nil
	})
}

func (s *Store) persist(ctx context.Context, st Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := s.kv.Put(ctx, storage.KeySettings, storage.Blob{Version: Version, Data: data}); err != nil {
		return fmt.Errorf("settings: save: %w", err)
	}
	return nil
}

// Clear deletes the persisted settings and restores the defaults in memory
// without writing them back.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, storage.KeySettings); err != nil {
		return fmt.Errorf("settings: clear: %w", err)
	}
	s.cur = Defaults()
	return nil
}
