// Package storage defines the local key-value persistence used by the game
// client. Game progress and settings are stored as separate versioned blobs
// so that each can evolve its format independently.
package storage

import (
	"context"
	"errors"
	"time"
)

// Well-known blob keys.
const (
	KeyGame     = "chronicles-game"
	KeySettings = "chronicles-settings"
)

// ErrNotFound is returned by [KV.Get] when no blob exists for the key.
var ErrNotFound = errors.New("storage: not found")

// Blob is one persisted value. Version is the format version of Data as
// chosen by the writer; readers reject versions they do not understand.
type Blob struct {
	Version   int
	Data      []byte
	UpdatedAt time.Time
}

// KV is a small persistent key-value store. Implementations must be safe for
// concurrent use.
type KV interface {
	// Get returns the blob stored at key or ErrNotFound.
	Get(ctx context.Context, key string) (Blob, error)

	// Put stores b at key, replacing any previous value. UpdatedAt is set by
	// the store.
	Put(ctx context.Context, key string, b Blob) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Close releases the store.
	Close() error
}
