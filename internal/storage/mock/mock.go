// Package mock provides an in-memory storage.KV for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/chronicles/internal/storage"
)

// KV is an in-memory storage.KV that records how often each method ran.
type KV struct {
	mu    sync.Mutex
	blobs map[string]storage.Blob

	// PutErr, if set, is returned by Put.
	PutErr error

	PutCount    int
	DeleteCount int
}

// New returns an empty KV.
func New() *KV {
	return &KV{blobs: map[string]storage.Blob{}}
}

// Get implements storage.KV.
func (k *KV) Get(_ context.Context, key string) (storage.Blob, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.blobs[key]
	if !ok {
		return storage.Blob{}, storage.ErrNotFound
	}
	b.Data = append([]byte(nil), b.Data...)
	return b, nil
}

// Put implements storage.KV.
func (k *KV) Put(_ context.Context, key string, b storage.Blob) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.PutCount++
	if k.PutErr != nil {
		return k.PutErr
	}
	b.Data = append([]byte(nil), b.Data...)
	b.UpdatedAt = time.Now()
	if k.blobs == nil {
		k.blobs = map[string]storage.Blob{}
	}
	k.blobs[key] = b
	return nil
}

// Delete implements storage.KV.
func (k *KV) Delete(_ context.Context, keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.DeleteCount++
	for _, key := range keys {
		delete(k.blobs, key)
	}
	return nil
}

// Close implements storage.KV.
func (k *KV) Close() error { return nil }

// Has reports whether key is stored.
func (k *KV) Has(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.blobs[key]
	return ok
}

var _ storage.KV = (*KV)(nil)
