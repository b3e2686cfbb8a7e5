package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MrWong99/chronicles/internal/storage"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chronicles.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStore_PutGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, storage.KeyGame); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get missing = %v, want ErrNotFound", err)
	}

	if err := s.Put(ctx, storage.KeyGame, storage.Blob{Version: 1, Data: []byte(`{"a":1}`)}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, storage.KeyGame, storage.Blob{Version: 2, Data: []byte(`{"a":2}`)}); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	b, err := s.Get(ctx, storage.KeyGame)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Version != 2 || string(b.Data) != `{"a":2}` {
		t.Errorf("blob = %d %s", b.Version, b.Data)
	}
	if b.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestStore_DeleteAndPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronicles.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	_ = s.Put(ctx, storage.KeyGame, storage.Blob{Version: 1, Data: []byte("g")})
	_ = s.Put(ctx, storage.KeySettings, storage.Blob{Version: 1, Data: []byte("s")})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Get(ctx, storage.KeySettings); err != nil {
		t.Fatalf("settings not persisted: %v", err)
	}
	if err := s.Delete(ctx, storage.KeyGame, storage.KeySettings, "missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, k := range []string{storage.KeyGame, storage.KeySettings} {
		if _, err := s.Get(ctx, k); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Get(%q) after delete = %v", k, err)
		}
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:): %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	if err := s.Put(ctx, "k", storage.Blob{Version: 1, Data: []byte("v")}); err != nil {
		t.Fatal(err)
	}
	if b, err := s.Get(ctx, "k"); err != nil || string(b.Data) != "v" {
		t.Fatalf("Get = %v, %v", b, err)
	}
}
