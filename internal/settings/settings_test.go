package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/chronicles/internal/storage"
	"github.com/MrWong99/chronicles/internal/storage/mock"
)

func TestDefaults(t *testing.T) {
	s := Defaults()
	if s.LLM.Provider != "gemini" || s.LLM.Model != "gemini-1.5-flash" {
		t.Errorf("llm provider/model = %s/%s", s.LLM.Provider, s.LLM.Model)
	}
	if s.LLM.Temperature != 0.8 || s.LLM.MaxTokens != 1024 || s.LLM.HistoryLength != 5 || s.LLM.ContextDetail != Standard {
		t.Errorf("llm defaults = %+v", s.LLM)
	}
	if s.LLM.APIKey != "" || s.LLM.IsConfigured() {
		t.Error("defaults must not be configured")
	}
	if s.UI.TTSEnabled || !s.UI.TypewriterEnabled || s.UI.TypewriterSpeed != 15 || s.UI.MusicVolume != 0.3 || s.UI.SpeechRate != 1.0 {
		t.Errorf("ui defaults = %+v", s.UI)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestSetProvider_ResetsModel(t *testing.T) {
	l := DefaultLLM()
	l.Model = "gemini-2.5-pro"
	if err := l.SetProvider("openai"); err != nil {
		t.Fatal(err)
	}
	if l.Provider != "openai" || l.Model != "gpt-4o-mini" {
		t.Errorf("after SetProvider = %s/%s", l.Provider, l.Model)
	}
	if err := l.SetProvider("skynet"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if l.Provider != "openai" {
		t.Error("failed SetProvider must not change the provider")
	}
}

func TestIsConfigured(t *testing.T) {
	l := DefaultLLM()
	l.APIKey = "   "
	if l.IsConfigured() {
		t.Error("blank key must not count as configured")
	}
	l.APIKey = "AIza-test"
	if !l.IsConfigured() {
		t.Error("non-blank key must count as configured")
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	s := Defaults()
	s.LLM.Temperature = 3
	s.LLM.ContextDetail = "verbose"
	s.UI.MusicVolume = 2
	err := s.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"temperature", "contextDetail", "musicVolume"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestStore_LoadUpdatePersist(t *testing.T) {
	ctx := context.Background()
	kv := mock.New()

	s, err := Load(ctx, kv)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Get() != Defaults() {
		t.Error("empty store should load defaults")
	}

	err = s.Update(ctx, func(st *Settings) error {
		st.LLM.APIKey = "sk-test"
		return st.LLM.SetProvider("openai")
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := s.LLM(); got.Provider != "openai" || got.APIKey != "sk-test" {
		t.Errorf("LLM = %+v", got)
	}

	reloaded, err := Load(ctx, kv)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.LLM().Model != "gpt-4o-mini" {
		t.Errorf("reloaded model = %q", reloaded.LLM().Model)
	}
}

func TestStore_UpdateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	kv := mock.New()
	s, _ := Load(ctx, kv)

	err := s.Update(ctx, func(st *Settings) error {
		st.LLM.Temperature = -1
		return nil
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if s.LLM().Temperature != 0.8 {
		t.Error("rejected update must not change settings")
	}
	if kv.Has(storage.KeySettings) {
		t.Error("rejected update must not be persisted")
	}

	errBoom := errors.New("boom")
	if err := s.Update(ctx, func(*Settings) error { return errBoom }); !errors.Is(err, errBoom) {
		t.Errorf("Update = %v, want %v", err, errBoom)
	}
}

func TestLoad_BadBlobsFallBack(t *testing.T) {
	ctx := context.Background()
	good, _ := json.Marshal(Defaults())
	tests := []struct {
		name string
		blob storage.Blob
	}{
		{"future version", storage.Blob{Version: 99, Data: good}},
		{"corrupt", storage.Blob{Version: Version, Data: []byte("{nope")}},
		{"invalid values", storage.Blob{Version: Version, Data: []byte(`{"llm":{"provider":"skynet"}}`)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kv := mock.New()
			_ = kv.Put(ctx, storage.KeySettings, tc.blob)
			s, err := Load(ctx, kv)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if s.Get() != Defaults() {
				t.Errorf("got %+v, want defaults", s.Get())
			}
		})
	}
}

func TestResetToDefaults(t *testing.T) {
	ctx := context.Background()
	s, _ := Load(ctx, mock.New())
	_ = s.Update(ctx, func(st *Settings) error { st.UI.TTSEnabled = true; return nil })
	if err := s.ResetToDefaults(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Get() != Defaults() {
		t.Error("ResetToDefaults did not restore defaults")
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	kv := mock.New()
	s, _ := Load(ctx, kv)
	_ = s.Update(ctx, func(st *Settings) error { st.LLM.APIKey = "sk-live"; return nil })
	if !kv.Has(storage.KeySettings) {
		t.Fatal("settings were not persisted")
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if kv.Has(storage.KeySettings) {
		t.Error("settings blob still present after Clear")
	}
	if s.Get() != Defaults() {
		t.Errorf("got %+v, want defaults", s.Get())
	}
}
