package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrWong99/chronicles/pkg/provider/llm"
)

func TestFoldPrompt(t *testing.T) {
	got := foldPrompt(llm.CompletionRequest{
		SystemPrompt: "SYSTEM",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "USER"}},
	})
	if got != "SYSTEM\n\nUSER" {
		t.Errorf("foldPrompt = %q", got)
	}
}

func TestBuildConfig(t *testing.T) {
	gc := buildConfig(llm.CompletionRequest{
		Temperature: llm.Float64(0.8),
		TopK:        40,
		TopP:        0.95,
		MaxTokens:   1024,
		JSONMode:    true,
	})
	if gc.Temperature == nil || *gc.Temperature != float32(0.8) {
		t.Errorf("temperature = %v", gc.Temperature)
	}
	if gc.TopK == nil || *gc.TopK != 40 {
		t.Errorf("topK = %v", gc.TopK)
	}
	if gc.TopP == nil || *gc.TopP != float32(0.95) {
		t.Errorf("topP = %v", gc.TopP)
	}
	if gc.MaxOutputTokens != 1024 {
		t.Errorf("maxOutputTokens = %d", gc.MaxOutputTokens)
	}
	if gc.ResponseMIMEType != "application/json" {
		t.Errorf("mime = %q", gc.ResponseMIMEType)
	}

	empty := buildConfig(llm.CompletionRequest{})
	if empty.Temperature != nil || empty.TopK != nil || empty.MaxOutputTokens != 0 {
		t.Error("expected zero config for empty request")
	}
}

func TestComplete_HTTP(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"candidates":[{"content":{"role":"model","parts":[{"text":"{\"a\":"},{"text":"1}"}]}}],
			"usageMetadata":{"promptTokenCount":7,"candidatesTokenCount":3,"totalTokenCount":10}
		}`)
	}))
	defer srv.Close()

	p, err := New(context.Background(), "key", "gemini-1.5-flash", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "sys",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "act"}},
		JSONMode:     true,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"a":1}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 10 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}
	if !strings.Contains(gotPath, "gemini-1.5-flash:generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody == nil {
		t.Fatal("no request body captured")
	}
}

func TestComplete_NoMessages(t *testing.T) {
	p, err := New(context.Background(), "key", "gemini-1.5-flash")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestValidateKey_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	p, err := New(context.Background(), "bad", "gemini-1.5-flash", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ValidateKey(context.Background()); err == nil {
		t.Fatal("expected error for rejected key")
	}
}
