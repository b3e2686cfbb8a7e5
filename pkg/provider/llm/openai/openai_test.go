package openai

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

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Error("expected error for empty api key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Error("expected error for empty model")
	}
}

func TestParams(t *testing.T) {
	p, err := New("sk-test", "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	params, err := p.params(llm.CompletionRequest{
		SystemPrompt: "You narrate Azeroth.",
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "I draw my sword."},
			{Role: llm.RoleAssistant, Content: "Steel rings."},
		},
		Temperature: llm.Float64(0.8),
		TopP:        0.95,
		TopK:        40,
		MaxTokens:   1024,
		JSONMode:    true,
	})
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if len(params.Messages) != 3 || params.Messages[0].OfSystem == nil ||
		params.Messages[1].OfUser == nil || params.Messages[2].OfAssistant == nil {
		t.Errorf("messages = %+v", params.Messages)
	}
	if params.ResponseFormat.OfJSONObject == nil {
		t.Error("json_object response format not requested")
	}
	if params.MaxTokens.Value != 1024 || params.TopP.Value != 0.95 || params.Temperature.Value != 0.8 {
		t.Errorf("sampling = max %d, top_p %v, temperature %v", params.MaxTokens.Value, params.TopP.Value, params.Temperature.Value)
	}

	if _, err := p.params(llm.CompletionRequest{Messages: []llm.Message{{Role: "tool", Content: "x"}}}); err == nil {
		t.Error("unknown role accepted")
	}
}

func TestComplete_HTTP(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization header = %q", r.Header.Get("Authorization"))
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"ok\":true}"}}],
			"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}
		}`)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "sys",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		JSONMode:     true,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"ok":true}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total tokens = %d, want 15", resp.Usage.TotalTokens)
	}
	rf, _ := gotBody["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v, want json_object", gotBody["response_format"])
	}
}

func TestValidateKey_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p, err := New("sk-bad", "gpt-4o-mini", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ValidateKey(context.Background()); err == nil {
		t.Fatal("expected error for rejected key")
	}
}

func TestCapabilities(t *testing.T) {
	p, _ := New("sk-test", "gpt-4o-mini")
	caps := p.Capabilities()
	if !caps.SupportsJSONMode {
		t.Error("expected JSON mode support")
	}
	if caps.MaxOutputTokens <= 0 {
		t.Error("expected MaxOutputTokens > 0")
	}
}
