// Package gemini provides an LLM provider backed by the Google Gemini API
// through google.golang.org/genai.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/MrWong99/chronicles/pkg/provider/llm"
)

// Provider implements llm.Provider using the Gemini generateContent API.
type Provider struct {
	client *genai.Client
	model  string
}

type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default Gemini API endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a Gemini Provider. ctx is only used while setting up the
// client.
func New(ctx context.Context, apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("gemini: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}
	if cfg.timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.timeout}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

// Complete implements llm.Provider. The system prompt and every message are
// folded into a single user turn separated by blank lines.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("gemini: request has no messages")
	}

	res, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(foldPrompt(req)), buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini: no content in response")
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	out := &llm.CompletionResponse{Content: sb.String()}
	if u := res.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// ValidateKey implements llm.KeyValidator by listing a single model.
func (p *Provider) ValidateKey(ctx context.Context) error {
	if _, err := p.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		return fmt.Errorf("gemini: list models: %w", err)
	}
	return nil
}

// CountTokens implements llm.Provider.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.CountMessageTokens(p.model, messages), nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.CapabilitiesFor(p.model)
}

func foldPrompt(req llm.CompletionRequest) string {
	parts := make([]string, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		parts = append(parts, req.SystemPrompt)
	}
	for _, m := range req.Messages {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n")
}

func buildConfig(req llm.CompletionRequest) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		gc.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.TopK > 0 {
		gc.TopK = genai.Ptr(float32(req.TopK))
	}
	if req.TopP > 0 {
		gc.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONMode {
		gc.ResponseMIMEType = "application/json"
	}
	return gc
}

var (
	_ llm.Provider     = (*Provider)(nil)
	_ llm.KeyValidator = (*Provider)(nil)
)
