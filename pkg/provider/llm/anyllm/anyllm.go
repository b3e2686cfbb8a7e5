// Package anyllm narrates through github.com/mozilla-ai/any-llm-go, which
// covers the vendors without a dedicated adapter: Anthropic's hosted Claude
// models and a local Ollama server.
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"

	"github.com/MrWong99/chronicles/pkg/provider/llm"
)

// vendors maps the accepted vendor names to their any-llm-go constructors.
var vendors = map[string]func(...anyllmlib.Option) (anyllmlib.Provider, error){
	"anthropic": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anthropic.New(o...) },
	"ollama":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return ollama.New(o...) },
}

// Vendors lists the names New accepts, sorted.
func Vendors() []string {
	names := make([]string, 0, len(vendors))
	for n := range vendors {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Provider is an [llm.Provider] for one vendor and model.
type Provider struct {
	vendor  string
	backend anyllmlib.Provider
	model   string
}

var (
	_ llm.Provider     = (*Provider)(nil)
	_ llm.KeyValidator = (*Provider)(nil)
)

// New builds a provider for vendor and model. Without an API key option the
// vendor reads its usual environment variable; Ollama needs none and
// defaults to http://localhost:11434.
func New(vendor, model string, opts ...anyllmlib.Option) (*Provider, error) {
	vendor = strings.ToLower(strings.TrimSpace(vendor))
	ctor, ok := vendors[vendor]
	if !ok {
		return nil, fmt.Errorf("anyllm: unknown vendor %q (have %s)", vendor, strings.Join(Vendors(), ", "))
	}
	if model == "" {
		return nil, errors.New("anyllm: model is required")
	}
	backend, err := ctor(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s: %w", vendor, err)
	}
	return &Provider{vendor: vendor, backend: backend, model: model}, nil
}

// Complete sends one request. These vendors get JSON mode through the
// prompt, which always asks for it explicitly.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.params(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s completion: %w", p.vendor, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: %s returned no choices", p.vendor)
	}
	out := &llm.CompletionResponse{Content: resp.Choices[0].Message.ContentString()}
	if u := resp.Usage; u != nil {
		out.Usage = llm.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
	}
	return out, nil
}

// ValidateKey spends a one-token completion, the cheapest call every vendor
// here understands.
func (p *Provider) ValidateKey(ctx context.Context) error {
	_, err := p.Complete(ctx, llm.CompletionRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.CountMessageTokens(p.model, messages), nil
}

func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.CapabilitiesFor(p.model)
}

// params puts the system prompt first and leaves unset knobs nil so the
// vendor defaults apply.
func (p *Provider) params(req llm.CompletionRequest) anyllmlib.CompletionParams {
	msgs := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}
	out := anyllmlib.CompletionParams{Model: p.model, Messages: msgs}
	if req.Temperature != nil {
		t := *req.Temperature
		out.Temperature = &t
	}
	if req.MaxTokens > 0 {
		n := req.MaxTokens
		out.MaxTokens = &n
	}
	return out
}
