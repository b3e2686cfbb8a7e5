// Package catalog lists the narrator backends the game knows about, with the
// models each one offers and the relative cost of using them.
package catalog

import (
	"slices"
	"sort"
)

// Provider identifiers.
const (
	Gemini    = "gemini"
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Ollama    = "ollama"
)

// Cost is a coarse price tier shown to players choosing a model.
type Cost string

const (
	CostLow    Cost = "low"
	CostMedium Cost = "medium"
	CostHigh   Cost = "high"
)

// ModelInfo describes one model in player-facing terms.
type ModelInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        Cost   `json:"cost"`
}

// ProviderInfo describes a narrator backend.
type ProviderInfo struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Models         []string             `json:"models"`
	ModelInfo      map[string]ModelInfo `json:"modelInfo"`
	DefaultModel   string               `json:"defaultModel"`
	RequiresAPIKey bool                 `json:"requiresApiKey"`
}

// HasModel reports whether model is listed for p.
func (p ProviderInfo) HasModel(model string) bool {
	return slices.Contains(p.Models, model)
}

type entry struct {
	id    string
	model ModelInfo
}

func build(id, name, def string, requiresKey bool, models []entry) ProviderInfo {
	info := ProviderInfo{
		ID:             id,
		Name:           name,
		ModelInfo:      make(map[string]ModelInfo, len(models)),
		DefaultModel:   def,
		RequiresAPIKey: requiresKey,
	}
	for _, m := range models {
		info.Models = append(info.Models, m.id)
		info.ModelInfo[m.id] = m.model
	}
	return info
}

var providers = map[string]ProviderInfo{
	Gemini: build(Gemini, "Google Gemini", "gemini-1.5-flash", true, []entry{
		{"gemini-1.5-flash", ModelInfo{"Gemini 1.5 Flash", "Fast responses, creative storytelling", CostLow}},
		{"gemini-1.5-pro", ModelInfo{"Gemini 1.5 Pro", "Deep intelligence, nuanced narratives", CostMedium}},
		{"gemini-1.0-pro", ModelInfo{"Gemini 1.0 Pro", "Reliable foundation model, stable performance", CostLow}},
		{"gemini-2.5-pro", ModelInfo{"Gemini 2.5 Pro", "Next-gen intelligence, advanced reasoning", CostHigh}},
		{"gemini-2.5-flash", ModelInfo{"Gemini 2.5 Flash", "Ultra-fast next-gen, enhanced creativity", CostMedium}},
		{"gemini-2.5-flash-lite-preview-06-17", ModelInfo{"Gemini 2.5 Flash Lite (Preview)", "Lightweight preview, experimental features", CostLow}},
	}),
	OpenAI: build(OpenAI, "OpenAI", "gpt-4o-mini", true, []entry{
		{"o3", ModelInfo{"o3", "Latest flagship model, exceptional reasoning", CostHigh}},
		{"o4-mini", ModelInfo{"o4 Mini", "Compact powerhouse, efficient performance", CostMedium}},
		{"gpt-4.1", ModelInfo{"GPT-4.1", "Enhanced capabilities, improved accuracy", CostHigh}},
		{"gpt-4.5", ModelInfo{"GPT-4.5 (Preview)", "Cutting-edge preview, advanced features", CostHigh}},
		{"gpt-4o", ModelInfo{"GPT-4o", "Advanced reasoning, rich narratives", CostHigh}},
		{"gpt-4.1-mini", ModelInfo{"GPT-4.1 Mini", "Balanced efficiency, solid performance", CostMedium}},
		{"gpt-4.1-nano", ModelInfo{"GPT-4.1 Nano", "Ultra-fast, lightweight responses", CostLow}},
		{"gpt-4o-mini", ModelInfo{"GPT-4o Mini", "Fast, affordable, good storytelling", CostLow}},
	}),
	Anthropic: build(Anthropic, "Anthropic Claude", "claude-3-5-haiku-latest", true, []entry{
		{"claude-3-5-haiku-latest", ModelInfo{"Claude 3.5 Haiku", "Quick, vivid scene writing", CostLow}},
		{"claude-3-7-sonnet-latest", ModelInfo{"Claude 3.7 Sonnet", "Careful pacing, strong character voice", CostMedium}},
		{"claude-opus-4-0", ModelInfo{"Claude Opus 4", "Richest prose, slowest and priciest", CostHigh}},
	}),
	Ollama: build(Ollama, "Ollama (local)", "llama3.1", false, []entry{
		{"llama3.1", ModelInfo{"Llama 3.1 8B", "Runs on your machine, no key needed", CostLow}},
		{"mistral-nemo", ModelInfo{"Mistral Nemo", "Local model with a larger context", CostLow}},
		{"qwen2.5", ModelInfo{"Qwen 2.5", "Local model, good at following JSON formats", CostLow}},
	}),
}

// Lookup returns the ProviderInfo for id.
func Lookup(id string) (ProviderInfo, bool) {
	p, ok := providers[id]
	return p, ok
}

// DefaultModel returns the default model for id, or "" for unknown ids.
func DefaultModel(id string) string {
	return providers[id].DefaultModel
}

// IDs returns every known provider id in sorted order.
func IDs() []string {
	ids := make([]string, 0, len(providers))
	for id := range providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
