// Package llm defines the Provider interface for the text-generation backends
// that narrate game turns.
//
// A provider wraps a remote or local model API (Gemini, OpenAI, Anthropic, a
// local Ollama instance) and exposes one blocking completion call plus token
// accounting, so the narrator can stay vendor-agnostic.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
)

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically from
	// the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction. Providers without a
	// dedicated system slot fold it into the first user message.
	SystemPrompt string

	// Temperature controls output randomness in the range [0.0, 2.0]. Nil means
	// the provider default.
	Temperature *float64

	// MaxTokens caps the number of completion tokens. Zero means provider default.
	MaxTokens int

	// TopK and TopP are sampling controls honoured by providers that support
	// them. Zero means unset.
	TopK float64
	TopP float64

	// JSONMode asks the backend to constrain its output to a single JSON object.
	JSONMode bool
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the model's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many tokens messages would consume. The result
	// need not be exact but should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata about the configured model.
	Capabilities() ModelCapabilities
}

// KeyValidator is implemented by providers that can cheaply check whether
// their credentials are accepted, without generating any content.
type KeyValidator interface {
	ValidateKey(ctx context.Context) error
}

// Float64 returns a pointer to v. Handy for CompletionRequest.Temperature.
func Float64(v float64) *float64 { return &v }
