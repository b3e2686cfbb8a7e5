package llm

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// perMessageOverhead approximates the role and framing tokens each chat
// message costs on top of its content.
const perMessageOverhead = 4

// fallbackEncoding is used for models tiktoken does not know (Gemini, Claude).
// Its counts are close enough for budget checks.
const fallbackEncoding = "cl100k_base"

var (
	encMu    sync.Mutex
	encCache = map[string]*tiktoken.Tiktoken{}
)

// EstimateTokens returns ceil(chars/4), the character heuristic used when no
// tokenizer is available. Characters are runes, not bytes.
func EstimateTokens(s string) int {
	return (utf8.RuneCountInString(s) + 3) / 4
}

// CountMessageTokens counts the tokens messages would consume for model. It
// uses a tiktoken encoding when one can be loaded and falls back to the
// character heuristic otherwise, so it never returns an error for a
// tokenizer that is unavailable offline.
func CountMessageTokens(model string, messages []Message) int {
	enc := encodingFor(model)
	total := 0
	for _, m := range messages {
		if enc != nil {
			total += len(enc.Encode(m.Content, nil, nil))
		} else {
			total += EstimateTokens(m.Content)
		}
		total += perMessageOverhead
	}
	return total
}

// encodingFor returns a cached encoding for model, or nil if none can be
// loaded. Failures are cached too so the BPE download is not retried per call.
func encodingFor(model string) *tiktoken.Tiktoken {
	encMu.Lock()
	defer encMu.Unlock()
	if enc, ok := encCache[model]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			enc = nil
		}
	}
	encCache[model] = enc
	return enc
}
