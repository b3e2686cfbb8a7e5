package voice

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// MatcherOption configures a [Matcher].
type MatcherOption func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a voice whose
// Double Metaphone codes overlap the answer. Default: 0.70.
func WithPhoneticThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score when no phonetic
// overlap exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) MatcherOption {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher maps a model's free-text voice answer onto one of the offered
// voice names. It is read-only after construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher returns a Matcher with the default thresholds.
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Resolve returns the offered voice that answer names.
//
// A voice matches when it contains the answer, or the answer contains the
// voice's base name (the part before " ("), compared case-insensitively. The
// first such voice wins. When none does, the voice that is phonetically or
// fuzzily closest to the answer is returned if it clears the thresholds.
func (m *Matcher) Resolve(answer string, voices []string) (string, bool) {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return "", false
	}
	for _, v := range voices {
		if strings.TrimSpace(v) == "" {
			continue
		}
		lv := strings.ToLower(v)
		if strings.Contains(lv, a) || strings.Contains(a, strings.ToLower(baseName(v))) {
			return v, true
		}
	}
	return m.closest(a, voices)
}

// baseName strips a trailing " (lang)" suffix.
func baseName(v string) string {
	if i := strings.Index(v, " ("); i >= 0 {
		return v[:i]
	}
	return v
}

func (m *Matcher) closest(answer string, voices []string) (string, bool) {
	tokens := strings.Fields(answer)
	inputCodes := codesForTokens(tokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, v := range voices {
		name := strings.ToLower(strings.TrimSpace(baseName(v)))
		if name == "" {
			continue
		}
		nameTokens := strings.Fields(name)
		score := bestJWScore(tokens, nameTokens, answer, name)

		if codesOverlap(inputCodes, codesForTokens(nameTokens)) {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = v, score, true
			}
		} else if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = v, score
		}
	}
	return best, best != ""
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity over the full strings,
// the space-stripped strings and every token pair.
func bestJWScore(inputTokens, nameTokens []string, input, name string) float64 {
	score := matchr.JaroWinkler(input, name, false)
	if len(inputTokens) > 1 || len(nameTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(nameTokens, ""), false); s > score {
			score = s
		}
	}
	for _, it := range inputTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(it, nt, false); s > score {
				score = s
			}
		}
	}
	return score
}
