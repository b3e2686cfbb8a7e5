// Package voice picks a speech voice for a story character by asking the
// narrator model and mapping its answer onto the voices the client offers.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/chronicles/internal/narrator"
	"github.com/MrWong99/chronicles/internal/observe"
)

// Generation parameters for the recommendation call.
const (
	maxOutputTokens = 50
	temperature     = 0.3
)

var (
	// ErrNoRecommendation is returned when the model answers with nothing.
	ErrNoRecommendation = errors.New("voice: no voice recommendation received")

	// ErrNoVoices is returned when the request offers no voices.
	ErrNoVoices = errors.New("voice: no available voices")
)

// Request is the body of a voice selection call.
type Request struct {
	Character       string   `json:"character"`
	AvailableVoices []string `json:"availableVoices"`
	Scenario        string   `json:"scenario"`
}

// Response is the reply to a voice selection call.
type Response struct {
	RecommendedVoice string `json:"recommendedVoice"`
}

// TextGenerator is the narrator capability voice selection needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, opts narrator.TextOptions) (string, error)
}

// Selector asks a [TextGenerator] to cast a voice.
type Selector struct {
	matcher *Matcher
}

// NewSelector returns a Selector using m, or a default [Matcher] when m is nil.
func NewSelector(m *Matcher) *Selector {
	if m == nil {
		m = NewMatcher()
	}
	return &Selector{matcher: m}
}

// Select returns the voice the model recommends for req.Character. An answer
// that names none of the offered voices yields the first offered voice.
func (s *Selector) Select(ctx context.Context, gen TextGenerator, req Request) (string, error) {
	if len(req.AvailableVoices) == 0 {
		return "", ErrNoVoices
	}
	temp := temperature
	answer, err := gen.GenerateText(ctx, Prompt(req.Character, req.Scenario, req.AvailableVoices), narrator.TextOptions{
		MaxOutputTokens: maxOutputTokens,
		Temperature:     &temp,
	})
	if errors.Is(err, narrator.ErrEmptyResponse) {
		return "", ErrNoRecommendation
	}
	if err != nil {
		return "", fmt.Errorf("voice: generate: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrNoRecommendation
	}
	if v, ok := s.matcher.Resolve(answer, req.AvailableVoices); ok {
		return v, nil
	}
	observe.Logger(ctx).Warn("voice: recommendation not offered, using fallback",
		"answer", answer,
		"fallback", req.AvailableVoices[0],
	)
	return req.AvailableVoices[0], nil
}

// Prompt builds the casting prompt for character.
func Prompt(character, scenario string, voices []string) string {
	return fmt.Sprintf(`You are an expert voice director for World of Warcraft characters. Your task is to select the most appropriate voice from the available options for the character "%[1]s" in the "%[2]s" scenario.

Character: %[1]s
Available Voices: %[3]s

Consider the character's:
- Race and cultural background
- Gender and age
- Personality traits and demeanor
- Social status and role
- Speaking style in WoW lore

Voice Selection Criteria:
- For male characters: Look for deeper, more masculine voices
- For female characters: Look for higher, more feminine voices
- For authoritative characters: Choose voices that sound commanding
- For mystical characters: Prefer voices with ethereal or mysterious qualities
- For aggressive characters: Select voices with intensity
- For wise characters: Choose voices that sound experienced

Available voices include various accents and tones. Select the single best match.

Respond with ONLY the exact voice name from the list, nothing else. Do not explain your choice.`, character, scenario, strings.Join(voices, ", "))
}

// Cache remembers the voice chosen per speaker for the length of a game.
type Cache struct {
	mu     sync.Mutex
	voices map[string]string
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{voices: make(map[string]string)}
}

// Get returns the cached voice for speaker.
func (c *Cache) Get(speaker string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.voices[speaker]
	return v, ok
}

// Put records voice for speaker.
func (c *Cache) Put(speaker, voice string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voices[speaker] = voice
}

// Reset forgets every choice. It is called when a new game starts.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.voices)
}
