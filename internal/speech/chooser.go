package speech

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/chronicles/internal/resilience"
	"github.com/MrWong99/chronicles/internal/voice"
	"github.com/MrWong99/chronicles/pkg/provider/tts"
)

// Recommender asks the narrator to cast a voice. *api.Client implements it.
type Recommender interface {
	SelectVoice(ctx context.Context, req voice.Request) (string, error)
}

// Preferred voice names, in order, when nothing better is known.
var (
	dialoguePreference  = []string{"Samantha", "Alex", "Victoria", "Daniel"}
	narrativePreference = []string{"David", "Samantha", "Daniel", "Aaron"}
)

// ChooserOption is a functional option for [NewChooser].
type ChooserOption func(*Chooser)

// WithRecommender enables narrator casting for dialogue. Calls go through
// limiter when it is non-nil.
func WithRecommender(r Recommender, limiter *resilience.RateLimiter) ChooserOption {
	return func(c *Chooser) {
		c.rec = r
		c.limiter = limiter
	}
}

// WithScenario supplies the scenario title sent with casting requests.
func WithScenario(fn func() string) ChooserOption {
	return func(c *Chooser) { c.scenario = fn }
}

// Chooser picks a TTS voice for each utterance. Casting results are cached
// per speaker until [Chooser.Reset].
type Chooser struct {
	provider tts.Provider
	rec      Recommender
	limiter  *resilience.RateLimiter
	scenario func() string
	cache    *voice.Cache

	mu     sync.Mutex
	voices []tts.VoiceProfile
}

// NewChooser returns a Chooser over the voices p offers.
func NewChooser(p tts.Provider, opts ...ChooserOption) *Chooser {
	c := &Chooser{provider: p, cache: voice.NewCache()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Reset forgets every cast voice. Call it when a new game starts.
func (c *Chooser) Reset() { c.cache.Reset() }

// Choose returns the voice for u. ok is false when the provider offers no
// voices at all.
func (c *Chooser) Choose(ctx context.Context, u Utterance) (tts.VoiceProfile, bool) {
	voices, err := c.list(ctx)
	if err != nil {
		slog.Warn("speech: list voices", "err", err)
	}
	if len(voices) == 0 {
		return tts.VoiceProfile{}, false
	}
	if u.Kind == KindDialogue && u.Speaker != "" {
		if v, ok := c.cast(ctx, voices, u.Speaker); ok {
			return v, true
		}
		return preferred(voices, dialoguePreference), true
	}
	if u.Voice != "" {
		if v, ok := byName(voices, u.Voice); ok {
			return v, true
		}
	}
	return preferred(voices, narrativePreference), true
}

// cast returns the cached or newly recommended voice for speaker.
func (c *Chooser) cast(ctx context.Context, voices []tts.VoiceProfile, speaker string) (tts.VoiceProfile, bool) {
	if name, ok := c.cache.Get(speaker); ok {
		if v, ok := byName(voices, name); ok {
			return v, true
		}
	}
	if c.rec == nil {
		return tts.VoiceProfile{}, false
	}
	req := voice.Request{Character: speaker, AvailableVoices: labels(voices), Scenario: "general"}
	if c.scenario != nil {
		if s := c.scenario(); s != "" {
			req.Scenario = s
		}
	}
	ask := func(ctx context.Context) (string, error) { return c.rec.SelectVoice(ctx, req) }
	var answer string
	var err error
	if c.limiter != nil {
		answer, err = resilience.Submit(ctx, c.limiter, ask)
	} else {
		answer, err = ask(ctx)
	}
	if err != nil {
		slog.Warn("speech: voice recommendation failed", "speaker", speaker, "err", err)
		return tts.VoiceProfile{}, false
	}
	name, _, _ := strings.Cut(answer, " (")
	for _, v := range voices {
		if name != "" && strings.Contains(v.Name, name) {
			c.cache.Put(speaker, v.Name)
			return v, true
		}
	}
	return tts.VoiceProfile{}, false
}

func (c *Chooser) list(ctx context.Context) ([]tts.VoiceProfile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.voices != nil {
		return c.voices, nil
	}
	vs, err := c.provider.ListVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech: %w", err)
	}
	c.voices = vs
	return vs, nil
}

// labels formats voices as "Name (accent)" the way casting prompts list them.
func labels(voices []tts.VoiceProfile) []string {
	out := make([]string, len(voices))
	for i, v := range voices {
		lang := v.Metadata["accent"]
		if lang == "" {
			lang = v.Metadata["language"]
		}
		if lang == "" {
			out[i] = v.Name
			continue
		}
		out[i] = fmt.Sprintf("%s (%s)", v.Name, lang)
	}
	return out
}

func byName(voices []tts.VoiceProfile, name string) (tts.VoiceProfile, bool) {
	for _, v := range voices {
		if v.Name == name {
			return v, true
		}
	}
	return tts.VoiceProfile{}, false
}

func preferred(voices []tts.VoiceProfile, names []string) tts.VoiceProfile {
	for _, n := range names {
		for _, v := range voices {
			if strings.Contains(v.Name, n) {
				return v
			}
		}
	}
	return voices[0]
}
