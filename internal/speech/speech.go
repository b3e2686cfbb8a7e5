// Package speech voices narration and dialogue. A [Speaker] plays one
// utterance at a time; starting a new utterance or calling Stop silences the
// previous one.
package speech

import (
	"context"
	"strings"
)

// Utterance kinds, matching the narrative entry types that get voiced.
const (
	KindNarrative = "narrative"
	KindDialogue  = "dialogue"
	KindAction    = "action"
)

// Utterance is one passage to speak.
type Utterance struct {
	Text string
	Kind string
	// Speaker is the character talking, for dialogue.
	Speaker string
	// Rate is the player's base speech rate; 1.0 is normal.
	Rate float64
	// Voice is the player's preferred narration voice, if any.
	Voice string
}

// Speaker plays utterances.
type Speaker interface {
	// Speak plays u and blocks until it has finished, failed, been replaced
	// or ctx ends. Replacement and Stop are not errors.
	Speak(ctx context.Context, u Utterance) error

	// Stop silences the current utterance, if any.
	Stop()
}

// Nop is the Speaker used while speech is disabled.
type Nop struct{}

// Speak implements Speaker.
func (Nop) Speak(context.Context, Utterance) error { return nil }

// Stop implements Speaker.
func (Nop) Stop() {}

// Prosody is the pitch and rate an utterance is delivered at. Both are
// multipliers around 1.0.
type Prosody struct {
	Pitch float64
	Rate  float64
}

// legendProsody tunes the voices of well-known characters.
var legendProsody = map[string]Prosody{
	"Arthas Menethil":     {Pitch: 0.8, Rate: 0.9},
	"Jaina Proudmoore":    {Pitch: 1.1, Rate: 1.0},
	"Thrall":              {Pitch: 0.9, Rate: 0.95},
	"Sylvanas Windrunner": {Pitch: 1.0, Rate: 0.85},
	"Illidan Stormrage":   {Pitch: 0.7, Rate: 0.8},
	"Garrosh Hellscream":  {Pitch: 0.8, Rate: 1.1},
}

// ProsodyFor returns how u should sound. Attributed dialogue uses the
// character's tuning, or a slightly raised pitch for anyone else; all other
// passages use a neutral pitch. Rates scale u.Rate.
func ProsodyFor(u Utterance) Prosody {
	base := u.Rate
	if base <= 0 {
		base = 1
	}
	if u.Kind != KindDialogue || strings.TrimSpace(u.Speaker) == "" {
		return Prosody{Pitch: 1.0, Rate: base}
	}
	if p, ok := legendProsody[u.Speaker]; ok {
		return Prosody{Pitch: p.Pitch, Rate: base * p.Rate}
	}
	return Prosody{Pitch: 1.05, Rate: base}
}

var _ Speaker = Nop{}
