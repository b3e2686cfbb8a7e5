// Package tts is the speech seam: narration and NPC lines go in as text
// fragments, raw PCM comes out while the passage is still being voiced.
// Implementations are safe for concurrent use.
package tts

import "context"

// Provider synthesises speech.
type Provider interface {
	// SynthesizeStream reads fragments from text until it is closed and
	// returns the audio as it arrives. The audio channel is closed at the end
	// of the passage, on failure or when ctx ends, and must be drained. An
	// error means no stream was started.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// ListVoices returns the voices the backend offers.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}

// VoiceProfile selects a voice and its delivery.
type VoiceProfile struct {
	ID       string
	Name     string
	Provider string

	// SpeedFactor scales the speaking rate around 1.0. Zero leaves the
	// backend default.
	SpeedFactor float64
	// PitchShift moves the pitch in semitone-like steps within [-10, 10].
	// Backends without pitch control ignore it.
	PitchShift float64

	// Metadata carries backend labels such as gender, age and accent, which
	// voice casting matches against.
	Metadata map[string]string
}
