package server

import (
	"net/http"
	"strings"

	"github.com/MrWong99/chronicles/internal/observe"
	"github.com/MrWong99/chronicles/pkg/provider/tts"
)

const msgNoSpeech = "speech is not configured on this server"

// maxSpeechChars bounds the text of one speech request.
const maxSpeechChars = 5000

// SpeechRequest is the body of POST /api/speech.
type SpeechRequest struct {
	Text  string      `json:"text"`
	Voice SpeechVoice `json:"voice"`
}

// SpeechVoice selects and shapes the voice of a speech request.
type SpeechVoice struct {
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Speed float64 `json:"speed,omitempty"`
	Pitch float64 `json:"pitch,omitempty"`
}

// VoiceInfo is one entry of GET /api/voices.
type VoiceInfo struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Provider string            `json:"provider,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WithSpeech serves /api/speech and /api/voices from p. Without it both
// routes answer 503.
func WithSpeech(p tts.Provider) Option {
	return func(s *Server) { s.speech = p }
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		writeError(w, http.StatusServiceUnavailable, msgNoSpeech)
		return
	}
	voices, err := s.speech.ListVoices(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("list voices failed", "err", err)
		writeError(w, http.StatusBadGateway, "voice list unavailable")
		return
	}
	out := make([]VoiceInfo, len(voices))
	for i, v := range voices {
		out[i] = VoiceInfo{ID: v.ID, Name: v.Name, Provider: v.Provider, Metadata: v.Metadata}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSpeech streams raw PCM for the requested text. Once the first chunk
// is written a synthesis failure can only end the body early.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if s.speech == nil {
		writeError(w, http.StatusServiceUnavailable, msgNoSpeech)
		return
	}
	var req SpeechRequest
	if !decode(w, r, &req) {
		return
	}
	text := strings.TrimSpace(req.Text)
	switch {
	case text == "":
		writeError(w, http.StatusBadRequest, "text is required")
		return
	case req.Voice.ID == "":
		writeError(w, http.StatusBadRequest, "voice.id is required")
		return
	case len(text) > maxSpeechChars:
		writeError(w, http.StatusRequestEntityTooLarge, "text is too long")
		return
	}

	in := make(chan string, 1)
	in <- text
	close(in)
	audio, err := s.speech.SynthesizeStream(r.Context(), in, tts.VoiceProfile{
		ID:          req.Voice.ID,
		Name:        req.Voice.Name,
		SpeedFactor: req.Voice.Speed,
		PitchShift:  req.Voice.Pitch,
	})
	if err != nil {
		observe.Logger(r.Context()).Error("speech synthesis failed", "voice", req.Voice.ID, "err", err)
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", "audio/pcm")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	var broken bool
	for chunk := range audio {
		if broken {
			continue
		}
		if _, err := w.Write(chunk); err != nil {
			broken = true
			continue
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
