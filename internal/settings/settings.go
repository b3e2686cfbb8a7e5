// Package settings holds the player's narrator and presentation preferences
// and persists them as their own versioned blob.
package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/chronicles/internal/catalog"
)

// ContextDetail selects how much prompt context the narrator sends, trading
// token cost for richer scenes.
type ContextDetail string

const (
	Minimal  ContextDetail = "minimal"
	Standard ContextDetail = "standard"
	Rich     ContextDetail = "rich"
)

// Valid reports whether d is a known tier.
func (d ContextDetail) Valid() bool {
	return d == Minimal || d == Standard || d == Rich
}

// LLM configures the narrator backend and its generation parameters.
type LLM struct {
	Provider      string        `json:"provider"`
	Model         string        `json:"model"`
	APIKey        string        `json:"apiKey"`
	Temperature   float64       `json:"temperature"`
	MaxTokens     int           `json:"maxTokens"`
	HistoryLength int           `json:"historyLength"`
	ContextDetail ContextDetail `json:"contextDetail"`
}

// UI configures presentation: speech, typewriter reveal and music.
type UI struct {
	TTSEnabled        bool    `json:"ttsEnabled"`
	SpeechRate        float64 `json:"speechRate"`
	SelectedVoice     string  `json:"selectedVoice"`
	TypewriterEnabled bool    `json:"typewriterEnabled"`
	TypewriterSpeed   int     `json:"typewriterSpeed"`
	MusicEnabled      bool    `json:"musicEnabled"`
	MusicVolume       float64 `json:"musicVolume"`
}

// Settings is the full persisted preference set.
type Settings struct {
	LLM LLM `json:"llm"`
	UI  UI  `json:"ui"`
}

// DefaultLLM returns the narrator defaults.
func DefaultLLM() LLM {
	return LLM{
		Provider:      catalog.Gemini,
		Model:         "gemini-1.5-flash",
		Temperature:   0.8,
		MaxTokens:     1024,
		HistoryLength: 5,
		ContextDetail: Standard,
	}
}

// DefaultUI returns the presentation defaults.
func DefaultUI() UI {
	return UI{
		SpeechRate:        1.0,
		TypewriterEnabled: true,
		TypewriterSpeed:   15,
		MusicEnabled:      true,
		MusicVolume:       0.3,
	}
}

// Defaults returns the default Settings.
func Defaults() Settings {
	return Settings{LLM: DefaultLLM(), UI: DefaultUI()}
}

// SetProvider switches the narrator backend and resets the model to that
// backend's default.
func (l *LLM) SetProvider(id string) error {
	info, ok := catalog.Lookup(id)
	if !ok {
		return fmt.Errorf("settings: unknown provider %q", id)
	}
	l.Provider = id
	l.Model = info.DefaultModel
	return nil
}

// IsConfigured reports whether an API key has been entered.
func (l LLM) IsConfigured() bool {
	return strings.TrimSpace(l.APIKey) != ""
}

// Validate checks that every field is in range. All violations are reported.
func (s Settings) Validate() error {
	var errs []error
	if _, ok := catalog.Lookup(s.LLM.Provider); !ok {
		errs = append(errs, fmt.Errorf("llm.provider %q is not known", s.LLM.Provider))
	}
	if strings.TrimSpace(s.LLM.Model) == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %v must be within [0, 2]", s.LLM.Temperature))
	}
	if s.LLM.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("llm.maxTokens %d must not be negative", s.LLM.MaxTokens))
	}
	if s.LLM.HistoryLength < 0 {
		errs = append(errs, fmt.Errorf("llm.historyLength %d must not be negative", s.LLM.HistoryLength))
	}
	if !s.LLM.ContextDetail.Valid() {
		errs = append(errs, fmt.Errorf("llm.contextDetail %q is not one of minimal, standard, rich", s.LLM.ContextDetail))
	}
	if s.UI.SpeechRate <= 0 || s.UI.SpeechRate > 4 {
		errs = append(errs, fmt.Errorf("ui.speechRate %v must be within (0, 4]", s.UI.SpeechRate))
	}
	if s.UI.TypewriterSpeed < 0 {
		errs = append(errs, fmt.Errorf("ui.typewriterSpeed %d must not be negative", s.UI.TypewriterSpeed))
	}
	if s.UI.MusicVolume < 0 || s.UI.MusicVolume > 1 {
		errs = append(errs, fmt.Errorf("ui.musicVolume %v must be within [0, 1]", s.UI.MusicVolume))
	}
	return errors.Join(errs...)
}
