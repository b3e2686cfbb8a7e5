package tui

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/chronicles/internal/catalog"
	"github.com/MrWong99/chronicles/internal/settings"
)

// field is one row of the settings screen.
type field int

const (
	fieldNone field = iota - 1
	fieldProvider
	fieldModel
	fieldAPIKey
	fieldTemperature
	fieldMaxTokens
	fieldHistory
	fieldDetail
	fieldTypewriter
	fieldTypewriterSpeed
	fieldTTS
	fieldSpeechRate
	fieldVoice
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldProvider:        "Provider",
	fieldModel:           "Model",
	fieldAPIKey:          "API key",
	fieldTemperature:     "Creativity",
	fieldMaxTokens:       "Response length",
	fieldHistory:         "Memory (turns)",
	fieldDetail:          "Context detail",
	fieldTypewriter:      "Typewriter",
	fieldTypewriterSpeed: "Typewriter delay",
	fieldTTS:             "Speech",
	fieldSpeechRate:      "Speech rate",
	fieldVoice:           "Narrator voice",
}

var details = []settings.ContextDetail{settings.Minimal, settings.Standard, settings.Rich}

// typed reports whether f is edited through the text input.
func (f field) typed() bool { return f == fieldAPIKey || f == fieldVoice }

func fieldValue(s settings.Settings, f field) string {
	switch f {
	case fieldProvider:
		if info, ok := catalog.Lookup(s.LLM.Provider); ok {
			return info.Name
		}
		return s.LLM.Provider
	case fieldModel:
		return s.LLM.Model
	case fieldAPIKey:
		return maskKey(s.LLM.APIKey)
	case fieldTemperature:
		return fmt.Sprintf("%.1f", s.LLM.Temperature)
	case fieldMaxTokens:
		return fmt.Sprintf("%d tokens", s.LLM.MaxTokens)
	case fieldHistory:
		return fmt.Sprint(s.LLM.HistoryLength)
	case fieldDetail:
		return string(s.LLM.ContextDetail)
	case fieldTypewriter:
		return onOff(s.UI.TypewriterEnabled)
	case fieldTypewriterSpeed:
		return fmt.Sprintf("%d ms", s.UI.TypewriterSpeed)
	case fieldTTS:
		return onOff(s.UI.TTSEnabled)
	case fieldSpeechRate:
		return fmt.Sprintf("%.1fx", s.UI.SpeechRate)
	case fieldVoice:
		if s.UI.SelectedVoice == "" {
			return "automatic"
		}
		return s.UI.SelectedVoice
	}
	return ""
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func maskKey(k string) string {
	k = strings.TrimSpace(k)
	switch {
	case k == "":
		return "not set"
	case len(k) <= 4:
		return strings.Repeat("•", len(k))
	}
	return strings.Repeat("•", 8) + k[len(k)-4:]
}

// adjust returns the change that moves f one step in dir (-1 or 1), or nil
// when f is not stepped.
func adjust(f field, dir int) func(*settings.Settings) error {
	step := func(v, by, lo, hi float64) float64 {
		return math.Round(min(hi, max(lo, v+by*float64(dir)))*10) / 10
	}
	switch f {
	case fieldProvider:
		return func(s *settings.Settings) error {
			return s.LLM.SetProvider(cycle(catalog.IDs(), s.LLM.Provider, dir))
		}
	case fieldModel:
		return func(s *settings.Settings) error {
			info, ok := catalog.Lookup(s.LLM.Provider)
			if !ok || len(info.Models) == 0 {
				return nil
			}
			s.LLM.Model = cycle(info.Models, s.LLM.Model, dir)
			return nil
		}
	case fieldTemperature:
		return func(s *settings.Settings) error {
			s.LLM.Temperature = step(s.LLM.Temperature, 0.1, 0, 2)
			return nil
		}
	case fieldMaxTokens:
		return func(s *settings.Settings) error {
			s.LLM.MaxTokens = min(8192, max(128, s.LLM.MaxTokens+128*dir))
			return nil
		}
	case fieldHistory:
		return func(s *settings.Settings) error {
			s.LLM.HistoryLength = min(20, max(1, s.LLM.HistoryLength+dir))
			return nil
		}
	case fieldDetail:
		return func(s *settings.Settings) error {
			s.LLM.ContextDetail = cycle(details, s.LLM.ContextDetail, dir)
			return nil
		}
	case fieldTypewriter:
		return func(s *settings.Settings) error {
			s.UI.TypewriterEnabled = !s.UI.TypewriterEnabled
			return nil
		}
	case fieldTypewriterSpeed:
		return func(s *settings.Settings) error {
			s.UI.TypewriterSpeed = min(100, max(0, s.UI.TypewriterSpeed+5*dir))
			return nil
		}
	case fieldTTS:
		return func(s *settings.Settings) error {
			s.UI.TTSEnabled = !s.UI.TTSEnabled
			return nil
		}
	case fieldSpeechRate:
		return func(s *settings.Settings) error {
			s.UI.SpeechRate = step(s.UI.SpeechRate, 0.1, 0.5, 2)
			return nil
		}
	}
	return nil
}

// cycle returns the element dir steps away from cur in list, wrapping.
// An unknown cur starts from the first element.
func cycle[T comparable](list []T, cur T, dir int) T {
	i := slices.Index(list, cur)
	if i < 0 {
		return list[0]
	}
	return list[(i+dir+len(list))%len(list)]
}

func (m *model) openSettings() {
	if m.screen != screenSettings {
		m.back = m.screen
	}
	m.screen = screenSettings
	m.cursor = 0
	m.editing = fieldNone
	m.input.Blur()
}

func (m *model) leaveSettings() {
	m.editing = fieldNone
	m.screen = m.back
	m.cursor = 0
	if m.back == screenGame {
		m.input.Reset()
		m.input.EchoMode = textinput.EchoNormal
		m.input.Placeholder = "What do you do? (1-9 picks a choice, /help for commands)"
		m.input.Focus()
	}
}

func (m *model) settingsKey(msg tea.KeyMsg) tea.Cmd {
	if m.editing != fieldNone {
		return m.editKey(msg)
	}
	f := field(m.cursor)
	switch msg.String() {
	case "esc", "q":
		m.leaveSettings()
	case "up", "k":
		m.cursor = (m.cursor + int(fieldCount) - 1) % int(fieldCount)
	case "down", "j":
		m.cursor = (m.cursor + 1) % int(fieldCount)
	case "left", "h", "-":
		return m.change(adjust(f, -1))
	case "right", "l", "+", " ":
		return m.change(adjust(f, 1))
	case "enter":
		if f.typed() {
			m.beginEdit(f)
			return nil
		}
		return m.change(adjust(f, 1))
	case "r":
		m.busy = true
		return m.run(opSettings, m.cfg.Settings.ResetToDefaults)
	}
	return nil
}

func (m *model) change(fn func(*settings.Settings) error) tea.Cmd {
	if fn == nil {
		return nil
	}
	store := m.cfg.Settings
	m.clearStatus()
	return m.run(opSettings, func(ctx context.Context) error { return store.Update(ctx, fn) })
}

func (m *model) beginEdit(f field) {
	m.editing = f
	m.input.Reset()
	if f == fieldAPIKey {
		m.input.EchoMode = textinput.EchoPassword
		m.input.Placeholder = "Paste your API key (empty clears it)"
	} else {
		m.input.EchoMode = textinput.EchoNormal
		m.input.SetValue(m.cfg.Settings.Get().UI.SelectedVoice)
		m.input.Placeholder = "Voice name (empty picks automatically)"
	}
	m.input.Focus()
}

func (m *model) editKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.editing = fieldNone
		m.input.Blur()
		return nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		f := m.editing
		m.editing = fieldNone
		m.input.Reset()
		m.input.Blur()
		if f == fieldVoice {
			return m.change(func(s *settings.Settings) error {
				s.UI.SelectedVoice = value
				return nil
			})
		}
		return m.submitKey(value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *model) submitKey(key string) tea.Cmd {
	if key == "" || m.cfg.Keys == nil {
		return m.storeKey(key)
	}
	m.busy = true
	m.setStatus("Checking the key with the narrator...", false)
	keys, ctx, provider := m.cfg.Keys, m.ctx, m.cfg.Settings.LLM().Provider
	return func() tea.Msg {
		ok, err := keys.ValidateKey(ctx, provider, key)
		return keyCheckedMsg{key: key, ok: ok, err: err}
	}
}

func (m *model) keyChecked(msg keyCheckedMsg) tea.Cmd {
	m.busy = false
	switch {
	case msg.err != nil:
		m.setStatus("Could not check the key, saved anyway: "+msg.err.Error(), true)
	case !msg.ok:
		m.setStatus("The provider rejected that key.", true)
		return nil
	default:
		m.setStatus("Key accepted.", false)
	}
	return m.storeKey(msg.key)
}

func (m *model) storeKey(key string) tea.Cmd {
	store := m.cfg.Settings
	return m.run(opSettings, func(ctx context.Context) error {
		return store.Update(ctx, func(s *settings.Settings) error {
			s.LLM.APIKey = key
			return nil
		})
	})
}
