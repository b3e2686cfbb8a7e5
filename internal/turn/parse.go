package turn

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidResponse is wrapped by every Parse and Validate failure.
var ErrInvalidResponse = errors.New("turn: invalid response")

// The wire types mirror Response with pointers on required fields so that a
// missing field can be told apart from an empty one.
type wireContent struct {
	Text         *string `json:"text"`
	Speaker      *string `json:"speaker"`
	SpeakerTitle *string `json:"speaker_title"`
}

type wireEnvironment struct {
	Description *string  `json:"description"`
	NPCsPresent []string `json:"npcs_present"`
	Sounds      *string  `json:"sounds"`
	Atmosphere  *string  `json:"atmosphere"`
}

type wireChoice struct {
	ID          *string `json:"id"`
	Text        *string `json:"text"`
	Description *string `json:"description"`
}

// wireUpdates takes hp as any JSON number; models often write 85.0.
type wireUpdates struct {
	HP               *float64          `json:"hp"`
	Location         *string           `json:"location"`
	InventoryChanges *InventoryChanges `json:"inventory_changes"`
}

func (u *wireUpdates) updates() (*CharacterUpdates, error) {
	if u == nil {
		return nil, nil
	}
	out := &CharacterUpdates{Location: u.Location, InventoryChanges: u.InventoryChanges}
	if u.HP != nil {
		hp := *u.HP
		if hp != math.Trunc(hp) || math.Abs(hp) > math.MaxInt32 {
			return nil, fmt.Errorf("character_updates.hp %v is not a whole number", hp)
		}
		n := int(hp)
		out.HP = &n
	}
	return out, nil
}

type wireResponse struct {
	ResponseType     *ResponseType     `json:"response_type"`
	Content          *wireContent      `json:"content"`
	Environment      *wireEnvironment  `json:"environment"`
	ActionChoices    *[]wireChoice     `json:"action_choices"`
	CharacterUpdates *wireUpdates      `json:"character_updates"`
	GameState        *GameState        `json:"game_state"`
}

// Parse decodes raw model output into a validated Response. Markdown code
// fences around the JSON are stripped first. Unknown fields, wrong primitive
// types and missing required fields are all rejected; nothing is coerced.
func Parse(raw []byte) (*Response, error) {
	body := StripFences(string(raw))

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	var w wireResponse
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidResponse, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrInvalidResponse)
	}

	var errs []error
	if w.ResponseType == nil {
		errs = append(errs, errors.New("response_type is required"))
	}
	if w.Content == nil || w.Content.Text == nil {
		errs = append(errs, errors.New("content.text is required"))
	}
	if w.Environment == nil || w.Environment.Description == nil {
		errs = append(errs, errors.New("environment.description is required"))
	}
	if w.ActionChoices == nil {
		errs = append(errs, errors.New("action_choices is required"))
	}
	updates, err := w.CharacterUpdates.updates()
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, errors.Join(errs...))
	}

	r := &Response{
		ResponseType: *w.ResponseType,
		Content: Content{
			Text:         *w.Content.Text,
			Speaker:      deref(w.Content.Speaker),
			SpeakerTitle: deref(w.Content.SpeakerTitle),
		},
		Environment: Environment{
			Description: *w.Environment.Description,
			NPCsPresent: w.Environment.NPCsPresent,
			Sounds:      deref(w.Environment.Sounds),
			Atmosphere:  deref(w.Environment.Atmosphere),
		},
		ActionChoices:    make([]ActionChoice, 0, len(*w.ActionChoices)),
		CharacterUpdates: updates,
		GameState:        w.GameState,
	}
	for i, c := range *w.ActionChoices {
		if c.ID == nil || c.Text == nil {
			errs = append(errs, fmt.Errorf("action_choices[%d]: id and text are required", i))
			continue
		}
		r.ActionChoices = append(r.ActionChoices, ActionChoice{
			ID:          *c.ID,
			Text:        *c.Text,
			Description: deref(c.Description),
		})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, errors.Join(errs...))
	}

	if err := Validate(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the semantic rules of a Response: the enums are in their
// closed sets, the text is non-empty, a dialogue names its speaker and the
// action choice ids are present and unique.
func Validate(r *Response) error {
	if r == nil {
		return fmt.Errorf("%w: nil response", ErrInvalidResponse)
	}
	var errs []error
	if !r.ResponseType.valid() {
		errs = append(errs, fmt.Errorf("response_type %q is not one of narrative, dialogue", r.ResponseType))
	}
	if strings.TrimSpace(r.Content.Text) == "" {
		errs = append(errs, errors.New("content.text must not be empty"))
	}
	if r.ResponseType == Dialogue && strings.TrimSpace(r.Content.Speaker) == "" {
		errs = append(errs, errors.New("dialogue requires content.speaker"))
	}
	if r.ActionChoices == nil {
		errs = append(errs, errors.New("action_choices must be an array"))
	}
	seen := make(map[string]struct{}, len(r.ActionChoices))
	for i, c := range r.ActionChoices {
		if c.ID == "" || c.Text == "" {
			errs = append(errs, fmt.Errorf("action_choices[%d]: id and text must not be empty", i))
			continue
		}
		if _, dup := seen[c.ID]; dup {
			errs = append(errs, fmt.Errorf("action_choices[%d]: duplicate id %q", i, c.ID))
		}
		seen[c.ID] = struct{}{}
	}
	if r.GameState != nil && r.GameState.Status != "" && !r.GameState.Status.valid() {
		errs = append(errs, fmt.Errorf("game_state.status %q is not a known status", r.GameState.Status))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, errors.Join(errs...))
	}
	return nil
}

// StripFences removes a leading ```json or ``` fence and a trailing ```
// fence from s, then trims surrounding whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// CleanRecap turns raw recap output into plain prose. Models occasionally
// answer with a JSON object or fenced block despite instructions; the text or
// content field is extracted and every fence marker removed.
func CleanRecap(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		var obj struct {
			Text    string `json:"text"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			switch {
			case obj.Text != "":
				s = obj.Text
			case obj.Content != "":
				s = obj.Content
			}
		}
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
