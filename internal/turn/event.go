package turn

import (
	"encoding/json"
	"regexp"
)

// EventType names one frame of the turn stream.
type EventType string

const (
	EventProcessing       EventType = "processing"
	EventTextChunk        EventType = "text_chunk"
	EventMetadata         EventType = "metadata"
	EventEnvironment      EventType = "environment"
	EventActionChoices    EventType = "action_choices"
	EventCharacterUpdates EventType = "character_updates"
	EventGameState        EventType = "game_state"
	EventComplete         EventType = "complete"
	EventError            EventType = "error"
)

// Event is a single SSE frame. Data holds the typed payload for metadata,
// environment, action_choices, character_updates and game_state events.
type Event struct {
	Type       EventType       `json:"type"`
	Message    string          `json:"message,omitempty"`
	Text       string          `json:"text,omitempty"`
	IsComplete *bool           `json:"isComplete,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Terminal reports whether the event ends a stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// DataEvent builds an event of type t whose data field is v.
func DataEvent(t EventType, v any) (Event, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Data: raw}, nil
}

// ChunkEvent builds a text_chunk event.
func ChunkEvent(text string, last bool) Event {
	return Event{Type: EventTextChunk, Text: text, IsComplete: &last}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// SplitChunks splits text into alternating word and whitespace-run tokens.
// Concatenating the result yields text exactly.
func SplitChunks(text string) []string {
	if text == "" {
		return nil
	}
	var out []string
	last := 0
	for _, loc := range whitespaceRun.FindAllStringIndex(text, -1) {
		if loc[0] > last {
			out = append(out, text[last:loc[0]])
		}
		out = append(out, text[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

// ResponseEvents returns the events that follow the text chunks, in stream
// order: metadata, environment, action_choices, then character_updates and
// game_state when present.
func ResponseEvents(r *Response) ([]Event, error) {
	type item struct {
		t EventType
		v any
	}
	items := []item{
		{EventMetadata, r.Metadata()},
		{EventEnvironment, r.Environment},
		{EventActionChoices, r.ActionChoices},
	}
	if r.CharacterUpdates != nil {
		items = append(items, item{EventCharacterUpdates, r.CharacterUpdates})
	}
	if r.GameState != nil {
		items = append(items, item{EventGameState, r.GameState})
	}
	out := make([]Event, 0, len(items))
	for _, it := range items {
		ev, err := DataEvent(it.t, it.v)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
