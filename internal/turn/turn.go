// Package turn defines the structured game-turn contract shared by the
// narrator, the streaming server and the client engine: the request context,
// the validated response shape and the SSE events that carry it.
package turn

// ResponseType is the closed set of turn response kinds.
type ResponseType string

const (
	Narrative ResponseType = "narrative"
	Dialogue  ResponseType = "dialogue"
)

// Status is the closed set of game_state.status values.
type Status string

const (
	StatusContinue Status = "continue"
	StatusCombat   Status = "combat"
	StatusDialogue Status = "dialogue"
	StatusDeath    Status = "death"
	StatusVictory  Status = "victory"
)

func (t ResponseType) valid() bool { return t == Narrative || t == Dialogue }

func (s Status) valid() bool {
	switch s {
	case StatusContinue, StatusCombat, StatusDialogue, StatusDeath, StatusVictory:
		return true
	}
	return false
}

// Character is the player character as sent to the narrator.
type Character struct {
	Name      string   `json:"name"`
	HP        int      `json:"hp"`
	MaxHP     int      `json:"maxHp"`
	Inventory []string `json:"inventory"`
	Location  string   `json:"location"`
	Class     string   `json:"class"`
	Level     int      `json:"level"`
}

// GameContext is everything the narrator sees about the running game.
type GameContext struct {
	Scenario         string    `json:"scenario"`
	Character        Character `json:"character"`
	NarrativeHistory []string  `json:"narrative_history"`
	CurrentContext   string    `json:"current_context"`
}

// Content is the prose of a turn.
type Content struct {
	Text         string `json:"text"`
	Speaker      string `json:"speaker,omitempty"`
	SpeakerTitle string `json:"speaker_title,omitempty"`
}

// Environment describes the scene after the turn.
type Environment struct {
	Description string   `json:"description"`
	NPCsPresent []string `json:"npcs_present,omitempty"`
	Sounds      string   `json:"sounds,omitempty"`
	Atmosphere  string   `json:"atmosphere,omitempty"`
}

// ActionChoice is one suggested next action. IDs are unique within a turn.
type ActionChoice struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

// InventoryChanges lists items to remove and then add.
type InventoryChanges struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// CharacterUpdates is a delta against the player character. Nil fields are
// not provided and must not be applied.
type CharacterUpdates struct {
	HP               *int              `json:"hp,omitempty"`
	Location         *string           `json:"location,omitempty"`
	InventoryChanges *InventoryChanges `json:"inventory_changes,omitempty"`
}

// GameState carries the narrator's view of the game flow.
type GameState struct {
	Status  Status `json:"status,omitempty"`
	Context string `json:"context,omitempty"`
}

// Response is a validated structured turn.
type Response struct {
	ResponseType     ResponseType      `json:"response_type"`
	Content          Content           `json:"content"`
	Environment      Environment       `json:"environment"`
	ActionChoices    []ActionChoice    `json:"action_choices"`
	CharacterUpdates *CharacterUpdates `json:"character_updates,omitempty"`
	GameState        *GameState        `json:"game_state,omitempty"`
}

// Metadata is the payload of the metadata event.
type Metadata struct {
	ResponseType ResponseType `json:"response_type"`
	Speaker      string       `json:"speaker,omitempty"`
	SpeakerTitle string       `json:"speaker_title,omitempty"`
}

// Metadata returns the metadata event payload for r.
func (r *Response) Metadata() Metadata {
	return Metadata{
		ResponseType: r.ResponseType,
		Speaker:      r.Content.Speaker,
		SpeakerTitle: r.Content.SpeakerTitle,
	}
}
