package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/chronicles/internal/turn"
)

// EntryType classifies a narrative log entry.
type EntryType string

const (
	EntryNarrative EntryType = "narrative"
	EntryDialogue  EntryType = "dialogue"
	EntryAction    EntryType = "action"
	EntrySystem    EntryType = "system"
)

// Entry is one line of the narrative log, or the response currently on
// screen.
type Entry struct {
	Type         EntryType `json:"type"`
	Content      string    `json:"content"`
	Speaker      string    `json:"speaker,omitempty"`
	SpeakerTitle string    `json:"speakerTitle,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Character is the player character.
type Character struct {
	Name      string   `json:"name"`
	HP        int      `json:"hp"`
	MaxHP     int      `json:"maxHp"`
	Inventory []string `json:"inventory"`
	Location  string   `json:"location"`
	Class     string   `json:"class"`
	Level     int      `json:"level"`
	Abilities []string `json:"abilities"`
	IsCustom  bool     `json:"isCustom"`
}

func (c Character) wire() turn.Character {
	return turn.Character{
		Name:      c.Name,
		HP:        c.HP,
		MaxHP:     c.MaxHP,
		Inventory: append([]string{}, c.Inventory...),
		Location:  c.Location,
		Class:     c.Class,
		Level:     c.Level,
	}
}

// Environment is the current scene.
type Environment struct {
	Description string   `json:"description"`
	NPCsPresent []string `json:"npcsPresent"`
	Sounds      string   `json:"sounds,omitempty"`
	Atmosphere  string   `json:"atmosphere,omitempty"`
}

// Recap is the cached story-so-far summary. TurnCount is the number of
// player actions it covers.
type Recap struct {
	Content     string    `json:"content"`
	LastUpdated time.Time `json:"lastUpdated"`
	TurnCount   int       `json:"turnCount"`
}

// Phase is where the engine is within a turn.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitted  Phase = "submitted"
	PhaseProcessing Phase = "processing"
	PhaseStreaming  Phase = "streaming"
	PhaseFinalizing Phase = "finalizing"
	PhaseErrored    Phase = "errored"
)

// State is the game as the player sees it. Fields without a json name are
// transient and never saved.
type State struct {
	Character         Character           `json:"character"`
	Narrative         []Entry             `json:"narrative"`
	Environment       *Environment        `json:"currentEnvironment"`
	ActionChoices     []turn.ActionChoice `json:"actionChoices"`
	Recap             *Recap              `json:"storyRecap"`
	Scenario          string              `json:"scenario"`
	ScenarioID        string              `json:"scenarioId"`
	GameStarted       bool                `json:"gameStarted"`
	ScenarioSelected  bool                `json:"scenarioSelected"`
	CharacterSelected bool                `json:"characterSelected"`

	Current    *Entry `json:"-"`
	Phase      Phase  `json:"-"`
	Processing bool   `json:"-"`
	Loading    bool   `json:"-"`
	// Status is the narrator's last game_state.status, if any.
	Status turn.Status `json:"-"`
}

func initialState() State {
	return State{
		Character: Character{
			Name:      "Adventurer",
			HP:        100,
			MaxHP:     100,
			Inventory: []string{"Basic Sword", "Leather Armor", "Health Potion"},
			Location:  "Eastern Kingdoms",
			Class:     "Warrior",
			Level:     1,
			Abilities: []string{},
			IsCustom:  true,
		},
		Narrative:     []Entry{},
		ActionChoices: []turn.ActionChoice{},
		Phase:         PhaseIdle,
	}
}

// clone returns a deep copy so that snapshots handed to observers never
// alias engine state.
func (s State) clone() State {
	out := s
	out.Character.Inventory = append([]string{}, s.Character.Inventory...)
	out.Character.Abilities = append([]string{}, s.Character.Abilities...)
	out.Narrative = append([]Entry{}, s.Narrative...)
	out.ActionChoices = append([]turn.ActionChoice{}, s.ActionChoices...)
	if s.Environment != nil {
		env := *s.Environment
		env.NPCsPresent = append([]string{}, s.Environment.NPCsPresent...)
		out.Environment = &env
	}
	if s.Recap != nil {
		r := *s.Recap
		out.Recap = &r
	}
	if s.Current != nil {
		c := *s.Current
		out.Current = &c
	}
	return out
}

// ActionCount is the number of player actions in the log.
func (s State) ActionCount() int {
	n := 0
	for _, e := range s.Narrative {
		if e.Type == EntryAction {
			n++
		}
	}
	return n
}

// History renders the log the way the narrator reads it: actions as
// "> text", dialogue as `speaker: "text"`, everything else verbatim.
func (s State) History() []string {
	out := make([]string, 0, len(s.Narrative))
	for _, e := range s.Narrative {
		switch e.Type {
		case EntryAction:
			out = append(out, "> "+e.Content)
		case EntryDialogue:
			out = append(out, fmt.Sprintf("%s: \"%s\"", e.Speaker, e.Content))
		default:
			out = append(out, e.Content)
		}
	}
	return out
}

// GameContext is the request context for the next turn.
func (s State) GameContext() turn.GameContext {
	current := "Exploring the world"
	if s.Environment != nil && s.Environment.Description != "" {
		current = s.Environment.Description
	}
	return turn.GameContext{
		Scenario:         s.Scenario,
		Character:        s.Character.wire(),
		NarrativeHistory: s.History(),
		CurrentContext:   current,
	}
}

// recapNarrative renders the non-blank log for the chronicler: actions as
// "Player: text", attributed dialogue as `speaker: "text"`, everything else
// verbatim.
func (s State) recapNarrative() string {
	var lines []string
	for _, e := range s.Narrative {
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		switch {
		case e.Type == EntryAction:
			lines = append(lines, "Player: "+e.Content)
		case e.Type == EntryDialogue && e.Speaker != "":
			lines = append(lines, fmt.Sprintf("%s: \"%s\"", e.Speaker, e.Content))
		default:
			lines = append(lines, e.Content)
		}
	}
	return strings.Join(lines, "\n")
}
