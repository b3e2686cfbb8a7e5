package game

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/MrWong99/chronicles/internal/observe"
	"github.com/MrWong99/chronicles/internal/turn"
)

type outcome int

const (
	outcomeNone outcome = iota
	outcomeCompleted
	outcomeErrored
)

// turnProgress accumulates the response of the turn being streamed.
type turnProgress struct {
	text         strings.Builder
	kind         EntryType
	speaker      string
	speakerTitle string

	outcome outcome
	errMsg  string
	final   Entry
}

func (tp *turnProgress) live(e *Engine) *Entry {
	return &Entry{
		Type:         tp.kind,
		Content:      tp.text.String(),
		Speaker:      tp.speaker,
		SpeakerTitle: tp.speakerTitle,
		Timestamp:    e.now(),
	}
}

// handle applies one stream event. Events after the terminal one are
// ignored; payloads that do not decode are logged and skipped.
func (e *Engine) handle(ctx context.Context, tp *turnProgress, ev turn.Event) {
	if tp.outcome != outcomeNone {
		return
	}
	log := observe.Logger(ctx)
	decode := func(v any) bool {
		if err := json.Unmarshal(ev.Data, v); err != nil {
			log.Warn("game: skipping malformed event payload", "type", ev.Type, "err", err)
			return false
		}
		return true
	}

	switch ev.Type {
	case turn.EventProcessing:
		// Already showing as processing.

	case turn.EventTextChunk:
		tp.text.WriteString(ev.Text)
		cur := tp.live(e)
		e.update(func(st *State) {
			st.Phase = PhaseStreaming
			st.Current = cur
		})

	case turn.EventMetadata:
		var md turn.Metadata
		if !decode(&md) {
			return
		}
		if md.ResponseType == turn.Dialogue {
			tp.kind = EntryDialogue
		} else {
			tp.kind = EntryNarrative
		}
		tp.speaker, tp.speakerTitle = md.Speaker, md.SpeakerTitle
		cur := tp.live(e)
		e.update(func(st *State) { st.Current = cur })

	case turn.EventEnvironment:
		var env turn.Environment
		if !decode(&env) {
			return
		}
		npcs := env.NPCsPresent
		if npcs == nil {
			npcs = []string{}
		}
		e.update(func(st *State) {
			st.Environment = &Environment{
				Description: env.Description,
				NPCsPresent: npcs,
				Sounds:      env.Sounds,
				Atmosphere:  env.Atmosphere,
			}
		})

	case turn.EventActionChoices:
		var choices []turn.ActionChoice
		if !decode(&choices) {
			return
		}
		if choices == nil {
			choices = []turn.ActionChoice{}
		}
		e.update(func(st *State) { st.ActionChoices = choices })

	case turn.EventCharacterUpdates:
		var u turn.CharacterUpdates
		if !decode(&u) {
			return
		}
		e.update(func(st *State) { applyCharacterUpdates(&st.Character, u) })
		if err := e.save(ctx); err != nil {
			log.Warn("game: save character updates", "err", err)
		}

	case turn.EventGameState:
		var gs turn.GameState
		if !decode(&gs) {
			return
		}
		e.update(func(st *State) { st.Status = gs.Status })

	case turn.EventComplete:
		tp.outcome = outcomeCompleted
		tp.final = *tp.live(e)
		final := tp.final
		e.update(func(st *State) {
			st.Narrative = append(st.Narrative, final)
			st.Current = &final
			st.Processing = false
			st.Phase = PhaseFinalizing
		})

	case turn.EventError:
		tp.outcome = outcomeErrored
		tp.errMsg = ev.Message
		e.fail("Something went wrong: " + ev.Message)
	}
}

// applyCharacterUpdates applies a delta: hp (clamped to [0, maxHp]),
// location, then inventory removals of the first exact match followed by
// additions.
func applyCharacterUpdates(c *Character, u turn.CharacterUpdates) {
	if u.HP != nil {
		c.HP = max(*u.HP, 0)
		if c.MaxHP > 0 {
			c.HP = min(c.HP, c.MaxHP)
		}
	}
	if u.Location != nil && *u.Location != "" {
		c.Location = *u.Location
	}
	if u.InventoryChanges == nil {
		return
	}
	inv := append([]string{}, c.Inventory...)
	for _, item := range u.InventoryChanges.Removed {
		for i, have := range inv {
			if have == item {
				inv = append(inv[:i], inv[i+1:]...)
				break
			}
		}
	}
	c.Inventory = append(inv, u.InventoryChanges.Added...)
}
