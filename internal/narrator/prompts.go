package narrator

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/MrWong99/chronicles/internal/settings"
	"github.com/MrWong99/chronicles/internal/turn"
)

//go:embed prompts/master.txt
var masterPrompt string

const minimalPrompt = "You are a game master for a World of Warcraft RPG. Create brief, focused responses in valid JSON format."

const enhancedDetail = `

ENHANCED DETAIL MODE:
- Provide richer environmental descriptions with sensory details
- Include more atmospheric elements (sounds, smells, lighting, weather)
- Add deeper character emotions and motivations in dialogue
- Elaborate on magical effects and combat descriptions
- Reference more specific WoW lore and locations
- Create more immersive scene-setting that makes players feel present in Azeroth`

const chroniclerPrompt = "You are a master chronicler writing in the World of Warcraft universe. " +
	"Write ONLY the story recap text, no JSON, no formatting markers. " +
	"Write as a flowing narrative in the style of a World of Warcraft quest journal entry."

// MasterPrompt returns the full Dungeon Master instructions.
func MasterPrompt() string {
	return strings.TrimSpace(masterPrompt)
}

// SystemPrompt returns the narrator instructions for a context tier. Unknown
// tiers are treated as standard.
func SystemPrompt(detail settings.ContextDetail) string {
	switch detail {
	case settings.Minimal:
		return minimalPrompt
	case settings.Rich:
		return MasterPrompt() + enhancedDetail
	default:
		return MasterPrompt()
	}
}

// healthStatus describes the character's condition for the rich tier.
func healthStatus(c turn.Character) string {
	hp, max := float64(c.HP), float64(c.MaxHP)
	switch {
	case hp < max*0.3:
		return "wounded and weary"
	case hp < max*0.7:
		return "moderately prepared"
	default:
		return "strong and ready for adventure"
	}
}

// CharacterContext renders the player character block for a context tier.
func CharacterContext(c turn.Character, detail settings.ContextDetail) string {
	basic := fmt.Sprintf("%s (Level %d %s)", c.Name, c.Level, c.Class)
	head := "- PLAYER CHARACTER (DO NOT SPEAK AS): " + basic

	switch detail {
	case settings.Minimal:
		return fmt.Sprintf("%s\n- HP: %d/%d", head, c.HP, c.MaxHP)
	case settings.Rich:
		status := healthStatus(c)
		var items string
		if len(c.Inventory) > 0 {
			items = fmt.Sprintf("\n- Equipment & Items: %s\n- Carrying %d items, feeling %s",
				strings.Join(c.Inventory, ", "), len(c.Inventory), status)
		} else {
			items = "\n- Equipment: Traveling light with empty hands\n- Status: " + status
		}
		return fmt.Sprintf("%s\n- Current Health: %d/%d HP\n- Current Location: %s%s",
			head, c.HP, c.MaxHP, c.Location, items)
	default:
		return fmt.Sprintf("%s\n- HP: %d/%d\n- Location: %s\n- Inventory: %s",
			head, c.HP, c.MaxHP, c.Location, strings.Join(c.Inventory, ", "))
	}
}

// gameState renders the shared "Current Game State" and "Recent Narrative"
// sections with the last n history lines.
func gameState(gc turn.GameContext, detail settings.ContextDetail, n int) string {
	return fmt.Sprintf("Current Game State:\n- Scenario: %s\n%s\n\nRecent Narrative:\n%s",
		gc.Scenario, CharacterContext(gc.Character, detail),
		strings.Join(lastN(gc.NarrativeHistory, n), "\n"))
}

// TurnPrompt builds the user message for one player action.
func TurnPrompt(gc turn.GameContext, action string, detail settings.ContextDetail, historyLength int) string {
	return gameState(gc, detail, historyLength) +
		"\n\nPlayer Action: " + action +
		"\n\nRespond with JSON only:"
}

// RecapPrompt builds the user message for a story recap. Recaps look twice as
// far back as turns.
func RecapPrompt(gc turn.GameContext, prompt string, detail settings.ContextDetail, historyLength int) string {
	return gameState(gc, detail, historyLength*2) + "\n\n" + prompt
}

// lastN returns the trailing n elements of s.
func lastN(s []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
