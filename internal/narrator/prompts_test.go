package narrator

import (
	"strings"
	"testing"

	"github.com/MrWong99/chronicles/internal/settings"
	"github.com/MrWong99/chronicles/internal/turn"
)

func testCharacter() turn.Character {
	return turn.Character{
		Name:      "Thrall",
		HP:        80,
		MaxHP:     100,
		Inventory: []string{"Doomhammer", "Healing Potion"},
		Location:  "Durotar",
		Class:     "Shaman",
		Level:     10,
	}
}

func TestSystemPrompt_Tiers(t *testing.T) {
	minimal := SystemPrompt(settings.Minimal)
	standard := SystemPrompt(settings.Standard)
	rich := SystemPrompt(settings.Rich)

	if minimal != minimalPrompt {
		t.Errorf("minimal prompt = %q", minimal)
	}
	if !strings.HasPrefix(standard, "You are the Dungeon Master for 'Azeroth Chronicles,'") {
		t.Errorf("standard prompt starts with %q", standard[:60])
	}
	if !strings.HasPrefix(rich, standard) {
		t.Error("rich prompt does not extend the standard prompt")
	}
	if !strings.HasSuffix(rich, "makes players feel present in Azeroth") {
		t.Error("rich prompt missing enhanced detail block")
	}
	if got := SystemPrompt("unknown"); got != standard {
		t.Error("unknown tier should fall back to standard")
	}
}

func TestCharacterContext(t *testing.T) {
	c := testCharacter()
	tests := []struct {
		name   string
		detail settings.ContextDetail
		mutate func(*turn.Character)
		want   string
	}{
		{
			name:   "minimal",
			detail: settings.Minimal,
			want:   "- PLAYER CHARACTER (DO NOT SPEAK AS): Thrall (Level 10 Shaman)\n- HP: 80/100",
		},
		{
			name:   "standard",
			detail: settings.Standard,
			want: "- PLAYER CHARACTER (DO NOT SPEAK AS): Thrall (Level 10 Shaman)\n- HP: 80/100\n" +
				"- Location: Durotar\n- Inventory: Doomhammer, Healing Potion",
		},
		{
			name:   "rich strong",
			detail: settings.Rich,
			want: "- PLAYER CHARACTER (DO NOT SPEAK AS): Thrall (Level 10 Shaman)\n- Current Health: 80/100 HP\n" +
				"- Current Location: Durotar\n- Equipment & Items: Doomhammer, Healing Potion\n" +
				"- Carrying 2 items, feeling strong and ready for adventure",
		},
		{
			name:   "rich wounded empty handed",
			detail: settings.Rich,
			mutate: func(c *turn.Character) { c.HP = 29; c.Inventory = nil },
			want: "- PLAYER CHARACTER (DO NOT SPEAK AS): Thrall (Level 10 Shaman)\n- Current Health: 29/100 HP\n" +
				"- Current Location: Durotar\n- Equipment: Traveling light with empty hands\n- Status: wounded and weary",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ch := c
			ch.Inventory = append([]string(nil), c.Inventory...)
			if tc.mutate != nil {
				tc.mutate(&ch)
			}
			if got := CharacterContext(ch, tc.detail); got != tc.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tc.want)
			}
		})
	}
}

func TestHealthStatus_Thresholds(t *testing.T) {
	tests := []struct {
		hp   int
		want string
	}{
		{0, "wounded and weary"},
		{29, "wounded and weary"},
		{30, "moderately prepared"},
		{69, "moderately prepared"},
		{70, "strong and ready for adventure"},
		{100, "strong and ready for adventure"},
	}
	for _, tc := range tests {
		if got := healthStatus(turn.Character{HP: tc.hp, MaxHP: 100}); got != tc.want {
			t.Errorf("healthStatus(%d) = %q, want %q", tc.hp, got, tc.want)
		}
	}
}

func TestTurnPrompt_Layout(t *testing.T) {
	gc := turn.GameContext{
		Scenario:         "The Burning Legion returns",
		Character:        testCharacter(),
		NarrativeHistory: []string{"h1", "h2", "h3", "h4", "h5", "h6", "h7"},
	}
	got := TurnPrompt(gc, "I draw my hammer", settings.Minimal, 3)
	want := "Current Game State:\n- Scenario: The Burning Legion returns\n" +
		"- PLAYER CHARACTER (DO NOT SPEAK AS): Thrall (Level 10 Shaman)\n- HP: 80/100\n\n" +
		"Recent Narrative:\nh5\nh6\nh7\n\n" +
		"Player Action: I draw my hammer\n\nRespond with JSON only:"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestRecapPrompt_DoublesHistory(t *testing.T) {
	gc := turn.GameContext{
		Scenario:         "s",
		Character:        testCharacter(),
		NarrativeHistory: []string{"h1", "h2", "h3", "h4", "h5"},
	}
	got := RecapPrompt(gc, "Summarise the journey.", settings.Minimal, 2)
	if !strings.Contains(got, "Recent Narrative:\nh2\nh3\nh4\nh5\n\n") {
		t.Errorf("recap prompt did not include the last 4 lines:\n%s", got)
	}
	if !strings.HasSuffix(got, "\n\nSummarise the journey.") {
		t.Errorf("recap prompt does not end with the caller prompt:\n%s", got)
	}
}

func TestLastN(t *testing.T) {
	s := []string{"a", "b", "c"}
	if got := lastN(s, 5); len(got) != 3 {
		t.Errorf("lastN(5) = %v", got)
	}
	if got := lastN(s, 2); got[0] != "b" || got[1] != "c" {
		t.Errorf("lastN(2) = %v", got)
	}
	if got := lastN(s, 0); got != nil {
		t.Errorf("lastN(0) = %v, want nil", got)
	}
}
