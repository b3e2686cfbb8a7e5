package game

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed seeds.yaml
var seedsYAML []byte

// Scenario is one playable era.
type Scenario struct {
	ID                string   `yaml:"id"`
	Title             string   `yaml:"title"`
	Expansion         string   `yaml:"expansion"`
	Difficulty        string   `yaml:"difficulty"`
	Description       string   `yaml:"description"`
	StartingLocation  string   `yaml:"starting_location"`
	StartingClass     string   `yaml:"starting_class"`
	StartingHP        int      `yaml:"starting_hp"`
	StartingInventory []string `yaml:"starting_inventory"`
	Lore              string   `yaml:"lore"`
	Classes           []Class  `yaml:"classes"`
	Legends           []Legend `yaml:"legends"`
	Opening           []string `yaml:"opening"`
}

// Class is a custom-character archetype offered by a scenario.
type Class struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	HP          int      `yaml:"hp"`
	Abilities   []string `yaml:"abilities"`
}

// Legend is a named character of the era with a fixed opening.
type Legend struct {
	Name        string   `yaml:"name"`
	Title       string   `yaml:"title"`
	Class       string   `yaml:"class"`
	HP          int      `yaml:"hp"`
	Description string   `yaml:"description"`
	Abilities   []string `yaml:"abilities"`
	Lore        string   `yaml:"lore"`
	Opening     []string `yaml:"opening"`
}

// Pick is the player's character choice.
type Pick struct {
	Name      string
	Class     string
	HP        int
	Abilities []string
	IsCustom  bool
}

// CustomPick builds a custom character of class c.
func CustomPick(name string, c Class) Pick {
	return Pick{Name: name, Class: c.Name, HP: c.HP, Abilities: c.Abilities, IsCustom: true}
}

// Pick returns the legend as a character choice.
func (l Legend) Pick() Pick {
	return Pick{Name: l.Name, Class: l.Class, HP: l.HP, Abilities: l.Abilities}
}

var (
	seedOnce  sync.Once
	seedList  []Scenario
	seedError error
)

// Scenarios returns the built-in scenarios in display order.
func Scenarios() ([]Scenario, error) {
	seedOnce.Do(func() {
		seedList, seedError = parseSeeds(seedsYAML)
	})
	return seedList, seedError
}

// LookupScenario returns the built-in scenario with the given id.
func LookupScenario(id string) (Scenario, bool) {
	list, err := Scenarios()
	if err != nil {
		return Scenario{}, false
	}
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

func parseSeeds(raw []byte) ([]Scenario, error) {
	var doc struct {
		Scenarios []Scenario `yaml:"scenarios"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("game: parse seeds: %w", err)
	}
	return doc.Scenarios, nil
}

// OpeningLines returns the narration that starts a game of s with p.
// Custom characters get the scenario's opening with their name and class
// filled in; legends get their own opening, or a displaced-hero fallback
// when they are not native to the scenario.
func OpeningLines(s Scenario, p Pick) []string {
	if p.IsCustom {
		if len(s.Opening) == 0 {
			return []string{fmt.Sprintf("Your adventure as %s begins...", p.Name)}
		}
		r := strings.NewReplacer("{name}", p.Name, "{class}", p.Class)
		out := make([]string, len(s.Opening))
		for i, l := range s.Opening {
			out[i] = r.Replace(l)
		}
		return out
	}
	for _, l := range s.Legends {
		if l.Name == p.Name && len(l.Opening) > 0 {
			return append([]string(nil), l.Opening...)
		}
	}
	return []string{
		fmt.Sprintf("You are %s, %s, brought to this time and place by mysterious forces.", p.Name, p.Class),
		"Though this is not your era, your legendary power remains undimmed.",
		fmt.Sprintf("You stand in %s, ready to shape destiny once again.", s.StartingLocation),
		"Your presence here may change the course of history itself.",
	}
}
