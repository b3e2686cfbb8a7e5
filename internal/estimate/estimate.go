// Package estimate predicts the token cost of one narrator turn for display
// next to the action input and in the settings screen.
package estimate

import (
	"fmt"
	"strings"

	"github.com/MrWong99/chronicles/internal/settings"
	"github.com/MrWong99/chronicles/internal/turn"
	"github.com/MrWong99/chronicles/pkg/provider/llm"
)

// Tier is a coarse cost band.
type Tier string

const (
	Low    Tier = "low"
	Medium Tier = "medium"
	High   Tier = "high"
)

// Tier boundaries on the total token count.
const (
	mediumFrom = 800
	highFrom   = 1500
)

// Fallbacks used when no game is running yet.
const (
	scenarioTokens       = 50
	historyTokensPerLine = 100
)

var promptTokens = map[settings.ContextDetail]int{
	settings.Minimal:  150,
	settings.Standard: 400,
	settings.Rich:     600,
}

var characterTokens = map[settings.ContextDetail]int{
	settings.Minimal:  30,
	settings.Standard: 80,
	settings.Rich:     150,
}

// Params are the inputs to [Estimate]. Game is nil outside a running game.
type Params struct {
	ContextDetail settings.ContextDetail
	HistoryLength int
	MaxTokens     int
	Game          *turn.GameContext
	Action        string
}

// FromSettings fills the configuration part of Params from l.
func FromSettings(l settings.LLM) Params {
	return Params{
		ContextDetail: l.ContextDetail,
		HistoryLength: l.HistoryLength,
		MaxTokens:     l.MaxTokens,
	}
}

// Result is a token estimate for one turn.
type Result struct {
	Input  int
	Output int
	Total  int
	Tier   Tier
}

// Estimate predicts the tokens one turn consumes. Unset values take the
// narrator defaults: standard detail, 5 history lines, 1024 output tokens.
func Estimate(p Params) Result {
	detail := p.ContextDetail
	if !detail.Valid() {
		detail = settings.Standard
	}
	history := p.HistoryLength
	if history <= 0 {
		history = 5
	}
	output := p.MaxTokens
	if output <= 0 {
		output = 1024
	}

	input := promptTokens[detail] + characterTokens[detail]
	if p.Game != nil && p.Game.Scenario != "" {
		input += llm.EstimateTokens(p.Game.Scenario)
	} else {
		input += scenarioTokens
	}
	if p.Game != nil && p.Game.NarrativeHistory != nil {
		h := p.Game.NarrativeHistory
		if len(h) > history {
			h = h[len(h)-history:]
		}
		input += llm.EstimateTokens(strings.Join(h, "\n"))
	} else {
		input += history * historyTokensPerLine
	}
	input += llm.EstimateTokens(p.Action)

	total := input + output
	return Result{Input: input, Output: output, Total: total, Tier: tierFor(total)}
}

func tierFor(total int) Tier {
	switch {
	case total < mediumFrom:
		return Low
	case total < highFrom:
		return Medium
	default:
		return High
	}
}

// FormatTokenCount renders n compactly: "950", "1.2k".
func FormatTokenCount(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprint(n)
}

// CostDescription is the player-facing label of t.
func CostDescription(t Tier) string {
	switch t {
	case Low:
		return "Budget-friendly"
	case Medium:
		return "Moderate cost"
	default:
		return "Premium cost"
	}
}

// DetailDescription summarises a context detail tier for the settings screen.
func DetailDescription(d settings.ContextDetail) string {
	switch d {
	case settings.Minimal:
		return "Minimal (~600 tokens): basic info only, cheapest option"
	case settings.Rich:
		return "Rich (~1400 tokens): detailed descriptions, premium experience"
	default:
		return "Standard (~1000 tokens): balanced detail, recommended"
	}
}
