package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	narrative   lipgloss.Style
	dialogue    lipgloss.Style
	speaker     lipgloss.Style
	action      lipgloss.Style
	system      lipgloss.Style
	choice      lipgloss.Style
	choiceKey   lipgloss.Style
	selected    lipgloss.Style
	option      lipgloss.Style
	muted       lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	hpOK        lipgloss.Style
	hpLow       lipgloss.Style
	cost        map[string]lipgloss.Style
	footer      lipgloss.Style
}

func newTheme() theme {
	gold := lipgloss.Color("#f8b700")
	parchment := lipgloss.Color("#efe3c2")
	blood := lipgloss.Color("#c0392b")
	fel := lipgloss.Color("#7bd389")
	arcane := lipgloss.Color("#8fb8ff")
	muted := lipgloss.Color("#8a8271")

	return theme{
		root: lipgloss.NewStyle().Padding(0, 1),
		header: lipgloss.NewStyle().
			Foreground(gold).
			Bold(true).
			BorderStyle(lipgloss.DoubleBorder()).
			BorderBottom(true).
			BorderForeground(gold),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		panelTitle:  lipgloss.NewStyle().Foreground(gold).Bold(true),
		narrative:   lipgloss.NewStyle().Foreground(parchment),
		dialogue:    lipgloss.NewStyle().Foreground(parchment).Italic(true),
		speaker:     lipgloss.NewStyle().Foreground(gold).Bold(true),
		action:      lipgloss.NewStyle().Foreground(arcane),
		system:      lipgloss.NewStyle().Foreground(blood).Bold(true),
		choice:      lipgloss.NewStyle().Foreground(parchment),
		choiceKey:   lipgloss.NewStyle().Foreground(gold).Bold(true),
		selected:    lipgloss.NewStyle().Foreground(lipgloss.Color("#1b1408")).Background(gold).Bold(true),
		option:      lipgloss.NewStyle().Foreground(parchment),
		muted:       lipgloss.NewStyle().Foreground(muted),
		status:      lipgloss.NewStyle().Foreground(arcane),
		errorStatus: lipgloss.NewStyle().Foreground(blood).Bold(true),
		hpOK:        lipgloss.NewStyle().Foreground(fel).Bold(true),
		hpLow:       lipgloss.NewStyle().Foreground(blood).Bold(true),
		cost: map[string]lipgloss.Style{
			"low":    lipgloss.NewStyle().Foreground(fel),
			"medium": lipgloss.NewStyle().Foreground(gold),
			"high":   lipgloss.NewStyle().Foreground(blood),
		},
		footer: lipgloss.NewStyle().
			Foreground(muted).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(muted),
	}
}
