package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/chronicles/internal/catalog"
	"github.com/MrWong99/chronicles/internal/estimate"
	"github.com/MrWong99/chronicles/internal/game"
)

const title = "AZEROTH CHRONICLES"

func (m model) View() string {
	var parts []string
	switch m.screen {
	case screenScenarios:
		parts = m.viewScenarios()
	case screenCharacters:
		parts = m.viewCharacters()
	case screenNaming:
		parts = m.viewNaming()
	case screenGame:
		parts = m.viewGame()
	case screenSettings:
		parts = m.viewSettings()
	}
	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m model) header(sub string) string {
	w := m.contentWidth()
	h := title
	if sub != "" {
		h += " · " + sub
	}
	return m.theme.header.Width(w).Render(h)
}

func (m model) footer(keys string) string {
	lines := []string{keys}
	if m.status != "" {
		style := m.theme.status
		if m.statusErr {
			style = m.theme.errorStatus
		}
		lines = append(lines, style.Render(m.status))
	}
	return m.theme.footer.Width(m.contentWidth()).Render(strings.Join(lines, "\n"))
}

func (m model) list(labels []string) string {
	var b strings.Builder
	for i, l := range labels {
		line := fmt.Sprintf(" %d. %s ", i+1, l)
		if i >= 9 {
			line = fmt.Sprintf("    %s ", l)
		}
		if i == m.cursor {
			b.WriteString(m.theme.selected.Render(line))
		} else {
			b.WriteString(m.theme.option.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m model) viewScenarios() []string {
	w := m.contentWidth()
	labels := make([]string, len(m.scenarios))
	for i, s := range m.scenarios {
		labels[i] = fmt.Sprintf("%s  (%s, %s)", s.Title, s.Expansion, s.Difficulty)
	}
	sel := m.scenarios[m.cursor]
	detail := m.theme.panel.Width(w - 2).Render(
		m.theme.panelTitle.Render(sel.Title) + "\n" +
			m.theme.narrative.Render(sel.Description) + "\n\n" +
			m.theme.muted.Render(sel.Lore),
	)
	return []string{
		m.header("Choose your era"),
		m.list(labels),
		detail,
		m.footer("↑/↓ move · enter or 1-9 choose · s settings · q quit"),
	}
}

func (m model) viewCharacters() []string {
	w := m.contentWidth()
	labels := make([]string, len(m.picks))
	for i, p := range m.picks {
		labels[i] = p.label
	}
	var detail string
	if len(m.picks) > 0 {
		p := m.picks[m.cursor]
		abilities := p.pick.Abilities
		if p.class != nil {
			abilities = p.class.Abilities
		}
		body := m.theme.narrative.Render(p.desc)
		if len(abilities) > 0 {
			body += "\n" + m.theme.muted.Render("Abilities: "+strings.Join(abilities, ", "))
		}
		detail = m.theme.panel.Width(w - 2).Render(body)
	}
	return []string{
		m.header(m.scenario.Title + " · Choose your hero"),
		m.list(labels),
		detail,
		m.footer("↑/↓ move · enter choose · esc back to eras"),
	}
}

func (m model) viewNaming() []string {
	w := m.contentWidth()
	body := m.theme.panelTitle.Render("A new "+m.naming.Name+" enters the chronicle") + "\n" +
		m.theme.muted.Render(m.naming.Description) + "\n\n" +
		m.input.View()
	return []string{
		m.header(m.scenario.Title),
		m.theme.panel.Width(w - 2).Render(body),
		m.footer("enter begin · esc back"),
	}
}

func (m model) viewGame() []string {
	w := m.contentWidth()
	parts := []string{m.header(m.st.Scenario), m.statusBar()}

	if m.showLog {
		parts = append(parts, m.theme.panel.Width(w-2).Render(
			m.theme.panelTitle.Render("Chronicle")+"\n"+m.log.View()))
	} else {
		parts = append(parts, m.viewScene(w))
	}
	if m.showRecap {
		parts = append(parts, m.viewRecap(w))
	}
	if choices := m.viewChoices(); choices != "" {
		parts = append(parts, choices)
	}
	parts = append(parts,
		m.input.View(),
		m.footer("enter act · 1-9 choice · esc skip · tab chronicle · /help"),
	)
	return parts
}

func (m model) statusBar() string {
	c := m.st.Character
	hpStyle := m.theme.hpOK
	if c.MaxHP > 0 && c.HP*100/c.MaxHP < 30 {
		hpStyle = m.theme.hpLow
	}
	est := m.estimate()
	costStyle, ok := m.theme.cost[string(est.Tier)]
	if !ok {
		costStyle = m.theme.muted
	}
	segs := []string{
		m.theme.speaker.Render(c.Name) + m.theme.muted.Render(fmt.Sprintf(" %s lvl %d", c.Class, c.Level)),
		hpStyle.Render(fmt.Sprintf("HP %d/%d", c.HP, c.MaxHP)),
		m.theme.narrative.Render(c.Location),
		costStyle.Render(fmt.Sprintf("~%s tokens, %s", estimate.FormatTokenCount(est.Total), strings.ToLower(estimate.CostDescription(est.Tier)))),
	}
	return strings.Join(segs, m.theme.muted.Render(" │ "))
}

func (m model) estimate() estimate.Result {
	p := estimate.FromSettings(m.cfg.Settings.LLM())
	if m.st.GameStarted {
		gc := m.st.GameContext()
		p.Game = &gc
	}
	p.Action = m.input.Value()
	return estimate.Estimate(p)
}

func (m model) viewScene(w int) string {
	var b strings.Builder
	if env := m.st.Environment; env != nil {
		b.WriteString(m.theme.muted.Render(env.Description))
		if len(env.NPCsPresent) > 0 {
			b.WriteString(m.theme.muted.Render(" · present: " + strings.Join(env.NPCsPresent, ", ")))
		}
		if env.Atmosphere != "" {
			b.WriteString("\n" + m.theme.muted.Italic(true).Render(env.Atmosphere))
		}
		b.WriteString("\n\n")
	}

	switch cur := m.st.Current; {
	case m.st.Processing && (cur == nil || cur.Content == ""):
		b.WriteString(m.spinner.View() + m.theme.muted.Render(" The narrator is weaving your tale..."))
	case cur == nil:
		b.WriteString(m.theme.muted.Render("Your story awaits."))
	default:
		b.WriteString(m.renderEntry(*cur, m.visibleText(), w-4))
		if m.st.Phase == game.PhaseStreaming {
			b.WriteString(m.spinner.View())
		}
	}
	return m.theme.panel.Width(w - 2).Render(b.String())
}

func (m model) viewRecap(w int) string {
	text := "The chronicler has nothing to tell yet. Take a few more actions."
	if r := m.st.Recap; r != nil {
		text = r.Content
	}
	return m.theme.panel.Width(w - 2).Render(
		m.theme.panelTitle.Render("The story so far") + "\n" + m.theme.narrative.Render(text))
}

func (m model) viewChoices() string {
	if len(m.st.ActionChoices) == 0 || m.st.Processing {
		return ""
	}
	var b strings.Builder
	for i, c := range m.st.ActionChoices {
		if i >= 9 {
			break
		}
		b.WriteString(m.theme.choiceKey.Render(fmt.Sprintf("[%d] ", i+1)))
		b.WriteString(m.theme.choice.Render(c.Text))
		if c.Description != "" {
			b.WriteString(m.theme.muted.Render(" - " + c.Description))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderEntry styles e with text standing in for its content.
func (m model) renderEntry(e game.Entry, text string, w int) string {
	wrap := lipgloss.NewStyle().Width(max(10, w))
	switch e.Type {
	case game.EntryAction:
		return wrap.Render(m.theme.action.Render("> " + text))
	case game.EntryDialogue:
		who := e.Speaker
		if e.SpeakerTitle != "" {
			who += ", " + e.SpeakerTitle
		}
		head := ""
		if who != "" {
			head = m.theme.speaker.Render(who) + "\n"
		}
		return wrap.Render(head + m.theme.dialogue.Render(text))
	case game.EntrySystem:
		return wrap.Render(m.theme.system.Render(text))
	}
	return wrap.Render(m.theme.narrative.Render(text))
}

func (m model) viewSettings() []string {
	w := m.contentWidth()
	s := m.cfg.Settings.Get()

	var b strings.Builder
	for f := range fieldCount {
		line := fmt.Sprintf(" %-18s %s ", fieldLabels[f], fieldValue(s, f))
		if int(f) == m.cursor {
			b.WriteString(m.theme.selected.Render(line))
		} else {
			b.WriteString(m.theme.option.Render(line))
		}
		b.WriteString("\n")
	}
	if m.editing != fieldNone {
		b.WriteString("\n" + m.input.View() + "\n")
	}

	est := m.estimate()
	info := []string{
		fmt.Sprintf("Estimated per turn: ~%s tokens (%s in, %s out), %s",
			estimate.FormatTokenCount(est.Total), estimate.FormatTokenCount(est.Input),
			estimate.FormatTokenCount(est.Output), estimate.CostDescription(est.Tier)),
		estimate.DetailDescription(s.LLM.ContextDetail),
	}
	if p, ok := catalog.Lookup(s.LLM.Provider); ok {
		if mi, ok := p.ModelInfo[s.LLM.Model]; ok {
			info = append(info, fmt.Sprintf("%s: %s (%s cost)", mi.Name, mi.Description, mi.Cost))
		}
		if p.RequiresAPIKey && !s.LLM.IsConfigured() {
			info = append(info, m.theme.errorStatus.Render("No API key set: the server's configured key will be used."))
		}
	}
	b.WriteString("\n" + m.theme.muted.Render(strings.Join(info, "\n")))

	return []string{
		m.header("Settings"),
		m.theme.panel.Width(w - 2).Render(b.String()),
		m.footer("↑/↓ move · ←/→ change · enter edit · r defaults · esc back"),
	}
}
