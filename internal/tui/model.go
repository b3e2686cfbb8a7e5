package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/chronicles/internal/game"
)

type screen int

const (
	screenScenarios screen = iota
	screenCharacters
	screenNaming
	screenGame
	screenSettings
)

// op names a background engine call.
type op int

const (
	opTurn op = iota
	opCharacter
	opBack
	opReset
	opRecap
	opSettings
)

type opDoneMsg struct {
	op  op
	err error
}

type keyCheckedMsg struct {
	key string
	ok  bool
	err error
}

// pickItem is one row of the character list: a class to name, or a legend.
type pickItem struct {
	label string
	desc  string
	class *game.Class
	pick  game.Pick
}

const helpText = "/recap story so far · /settings · /back change era · /reset start over · /log history · /quit"

type model struct {
	ctx context.Context
	cfg Config

	scenarios []game.Scenario
	scenario  game.Scenario
	picks     []pickItem
	naming    game.Class

	st        game.State
	reveal    string
	hasReveal bool

	screen    screen
	back      screen
	cursor    int
	editing   field
	busy      bool
	showLog   bool
	showRecap bool
	logLen    int
	status    string
	statusErr bool

	width  int
	height int

	input   textinput.Model
	log     viewport.Model
	spinner spinner.Model
	theme   theme
}

func newModel(ctx context.Context, cfg Config) (model, error) {
	list, err := game.Scenarios()
	if err != nil {
		return model{}, fmt.Errorf("tui: %w", err)
	}

	input := textinput.New()
	input.Prompt = "» "
	input.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#f8b700"))

	m := model{
		ctx:       ctx,
		cfg:       cfg,
		scenarios: list,
		st:        cfg.Game.State(),
		editing:   fieldNone,
		input:     input,
		log:       viewport.New(80, 20),
		spinner:   sp,
		theme:     newTheme(),
	}
	switch {
	case m.st.GameStarted && m.st.CharacterSelected:
		m.enterGame()
	case m.st.ScenarioSelected:
		if s, ok := game.LookupScenario(m.st.ScenarioID); ok {
			m.enterCharacters(s)
		}
	}
	return m, nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, m.cfg.Bridge.wait())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case bridgeMsg:
		if msg.state != nil {
			m.applyState(*msg.state)
		}
		if msg.reveal != nil {
			m.reveal, m.hasReveal = msg.reveal.text, true
		}
		cmds = append(cmds, m.cfg.Bridge.wait())

	case opDoneMsg:
		m.finish(msg)

	case keyCheckedMsg:
		cmds = append(cmds, m.keyChecked(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		switch m.screen {
		case screenScenarios:
			cmd = m.scenarioKey(msg)
		case screenCharacters:
			cmd = m.characterKey(msg)
		case screenNaming:
			cmd = m.namingKey(msg)
		case screenGame:
			cmd = m.gameKey(msg)
		case screenSettings:
			cmd = m.settingsKey(msg)
		}
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) applyState(s game.State) {
	if s.Phase == game.PhaseSubmitted {
		m.hasReveal = false
		m.reveal = ""
	}
	m.st = s
	if len(s.Narrative) != m.logLen {
		m.refreshLog()
	}
}

// run performs fn off the UI loop and reports back with an opDoneMsg.
func (m *model) run(o op, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg { return opDoneMsg{op: o, err: fn(ctx)} }
}

func (m *model) finish(msg opDoneMsg) {
	m.busy = false
	if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
		switch {
		case errors.Is(msg.err, game.ErrTurnInFlight):
			m.setStatus("The narrator is still weaving the last tale.", true)
		case msg.op == opTurn:
			m.setStatus("Turn failed: "+msg.err.Error(), true)
		default:
			m.setStatus(msg.err.Error(), true)
		}
	}
	switch msg.op {
	case opCharacter:
		if msg.err == nil {
			m.enterGame()
		}
	case opBack:
		m.enterScenarios()
	case opReset:
		m.enterScenarios()
		if msg.err == nil {
			m.setStatus("The chronicle begins anew.", false)
		}
	case opRecap:
		m.st = m.cfg.Game.State()
		m.showRecap = true
		if msg.err == nil {
			m.clearStatus()
		}
	}
}

func (m *model) setStatus(s string, isErr bool) {
	m.status, m.statusErr = s, isErr
}

func (m *model) clearStatus() {
	m.status, m.statusErr = "", false
}

func (m *model) resize() {
	w := m.contentWidth()
	m.input.Width = max(10, w-4)
	m.log.Width = w
	m.log.Height = max(5, m.height-10)
	m.refreshLog()
}

func (m model) contentWidth() int {
	if m.width <= 0 {
		return 78
	}
	return max(30, m.width-4)
}

// Scenario selection.

func (m *model) enterScenarios() {
	m.screen = screenScenarios
	m.cursor = 0
	m.showLog, m.showRecap = false, false
	m.st = m.cfg.Game.State()
	m.input.Blur()
}

func (m *model) scenarioKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		m.cursor = (m.cursor + len(m.scenarios) - 1) % len(m.scenarios)
	case "down", "j":
		m.cursor = (m.cursor + 1) % len(m.scenarios)
	case "enter":
		m.chooseScenario(m.cursor)
	case "s":
		m.openSettings()
	case "q", "esc":
		return tea.Quit
	default:
		if i, ok := digit(msg); ok && i < len(m.scenarios) {
			m.chooseScenario(i)
		}
	}
	return nil
}

func (m *model) chooseScenario(i int) {
	s := m.scenarios[i]
	m.cfg.Game.SelectScenario(s)
	m.clearStatus()
	m.enterCharacters(s)
}

// Character selection.

func (m *model) enterCharacters(s game.Scenario) {
	m.scenario = s
	m.picks = m.picks[:0]
	for i := range s.Classes {
		c := &s.Classes[i]
		m.picks = append(m.picks, pickItem{
			label: fmt.Sprintf("Custom %s (%d HP)", c.Name, c.HP),
			desc:  c.Description,
			class: c,
		})
	}
	for _, l := range s.Legends {
		m.picks = append(m.picks, pickItem{
			label: fmt.Sprintf("%s, %s", l.Name, l.Title),
			desc:  l.Description,
			pick:  l.Pick(),
		})
	}
	m.cursor = 0
	m.screen = screenCharacters
	m.input.Blur()
}

func (m *model) characterKey(msg tea.KeyMsg) tea.Cmd {
	if m.busy || len(m.picks) == 0 {
		if msg.String() == "esc" {
			return m.run(opBack, m.cfg.Game.BackToScenarioSelection)
		}
		return nil
	}
	switch msg.String() {
	case "up", "k":
		m.cursor = (m.cursor + len(m.picks) - 1) % len(m.picks)
	case "down", "j":
		m.cursor = (m.cursor + 1) % len(m.picks)
	case "enter":
		return m.choosePick(m.cursor)
	case "esc":
		return m.run(opBack, m.cfg.Game.BackToScenarioSelection)
	default:
		if i, ok := digit(msg); ok && i < len(m.picks) {
			return m.choosePick(i)
		}
	}
	return nil
}

func (m *model) choosePick(i int) tea.Cmd {
	item := m.picks[i]
	if item.class != nil {
		m.naming = *item.class
		m.screen = screenNaming
		m.input.Reset()
		m.input.EchoMode = textinput.EchoNormal
		m.input.Placeholder = "Name your " + item.class.Name
		m.input.Focus()
		return nil
	}
	return m.startGame(item.pick)
}

func (m *model) namingKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.screen = screenCharacters
		m.input.Blur()
		return nil
	case "enter":
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.setStatus("Every hero needs a name.", true)
			return nil
		}
		return m.startGame(game.CustomPick(name, m.naming))
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *model) startGame(p game.Pick) tea.Cmd {
	if m.busy {
		return nil
	}
	m.busy = true
	m.clearStatus()
	g := m.cfg.Game
	return m.run(opCharacter, func(ctx context.Context) error { return g.SelectCharacter(ctx, p) })
}

// The game screen.

func (m *model) enterGame() {
	m.screen = screenGame
	m.st = m.cfg.Game.State()
	m.hasReveal = false
	m.showLog, m.showRecap = false, false
	m.input.Reset()
	m.input.EchoMode = textinput.EchoNormal
	m.input.Placeholder = "What do you do? (1-9 picks a choice, /help for commands)"
	m.input.Focus()
	m.refreshLog()
}

func (m *model) gameKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		switch {
		case m.revealing():
			m.cfg.Presenter.Skip()
		case m.showRecap:
			m.showRecap = false
		case m.showLog:
			m.showLog = false
		}
		return nil
	case "tab":
		m.showLog = !m.showLog
		m.refreshLog()
		return nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return cmd
	case "enter":
		return m.submitInput()
	}
	if i, ok := digit(msg); ok && m.input.Value() == "" {
		if i < len(m.st.ActionChoices) {
			return m.act(m.st.ActionChoices[i].Text)
		}
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *model) revealing() bool {
	return m.cfg.Presenter != nil && m.cfg.Presenter.Revealing()
}

func (m *model) submitInput() tea.Cmd {
	raw := strings.TrimSpace(m.input.Value())
	if raw == "" {
		if m.revealing() {
			m.cfg.Presenter.Skip()
		}
		return nil
	}
	if strings.HasPrefix(raw, "/") {
		m.input.SetValue("")
		return m.command(raw)
	}
	return m.act(raw)
}

func (m *model) act(action string) tea.Cmd {
	if m.busy || m.st.Processing {
		m.setStatus("The narrator is still weaving the last tale.", true)
		return nil
	}
	m.input.SetValue("")
	m.busy = true
	m.showRecap = false
	m.clearStatus()
	g := m.cfg.Game
	return m.run(opTurn, func(ctx context.Context) error { return g.TakeTurn(ctx, action) })
}

func (m *model) command(raw string) tea.Cmd {
	name := strings.ToLower(strings.Fields(raw)[0])
	g := m.cfg.Game
	switch name {
	case "/recap":
		if m.showRecap {
			m.showRecap = false
			return nil
		}
		if m.busy {
			m.setStatus("Wait for the narrator to finish.", true)
			return nil
		}
		m.busy = true
		m.setStatus("The chronicler consults the journal...", false)
		return m.run(opRecap, g.CheckRecap)
	case "/reset":
		m.busy = true
		return m.run(opReset, g.Reset)
	case "/back":
		return m.run(opBack, g.BackToScenarioSelection)
	case "/settings":
		m.openSettings()
	case "/log":
		m.showLog = !m.showLog
		m.refreshLog()
	case "/help":
		m.setStatus(helpText, false)
	case "/quit", "/exit":
		return tea.Quit
	default:
		m.setStatus(fmt.Sprintf("Unknown command %s. Try /help.", name), true)
	}
	return nil
}

// visibleText is the part of the current entry on screen: the typewriter
// prefix once the response is presented, the live stream before that.
func (m model) visibleText() string {
	cur := m.st.Current
	if cur == nil {
		return ""
	}
	if m.hasReveal && (m.st.Phase == game.PhaseIdle || m.st.Phase == game.PhaseFinalizing) &&
		strings.HasPrefix(cur.Content, m.reveal) {
		return m.reveal
	}
	return cur.Content
}

func (m *model) refreshLog() {
	m.logLen = len(m.st.Narrative)
	w := m.contentWidth()
	parts := make([]string, 0, len(m.st.Narrative))
	for _, e := range m.st.Narrative {
		parts = append(parts, m.renderEntry(e, e.Content, w))
	}
	m.log.SetContent(strings.Join(parts, "\n\n"))
	m.log.GotoBottom()
}

// digit maps the keys 1-9 to indexes 0-8.
func digit(msg tea.KeyMsg) (int, bool) {
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return 0, false
	}
	r := msg.Runes[0]
	if r < '1' || r > '9' {
		return 0, false
	}
	return int(r - '1'), true
}
