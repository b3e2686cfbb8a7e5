// Package game is the client-side state machine. It submits player actions,
// consumes the turn stream, applies its events to the persisted game state and
// keeps the story recap current.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/chronicles/internal/observe"
	"github.com/MrWong99/chronicles/internal/resilience"
	"github.com/MrWong99/chronicles/internal/settings"
	"github.com/MrWong99/chronicles/internal/storage"
	"github.com/MrWong99/chronicles/internal/turn"
)

var (
	// ErrTurnInFlight is returned by [Engine.TakeTurn] while another turn is
	// being submitted or streamed. Turns are never queued.
	ErrTurnInFlight = errors.New("game: a turn is already in progress")

	// ErrEmptyAction is returned by [Engine.TakeTurn] for a blank action.
	ErrEmptyAction = errors.New("game: action is empty")

	// ErrNoScenario is returned by [Engine.SelectCharacter] before a scenario
	// has been chosen.
	ErrNoScenario = errors.New("game: no scenario selected")

	// errStreamCut marks a stream that ended without complete or error.
	errStreamCut = errors.New("game: stream ended without a result")
)

// Player-facing failure texts.
const (
	msgTurnFailed   = "Something went wrong. Please try again."
	msgRecapFailed  = "The chronicler's quill runs dry as mystical energies interfere with the telling of recent deeds. The hero's tale continues, though some chapters remain unwritten..."
	msgRecapMissing = "Story recap unavailable"
)

// RecapPrompt is the instruction sent with every recap request.
const RecapPrompt = "Create a concise story recap in the style of a World of Warcraft quest journal entry. Keep it to 2-3 short paragraphs using double line breaks (\\n\\n) between them. Focus on: key encounters/conflicts and current situation. Use epic fantasy language befitting Azeroth but keep it compact and engaging. Include the most important NPCs met, locations visited, and conflicts faced. Write as if this were a brief entry in the hero's personal chronicle - memorable but not overly detailed."

// Recap cadence.
const (
	recapEvery      = 5
	recapMinActions = 2
)

// Client is the narrator server as the engine uses it. *api.Client
// implements it.
type Client interface {
	StreamTurn(ctx context.Context, gc turn.GameContext, action string, fn func(turn.Event) error) error
	StoryRecap(ctx context.Context, gc turn.GameContext, prompt string) (string, error)
}

// Option is a functional option for [New].
type Option func(*Engine)

// WithStorage persists game progress to kv.
func WithStorage(kv storage.KV) Option {
	return func(e *Engine) { e.kv = kv }
}

// WithSettings lets [Engine.Reset] clear the settings as well.
func WithSettings(s *settings.Store) Option {
	return func(e *Engine) { e.settings = s }
}

// WithRecapLimiter routes recap requests through l.
func WithRecapLimiter(l *resilience.RateLimiter) Option {
	return func(e *Engine) { e.recapLimiter = l }
}

// WithPresenter shows finished responses through p.
func WithPresenter(p *Presenter) Option {
	return func(e *Engine) { e.presenter = p }
}

// WithOnChange registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that made the change and must not block.
func WithOnChange(fn func(State)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// WithOnReset registers fn to run after [Engine.Reset] cleared the game,
// such as dropping cached voice casting.
func WithOnReset(fn func()) Option {
	return func(e *Engine) { e.onReset = fn }
}

// WithTiming overrides the action display hold (1s) and the delay before the
// recap check (1s).
func WithTiming(hold, recapDelay time.Duration) Option {
	return func(e *Engine) {
		e.hold = hold
		e.recapDelay = recapDelay
	}
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns the game state. All methods are safe for concurrent use.
type Engine struct {
	client       Client
	kv           storage.KV
	settings     *settings.Store
	recapLimiter *resilience.RateLimiter
	presenter    *Presenter
	onChange     func(State)
	onReset      func()
	hold         time.Duration
	recapDelay   time.Duration
	now          func() time.Time

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	saveMu sync.Mutex

	mu        sync.Mutex
	st        State
	scenario  *Scenario
	inFlight  bool
	recapping bool
}

// New returns an Engine in the initial state. Call [Engine.Restore] to load
// a saved game and Close when done.
func New(client Client, opts ...Option) *Engine {
	e := &Engine{
		client:     client,
		hold:       time.Second,
		recapDelay: time.Second,
		now:        time.Now,
		st:         initialState(),
	}
	for _, o := range opts {
		o(e)
	}
	e.bgCtx, e.bgCancel = context.WithCancel(context.Background())
	return e
}

// Close cancels background recap work and waits for it.
func (e *Engine) Close() {
	e.bgCancel()
	e.bg.Wait()
}

// State returns a snapshot of the game.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.clone()
}

// Busy reports whether a turn is being submitted or streamed.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// update runs fn under the state lock and then notifies the observer.
func (e *Engine) update(fn func(st *State)) {
	e.mu.Lock()
	fn(&e.st)
	snap := e.st.clone()
	e.mu.Unlock()
	if e.onChange != nil {
		e.onChange(snap)
	}
}

// SelectScenario starts character selection for s.
func (e *Engine) SelectScenario(s Scenario) {
	e.update(func(st *State) {
		sc := s
		e.scenario = &sc
		st.Scenario = s.Title
		st.ScenarioID = s.ID
		st.Loading = false
		st.GameStarted = false
		st.ScenarioSelected = true
		st.CharacterSelected = false
	})
}

// SelectCharacter begins the game in the selected scenario with p and shows
// the opening narration.
func (e *Engine) SelectCharacter(ctx context.Context, p Pick) error {
	e.mu.Lock()
	sc := e.scenario
	if sc == nil && e.st.ScenarioID != "" {
		if s, ok := LookupScenario(e.st.ScenarioID); ok {
			sc = &s
			e.scenario = sc
		}
	}
	e.mu.Unlock()
	if sc == nil {
		return ErrNoScenario
	}

	lines := OpeningLines(*sc, p)
	now := e.now()
	var opening Entry
	e.update(func(st *State) {
		st.Character = Character{
			Name:      p.Name,
			HP:        p.HP,
			MaxHP:     p.HP,
			Inventory: append([]string{}, sc.StartingInventory...),
			Location:  sc.StartingLocation,
			Class:     p.Class,
			Level:     1,
			Abilities: append([]string{}, p.Abilities...),
			IsCustom:  p.IsCustom,
		}
		st.Narrative = make([]Entry, len(lines))
		for i, l := range lines {
			st.Narrative[i] = Entry{Type: EntryNarrative, Content: l, Timestamp: now.Add(time.Duration(i) * time.Millisecond)}
		}
		opening = Entry{Type: EntryNarrative, Content: strings.Join(lines, "\n\n"), Timestamp: now}
		st.Current = &opening
		st.Environment = &Environment{
			Description: sc.StartingLocation,
			NPCsPresent: []string{},
			Atmosphere:  "The beginning of your adventure",
		}
		st.ActionChoices = []turn.ActionChoice{}
		st.Recap = nil
		st.Status = ""
		st.Loading = false
		st.GameStarted = true
		st.CharacterSelected = true
	})
	if e.presenter != nil {
		e.presenter.Present(opening)
	}
	return e.save(ctx)
}

// BackToScenarioSelection abandons the current story but keeps the
// character sheet.
func (e *Engine) BackToScenarioSelection(ctx context.Context) error {
	if e.presenter != nil {
		e.presenter.Suspend()
	}
	e.update(func(st *State) {
		e.scenario = nil
		st.ScenarioSelected = false
		st.CharacterSelected = false
		st.GameStarted = false
		st.ScenarioID = ""
		st.Recap = nil
		st.Narrative = []Entry{}
		st.Current = nil
		st.ActionChoices = []turn.ActionChoice{}
	})
	return e.save(ctx)
}

// TakeTurn plays one turn: it echoes action, holds it on screen, streams
// the narrator's response and applies it. Stream-level failures are shown
// to the player and also returned.
func (e *Engine) TakeTurn(ctx context.Context, action string) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrEmptyAction
	}
	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return ErrTurnInFlight
	}
	e.inFlight = true
	// The narrator sees the log as it was before this action.
	gc := e.st.GameContext()
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	ctx, span := observe.StartSpan(ctx, "game.turn")
	defer span.End()
	log := observe.Logger(ctx)

	if e.presenter != nil {
		e.presenter.Suspend()
	}
	now := e.now()
	e.update(func(st *State) {
		st.ActionChoices = []turn.ActionChoice{}
		st.Current = &Entry{Type: EntryAction, Content: action, Timestamp: now}
		st.Narrative = append(st.Narrative, Entry{Type: EntryAction, Content: action, Timestamp: now})
		st.Phase = PhaseSubmitted
	})
	if err := e.save(ctx); err != nil {
		log.Warn("game: save after action", "err", err)
	}

	if err := sleep(ctx, e.hold); err != nil {
		e.update(func(st *State) { st.Phase = PhaseIdle })
		return err
	}
	e.update(func(st *State) {
		st.Current = nil
		st.Processing = true
		st.Phase = PhaseProcessing
	})

	tp := &turnProgress{kind: EntryNarrative}
	err := e.client.StreamTurn(ctx, gc, action, func(ev turn.Event) error {
		e.handle(ctx, tp, ev)
		return nil
	})
	switch {
	case err == nil && tp.outcome == outcomeNone:
		err = errStreamCut
		fallthrough
	case err != nil && tp.outcome == outcomeNone:
		if ctx.Err() != nil {
			e.update(func(st *State) {
				st.Processing = false
				st.Phase = PhaseIdle
			})
			return ctx.Err()
		}
		log.Error("game: turn failed", "err", err)
		observe.Fail(ctx, err)
		e.fail(msgTurnFailed)
		return fmt.Errorf("game: turn: %w", err)
	}

	if saveErr := e.save(ctx); saveErr != nil {
		log.Warn("game: save after turn", "err", saveErr)
	}
	if tp.outcome == outcomeErrored {
		err := fmt.Errorf("game: turn: %s", tp.errMsg)
		observe.Fail(ctx, err)
		return err
	}

	if e.presenter != nil {
		e.presenter.Present(tp.final)
	}
	e.update(func(st *State) { st.Phase = PhaseIdle })
	e.scheduleRecap()
	return nil
}

// fail shows msg as a system response and ends processing.
func (e *Engine) fail(msg string) {
	now := e.now()
	e.update(func(st *State) {
		st.Processing = false
		st.Phase = PhaseErrored
		st.Current = &Entry{Type: EntrySystem, Content: msg, Timestamp: now}
	})
}

func (e *Engine) scheduleRecap() {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		if err := sleep(e.bgCtx, e.recapDelay); err != nil {
			return
		}
		if err := e.CheckRecap(e.bgCtx); err != nil && e.bgCtx.Err() == nil {
			observe.Logger(e.bgCtx).Warn("game: recap failed", "err", err)
		}
	}()
}

// CheckRecap regenerates the story recap when none exists or when at least
// five actions have happened since the last one, provided the player has
// acted at least twice. A failed generation stores a placeholder recap and
// returns the error.
func (e *Engine) CheckRecap(ctx context.Context) error {
	e.mu.Lock()
	count := e.st.ActionCount()
	due := e.st.Recap == nil || count-e.st.Recap.TurnCount >= recapEvery
	if !due || count < recapMinActions || e.recapping {
		e.mu.Unlock()
		return nil
	}
	text := e.st.recapNarrative()
	if strings.TrimSpace(text) == "" {
		e.mu.Unlock()
		return nil
	}
	gc := turn.GameContext{
		Scenario:         e.st.Scenario,
		Character:        e.st.Character.wire(),
		NarrativeHistory: []string{text},
		CurrentContext:   "Generate story recap",
	}
	e.recapping = true
	e.st.Loading = true
	e.mu.Unlock()

	ask := func(ctx context.Context) (string, error) { return e.client.StoryRecap(ctx, gc, RecapPrompt) }
	var recap string
	var err error
	if e.recapLimiter != nil {
		recap, err = resilience.Submit(ctx, e.recapLimiter, ask)
	} else {
		recap, err = ask(ctx)
	}
	if ctx.Err() != nil {
		e.update(func(st *State) {
			e.recapping = false
			st.Loading = false
		})
		return ctx.Err()
	}
	switch {
	case err != nil:
		recap = msgRecapFailed
	case strings.TrimSpace(recap) == "":
		recap = msgRecapMissing
	}
	now := e.now()
	e.update(func(st *State) {
		e.recapping = false
		st.Loading = false
		st.Recap = &Recap{Content: recap, LastUpdated: now, TurnCount: count}
	})
	if saveErr := e.save(ctx); saveErr != nil {
		observe.Logger(ctx).Warn("game: save after recap", "err", saveErr)
	}
	if err != nil {
		return fmt.Errorf("game: recap: %w", err)
	}
	return nil
}

// Reset discards the game and the settings, in memory and on disk.
func (e *Engine) Reset(ctx context.Context) error {
	if e.presenter != nil {
		e.presenter.Suspend()
	}
	e.update(func(st *State) {
		e.scenario = nil
		*st = initialState()
	})
	var errs []error
	if e.kv != nil {
		if err := e.kv.Delete(ctx, storage.KeyGame); err != nil {
			errs = append(errs, fmt.Errorf("game: reset: %w", err))
		}
	}
	if e.settings != nil {
		if err := e.settings.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.onReset != nil {
		e.onReset()
	}
	return errors.Join(errs...)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
