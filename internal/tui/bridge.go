package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/MrWong99/chronicles/internal/game"
)

// Bridge carries engine and presenter callbacks into the program. Updates
// are coalesced: the program always sees the latest state and the latest
// revealed text, and the callbacks never block.
type Bridge struct {
	mu     sync.Mutex
	state  *game.State
	reveal *revealUpdate

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

type revealUpdate struct {
	text string
	done bool
}

// bridgeMsg delivers whatever changed since the last one.
type bridgeMsg struct {
	state  *game.State
	reveal *revealUpdate
}

// NewBridge returns an empty Bridge.
func NewBridge() *Bridge {
	return &Bridge{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

// OnChange is an engine change callback.
func (b *Bridge) OnChange(s game.State) {
	b.mu.Lock()
	b.state = &s
	b.mu.Unlock()
	b.poke()
}

// OnReveal is a presenter reveal callback.
func (b *Bridge) OnReveal(text string, done bool) {
	b.mu.Lock()
	b.reveal = &revealUpdate{text: text, done: done}
	b.mu.Unlock()
	b.poke()
}

// Close releases a pending wait.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) poke() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// wait blocks until something changed and returns it as a bridgeMsg.
func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-b.wake:
		case <-b.done:
			return nil
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		msg := bridgeMsg{state: b.state, reveal: b.reveal}
		b.state, b.reveal = nil, nil
		return msg
	}
}
