package game

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/chronicles/internal/settings"
	"github.com/MrWong99/chronicles/internal/speech"
)

// RevealInterval is the delay between revealed characters for an entry of
// type t at the player's base speed: actions type faster, dialogue slower.
func RevealInterval(t EntryType, speed time.Duration) time.Duration {
	switch t {
	case EntryAction:
		return max(5*time.Millisecond, speed/2)
	case EntryDialogue:
		return speed + 10*time.Millisecond
	}
	return speed
}

// Presenter shows finished responses: it reveals the text at typewriter
// speed and starts speech at the same moment. It is safe for concurrent use.
type Presenter struct {
	speaker  speech.Speaker
	ui       func() settings.UI
	onReveal func(text string, done bool)

	mu          sync.Mutex
	runes       []rune
	shown       int
	stopReveal  chan struct{}
	stopSpeech  context.CancelFunc
	speechAlive sync.WaitGroup
}

// NewPresenter returns a Presenter. onReveal is called with the visible
// prefix each time it grows, and with done=true once the whole text shows.
// A nil speaker disables speech.
func NewPresenter(speaker speech.Speaker, ui func() settings.UI, onReveal func(text string, done bool)) *Presenter {
	if speaker == nil {
		speaker = speech.Nop{}
	}
	if onReveal == nil {
		onReveal = func(string, bool) {}
	}
	return &Presenter{speaker: speaker, ui: ui, onReveal: onReveal}
}

// Present replaces whatever is on screen with e.
func (p *Presenter) Present(e Entry) {
	ui := p.ui()
	p.mu.Lock()
	p.haltLocked()
	p.runes = []rune(e.Content)
	p.shown = 0

	if ui.TTSEnabled && e.Type != EntrySystem {
		ctx, cancel := context.WithCancel(context.Background())
		p.stopSpeech = cancel
		u := speech.Utterance{
			Text:    e.Content,
			Kind:    string(e.Type),
			Speaker: e.Speaker,
			Rate:    ui.SpeechRate,
			Voice:   ui.SelectedVoice,
		}
		p.speechAlive.Add(1)
		go func() {
			defer p.speechAlive.Done()
			if err := p.speaker.Speak(ctx, u); err != nil {
				slog.Warn("game: speech failed", "err", err)
			}
		}()
	}

	if !ui.TypewriterEnabled || len(p.runes) == 0 {
		p.shown = len(p.runes)
		text := string(p.runes)
		p.mu.Unlock()
		p.onReveal(text, true)
		return
	}
	stop := make(chan struct{})
	p.stopReveal = stop
	interval := RevealInterval(e.Type, time.Duration(ui.TypewriterSpeed)*time.Millisecond)
	p.mu.Unlock()
	go p.reveal(stop, interval)
}

func (p *Presenter) reveal(stop chan struct{}, interval time.Duration) {
	t := time.NewTicker(max(interval, time.Millisecond))
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		p.mu.Lock()
		if p.stopReveal != stop {
			p.mu.Unlock()
			return
		}
		p.shown++
		text, done := string(p.runes[:p.shown]), p.shown >= len(p.runes)
		if done {
			p.stopReveal = nil
		}
		p.mu.Unlock()
		p.onReveal(text, done)
		if done {
			return
		}
	}
}

// Skip shows the whole text at once. Speech keeps playing.
func (p *Presenter) Skip() {
	p.mu.Lock()
	if p.stopReveal == nil {
		p.mu.Unlock()
		return
	}
	close(p.stopReveal)
	p.stopReveal = nil
	p.shown = len(p.runes)
	text := string(p.runes)
	p.mu.Unlock()
	p.onReveal(text, true)
}

// Revealing reports whether a typewriter reveal is running.
func (p *Presenter) Revealing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopReveal != nil
}

// Suspend stops the reveal and any speech, as when the player leaves the
// game screen. It does not touch a turn that is still generating.
func (p *Presenter) Suspend() {
	p.mu.Lock()
	p.haltLocked()
	p.mu.Unlock()
}

// Close suspends and waits for speech goroutines to finish.
func (p *Presenter) Close() {
	p.Suspend()
	p.speechAlive.Wait()
}

func (p *Presenter) haltLocked() {
	if p.stopReveal != nil {
		close(p.stopReveal)
		p.stopReveal = nil
	}
	if p.stopSpeech != nil {
		p.stopSpeech()
		p.stopSpeech = nil
		p.speaker.Stop()
	}
}
