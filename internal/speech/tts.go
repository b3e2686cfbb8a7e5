package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/MrWong99/chronicles/pkg/provider/tts"
)

// TTS speaks through a [tts.Provider], writing the synthesised PCM to a sink
// such as an audio player's stdin.
type TTS struct {
	provider tts.Provider
	chooser  *Chooser

	sinkMu sync.Mutex
	sink   io.Writer

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

// NewTTS returns a Speaker that synthesises with p, picks voices with
// chooser and writes audio to sink.
func NewTTS(p tts.Provider, chooser *Chooser, sink io.Writer) *TTS {
	return &TTS{provider: p, chooser: chooser, sink: sink}
}

// Speak implements Speaker.
func (s *TTS) Speak(ctx context.Context, u Utterance) error {
	if strings.TrimSpace(u.Text) == "" {
		return nil
	}
	ctx, gen := s.begin(ctx)
	defer s.end(gen)

	v, ok := s.chooser.Choose(ctx, u)
	if !ok {
		return nil
	}
	p := ProsodyFor(u)
	v.SpeedFactor = p.Rate
	v.PitchShift = (p.Pitch - 1) * 10

	text := make(chan string, 1)
	text <- u.Text
	close(text)
	audio, err := s.provider.SynthesizeStream(ctx, text, v)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("speech: synthesize: %w", err)
	}
	var writeErr error
	for chunk := range audio {
		if writeErr != nil || ctx.Err() != nil {
			continue
		}
		s.sinkMu.Lock()
		_, writeErr = s.sink.Write(chunk)
		s.sinkMu.Unlock()
	}
	if writeErr != nil {
		return fmt.Errorf("speech: write audio: %w", writeErr)
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Stop implements Speaker.
func (s *TTS) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// begin cancels the current utterance and registers a new one.
func (s *TTS) begin(ctx context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.gen++
	return ctx, s.gen
}

func (s *TTS) end(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

var _ Speaker = (*TTS)(nil)
