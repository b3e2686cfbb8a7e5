// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled audio chunks to speech consumers and to
// verify which voice and text fragments reached the TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    SynthesizeChunks: [][]byte{[]byte("audio1"), []byte("audio2")},
//	    ListVoicesResult: []tts.VoiceProfile{{ID: "v1", Name: "Alice"}},
//	}
//	ch, _ := p.SynthesizeStream(ctx, textCh, voice)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/chronicles/pkg/provider/tts"
)

// SynthesizeStreamCall records a single invocation of SynthesizeStream.
type SynthesizeStreamCall struct {
	Voice tts.VoiceProfile
	// Text holds every fragment read from the input channel, joined in order.
	// It is complete once the returned audio channel has closed.
	Text string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// SynthesizeChunks is emitted on the channel returned by SynthesizeStream.
	SynthesizeChunks [][]byte

	// SynthesizeErr, if non-nil, is returned from SynthesizeStream.
	SynthesizeErr error

	// ListVoicesResult and ListVoicesErr are returned by ListVoices.
	ListVoicesResult []tts.VoiceProfile
	ListVoicesErr    error

	calls          []*SynthesizeStreamCall
	listVoiceCalls int
}

// SynthesizeStream records the call, drains text into the call record and
// emits SynthesizeChunks once the text channel closes.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	call := &SynthesizeStreamCall{Voice: voice}
	p.calls = append(p.calls, call)
	if p.SynthesizeErr != nil {
		err := p.SynthesizeErr
		p.mu.Unlock()
		return nil, err
	}
	chunks := make([][]byte, len(p.SynthesizeChunks))
	copy(chunks, p.SynthesizeChunks)
	p.mu.Unlock()

	ch := make(chan []byte, len(chunks))
	go func() {
		defer close(ch)
		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					for _, audio := range chunks {
						select {
						case ch <- audio:
						case <-ctx.Done():
							return
						}
					}
					return
				}
				p.mu.Lock()
				call.Text += fragment
				p.mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listVoiceCalls++
	return p.ListVoicesResult, p.ListVoicesErr
}

// Calls returns a copy of the recorded SynthesizeStream calls. Thread-safe.
func (p *Provider) Calls() []SynthesizeStreamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeStreamCall, len(p.calls))
	for i, c := range p.calls {
		out[i] = *c
	}
	return out
}

// ListVoicesCallCount returns how often ListVoices was called.
func (p *Provider) ListVoicesCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listVoiceCalls
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
	p.listVoiceCalls = 0
}

var _ tts.Provider = (*Provider)(nil)
