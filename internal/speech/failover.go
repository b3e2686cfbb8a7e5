package speech

import (
	"context"

	"github.com/MrWong99/chronicles/internal/resilience"
	"github.com/MrWong99/chronicles/pkg/provider/tts"
)

// Failover is a [tts.Provider] that moves on to the next backend when one
// fails. Only stream setup is covered; a stream that breaks mid-way ends
// early.
type Failover struct {
	group *resilience.Failover[tts.Provider]
}

var _ tts.Provider = (*Failover)(nil)

// NewFailover returns a Failover preferring primary.
func NewFailover(primary tts.Provider, name string, cfg resilience.FailoverConfig) *Failover {
	return &Failover{group: resilience.NewFailover(primary, name, cfg)}
}

// Add registers a backend tried after the ones already added.
func (f *Failover) Add(name string, p tts.Provider) { f.group.Add(name, p) }

// SynthesizeStream implements tts.Provider. text is read by the first
// backend that accepts the stream, so it must be fully buffered.
func (f *Failover) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	var frags []string
collect:
	for {
		select {
		case frag, ok := <-text:
			if !ok {
				break collect
			}
			frags = append(frags, frag)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return resilience.Do(f.group, func(p tts.Provider) (<-chan []byte, error) {
		in := make(chan string, len(frags))
		for _, frag := range frags {
			in <- frag
		}
		close(in)
		return p.SynthesizeStream(ctx, in, voice)
	})
}

// ListVoices implements tts.Provider.
func (f *Failover) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return resilience.Do(f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}
