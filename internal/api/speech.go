package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrWong99/chronicles/internal/server"
	"github.com/MrWong99/chronicles/pkg/provider/tts"
)

// speechChunk is the read size for synthesized audio.
const speechChunk = 4096

// Voices lists the voices the server can synthesize.
func (c *Client) Voices(ctx context.Context) ([]tts.VoiceProfile, error) {
	var infos []server.VoiceInfo
	err := c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/voices", nil)
	}, &infos)
	if err != nil {
		return nil, err
	}
	out := make([]tts.VoiceProfile, len(infos))
	for i, v := range infos {
		out[i] = tts.VoiceProfile{ID: v.ID, Name: v.Name, Provider: v.Provider, Metadata: v.Metadata}
	}
	return out, nil
}

// Speech is a [tts.Provider] backed by the server's /api/speech route, for
// clients without their own TTS credentials.
type Speech struct {
	c *Client
}

var _ tts.Provider = (*Speech)(nil)

// Speech returns the server's speech backend.
func (c *Client) Speech() *Speech { return &Speech{c: c} }

// ListVoices implements tts.Provider.
func (s *Speech) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return s.c.Voices(ctx)
}

// SynthesizeStream implements tts.Provider. The whole text is collected
// before the request is sent.
func (s *Speech) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	var b strings.Builder
collect:
	for {
		select {
		case frag, ok := <-text:
			if !ok {
				break collect
			}
			b.WriteString(frag)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	req, err := s.c.newRequest(ctx, "/api/speech", server.SpeechRequest{
		Text:  b.String(),
		Voice: server.SpeechVoice{ID: voice.ID, Name: voice.Name, Speed: voice.SpeedFactor, Pitch: voice.PitchShift},
	})
	if err != nil {
		return nil, err
	}
	resp, err := s.c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: speech: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	out := make(chan []byte, 8)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		for {
			buf := make([]byte, speechChunk)
			n, err := resp.Body.Read(buf)
			if n > 0 {
				select {
				case out <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF && ctx.Err() == nil {
					slog.Warn("speech stream ended early", "err", err)
				}
				return
			}
		}
	}()
	return out, nil
}
