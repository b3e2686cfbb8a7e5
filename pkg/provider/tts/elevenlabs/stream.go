package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"unicode"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/chronicles/pkg/provider/tts"
)

// The service accepts speaking rates in [minSpeed, maxSpeed].
const (
	minSpeed = 0.7
	maxSpeed = 1.2
)

// errFinal ends a session once the service reports the last chunk.
var errFinal = errors.New("elevenlabs: final chunk")

// openMessage starts a session. Its text must not be empty, so a single
// space is sent.
type openMessage struct {
	Text          string        `json:"text"`
	APIKey        string        `json:"xi_api_key"`
	OutputFormat  string        `json:"output_format,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// textMessage carries one fragment. An empty text closes the input.
type textMessage struct {
	Text string `json:"text"`
}

type audioMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// settingsFor clamps the profile's speed to what the service accepts.
// Pitch has no equivalent and is ignored.
func settingsFor(v tts.VoiceProfile) voiceSettings {
	s := voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	if v.SpeedFactor > 0 {
		s.Speed = min(maxSpeed, max(minSpeed, v.SpeedFactor))
	}
	return s
}

// SynthesizeStream forwards text to a stream-input session and returns the
// decoded PCM. The channel closes after the final chunk, on a transport
// error or when ctx ends.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice id is required")
	}
	dial := &websocket.DialOptions{}
	if p.client.Timeout == 0 {
		dial.HTTPClient = p.client
	}
	conn, _, err := websocket.Dial(ctx, p.streamURL(voice.ID), dial)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	open := openMessage{Text: " ", APIKey: p.key, OutputFormat: p.format, VoiceSettings: settingsFor(voice)}
	if err := send(ctx, conn, open); err != nil {
		conn.Close(websocket.StatusInternalError, "open failed")
		return nil, fmt.Errorf("elevenlabs: open session: %w", err)
	}

	audio := make(chan []byte, 64)
	go func() {
		defer close(audio)
		defer conn.CloseNow()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return forward(gctx, conn, text) })
		g.Go(func() error { return receive(gctx, conn, audio) })
		if err := g.Wait(); err != nil && !errors.Is(err, errFinal) && ctx.Err() == nil {
			slog.Warn("elevenlabs: stream ended early", "voice", voice.ID, "err", err)
			return
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}()
	return audio, nil
}

// forward sends each fragment, then the empty message that closes the input.
// Fragments get a trailing space so the service does not wait for the rest
// of a word.
func forward(ctx context.Context, conn *websocket.Conn, text <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frag, ok := <-text:
			if !ok {
				return send(ctx, conn, textMessage{})
			}
			if frag == "" {
				continue
			}
			if r := []rune(frag); !unicode.IsSpace(r[len(r)-1]) {
				frag += " "
			}
			if err := send(ctx, conn, textMessage{Text: frag}); err != nil {
				return err
			}
		}
	}
}

func receive(ctx context.Context, conn *websocket.Conn, audio chan<- []byte) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var msg audioMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return fmt.Errorf("elevenlabs: %s", msg.Error)
		}
		if msg.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			select {
			case audio <- pcm:
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if msg.Message != "" {
			slog.Debug("elevenlabs: service message", "message", msg.Message)
		}
		if msg.IsFinal {
			return errFinal
		}
	}
}

func send(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
