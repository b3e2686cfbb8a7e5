package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/chronicles/pkg/provider/tts"
)

func TestNew(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Error("blank key accepted")
	}
	p, err := New("key", WithModel("eleven_multilingual_v2"), WithOutputFormat(""), WithBaseURL("https://proxy.example/tts/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != "eleven_multilingual_v2" || p.format != defaultFormat || p.base != "https://proxy.example/tts" {
		t.Errorf("provider = %+v", p)
	}
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		base, voice, want string
	}{
		{apiBase, "pNInz6obpgDQGcFmaJgB", "wss://api.elevenlabs.io/v1/text-to-speech/pNInz6obpgDQGcFmaJgB/stream-input?model_id=eleven_flash_v2_5"},
		{"http://127.0.0.1:9000", "voice abc", "ws://127.0.0.1:9000/v1/text-to-speech/voice%20abc/stream-input?model_id=eleven_flash_v2_5"},
		{"https://proxy.example/tts", "v/1", "wss://proxy.example/tts/v1/text-to-speech/v%2F1/stream-input?model_id=eleven_flash_v2_5"},
	}
	for _, tt := range tests {
		p, _ := New("key", WithBaseURL(tt.base))
		if got := p.streamURL(tt.voice); got != tt.want {
			t.Errorf("streamURL(%q) via %s = %q, want %q", tt.voice, tt.base, got, tt.want)
		}
	}
}

func TestSettingsFor(t *testing.T) {
	for _, tc := range []struct{ speed, want float64 }{
		{0, 0}, {0.5, minSpeed}, {1.1, 1.1}, {2, maxSpeed},
	} {
		if got := settingsFor(tts.VoiceProfile{SpeedFactor: tc.speed}).Speed; got != tc.want {
			t.Errorf("speed %v -> %v, want %v", tc.speed, got, tc.want)
		}
	}
}

func TestListVoices(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Header.Get("xi-api-key") != "key":
			w.WriteHeader(http.StatusUnauthorized)
		case calls.Add(1) == 1:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Thrall (Deep)","category":"premade","labels":{"gender":"male","accent":"orcish"}}]}`))
		}
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want a retry after the 502", calls.Load())
	}
	want := tts.VoiceProfile{ID: "v1", Name: "Thrall (Deep)", Provider: "elevenlabs",
		Metadata: map[string]string{"gender": "male", "accent": "orcish", "category": "premade"}}
	if len(voices) != 1 || voices[0].ID != want.ID || voices[0].Name != want.Name || voices[0].Provider != want.Provider {
		t.Fatalf("voices = %+v", voices)
	}
	for k, v := range want.Metadata {
		if voices[0].Metadata[k] != v {
			t.Errorf("metadata[%s] = %q, want %q", k, voices[0].Metadata[k], v)
		}
	}

	rejected, _ := New("wrong", WithBaseURL(srv.URL))
	before := calls.Load()
	if _, err := rejected.ListVoices(context.Background()); err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("rejected key err = %v", err)
	}
	if calls.Load() != before {
		t.Error("a 401 was retried")
	}
}

// fakeSession answers each fragment with pcm:<text> and the closing empty
// message with the final chunk.
type fakeSession struct {
	mu     sync.Mutex
	open   openMessage
	frames []string
}

func (f *fakeSession) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/stream-input") || r.URL.Query().Get("model_id") == "" {
			http.NotFound(w, r)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.CloseNow()
		ctx := r.Context()

		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		f.mu.Lock()
		json.Unmarshal(data, &f.open)
		f.mu.Unlock()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg textMessage
			json.Unmarshal(data, &msg)
			f.mu.Lock()
			f.frames = append(f.frames, msg.Text)
			f.mu.Unlock()

			reply := audioMessage{IsFinal: msg.Text == ""}
			if msg.Text != "" {
				reply.Audio = base64.StdEncoding.EncodeToString([]byte("pcm:" + msg.Text))
			}
			out, _ := json.Marshal(reply)
			if err := conn.Write(ctx, websocket.MessageText, out); err != nil || reply.IsFinal {
				return
			}
		}
	}
}

func TestSynthesizeStream(t *testing.T) {
	fake := &fakeSession{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL), WithOutputFormat("pcm_24000"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text := make(chan string, 3)
	text <- "Lok'tar"
	text <- ""
	text <- "ogar! "
	close(text)

	audio, err := p.SynthesizeStream(ctx, text, tts.VoiceProfile{ID: "thrall", SpeedFactor: 1.1})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	var got []string
	for pcm := range audio {
		got = append(got, string(pcm))
	}

	if strings.Join(got, "|") != "pcm:Lok'tar |pcm:ogar! " {
		t.Errorf("audio = %q", got)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.open.APIKey != "key" || fake.open.OutputFormat != "pcm_24000" || fake.open.VoiceSettings.Speed != 1.1 {
		t.Errorf("open message = %+v", fake.open)
	}
	if strings.Join(fake.frames, "|") != "Lok'tar |ogar! |" {
		t.Errorf("frames = %q, want two fragments and the closing message", fake.frames)
	}
}

func TestSynthesizeStream_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
		out, _ := json.Marshal(audioMessage{Error: "quota_exceeded"})
		conn.Write(r.Context(), websocket.MessageText, out)
		conn.Read(r.Context())
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	audio, err := p.SynthesizeStream(ctx, make(chan string), tts.VoiceProfile{ID: "thrall"})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	for range audio {
		t.Error("unexpected audio")
	}
	if ctx.Err() != nil {
		t.Error("stream only ended with the test deadline")
	}
}

func TestSynthesizeStream_RequiresVoice(t *testing.T) {
	p, _ := New("key")
	if _, err := p.SynthesizeStream(context.Background(), make(chan string), tts.VoiceProfile{}); err == nil {
		t.Error("empty voice id accepted")
	}
}
