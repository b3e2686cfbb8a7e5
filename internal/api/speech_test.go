package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/chronicles/internal/config"
	"github.com/MrWong99/chronicles/internal/server"
	"github.com/MrWong99/chronicles/pkg/provider/tts"
	ttsmock "github.com/MrWong99/chronicles/pkg/provider/tts/mock"
)

func speechServer(t *testing.T, p tts.Provider) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	srv := server.New(func() *config.Config { return cfg }, nil, server.WithSpeech(p))
	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestSpeech_SynthesizeStream(t *testing.T) {
	p := &ttsmock.Provider{SynthesizeChunks: [][]byte{[]byte("pcm-1"), []byte("pcm-2")}}
	c := New(speechServer(t, p).URL, WithRetry(fastRetry))

	text := make(chan string, 2)
	text <- "Lok'tar "
	text <- "ogar."
	close(text)
	audio, err := c.Speech().SynthesizeStream(context.Background(), text, tts.VoiceProfile{ID: "v1", SpeedFactor: 1.2})
	if err != nil {
		t.Fatal(err)
	}
	var got bytes.Buffer
	for chunk := range audio {
		got.Write(chunk)
	}
	if got.String() != "pcm-1pcm-2" {
		t.Errorf("audio = %q", got.String())
	}
	calls := p.Calls()
	if len(calls) != 1 || calls[0].Text != "Lok'tar ogar." || calls[0].Voice.SpeedFactor != 1.2 {
		t.Errorf("calls = %+v", calls)
	}
}

func TestSpeech_Errors(t *testing.T) {
	c := New(speechServer(t, nil).URL, WithRetry(fastRetry))
	text := make(chan string, 1)
	text <- "hi"
	close(text)
	_, err := c.Speech().SynthesizeStream(context.Background(), text, tts.VoiceProfile{ID: "v1"})
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Errorf("err = %v, want 503 status", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Speech().SynthesizeStream(ctx, make(chan string), tts.VoiceProfile{ID: "v1"}); err == nil {
		t.Error("cancelled synthesis succeeded")
	}
}

func TestVoices(t *testing.T) {
	p := &ttsmock.Provider{ListVoicesResult: []tts.VoiceProfile{{ID: "v1", Name: "Thrall"}}}
	c := New(speechServer(t, p).URL)
	got, err := c.Speech().ListVoices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "Thrall" {
		t.Errorf("voices = %+v", got)
	}
}
