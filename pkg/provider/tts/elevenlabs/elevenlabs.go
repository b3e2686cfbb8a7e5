// Package elevenlabs voices narration through ElevenLabs: text is streamed
// over the stream-input WebSocket and PCM comes back as it is synthesised.
// Voices are listed through the REST API.
package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/MrWong99/chronicles/pkg/provider/tts"
)

const (
	apiBase       = "https://api.elevenlabs.io"
	defaultModel  = "eleven_flash_v2_5"
	defaultFormat = "pcm_16000"

	// providerID tags the voices this package lists.
	providerID = "elevenlabs"
)

// Option configures a [Provider].
type Option func(*Provider)

// WithModel selects the synthesis model, e.g. "eleven_multilingual_v2".
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithOutputFormat selects the audio encoding, e.g. "pcm_24000".
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		if format != "" {
			p.format = format
		}
	}
}

// WithBaseURL sends REST calls to base and derives the WebSocket endpoint
// from it (https becomes wss, anything else ws).
func WithBaseURL(base string) Option {
	return func(p *Provider) {
		if base != "" {
			p.base = strings.TrimRight(base, "/")
		}
	}
}

// WithHTTPClient sets the client used for REST calls. It also performs the
// WebSocket handshake unless it carries a Timeout, which the handshake
// rejects.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithRetries sets how many times a failed voice listing is retried on a
// transport error or 5xx. Default 2.
func WithRetries(n uint64) Option {
	return func(p *Provider) { p.retries = n }
}

// Provider is a [tts.Provider] for one ElevenLabs account.
type Provider struct {
	key     string
	model   string
	format  string
	base    string
	client  *http.Client
	retries uint64
}

var _ tts.Provider = (*Provider)(nil)

// New returns a provider authenticated with key.
func New(key string, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("elevenlabs: api key is required")
	}
	p := &Provider{
		key:     key,
		model:   defaultModel,
		format:  defaultFormat,
		base:    apiBase,
		client:  &http.Client{},
		retries: 2,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// streamURL is the stream-input endpoint for voiceID.
func (p *Provider) streamURL(voiceID string) string {
	u, err := url.Parse(p.base)
	if err != nil {
		u = &url.URL{Scheme: "https", Host: "api.elevenlabs.io"}
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	prefix := strings.TrimRight(u.Path, "/")
	u.Path = prefix + "/v1/text-to-speech/" + voiceID + "/stream-input"
	u.RawPath = prefix + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input"
	u.RawQuery = url.Values{"model_id": {p.model}}.Encode()
	return u.String()
}

// voiceList is the body of GET /v1/voices.
type voiceList struct {
	Voices []struct {
		ID       string            `json:"voice_id"`
		Name     string            `json:"name"`
		Category string            `json:"category"`
		Labels   map[string]string `json:"labels"`
	} `json:"voices"`
}

// ListVoices returns the account's voices. Labels such as gender, age and
// accent land in Metadata, next to the voice category.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	var list voiceList
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"/v1/voices", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("xi-api-key", p.key)
		req.Header.Set("Accept", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			return backoff.Permanent(fmt.Errorf("decode: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, p.retries), ctx)); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	return list.profiles(), nil
}

func (l voiceList) profiles() []tts.VoiceProfile {
	out := make([]tts.VoiceProfile, 0, len(l.Voices))
	for _, v := range l.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		out = append(out, tts.VoiceProfile{ID: v.ID, Name: v.Name, Provider: providerID, Metadata: meta})
	}
	return out
}
