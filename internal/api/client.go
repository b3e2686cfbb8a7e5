// Package api is the game client's view of the narrator server. JSON calls
// are retried with exponential backoff on transport errors and 5xx replies;
// the turn stream is attempted once.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/chronicles/internal/catalog"
	"github.com/MrWong99/chronicles/internal/resilience"
	"github.com/MrWong99/chronicles/internal/server"
	"github.com/MrWong99/chronicles/internal/settings"
	"github.com/MrWong99/chronicles/internal/sse"
	"github.com/MrWong99/chronicles/internal/turn"
	"github.com/MrWong99/chronicles/internal/voice"
)

// StatusError is a non-2xx reply. Its message carries the status code, so a
// 429 is recognised by [resilience.IsRateLimitError].
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Code)
	}
	return fmt.Sprintf("api: status %d: %s", e.Code, e.Message)
}

// Option is a functional option for [New].
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSettings makes every request carry the narrator settings returned by
// fn as x-llm-* headers.
func WithSettings(fn func() settings.LLM) Option {
	return func(c *Client) { c.settings = fn }
}

// WithRetry overrides the backoff used for JSON calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// Client talks to one narrator server. It is safe for concurrent use.
type Client struct {
	base     string
	http     *http.Client
	settings func() settings.LLM
	retry    resilience.RetryConfig
}

// New returns a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		http:  http.DefaultClient,
		retry: resilience.RetryConfig{MaxElapsedTime: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StreamTurn submits action and calls fn for every event of the turn stream
// until the stream ends. A reply that is not an event stream is returned as
// a [*StatusError].
func (c *Client) StreamTurn(ctx context.Context, gc turn.GameContext, action string, fn func(turn.Event) error) error {
	req, err := c.newRequest(ctx, "/api/game-response", server.GameRequest{GameContext: gc, PlayerAction: action})
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: game response: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return sse.Read(ctx, resp.Body, fn)
}

// StoryRecap asks the narrator to summarise the game so far.
func (c *Client) StoryRecap(ctx context.Context, gc turn.GameContext, prompt string) (string, error) {
	var out server.RecapResponse
	if err := c.postJSON(ctx, "/api/generate-story-recap", server.RecapRequest{GameContext: gc, Prompt: prompt}, &out); err != nil {
		return "", err
	}
	return out.Recap, nil
}

// SelectVoice asks the narrator to cast a voice for a character.
func (c *Client) SelectVoice(ctx context.Context, req voice.Request) (string, error) {
	var out voice.Response
	if err := c.postJSON(ctx, "/api/voice-selection", req, &out); err != nil {
		return "", err
	}
	return out.RecommendedVoice, nil
}

// ValidateKey reports whether the provider accepts key.
func (c *Client) ValidateKey(ctx context.Context, provider, key string) (bool, error) {
	var out server.ValidateKeyResponse
	err := c.postJSON(ctx, "/api/validate-key", server.ValidateKeyRequest{Provider: provider, APIKey: key}, &out)
	return out.Valid, err
}

// Providers lists the narrator backends the server offers.
func (c *Client) Providers(ctx context.Context) ([]catalog.ProviderInfo, error) {
	var out []catalog.ProviderInfo
	err := c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/providers", nil)
	}, &out)
	return out, err
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, func() (*http.Request, error) { return c.newRequest(ctx, path, body) }, out)
}

// do sends the request built by newReq, retrying transport errors and 5xx
// replies. Rate limits and other 4xx replies are returned at once.
func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error), out any) error {
	return resilience.Retry(ctx, c.retry, func() error {
		req, err := newReq()
		if err != nil {
			return resilience.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("api: %s: %w", req.URL.Path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			serr := statusError(resp)
			if resp.StatusCode < 500 {
				return resilience.Permanent(serr)
			}
			return serr
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resilience.Permanent(fmt.Errorf("api: decode %s: %w", req.URL.Path, err))
		}
		return nil
	})
}

func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("api: marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("api: %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.settings != nil {
		setSettingsHeaders(req.Header, c.settings())
	}
	return req, nil
}

// setSettingsHeaders writes l as x-llm-* headers. The provider and model are
// sent when the provider is usable as configured: it needs no key or one is
// present. Otherwise the server's defaults apply.
func setSettingsHeaders(h http.Header, l settings.LLM) {
	if info, ok := catalog.Lookup(l.Provider); ok && (!info.RequiresAPIKey || l.IsConfigured()) {
		h.Set(server.HeaderProvider, l.Provider)
		if key := strings.TrimSpace(l.APIKey); key != "" {
			h.Set(server.HeaderAPIKey, key)
		}
		if l.Model != "" {
			h.Set(server.HeaderModel, l.Model)
		}
	}
	if l.Temperature > 0 {
		h.Set(server.HeaderTemperature, strconv.FormatFloat(l.Temperature, 'f', -1, 64))
	}
	if l.MaxTokens > 0 {
		h.Set(server.HeaderMaxTokens, strconv.Itoa(l.MaxTokens))
	}
	if l.HistoryLength > 0 {
		h.Set(server.HeaderHistoryLength, strconv.Itoa(l.HistoryLength))
	}
	if l.ContextDetail.Valid() {
		h.Set(server.HeaderContextDetail, string(l.ContextDetail))
	}
}

func statusError(resp *http.Response) error {
	serr := &StatusError{Code: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		serr.Message = body.Error
	} else {
		serr.Message = strings.TrimSpace(string(raw))
	}
	return serr
}

// IsStatus reports whether err is a [*StatusError] with the given code.
func IsStatus(err error, code int) bool {
	var serr *StatusError
	return errors.As(err, &serr) && serr.Code == code
}
