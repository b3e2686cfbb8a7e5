package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/chronicles/internal/catalog"
	"github.com/MrWong99/chronicles/internal/narrator"
	"github.com/MrWong99/chronicles/internal/observe"
	"github.com/MrWong99/chronicles/internal/sse"
	"github.com/MrWong99/chronicles/internal/turn"
	"github.com/MrWong99/chronicles/internal/voice"
)

// GameRequest is the body of POST /api/game-response.
type GameRequest struct {
	GameContext  turn.GameContext `json:"gameContext"`
	PlayerAction string           `json:"playerAction"`
}

// RecapRequest is the body of POST /api/generate-story-recap.
type RecapRequest struct {
	GameContext turn.GameContext `json:"gameContext"`
	Prompt      string           `json:"prompt"`
}

// RecapResponse is the reply of POST /api/generate-story-recap.
type RecapResponse struct {
	Recap string `json:"recap"`
}

// ValidateKeyRequest is the body of POST /api/validate-key.
type ValidateKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}

// ValidateKeyResponse is the reply of POST /api/validate-key.
type ValidateKeyResponse struct {
	Valid bool `json:"valid"`
}

func (s *Server) handleGameResponse(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.PlayerAction) == "" {
		writeError(w, http.StatusBadRequest, "playerAction is required")
		return
	}
	m, ok := s.manager(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	log := observe.Logger(ctx)
	stream := s.current().Stream
	start := time.Now()

	s.metrics.ActiveStreams.Add(ctx, 1)
	defer s.metrics.ActiveStreams.Add(ctx, -1)

	sw := sse.NewWriter(w)
	send := func(ev turn.Event) error {
		if err := sw.Send(ev); err != nil {
			return err
		}
		s.metrics.RecordStreamEvent(ctx, string(ev.Type))
		return nil
	}
	fail := func(msg string) {
		if ctx.Err() != nil || sw.Terminated() {
			return
		}
		if err := send(turn.Event{Type: turn.EventError, Message: msg}); err != nil {
			log.Debug("turn stream: error frame not delivered", "err", err)
		}
	}
	defer func() {
		outcome := "complete"
		switch {
		case ctx.Err() != nil:
			outcome = "disconnected"
		case !sw.Terminated():
			outcome = "aborted"
		}
		s.metrics.RecordTurn(ctx, outcome, time.Since(start).Seconds())
	}()

	if err := send(turn.Event{Type: turn.EventProcessing, Message: "Generating response..."}); err != nil {
		log.Warn("turn stream: processing frame failed", "err", err)
		return
	}

	gctx, cancel := context.WithTimeout(ctx, stream.TurnTimeout)
	resp, err := m.GenerateResponse(gctx, req.GameContext, req.PlayerAction)
	timedOut := errors.Is(gctx.Err(), context.DeadlineExceeded)
	cancel()

	switch {
	case ctx.Err() != nil:
		log.Info("turn stream: client went away during generation")
		return
	case timedOut:
		log.Warn("turn stream: generation timed out", "timeout", stream.TurnTimeout)
		fail(msgTimedOut)
		return
	case err != nil:
		fail(err.Error())
		return
	}

	if err := s.emit(ctx, send, resp, stream.ChunkDelay); err != nil {
		if ctx.Err() == nil {
			log.Warn("turn stream: emission failed", "err", err)
		}
		fail(err.Error())
	}
}

// emit streams resp as text chunks followed by the structured events and the
// terminal complete event.
func (s *Server) emit(ctx context.Context, send func(turn.Event) error, resp *turn.Response, delay time.Duration) error {
	chunks := turn.SplitChunks(resp.Content.Text)
	for i, c := range chunks {
		last := i == len(chunks)-1
		if err := send(turn.ChunkEvent(c, last)); err != nil {
			return err
		}
		if last {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	events, err := turn.ResponseEvents(resp)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := send(ev); err != nil {
			return err
		}
	}
	return send(turn.Event{Type: turn.EventComplete})
}

func (s *Server) handleStoryRecap(w http.ResponseWriter, r *http.Request) {
	var req RecapRequest
	if !decode(w, r, &req) {
		return
	}
	m, ok := s.manager(w, r)
	if !ok {
		return
	}
	recap, err := m.GenerateStoryRecap(r.Context(), req.GameContext, req.Prompt)
	if err != nil {
		observe.Logger(r.Context()).Error("story recap failed", "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, RecapResponse{Recap: recap})
}

func (s *Server) handleVoiceSelection(w http.ResponseWriter, r *http.Request) {
	var req voice.Request
	if !decode(w, r, &req) {
		return
	}
	if len(req.AvailableVoices) == 0 {
		writeError(w, http.StatusBadRequest, "availableVoices is required")
		return
	}
	m, ok := s.manager(w, r)
	if !ok {
		return
	}
	v, err := s.voices.Select(r.Context(), m, req)
	switch {
	case errors.Is(err, voice.ErrNoRecommendation):
		writeError(w, http.StatusInternalServerError, msgNoRecommendation)
		return
	case err != nil:
		observe.Logger(r.Context()).Error("voice selection failed", "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, voice.Response{RecommendedVoice: v})
}

func (s *Server) handleValidateKey(w http.ResponseWriter, r *http.Request) {
	var req ValidateKeyRequest
	if !decode(w, r, &req) {
		return
	}
	info, ok := catalog.Lookup(req.Provider)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown provider "+req.Provider)
		return
	}
	st := narrator.Settings{Provider: info.ID, Model: s.current().LLMEntry(info.ID).Model}
	m := narrator.NewManager(func() narrator.Settings { return st }, s.build, narrator.WithMetrics(s.metrics))
	writeJSON(w, http.StatusOK, ValidateKeyResponse{Valid: m.ValidateAPIKey(r.Context(), req.APIKey)})
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	ids := catalog.IDs()
	out := make([]catalog.ProviderInfo, 0, len(ids))
	for _, id := range ids {
		info, _ := catalog.Lookup(id)
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}
