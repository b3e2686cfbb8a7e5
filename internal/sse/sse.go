// Package sse writes and reads the server-sent event framing used by the turn
// stream. Each frame is a single "data: <json>" line followed by a blank line.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrWong99/chronicles/internal/turn"
)

const dataPrefix = "data: "

// maxLine bounds one frame. A full turn response fits comfortably.
const maxLine = 1 << 20

// ErrStreamClosed is returned by [Writer.Send] after a terminal event was sent.
var ErrStreamClosed = errors.New("sse: stream already terminated")

// Writer emits turn events on an HTTP response.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
	done    bool
}

// NewWriter sets the event-stream headers on w and returns a Writer. Headers
// already present on w (such as CORS) are kept.
func NewWriter(w http.ResponseWriter) *Writer {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	f, _ := w.(http.Flusher)
	if f != nil {
		f.Flush()
	}
	return &Writer{w: w, flusher: f}
}

// Send writes ev as one frame and flushes it. Once a complete or error event
// has been sent every further Send fails with [ErrStreamClosed].
func (s *Writer) Send(ev turn.Event) error {
	if s.done {
		return ErrStreamClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sse: marshal %s: %w", ev.Type, err)
	}
	if _, err := fmt.Fprintf(s.w, "%s%s\n\n", dataPrefix, data); err != nil {
		return fmt.Errorf("sse: write %s: %w", ev.Type, err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	if ev.Terminal() {
		s.done = true
	}
	return nil
}

// Terminated reports whether a complete or error event was sent.
func (s *Writer) Terminated() bool { return s.done }

var knownTypes = map[turn.EventType]bool{
	turn.EventProcessing:       true,
	turn.EventTextChunk:        true,
	turn.EventMetadata:         true,
	turn.EventEnvironment:      true,
	turn.EventActionChoices:    true,
	turn.EventCharacterUpdates: true,
	turn.EventGameState:        true,
	turn.EventComplete:         true,
	turn.EventError:            true,
}

// Read parses frames from r and calls fn for each known event in order. Lines
// that are not data lines are skipped, as are frames with malformed JSON or
// an unknown type. Read returns nil at end of input, fn's first error, or
// ctx.Err() once ctx ends.
func Read(ctx context.Context, r io.Reader, fn func(turn.Event) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		var ev turn.Event
		if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &ev); err != nil {
			slog.Warn("sse: skipping malformed frame", "err", err)
			continue
		}
		if !knownTypes[ev.Type] {
			slog.Debug("sse: ignoring unknown event type", "type", ev.Type)
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("sse: read: %w", err)
	}
	return nil
}
