// Package health serves the liveness and readiness probes of the narrator
// server.
//
//   - /healthz reports that the process can serve HTTP.
//   - /readyz runs every registered [Checker] concurrently and returns 200
//     only when all of them pass.
//
// Responses are JSON objects with a "status" field ("ok" or "fail") and a
// "checks" map holding the outcome of each named checker.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/chronicles/internal/catalog"
	"github.com/MrWong99/chronicles/internal/config"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. Check returns nil when healthy.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction.
type Handler struct {
	checkers []Checker
}

// New creates a Handler evaluating checkers on each /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz runs all checkers concurrently, each under a [checkTimeout]
// deadline derived from the request. A failing checker does not cancel the
// others so every result is reported.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		allOK  = true
	)

	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				allOK = false
			} else {
				checks[c.Name] = "ok"
			}
			return nil
		})
	}
	_ = g.Wait()

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// ConfigLoaded reports healthy once current returns a non-nil config.
func ConfigLoaded(current func() *config.Config) Checker {
	return Checker{Name: "config", Check: func(context.Context) error {
		if current() == nil {
			return errors.New("no configuration loaded")
		}
		return nil
	}}
}

// DefaultProvider reports healthy when the configured default narrator
// provider is known and, if it needs one, has an API key.
func DefaultProvider(current func() *config.Config) Checker {
	return Checker{Name: "default_provider", Check: func(context.Context) error {
		cfg := current()
		if cfg == nil {
			return errors.New("no configuration loaded")
		}
		id := cfg.Providers.Default
		info, ok := catalog.Lookup(id)
		if !ok {
			return fmt.Errorf("unknown provider %q", id)
		}
		if info.RequiresAPIKey && cfg.LLMEntry(id).APIKey == "" {
			return fmt.Errorf("provider %q has no api key", id)
		}
		return nil
	}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
