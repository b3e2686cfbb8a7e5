package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrAllFailed is returned when every backend of a [Failover] failed or is
// resting.
var ErrAllFailed = errors.New("resilience: all backends failed")

// errResting marks a backend skipped because its cooldown is open.
var errResting = errors.New("backend resting after repeated failures")

// FailoverConfig tunes a [Failover].
type FailoverConfig struct {
	// MaxFailures is the number of consecutive failures after which a backend
	// is rested. Default: 3.
	MaxFailures int

	// Rest is how long a failing backend is skipped. Default: 30s.
	Rest time.Duration

	// Now overrides the clock. Default: time.Now.
	Now func() time.Time
}

type backend[T any] struct {
	name  string
	value T
	gate  *Cooldown

	mu    sync.Mutex
	fails int
}

// Failover tries a list of interchangeable backends in order. A backend
// that fails MaxFailures times in a row is skipped for the Rest window, after
// which it gets another chance.
type Failover[T any] struct {
	cfg      FailoverConfig
	backends []*backend[T]
}

// NewFailover returns a Failover with primary as its first backend.
func NewFailover[T any](primary T, name string, cfg FailoverConfig) *Failover[T] {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Rest <= 0 {
		cfg.Rest = 30 * time.Second
	}
	f := &Failover[T]{cfg: cfg}
	f.Add(name, primary)
	return f
}

// Add appends a backend tried after the ones already added. Add must not be
// called concurrently with [Do].
func (f *Failover[T]) Add(name string, value T) {
	f.backends = append(f.backends, &backend[T]{
		name:  name,
		value: value,
		gate:  NewCooldown(name, f.cfg.Now),
	})
}

// Names lists the backends in the order they are tried.
func (f *Failover[T]) Names() []string {
	out := make([]string, len(f.backends))
	for i, b := range f.backends {
		out[i] = b.name
	}
	return out
}

// Do calls fn with each available backend until one succeeds. The error
// wraps [ErrAllFailed] and the last backend error.
func Do[T, R any](f *Failover[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for _, b := range f.backends {
		if !b.gate.Allow() {
			lastErr = fmt.Errorf("%s: %w", b.name, errResting)
			slog.Debug("skipping backend", "backend", b.name, "remaining", b.gate.Remaining())
			continue
		}
		r, err := fn(b.value)
		if err == nil {
			b.succeeded()
			return r, nil
		}
		lastErr = fmt.Errorf("%s: %w", b.name, err)
		slog.Warn("backend failed, trying next", "backend", b.name, "err", err)
		b.failed(f.cfg)
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

func (b *backend[T]) succeeded() {
	b.mu.Lock()
	b.fails = 0
	b.mu.Unlock()
}

func (b *backend[T]) failed(cfg FailoverConfig) {
	b.mu.Lock()
	b.fails++
	trip := b.fails >= cfg.MaxFailures
	if trip {
		b.fails = 0
	}
	b.mu.Unlock()
	if trip {
		b.gate.Trip(cfg.Rest)
	}
}
