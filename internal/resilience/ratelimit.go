package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrRateLimited is returned by [Submit] while the limiter is disabled.
var ErrRateLimited = errors.New("resilience: rate limiter temporarily disabled")

// ErrLimiterClosed is returned by [Submit] after [RateLimiter.Close].
var ErrLimiterClosed = errors.New("resilience: rate limiter closed")

// Defaults for [RateLimiterConfig].
const (
	DefaultMinInterval = 3 * time.Second
	DefaultCooldown    = 5 * time.Minute
)

// RateLimiterConfig holds tuning knobs for a [RateLimiter].
type RateLimiterConfig struct {
	// Name is a human-readable label used in log messages.
	Name string

	// MinInterval is the minimum spacing between the starts of two tasks.
	// Default: 3s.
	MinInterval time.Duration

	// Cooldown is how long the limiter stays disabled after a task fails with
	// a rate-limit error. Default: 5m.
	Cooldown time.Duration

	// Now overrides the clock used for the cooldown window. Default: time.Now.
	Now func() time.Time

	// OnRateLimited, if set, is called each time a task trips the cooldown.
	OnRateLimited func(name string)
}

type job struct {
	ctx context.Context
	run func(ctx context.Context)
}

// RateLimiter serialises tasks through one FIFO queue drained by a single
// worker goroutine, starting at most one task per MinInterval. A task error
// mentioning HTTP 429 disables the limiter for the cooldown window; during
// that window [Submit] rejects immediately without queuing. Tasks already
// queued when the limiter trips still run.
type RateLimiter struct {
	name          string
	interval      time.Duration
	cooldownFor   time.Duration
	cooldown      *Cooldown
	onRateLimited func(string)

	queue     chan job
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRateLimiter creates a RateLimiter and starts its worker. Call Close to
// stop it.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	l := &RateLimiter{
		name:          cfg.Name,
		interval:      cfg.MinInterval,
		cooldownFor:   cfg.Cooldown,
		cooldown:      NewCooldown(cfg.Name, cfg.Now),
		onRateLimited: cfg.OnRateLimited,
		queue:         make(chan job, 64),
		done:          make(chan struct{}),
	}
	l.wg.Add(1)
	go l.worker()
	return l
}

// Submit enqueues fn on l and waits for its result. It fails fast with
// [ErrRateLimited] while l is disabled, and returns ctx.Err() if ctx ends
// before fn has run.
func Submit[T any](ctx context.Context, l *RateLimiter, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !l.cooldown.Allow() {
		return zero, ErrRateLimited
	}

	type result struct {
		v   T
		err error
	}
	out := make(chan result, 1)
	j := job{ctx: ctx, run: func(ctx context.Context) {
		v, err := fn(ctx)
		if IsRateLimitError(err) {
			l.cooldown.Trip(l.cooldownFor)
			if l.onRateLimited != nil {
				l.onRateLimited(l.name)
			}
		}
		out <- result{v, err}
	}}

	select {
	case l.queue <- j:
	case <-l.done:
		return zero, ErrLimiterClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-out:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-l.done:
		l.wg.Wait()
		select {
		case r := <-out:
			return r.v, r.err
		default:
			return zero, ErrLimiterClosed
		}
	}
}

// Disable manually disables l for d.
func (l *RateLimiter) Disable(d time.Duration) {
	l.cooldown.Trip(d)
}

// Disabled reports whether l is currently rejecting submissions.
func (l *RateLimiter) Disabled() bool {
	return !l.cooldown.Allow()
}

// Close stops the worker and waits for a running task to finish. Submitters
// of queued tasks that never started receive [ErrLimiterClosed].
func (l *RateLimiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
	l.wg.Wait()
}

func (l *RateLimiter) worker() {
	defer l.wg.Done()
	var last time.Time
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		var j job
		select {
		case j = <-l.queue:
		case <-l.done:
			return
		}

		if wait := l.interval - time.Since(last); !last.IsZero() && wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.C:
			case <-l.done:
				return
			}
		}

		if err := j.ctx.Err(); err != nil {
			slog.Debug("rate limiter: dropping cancelled task", "name", l.name, "err", err)
			continue
		}
		last = time.Now()
		j.run(j.ctx)
	}
}

// IsRateLimitError reports whether err signals a provider-side rate limit.
// Vendor SDK errors carry the HTTP status in their message.
func IsRateLimitError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "429")
}

// RateLimitError wraps a 429 response so that [IsRateLimitError] detects it.
func RateLimitError(detail string) error {
	return fmt.Errorf("rate limited (429): %s", detail)
}
