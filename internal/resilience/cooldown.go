// Package resilience provides the failure-handling primitives used around
// LLM calls: a [Cooldown] that trips open for a fixed window, a FIFO
// [RateLimiter] that spaces auxiliary requests and self-disables on HTTP 429,
// [Retry] for transient transport errors and [Failover] across
// interchangeable backends.
//
// All types are safe for concurrent use.
package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// Cooldown is a two-state gate: closed (calls allowed) or open until a
// deadline. Unlike a circuit breaker it needs no probe calls to close; it
// re-enables silently once the deadline has passed.
type Cooldown struct {
	name string
	now  func() time.Time

	mu    sync.Mutex
	until time.Time
}

// NewCooldown creates a closed Cooldown. now may be nil to use time.Now.
func NewCooldown(name string, now func() time.Time) *Cooldown {
	if now == nil {
		now = time.Now
	}
	return &Cooldown{name: name, now: now}
}

// Trip opens the gate for d. A trip never shortens an existing window.
func (c *Cooldown) Trip(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until := c.now().Add(d)
	if until.After(c.until) {
		c.until = until
	}
	slog.Warn("cooldown tripped", "name", c.name, "duration", d, "until", c.until)
}

// Allow reports whether calls may proceed.
func (c *Cooldown) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.until.IsZero() {
		return true
	}
	if !c.now().Before(c.until) {
		c.until = time.Time{}
		slog.Info("cooldown elapsed, re-enabled", "name", c.name)
		return true
	}
	return false
}

// Remaining returns how long the gate stays open, or zero when closed.
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.until.IsZero() {
		return 0
	}
	if d := c.until.Sub(c.now()); d > 0 {
		return d
	}
	return 0
}

// Reset closes the gate immediately.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until = time.Time{}
}
