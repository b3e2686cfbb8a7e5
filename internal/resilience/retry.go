package resilience

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// RetryConfig tunes [Retry]. Zero fields take the defaults shown.
type RetryConfig struct {
	// InitialInterval is the first backoff delay. Default: 300ms.
	InitialInterval time.Duration
	// MaxInterval caps a single delay. Default: 3s.
	MaxInterval time.Duration
	// MaxElapsedTime bounds the whole retry loop. Default: 10s.
	MaxElapsedTime time.Duration
}

func (c RetryConfig) backoff() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 300 * time.Millisecond
	expo.MaxInterval = 3 * time.Second
	expo.MaxElapsedTime = 10 * time.Second
	if c.InitialInterval > 0 {
		expo.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		expo.MaxInterval = c.MaxInterval
	}
	if c.MaxElapsedTime > 0 {
		expo.MaxElapsedTime = c.MaxElapsedTime
	}
	return expo
}

// Retry runs op with exponential backoff until it succeeds, returns an error
// wrapped by [Permanent], the elapsed budget runs out, or ctx ends. Rate-limit
// errors are never retried so a limiter can see them.
func Retry(ctx context.Context, cfg RetryConfig, op func() error) error {
	wrapped := func() error {
		err := op()
		if IsRateLimitError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(wrapped, backoff.WithContext(cfg.backoff(), ctx))
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
