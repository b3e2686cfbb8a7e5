package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var fastRetry = RetryConfig{
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	MaxElapsedTime:  time.Second,
}

func TestRetry_EventuallySucceeds(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_PermanentStops(t *testing.T) {
	calls := 0
	errBad := errors.New("bad request")
	err := Retry(context.Background(), fastRetry, func() error {
		calls++
		return Permanent(errBad)
	})
	if !errors.Is(err, errBad) {
		t.Fatalf("err = %v, want %v", err, errBad)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_RateLimitNotRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry, func() error {
		calls++
		return RateLimitError("slow down")
	})
	if !IsRateLimitError(err) {
		t.Fatalf("err = %v, want a rate-limit error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, fastRetry, func() error { return errors.New("down") })
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
