package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRateLimiter_SpacingAndOrder(t *testing.T) {
	const interval = 60 * time.Millisecond
	l := NewRateLimiter(RateLimiterConfig{Name: "test", MinInterval: interval})
	defer l.Close()

	var (
		mu     sync.Mutex
		order  []int
		starts []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := Submit(context.Background(), l, func(context.Context) (int, error) {
				mu.Lock()
				order = append(order, i)
				starts = append(starts, time.Now())
				mu.Unlock()
				return i, nil
			})
			if err != nil {
				t.Errorf("Submit %d: %v", i, err)
			}
		}(i)
		// Give each submission time to enqueue before the next one.
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	if len(order) != 3 {
		t.Fatalf("ran %d tasks, want 3", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v, want FIFO", order)
		}
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < interval-5*time.Millisecond {
			t.Errorf("gap between task %d and %d = %v, want >= %v", i-1, i, gap, interval)
		}
	}
}

func TestRateLimiter_SelfDisableOn429(t *testing.T) {
	clk := newFakeClock()
	var tripped atomic.Int32
	l := NewRateLimiter(RateLimiterConfig{
		Name:          "test",
		MinInterval:   time.Millisecond,
		Cooldown:      5 * time.Minute,
		Now:           clk.Now,
		OnRateLimited: func(string) { tripped.Add(1) },
	})
	defer l.Close()

	ctx := context.Background()
	_, err := Submit(ctx, l, func(context.Context) (string, error) {
		return "", errors.New("gemini: generate content: Error 429, Resource exhausted")
	})
	if err == nil {
		t.Fatal("expected the task error to propagate")
	}
	if !l.Disabled() {
		t.Fatal("limiter should be disabled after a 429")
	}
	if tripped.Load() != 1 {
		t.Errorf("OnRateLimited called %d times, want 1", tripped.Load())
	}

	called := false
	_, err = Submit(ctx, l, func(context.Context) (string, error) {
		called = true
		return "ok", nil
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if called {
		t.Fatal("fn must not be invoked while disabled")
	}

	clk.Advance(5 * time.Minute)
	got, err := Submit(ctx, l, func(context.Context) (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Fatalf("after cooldown: got %q, %v", got, err)
	}
}

func TestRateLimiter_OtherErrorsDoNotDisable(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{Name: "test", MinInterval: time.Millisecond})
	defer l.Close()
	_, _ = Submit(context.Background(), l, func(context.Context) (int, error) {
		return 0, errors.New("500 internal")
	})
	if l.Disabled() {
		t.Fatal("non-429 errors must not disable the limiter")
	}
}

func TestRateLimiter_ManualDisable(t *testing.T) {
	clk := newFakeClock()
	l := NewRateLimiter(RateLimiterConfig{Name: "test", Now: clk.Now})
	defer l.Close()

	l.Disable(2 * time.Minute)
	if _, err := Submit(context.Background(), l, func(context.Context) (int, error) { return 1, nil }); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	clk.Advance(2 * time.Minute)
	if l.Disabled() {
		t.Fatal("limiter should re-enable after the manual window")
	}
}

func TestRateLimiter_ContextCancelledWhileQueued(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{Name: "test", MinInterval: time.Hour})
	defer l.Close()

	// The first task runs immediately; the second waits an hour.
	if _, err := Submit(context.Background(), l, func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Submit(ctx, l, func(context.Context) (int, error) { return 2, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestRateLimiter_Closed(t *testing.T) {
	l := NewRateLimiter(RateLimiterConfig{Name: "test"})
	l.Close()
	if _, err := Submit(context.Background(), l, func(context.Context) (int, error) { return 1, nil }); !errors.Is(err, ErrLimiterClosed) {
		t.Fatalf("err = %v, want ErrLimiterClosed", err)
	}
}
