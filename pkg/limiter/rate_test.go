package limiter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/krishield/pkg/limiter"
	"github.com/rohmanhakim/krishield/pkg/timeutil"
)

var testBackoff = timeutil.NewBackoffParam(time.Second, 2.0, 30*time.Second)

func newTestLimiter(spacing time.Duration) (*limiter.ConcurrentRateLimiter, *timeutil.ManualClock) {
	clock := timeutil.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	rl := limiter.NewConcurrentRateLimiter(spacing, 0, testBackoff)
	rl.SetClock(clock)
	rl.SetRandomSeed(42)
	return rl, clock
}

func TestRateLimiter_UnknownKeyHasNoDelay(t *testing.T) {
	rl, _ := newTestLimiter(time.Second)
	if d := rl.ResolveDelay("gemini"); d != 0 {
		t.Errorf("ResolveDelay = %v, want 0", d)
	}
}

func TestRateLimiter_Backoff(t *testing.T) {
	rl, _ := newTestLimiter(0)

	rl.Backoff("gemini")
	timing, _ := rl.Timing("gemini")
	if timing.BackoffCount() != 1 || timing.BackoffDelay() != time.Second {
		t.Errorf("after first Backoff: count=%d delay=%v", timing.BackoffCount(), timing.BackoffDelay())
	}

	rl.Backoff("gemini")
	timing, _ = rl.Timing("gemini")
	if timing.BackoffCount() != 2 || timing.BackoffDelay() != 2*time.Second {
		t.Errorf("after second Backoff: count=%d delay=%v", timing.BackoffCount(), timing.BackoffDelay())
	}

	for i := 0; i < 10; i++ {
		rl.Backoff("gemini")
	}
	timing, _ = rl.Timing("gemini")
	if timing.BackoffDelay() != 30*time.Second {
		t.Errorf("backoff should be capped at 30s, got %v", timing.BackoffDelay())
	}

	rl.ResetBackoff("gemini")
	timing, _ = rl.Timing("gemini")
	if timing.BackoffCount() != 0 || timing.BackoffDelay() != 0 {
		t.Errorf("after ResetBackoff: count=%d delay=%v", timing.BackoffCount(), timing.BackoffDelay())
	}
}

func TestRateLimiter_ResolveDelayUsesElapsed(t *testing.T) {
	rl, clock := newTestLimiter(2 * time.Second)

	rl.MarkLastCallAsNow("open-meteo")
	if d := rl.ResolveDelay("open-meteo"); d != 2*time.Second {
		t.Errorf("immediately after call: %v, want 2s", d)
	}

	clock.Advance(1500 * time.Millisecond)
	if d := rl.ResolveDelay("open-meteo"); d != 500*time.Millisecond {
		t.Errorf("after 1.5s: %v, want 500ms", d)
	}

	clock.Advance(time.Second)
	if d := rl.ResolveDelay("open-meteo"); d != 0 {
		t.Errorf("after 2.5s: %v, want 0", d)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(0)
	rl.Backoff("gemini")
	rl.MarkLastCallAsNow("gemini")
	rl.MarkLastCallAsNow("open-meteo")

	if d := rl.ResolveDelay("open-meteo"); d != 0 {
		t.Errorf("open-meteo must not inherit gemini backoff, got %v", d)
	}
	if d := rl.ResolveDelay("gemini"); d != time.Second {
		t.Errorf("gemini delay = %v, want 1s", d)
	}
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter(time.Hour, 0, testBackoff)
	rl.MarkLastCallAsNow("gemini")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx, "gemini"); err == nil {
		t.Error("expected context deadline error")
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := limiter.NewConcurrentRateLimiter(0, time.Millisecond, testBackoff)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := []string{"gemini", "open-meteo"}[i%2]
			_ = rl.Wait(context.Background(), key)
			rl.Backoff(key)
			rl.ResetBackoff(key)
		}(i)
	}
	wg.Wait()
}
