package limiter

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rohmanhakim/krishield/pkg/timeutil"
)

// RateLimiter spaces out calls to remote endpoints.
// Keys are endpoint names (for example "gemini" or "open-meteo").
// Each key tracks its last call time and an exponential backoff that grows
// on throttling responses and is cleared on success.
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
	Backoff(key string)
	ResetBackoff(key string)
	MarkLastCallAsNow(key string)
	ResolveDelay(key string) time.Duration
}

type ConcurrentRateLimiter struct {
	mu         sync.RWMutex
	rngMu      sync.Mutex
	minSpacing time.Duration
	jitter     time.Duration
	backoff    timeutil.BackoffParam
	timings    map[string]keyTiming
	rng        *rand.Rand
	clock      timeutil.Clock
}

func NewConcurrentRateLimiter(minSpacing, jitter time.Duration, backoff timeutil.BackoffParam) *ConcurrentRateLimiter {
	return &ConcurrentRateLimiter{
		minSpacing: minSpacing,
		jitter:     jitter,
		backoff:    backoff,
		timings:    make(map[string]keyTiming),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		clock:      timeutil.SystemClock(),
	}
}

// SetRandomSeed makes jitter reproducible.
func (r *ConcurrentRateLimiter) SetRandomSeed(seed int64) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	r.rng = rand.New(rand.NewSource(seed))
}

func (r *ConcurrentRateLimiter) SetClock(clock timeutil.Clock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
}

// Backoff increments the backoff counter for key and recomputes its delay.
func (r *ConcurrentRateLimiter) Backoff(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing := r.timings[key]
	timing.backoffCount++
	timing.backoffDelay = timeutil.ExponentialBackoffDelay(timing.backoffCount, 0, nil, r.backoff)
	r.timings[key] = timing
}

// ResetBackoff clears the backoff state after a successful call.
func (r *ConcurrentRateLimiter) ResetBackoff(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing, exists := r.timings[key]
	if !exists {
		return
	}
	timing.backoffCount = 0
	timing.backoffDelay = 0
	r.timings[key] = timing
}

func (r *ConcurrentRateLimiter) MarkLastCallAsNow(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing := r.timings[key]
	timing.lastCallAt = r.clock.Now()
	r.timings[key] = timing
}

// ResolveDelay returns how long the caller must still wait before calling key.
// FinalDelay = max(minSpacing, backoffDelay) + jitter - elapsed
func (r *ConcurrentRateLimiter) ResolveDelay(key string) time.Duration {
	r.mu.RLock()
	timing, exists := r.timings[key]
	spacing := r.minSpacing
	jitter := r.jitter
	now := r.clock.Now()
	r.mu.RUnlock()

	if !exists {
		return 0
	}

	finalDelay := timeutil.MaxDuration([]time.Duration{spacing, timing.backoffDelay})

	r.rngMu.Lock()
	finalDelay += timeutil.ComputeJitter(jitter, r.rng)
	r.rngMu.Unlock()

	elapsed := now.Sub(timing.lastCallAt)
	if elapsed < finalDelay {
		return finalDelay - elapsed
	}
	return 0
}

// Wait blocks until key may be called again, then records the call.
func (r *ConcurrentRateLimiter) Wait(ctx context.Context, key string) error {
	if err := timeutil.Sleep(ctx, r.ResolveDelay(key)); err != nil {
		return err
	}
	r.MarkLastCallAsNow(key)
	return nil
}

// Timing returns a snapshot of the bookkeeping for key.
func (r *ConcurrentRateLimiter) Timing(key string) (keyTiming, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	timing, ok := r.timings[key]
	return timing, ok
}
