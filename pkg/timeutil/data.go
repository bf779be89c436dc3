package timeutil

import (
	"math"
	"time"
)

// BackoffParam describes the delay between upstream retries:
// initial * multiplier^(attempt-1), capped at max when max is positive.
type BackoffParam struct {
	initial    time.Duration
	multiplier float64
	max        time.Duration
}

// NewBackoffParam clamps a negative initial delay to zero and a multiplier
// below one to one, so delays never shrink between attempts.
func NewBackoffParam(initial time.Duration, multiplier float64, max time.Duration) BackoffParam {
	if initial < 0 {
		initial = 0
	}
	if multiplier < 1 {
		multiplier = 1
	}
	return BackoffParam{initial: initial, multiplier: multiplier, max: max}
}

// Delay is the wait before the given attempt, without jitter. Attempt numbering starts at 1.
func (b BackoffParam) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.initial) * math.Pow(b.multiplier, float64(attempt-1))
	if b.max > 0 && delay > float64(b.max) {
		delay = float64(b.max)
	}
	return time.Duration(delay)
}
