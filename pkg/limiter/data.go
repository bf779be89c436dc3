package limiter

import "time"

// per-endpoint timing used to space out remote calls
type keyTiming struct {
	lastCallAt   time.Time
	backoffDelay time.Duration
	backoffCount int
}

func (k keyTiming) BackoffDelay() time.Duration {
	return k.backoffDelay
}

func (k keyTiming) LastCallAt() time.Time {
	return k.lastCallAt
}

func (k keyTiming) BackoffCount() int {
	return k.backoffCount
}
