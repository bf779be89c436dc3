package freshness

import (
	"context"
	"errors"
	"time"

	"github.com/rohmanhakim/krishield/internal/cache"
)

// State of a key, computed at read time. FRESH becomes STALE only by time passing.
type State string

const (
	StateEmpty State = "EMPTY"
	StateFresh State = "FRESH"
	StateStale State = "STALE"
)

func (f *Fetcher) State(ctx context.Context, key string, ttl time.Duration) (State, error) {
	entry, err := f.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return StateEmpty, nil
		}
		return "", err
	}
	if entry.Age(f.clock.Now()) < ttl {
		return StateFresh, nil
	}
	return StateStale, nil
}
