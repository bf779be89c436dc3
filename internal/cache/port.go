package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("cache entry not found")

// Entry is one cached payload together with the time it was last refreshed.
// LastUpdated is kept at millisecond precision by every backend.
type Entry struct {
	Payload     string
	LastUpdated time.Time
}

// Age reports how old the entry is relative to now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.LastUpdated)
}

// Store is the durable key-value port the freshness fetcher sits on.
//
// Get returns ErrNotFound when the key was never written.
// Put overwrites any prior entry for the key.
// Implementations must be safe for concurrent use across distinct keys;
// races on the same key are last-write-wins.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Put(ctx context.Context, key string, entry Entry) error
}

// Backend is a Store that owns a connection or file handle.
type Backend interface {
	Store
	io.Closer
}

func normalize(e Entry) Entry {
	if e.LastUpdated.IsZero() {
		return e
	}
	return Entry{Payload: e.Payload, LastUpdated: time.UnixMilli(e.LastUpdated.UnixMilli())}
}
