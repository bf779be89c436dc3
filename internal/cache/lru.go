package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUStore is an in-memory store bounded to a fixed number of entries.
// When full, the least recently used key is evicted, which also removes it
// as a stale fallback candidate.
type LRUStore struct {
	entries *lru.Cache[string, Entry]
}

func NewLRUStore(capacity int) (*LRUStore, error) {
	if capacity <= 0 {
		return nil, storeError("lru", ErrCauseInvalidOption, fmt.Errorf("capacity must be positive, got %d", capacity))
	}
	entries, err := lru.New[string, Entry](capacity)
	if err != nil {
		return nil, storeError("lru", ErrCauseInvalidOption, err)
	}
	return &LRUStore{entries: entries}, nil
}

func (s *LRUStore) Get(_ context.Context, key string) (Entry, error) {
	entry, ok := s.entries.Get(key)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (s *LRUStore) Put(_ context.Context, key string, entry Entry) error {
	s.entries.Add(key, normalize(entry))
	return nil
}

func (s *LRUStore) Len() int {
	return s.entries.Len()
}

func (s *LRUStore) Close() error {
	s.entries.Purge()
	return nil
}
