package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/rohmanhakim/krishield/pkg/timeutil"
)

const apiKeyKey = "gemini_api_key"

var ErrEmptyAPIKey = errors.New("api key is required")

// Store keeps user settings that outlive a single run.
type Store struct {
	store cache.Store
	clock timeutil.Clock
}

func NewStore(store cache.Store, clock timeutil.Clock) *Store {
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	return &Store{store: store, clock: clock}
}

func (s *Store) SaveAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyAPIKey
	}
	entry := cache.Entry{Payload: key, LastUpdated: s.clock.Now()}
	if err := s.store.Put(ctx, apiKeyKey, entry); err != nil {
		return fmt.Errorf("settings: save api key: %w", err)
	}
	return nil
}

// APIKey returns the saved key, or "" when none was saved.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	entry, err := s.store.Get(ctx, apiKeyKey)
	if errors.Is(err, cache.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("settings: read api key: %w", err)
	}
	return strings.TrimSpace(entry.Payload), nil
}

// Resolve prefers a saved key over the configured one.
func (s *Store) Resolve(ctx context.Context, configured string) (string, error) {
	saved, err := s.APIKey(ctx)
	if err != nil {
		return strings.TrimSpace(configured), err
	}
	if saved != "" {
		return saved, nil
	}
	return strings.TrimSpace(configured), nil
}

// MaskKey hides all but the last four characters of a key.
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
