package freshness_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/stretchr/testify/mock"
)

// scriptedRemote returns a fixed answer and counts invocations.
type scriptedRemote struct {
	mu      sync.Mutex
	calls   int
	payload string
	err     error
}

func (r *scriptedRemote) Call(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.payload, r.err
}

func (r *scriptedRemote) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

var errNetwork = errors.New("dial tcp: lookup generativelanguage.googleapis.com: no such host")

// countingStore wraps a store and counts writes.
type countingStore struct {
	cache.Store
	mu     sync.Mutex
	writes int
}

func (s *countingStore) Put(ctx context.Context, key string, entry cache.Entry) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.Store.Put(ctx, key, entry)
}

func (s *countingStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type storeMock struct {
	mock.Mock
}

func (m *storeMock) Get(ctx context.Context, key string) (cache.Entry, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(cache.Entry), args.Error(1)
}

func (m *storeMock) Put(ctx context.Context, key string, entry cache.Entry) error {
	args := m.Called(ctx, key, entry)
	return args.Error(0)
}

type outcomeEvent struct {
	key     string
	outcome metadata.CacheOutcome
	age     time.Duration
}

type errorEvent struct {
	action string
	cause  metadata.ErrorCause
	detail string
}

// recordingSink captures metadata events for assertions.
type recordingSink struct {
	mu       sync.Mutex
	outcomes []outcomeEvent
	errors   []errorEvent
}

func (s *recordingSink) RecordError(observedAt time.Time, packageName, action string, cause metadata.ErrorCause, details string, attrs []metadata.Attribute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, errorEvent{action: action, cause: cause, detail: details})
}

func (s *recordingSink) RecordRemoteCall(endpoint string, httpStatus int, duration time.Duration, attempts int) {
}

func (s *recordingSink) RecordCacheOutcome(key string, outcome metadata.CacheOutcome, age time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcomeEvent{key: key, outcome: outcome, age: age})
}

func (s *recordingSink) Outcomes() []metadata.CacheOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]metadata.CacheOutcome, 0, len(s.outcomes))
	for _, ev := range s.outcomes {
		out = append(out, ev.outcome)
	}
	return out
}
