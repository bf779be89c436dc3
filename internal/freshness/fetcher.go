package freshness

import (
	"context"
	"errors"
	"time"

	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/rohmanhakim/krishield/pkg/failure"
	"github.com/rohmanhakim/krishield/pkg/timeutil"
)

// RemoteCall queries the upstream source. Timeouts are its own concern.
type RemoteCall func(ctx context.Context) (string, error)

type Source string

const (
	SourceCache  Source = "cache"
	SourceRemote Source = "remote"
	SourceStale  Source = "stale"
)

type Request struct {
	Key          string
	TTL          time.Duration
	ForceRefresh bool
	// Validator gates both the cache-read and the post-fetch write path.
	// Nil means the fetcher's default validator.
	Validator Validator
}

type Result struct {
	Payload     string
	LastUpdated time.Time
	Source      Source
}

/*
Fetcher decides, per request, whether to serve a cached payload or query the
remote, and degrades to the last valid cached payload when the remote fails.

Guarantees:
  - at most one remote call per Fetch
  - at most one store write per Fetch, and only for a validated payload
  - a payload rejected by the validator is never returned nor cached
  - LastUpdated for a key never moves backwards
*/
type Fetcher struct {
	store            cache.Store
	metadataSink     metadata.MetadataSink
	clock            timeutil.Clock
	defaultValidator Validator
}

type Option func(*Fetcher)

func WithClock(clock timeutil.Clock) Option {
	return func(f *Fetcher) {
		f.clock = clock
	}
}

func WithDefaultValidator(v Validator) Option {
	return func(f *Fetcher) {
		f.defaultValidator = v
	}
}

func NewFetcher(store cache.Store, metadataSink metadata.MetadataSink, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:            store,
		metadataSink:     metadataSink,
		clock:            timeutil.SystemClock(),
		defaultValidator: NewKeywordValidator(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, req Request, remote RemoteCall) (Result, failure.ClassifiedError) {
	if req.Key == "" || remote == nil {
		fetchErr := &FetchError{
			Message: "key and remote call are required",
			Cause:   ErrCauseInvalidRequest,
		}
		f.recordFetchError(req.Key, fetchErr)
		return Result{}, fetchErr
	}

	isValid := req.Validator
	if isValid == nil {
		isValid = f.defaultValidator
	}

	now := f.clock.Now()
	prior, hasPrior := f.read(ctx, req.Key)

	switch {
	case req.ForceRefresh:
		f.metadataSink.RecordCacheOutcome(req.Key, metadata.OutcomeBypass, 0)
	case !hasPrior:
		f.metadataSink.RecordCacheOutcome(req.Key, metadata.OutcomeMiss, 0)
	default:
		age := prior.Age(now)
		if age < req.TTL && isValid(prior.Payload) {
			f.metadataSink.RecordCacheOutcome(req.Key, metadata.OutcomeHit, age)
			return Result{
				Payload:     prior.Payload,
				LastUpdated: prior.LastUpdated,
				Source:      SourceCache,
			}, nil
		}
		f.metadataSink.RecordCacheOutcome(req.Key, metadata.OutcomeExpired, age)
	}

	payload, remoteErr := remote(ctx)
	if remoteErr != nil {
		return f.fallback(ctx, req.Key, isValid, remoteErr)
	}

	if !isValid(payload) {
		f.metadataSink.RecordCacheOutcome(req.Key, metadata.OutcomeRejected, 0)
		fetchErr := &FetchError{
			Message: payload,
			Cause:   ErrCauseInvalidPayload,
		}
		f.recordFetchError(req.Key, fetchErr)
		return Result{}, fetchErr
	}

	stamp := f.clock.Now()
	if hasPrior && prior.LastUpdated.After(stamp) {
		stamp = prior.LastUpdated
	}
	entry := cache.Entry{Payload: payload, LastUpdated: stamp}
	if err := f.store.Put(ctx, req.Key, entry); err != nil {
		f.recordStoreError(req.Key, "Put", err)
	}

	f.metadataSink.RecordCacheOutcome(req.Key, metadata.OutcomeRefreshed, 0)
	return Result{
		Payload:     payload,
		LastUpdated: stamp,
		Source:      SourceRemote,
	}, nil
}

// fallback serves the cached entry regardless of its age after a failed remote call.
func (f *Fetcher) fallback(ctx context.Context, key string, isValid Validator, remoteErr error) (Result, failure.ClassifiedError) {
	entry, ok := f.read(ctx, key)
	if ok && isValid(entry.Payload) {
		f.metadataSink.RecordCacheOutcome(key, metadata.OutcomeStaleFallback, entry.Age(f.clock.Now()))
		return Result{
			Payload:     entry.Payload,
			LastUpdated: entry.LastUpdated,
			Source:      SourceStale,
		}, nil
	}

	f.metadataSink.RecordCacheOutcome(key, metadata.OutcomeUnavailable, 0)
	fetchErr := &FetchError{
		Message:   remoteErr.Error(),
		Retryable: failure.IsRetryable(remoteErr),
		Cause:     ErrCauseRemoteFailure,
		Err:       remoteErr,
	}
	f.recordFetchError(key, fetchErr)
	return Result{}, fetchErr
}

// read treats any store failure as "no entry".
func (f *Fetcher) read(ctx context.Context, key string) (cache.Entry, bool) {
	entry, err := f.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			f.recordStoreError(key, "Get", err)
		}
		return cache.Entry{}, false
	}
	return entry, true
}

// FetchAsync runs Fetch on its own goroutine. The returned channel delivers
// exactly one Outcome and is then closed.
func (f *Fetcher) FetchAsync(ctx context.Context, req Request, remote RemoteCall) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		result, err := f.Fetch(ctx, req, remote)
		out <- Outcome{Result: result, Err: err}
	}()
	return out
}

type Outcome struct {
	Result Result
	Err    failure.ClassifiedError
}

func (f *Fetcher) recordFetchError(key string, err *FetchError) {
	f.metadataSink.RecordError(
		f.clock.Now(),
		"freshness",
		"Fetcher.Fetch",
		mapFetchErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrKey, key),
		},
	)
}

func (f *Fetcher) recordStoreError(key, op string, err error) {
	cause := metadata.CauseStorageFailure
	var storeErr *cache.StoreError
	if errors.As(err, &storeErr) {
		cause = cache.MapErrorToMetadataCause(storeErr)
	}
	f.metadataSink.RecordError(
		f.clock.Now(),
		"freshness",
		"Store."+op,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrKey, key),
		},
	)
}
