package freshness_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/rohmanhakim/krishield/pkg/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	marketKey     = "market_Delhi_Delhi_General"
	marketPayload = "CROPS:\n• Wheat: ₹2200/quintal (stable)\n\nRECOMMENDATION:\n• Hold"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   *countingStore
	sink    *recordingSink
	clock   *timeutil.ManualClock
	fetcher *freshness.Fetcher
}

func newFixture() *fixture {
	store := &countingStore{Store: cache.NewMemoryStore()}
	sink := &recordingSink{}
	clock := timeutil.NewManualClock(t0)
	return &fixture{
		store:   store,
		sink:    sink,
		clock:   clock,
		fetcher: freshness.NewFetcher(store, sink, freshness.WithClock(clock)),
	}
}

func (f *fixture) seed(t *testing.T, key, payload string, at time.Time) {
	t.Helper()
	require.NoError(t, f.store.Store.Put(context.Background(), key, cache.Entry{Payload: payload, LastUpdated: at}))
}

func (f *fixture) entry(t *testing.T, key string) cache.Entry {
	t.Helper()
	e, err := f.store.Store.Get(context.Background(), key)
	require.NoError(t, err)
	return e
}

func marketRequest() freshness.Request {
	return freshness.Request{Key: marketKey, TTL: 24 * time.Hour}
}

func TestFetch_EmptyCacheCallsRemoteOnce(t *testing.T) {
	f := newFixture()
	remote := &scriptedRemote{payload: marketPayload}

	res, err := f.fetcher.Fetch(context.Background(), marketRequest(), remote.Call)

	require.Nil(t, err)
	assert.Equal(t, 1, remote.Calls())
	assert.Equal(t, freshness.SourceRemote, res.Source)
	assert.Equal(t, marketPayload, res.Payload)
	assert.Equal(t, 1, f.store.Writes())
	assert.Equal(t, []metadata.CacheOutcome{metadata.OutcomeMiss, metadata.OutcomeRefreshed}, f.sink.Outcomes())
}

func TestFetch_FreshValidEntrySkipsRemote(t *testing.T) {
	f := newFixture()
	f.seed(t, marketKey, marketPayload, t0)
	f.clock.Advance(23 * time.Hour)
	remote := &scriptedRemote{payload: "other"}

	res, err := f.fetcher.Fetch(context.Background(), marketRequest(), remote.Call)

	require.Nil(t, err)
	assert.Equal(t, 0, remote.Calls())
	assert.Equal(t, freshness.SourceCache, res.Source)
	assert.Equal(t, marketPayload, res.Payload)
	assert.True(t, t0.Equal(res.LastUpdated))
	assert.Equal(t, 0, f.store.Writes())
}

func TestFetch_EntryAtExactTTLIsStale(t *testing.T) {
	f := newFixture()
	f.seed(t, marketKey, marketPayload, t0)
	f.clock.Advance(24 * time.Hour)
	remote := &scriptedRemote{payload: "new prices"}

	res, err := f.fetcher.Fetch(context.Background(), marketRequest(), remote.Call)

	require.Nil(t, err)
	assert.Equal(t, 1, remote.Calls())
	assert.Equal(t, "new prices", res.Payload)
	assert.True(t, t0.Add(24*time.Hour).Equal(f.entry(t, marketKey).LastUpdated))
}

func TestFetch_InvalidCachedEntryIsNotServed(t *testing.T) {
	f := newFixture()
	f.seed(t, marketKey, "quota exceeded", t0)
	remote := &scriptedRemote{payload: marketPayload}

	res, err := f.fetcher.Fetch(context.Background(), marketRequest(), remote.Call)

	require.Nil(t, err)
	assert.Equal(t, 1, remote.Calls())
	assert.Equal(t, marketPayload, res.Payload)
}

func TestFetch_ForceRefreshAlwaysCallsRemote(t *testing.T) {
	f := newFixture()
	f.seed(t, marketKey, marketPayload, t0)
	f.clock.Advance(time.Minute)
	remote := &scriptedRemote{payload: "refreshed prices"}

	req := marketRequest()
	req.ForceRefresh = true
	res, err := f.fetcher.Fetch(context.Background(), req, remote.Call)

	require.Nil(t, err)
	assert.Equal(t, 1, remote.Calls())
	assert.Equal(t, freshness.SourceRemote, res.Source)
	assert.Equal(t, "refreshed prices", f.entry(t, marketKey).Payload)
	assert.Contains(t, f.sink.Outcomes(), metadata.OutcomeBypass)
}

func TestFetch_InvalidRemotePayloadLeavesStoreUnchanged(t *testing.T) {
	f := newFixture()
	remote := &scriptedRemote{payload: "Sorry, the response was blocked for safety reasons."}

	_, err := f.fetcher.Fetch(context.Background(), marketRequest(), remote.Call)

	require.NotNil(t, err)
	var fetchErr *freshness.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, freshness.ErrCauseInvalidPayload, fetchErr.Cause)
	assert.Equal(t, remote.payload, fetchErr.Detail())
	assert.Equal(t, 0, f.store.Writes())

	_, getErr := f.store.Get(context.Background(), marketKey)
	assert.ErrorIs(t, getErr, cache.ErrNotFound)
}

func TestFetch_RemoteFailureFallsBackToAnyAgeEntry(t *testing.T) {
	f := newFixture()
	f.seed(t, marketKey, marketPayload, t0)
	f.clock.Advance(90 * 24 * time.Hour)
	remote := &scriptedRemote{err: errNetwork}

	res, err := f.fetcher.Fetch(context.Background(), marketRequest(), remote.Call)

	require.Nil(t, err)
	assert.Equal(t, freshness.SourceStale, res.Source)
	assert.Equal(t, marketPayload, res.Payload)
	assert.True(t, t0.Equal(res.LastUpdated))
	assert.True(t, t0.Equal(f.entry(t, marketKey).LastUpdated), "lastUpdated must not change")
	assert.Equal(t, 0, f.store.Writes())
}

func TestFetch_RemoteFailureWithoutEntryCarriesRemoteError(t *testing.T) {
	f := newFixture()
	remote := &scriptedRemote{err: errNetwork}

	_, err := f.fetcher.Fetch(context.Background(), marketRequest(), remote.Call)

	require.NotNil(t, err)
	assert.ErrorIs(t, err, errNetwork)
	var fetchErr *freshness.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, freshness.ErrCauseRemoteFailure, fetchErr.Cause)
	assert.Equal(t, []metadata.CacheOutcome{metadata.OutcomeMiss, metadata.OutcomeUnavailable}, f.sink.Outcomes())
}

func TestFetch_RemoteFailureWithInvalidEntryFails(t *testing.T) {
	f := newFixture()
	f.seed(t, marketKey, "internal error", t0)
	remote := &scriptedRemote{err: errNetwork}

	_, err := f.fetcher.Fetch(context.Background(), marketRequest(), remote.Call)

	require.NotNil(t, err)
	assert.ErrorIs(t, err, errNetwork)
}

func TestFetch_Idempotent(t *testing.T) {
	f := newFixture()
	remote := &scriptedRemote{payload: marketPayload}

	first, err := f.fetcher.Fetch(context.Background(), marketRequest(), remote.Call)
	require.Nil(t, err)
	second, err := f.fetcher.Fetch(context.Background(), marketRequest(), remote.Call)
	require.Nil(t, err)

	assert.Equal(t, first.Payload, second.Payload)
	assert.Equal(t, 1, remote.Calls())
	assert.Equal(t, freshness.SourceCache, second.Source)
}

func TestFetch_LastUpdatedNeverMovesBackwards(t *testing.T) {
	f := newFixture()
	future := t0.Add(2 * time.Hour)
	f.seed(t, marketKey, marketPayload, future)
	remote := &scriptedRemote{payload: "newer"}

	req := marketRequest()
	req.ForceRefresh = true
	res, err := f.fetcher.Fetch(context.Background(), req, remote.Call)

	require.Nil(t, err)
	assert.True(t, future.Equal(res.LastUpdated))
	assert.True(t, future.Equal(f.entry(t, marketKey).LastUpdated))
}

func TestFetch_CustomValidator(t *testing.T) {
	f := newFixture()
	remote := &scriptedRemote{payload: "[]"}

	req := freshness.Request{
		Key:       "schemes",
		TTL:       24 * time.Hour,
		Validator: freshness.All(freshness.NewKeywordValidator(), func(p string) bool { return p != "[]" }),
	}
	_, err := f.fetcher.Fetch(context.Background(), req, remote.Call)

	require.NotNil(t, err)
	assert.Equal(t, 0, f.store.Writes())
}

func TestFetch_RequiresKeyAndRemote(t *testing.T) {
	f := newFixture()

	_, err := f.fetcher.Fetch(context.Background(), freshness.Request{TTL: time.Hour}, (&scriptedRemote{}).Call)
	require.NotNil(t, err)

	_, err = f.fetcher.Fetch(context.Background(), marketRequest(), nil)
	require.NotNil(t, err)

	var fetchErr *freshness.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, freshness.ErrCauseInvalidRequest, fetchErr.Cause)
}

func TestFetch_StoreReadErrorIsTreatedAsMiss(t *testing.T) {
	store := &storeMock{}
	store.On("Get", mock.Anything, marketKey).Return(cache.Entry{}, errors.New("disk unplugged"))
	store.On("Put", mock.Anything, marketKey, mock.Anything).Return(nil)
	sink := &recordingSink{}
	fetcher := freshness.NewFetcher(store, sink, freshness.WithClock(timeutil.NewManualClock(t0)))
	remote := &scriptedRemote{payload: marketPayload}

	res, err := fetcher.Fetch(context.Background(), marketRequest(), remote.Call)

	require.Nil(t, err)
	assert.Equal(t, marketPayload, res.Payload)
	assert.Equal(t, 1, remote.Calls())
	require.NotEmpty(t, sink.errors)
	assert.Equal(t, "Store.Get", sink.errors[0].action)
	assert.Equal(t, metadata.CauseStorageFailure, sink.errors[0].cause)
	store.AssertExpectations(t)
}

func TestFetch_StoreWriteErrorStillReturnsPayload(t *testing.T) {
	store := &storeMock{}
	store.On("Get", mock.Anything, marketKey).Return(cache.Entry{}, cache.ErrNotFound)
	store.On("Put", mock.Anything, marketKey, mock.Anything).Return(errors.New("read-only file system")).Once()
	sink := &recordingSink{}
	fetcher := freshness.NewFetcher(store, sink, freshness.WithClock(timeutil.NewManualClock(t0)))

	res, err := fetcher.Fetch(context.Background(), marketRequest(), (&scriptedRemote{payload: marketPayload}).Call)

	require.Nil(t, err)
	assert.Equal(t, freshness.SourceRemote, res.Source)
	require.Len(t, sink.errors, 1)
	assert.Equal(t, "Store.Put", sink.errors[0].action)
	store.AssertExpectations(t)
}

func TestFetchAsync_DeliversExactlyOnce(t *testing.T) {
	f := newFixture()
	remote := &scriptedRemote{payload: marketPayload}

	ch := f.fetcher.FetchAsync(context.Background(), marketRequest(), remote.Call)

	var outcomes []freshness.Outcome
	for o := range ch {
		outcomes = append(outcomes, o)
	}
	require.Len(t, outcomes, 1)
	assert.Nil(t, outcomes[0].Err)
	assert.Equal(t, marketPayload, outcomes[0].Result.Payload)
}

func TestState(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	state, err := f.fetcher.State(ctx, marketKey, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, freshness.StateEmpty, state)

	_, fetchErr := f.fetcher.Fetch(ctx, marketRequest(), (&scriptedRemote{payload: marketPayload}).Call)
	require.Nil(t, fetchErr)
	state, err = f.fetcher.State(ctx, marketKey, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, freshness.StateFresh, state)

	f.clock.Advance(25 * time.Hour)
	state, err = f.fetcher.State(ctx, marketKey, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, freshness.StateStale, state)

	// STALE stays STALE on a failed fetch.
	_, fetchErr = f.fetcher.Fetch(ctx, marketRequest(), (&scriptedRemote{err: errNetwork}).Call)
	require.Nil(t, fetchErr)
	state, _ = f.fetcher.State(ctx, marketKey, 24*time.Hour)
	assert.Equal(t, freshness.StateStale, state)

	// STALE -> FRESH on a valid fetch.
	_, fetchErr = f.fetcher.Fetch(ctx, marketRequest(), (&scriptedRemote{payload: "new"}).Call)
	require.Nil(t, fetchErr)
	state, _ = f.fetcher.State(ctx, marketKey, 24*time.Hour)
	assert.Equal(t, freshness.StateFresh, state)
}
