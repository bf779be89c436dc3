package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behaviour every backend must share.
func runStoreContract(t *testing.T, store cache.Store) {
	t.Helper()
	ctx := context.Background()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())

	t.Run("missing key returns ErrNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "missing_"+suffix)
		assert.True(t, errors.Is(err, cache.ErrNotFound))
	})

	t.Run("put then get round trips at millisecond precision", func(t *testing.T) {
		key := "market_Delhi_Delhi_General_" + suffix
		at := time.Date(2026, 3, 1, 9, 30, 15, 123456789, time.UTC)
		payload := "CROPS:\n• Wheat: ₹2200/quintal (stable)\n\nRECOMMENDATION:\n• Hold"

		require.NoError(t, store.Put(ctx, key, cache.Entry{Payload: payload, LastUpdated: at}))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, payload, got.Payload)
		assert.Equal(t, at.UnixMilli(), got.LastUpdated.UnixMilli())
	})

	t.Run("put overwrites in place", func(t *testing.T) {
		key := "schemes_" + suffix
		first := time.UnixMilli(1_700_000_000_000)
		second := first.Add(time.Hour)

		require.NoError(t, store.Put(ctx, key, cache.Entry{Payload: "old", LastUpdated: first}))
		require.NoError(t, store.Put(ctx, key, cache.Entry{Payload: "new", LastUpdated: second}))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "new", got.Payload)
		assert.Equal(t, second.UnixMilli(), got.LastUpdated.UnixMilli())
	})

	t.Run("empty payload is stored as is", func(t *testing.T) {
		key := "empty_" + suffix
		require.NoError(t, store.Put(ctx, key, cache.Entry{Payload: "", LastUpdated: time.UnixMilli(1)}))
		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "", got.Payload)
	})

	t.Run("distinct keys are safe concurrently", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("concurrent_%d_%s", i, suffix)
				assert.NoError(t, store.Put(ctx, key, cache.Entry{Payload: key, LastUpdated: time.Now()}))
				got, err := store.Get(ctx, key)
				if assert.NoError(t, err) {
					assert.Equal(t, key, got.Payload)
				}
			}(i)
		}
		wg.Wait()
	})
}
