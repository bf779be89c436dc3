package cache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, cache.NewMemoryStore())
}

func TestLRUStore(t *testing.T) {
	store, err := cache.NewLRUStore(64)
	require.NoError(t, err)
	runStoreContract(t, store)
}

func TestLRUStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	store, err := cache.NewLRUStore(2)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.Put(ctx, "a", cache.Entry{Payload: "A", LastUpdated: now}))
	require.NoError(t, store.Put(ctx, "b", cache.Entry{Payload: "B", LastUpdated: now}))
	_, err = store.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "c", cache.Entry{Payload: "C", LastUpdated: now}))

	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	_, err = store.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

func TestLRUStore_RejectsNonPositiveCapacity(t *testing.T) {
	_, err := cache.NewLRUStore(0)
	var storeErr *cache.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, cache.ErrCauseInvalidOption, storeErr.Cause)
}

func TestFileStore(t *testing.T) {
	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	runStoreContract(t, store)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	at := time.UnixMilli(1_760_000_000_000)

	first, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, "irrigation_Rice_Clay_2026-03-01_20260302", cache.Entry{Payload: "water lightly", LastUpdated: at}))

	second, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	got, err := second.Get(ctx, "irrigation_Rice_Clay_2026-03-01_20260302")
	require.NoError(t, err)
	assert.Equal(t, "water lightly", got.Payload)
	assert.True(t, at.Equal(got.LastUpdated))
}

func TestFileStore_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "k", cache.Entry{Payload: "v", LastUpdated: time.Now()}))

	files, err := filepath.Glob(filepath.Join(dir, "*", "*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NoError(t, os.WriteFile(files[0], []byte("{not json"), 0644))

	_, err = store.Get(ctx, "k")
	var storeErr *cache.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, cache.ErrCauseCorruptEntry, storeErr.Cause)
}

func TestNamespace_IsolatesKeys(t *testing.T) {
	ctx := context.Background()
	backend := cache.NewMemoryStore()
	feeds := cache.Namespace(backend, cache.NamespaceFeeds)
	settings := cache.Namespace(backend, cache.NamespaceSettings)

	require.NoError(t, feeds.Put(ctx, "k", cache.Entry{Payload: "prices", LastUpdated: time.Now()}))

	_, err := settings.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	got, err := feeds.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "prices", got.Payload)
	assert.Equal(t, 1, backend.Size())
	assert.Equal(t, "feeds", feeds.Name())

	raw, err := backend.Get(ctx, "feeds/k")
	require.NoError(t, err)
	assert.Equal(t, "prices", raw.Payload)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	mem, err := cache.Open(ctx, cache.Options{Backend: cache.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryStore{}, mem)

	bounded, err := cache.Open(ctx, cache.Options{Backend: cache.BackendMemory, Capacity: 10})
	require.NoError(t, err)
	assert.IsType(t, &cache.LRUStore{}, bounded)

	file, err := cache.Open(ctx, cache.Options{Backend: cache.BackendFile, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &cache.FileStore{}, file)

	_, err = cache.Open(ctx, cache.Options{Backend: "etcd"})
	assert.Error(t, err)

	_, err = cache.Open(ctx, cache.Options{Backend: cache.BackendFile})
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("KRISHIELD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KRISHIELD_TEST_REDIS_ADDR not set")
	}
	store := cache.NewRedisStore(cache.NewRedisClient(addr, "", 0), "krishield-test:")
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Ping(context.Background()))
	runStoreContract(t, store)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("KRISHIELD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("KRISHIELD_TEST_POSTGRES_DSN not set")
	}
	store, err := cache.NewPostgresStore(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	assert.Equal(t, "up", store.Health(context.Background())["status"])
	runStoreContract(t, store)
}
