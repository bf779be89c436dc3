package cache

import (
	"context"
	"fmt"
)

type BackendKind string

const (
	BackendMemory   BackendKind = "memory"
	BackendLRU      BackendKind = "lru"
	BackendFile     BackendKind = "file"
	BackendRedis    BackendKind = "redis"
	BackendS3       BackendKind = "s3"
	BackendPostgres BackendKind = "postgres"
)

func (k BackendKind) Valid() bool {
	switch k {
	case BackendMemory, BackendLRU, BackendFile, BackendRedis, BackendS3, BackendPostgres:
		return true
	}
	return false
}

type Options struct {
	Backend BackendKind
	// Capacity > 0 bounds the memory backend with LRU eviction.
	Capacity      int
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	S3            S3Options
	PostgresDSN   string
}

// Open builds the configured backend.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case BackendMemory, "":
		if opts.Capacity > 0 {
			return openLRU(opts.Capacity)
		}
		return NewMemoryStore(), nil
	case BackendLRU:
		return openLRU(opts.Capacity)
	case BackendFile:
		store, err := NewFileStore(opts.Dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendRedis:
		store := NewRedisStore(NewRedisClient(opts.RedisAddr, opts.RedisPassword, opts.RedisDB), opts.KeyPrefix)
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case BackendS3:
		client, err := NewS3Client(ctx, opts.S3)
		if err != nil {
			return nil, err
		}
		prefix := opts.S3.Prefix
		if prefix == "" {
			prefix = opts.KeyPrefix
		}
		return NewS3Store(opts.S3.Bucket, prefix, client), nil
	case BackendPostgres:
		store, err := NewPostgresStore(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, storeError(string(opts.Backend), ErrCauseInvalidOption, fmt.Errorf("unknown cache backend %q", opts.Backend))
	}
}

func openLRU(capacity int) (Backend, error) {
	store, err := NewLRUStore(capacity)
	if err != nil {
		return nil, err
	}
	return store, nil
}
