package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPayloadField   = "payload"
	redisUpdatedAtField = "updated_at"
)

// RedisStore keeps each entry in a hash with payload and updated_at (epoch ms) fields.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.redisKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, storeError("redis", ErrCauseReadFailure, err)
	}
	if len(fields) == 0 {
		return Entry{}, ErrNotFound
	}

	payload, ok := fields[redisPayloadField]
	if !ok {
		return Entry{}, storeError("redis", ErrCauseCorruptEntry, errors.New("missing payload field"))
	}
	ms, err := strconv.ParseInt(fields[redisUpdatedAtField], 10, 64)
	if err != nil {
		return Entry{}, storeError("redis", ErrCauseCorruptEntry, err)
	}
	return Entry{Payload: payload, LastUpdated: time.UnixMilli(ms)}, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, entry Entry) error {
	err := s.client.HSet(ctx, s.redisKey(key),
		redisPayloadField, entry.Payload,
		redisUpdatedAtField, strconv.FormatInt(entry.LastUpdated.UnixMilli(), 10),
	).Err()
	if err != nil {
		return storeError("redis", ErrCauseWriteFailure, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return storeError("redis", ErrCauseUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
