package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS krishield_cache (
	key        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at BIGINT NOT NULL
)`

// PostgresStore keeps entries in a single table keyed by cache key.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, storeError("postgres", ErrCauseUnavailable, err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, storeError("postgres", ErrCauseUnavailable, err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Entry, error) {
	var (
		payload   string
		updatedAt int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT payload, updated_at FROM krishield_cache WHERE key = $1`, key,
	).Scan(&payload, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, storeError("postgres", ErrCauseReadFailure, err)
	}
	return Entry{Payload: payload, LastUpdated: time.UnixMilli(updatedAt)}, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, entry Entry) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO krishield_cache (key, payload, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		key, entry.Payload, entry.LastUpdated.UnixMilli(),
	)
	if err != nil {
		return storeError("postgres", ErrCauseWriteFailure, err)
	}
	return nil
}

// Health returns pool statistics, or status "down" when the database is unreachable.
func (s *PostgresStore) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	stats := make(map[string]string)
	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	poolStats := s.pool.Stat()
	stats["status"] = "up"
	stats["total_conns"] = strconv.Itoa(int(poolStats.TotalConns()))
	stats["idle_conns"] = strconv.Itoa(int(poolStats.IdleConns()))
	stats["acquired_conns"] = strconv.Itoa(int(poolStats.AcquiredConns()))
	stats["max_conns"] = strconv.Itoa(int(poolStats.MaxConns()))
	return stats
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
