package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/rohmanhakim/krishield/pkg/fileutil"
	"github.com/rohmanhakim/krishield/pkg/hashutil"
)

// fileRecord is the on-disk shape of one entry.
type fileRecord struct {
	Key         string `json:"key"`
	Payload     string `json:"payload"`
	LastUpdated int64  `json:"last_updated"`
}

// FileStore persists each key as one JSON file named by the BLAKE3 digest of
// the key, sharded by the digest's first byte. Writes go through a temp file and rename.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, storeError("file", ErrCauseInvalidOption, errors.New("directory is required"))
	}
	if err := fileutil.EnsureDir(dir); err != nil {
		return nil, storeError("file", ErrCauseUnavailable, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(hashutil.ShardedPath(key))+".json")
}

func (s *FileStore) Get(ctx context.Context, key string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, storeError("file", ErrCauseReadFailure, err)
	}

	data, rerr := fileutil.ReadFile(s.path(key))
	if rerr != nil {
		if errors.Is(rerr, fs.ErrNotExist) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, storeError("file", ErrCauseReadFailure, rerr)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Entry{}, storeError("file", ErrCauseCorruptEntry, err)
	}
	if rec.Key != key {
		return Entry{}, ErrNotFound
	}
	return Entry{Payload: rec.Payload, LastUpdated: time.UnixMilli(rec.LastUpdated)}, nil
}

func (s *FileStore) Put(ctx context.Context, key string, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return storeError("file", ErrCauseWriteFailure, err)
	}

	data, err := json.Marshal(fileRecord{
		Key:         key,
		Payload:     entry.Payload,
		LastUpdated: entry.LastUpdated.UnixMilli(),
	})
	if err != nil {
		return storeError("file", ErrCauseWriteFailure, err)
	}
	if werr := fileutil.WriteFileAtomic(s.path(key), data); werr != nil {
		return storeError("file", ErrCauseWriteFailure, werr)
	}
	return nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Close() error {
	return nil
}
