package hashutil

import (
	"encoding/hex"
	"path"

	"lukechampine.com/blake3"
)

// KeyDigest maps an arbitrary cache key to a fixed-length name that is safe
// as a file name or object key.
func KeyDigest(key string) string {
	sum := blake3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ShardedPath is KeyDigest split as "ab/abcdef...", spreading entries over
// 256 subdirectories.
func ShardedPath(key string) string {
	digest := KeyDigest(key)
	return path.Join(digest[:2], digest)
}
