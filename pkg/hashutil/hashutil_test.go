package hashutil_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/rohmanhakim/krishield/pkg/hashutil"
	"github.com/stretchr/testify/assert"
	"lukechampine.com/blake3"
)

func TestKeyDigest(t *testing.T) {
	key := "market_Delhi_Delhi_General"
	expected := blake3.Sum256([]byte(key))

	assert.Equal(t, hex.EncodeToString(expected[:]), hashutil.KeyDigest(key))
	assert.Len(t, hashutil.KeyDigest(""), 64)
	assert.NotEqual(t, hashutil.KeyDigest("a_b"), hashutil.KeyDigest("a/b"))
}

func TestKeyDigest_KnownVector(t *testing.T) {
	assert.Equal(t, "6437b3ac38465133ffb63b75273a8db548c558465d79db03fd359c6cd5bd9d85", hashutil.KeyDigest("abc"))
}

func TestShardedPath(t *testing.T) {
	got := hashutil.ShardedPath("abc")

	dir, name, ok := strings.Cut(got, "/")
	assert.True(t, ok)
	assert.Equal(t, "64", dir)
	assert.Equal(t, hashutil.KeyDigest("abc"), name)
}
