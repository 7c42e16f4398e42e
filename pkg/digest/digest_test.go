// SPDX-License-Identifier: Apache-2.0
package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryHasSHA256AndBlake3(t *testing.T) {
	r := DefaultRegistry()
	sha, ok := r.Get("sha256")
	require.True(t, ok)
	assert.Equal(t, "sha256", sha.Name())

	b3, ok := r.Get("blake3")
	require.True(t, ok)
	assert.Equal(t, "blake3", b3.Name())

	_, ok = r.Get("md5")
	assert.False(t, ok)
}

func TestSumAndParseIdentifierRoundTrip(t *testing.T) {
	id := Sum(SHA256, []byte("hello world"))
	assert.Equal(t, "sha256", id.HashAlgorithm())
	assert.Equal(t, int64(len("hello world")), id.Size())
	assert.Equal(t, id.ID(), id.ContentHash())

	parsed, err := ParseIdentifier("sha256", id.ID())
	require.NoError(t, err)
	assert.Equal(t, id.ID(), parsed.ID())
	assert.Equal(t, int64(0), parsed.Size(), "recovered identifiers have no size")
	assert.True(t, id.Equal(parsed) || id.ID() == parsed.ID())
}

func TestParseIdentifierRejectsShortOrUppercase(t *testing.T) {
	_, err := ParseIdentifier("sha256", "deadbeef")
	assert.Error(t, err)

	_, err = ParseIdentifier("sha256", "DEADBEEFDEADBEEFDEADBEEFDEADBEEF")
	assert.Error(t, err)
}

func TestIdentitySemantics(t *testing.T) {
	a := Sum(SHA256, []byte("same bytes"))
	b := Sum(SHA256, []byte("same bytes"))
	c := Sum(Blake3, []byte("same bytes"))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "identity includes the algorithm")
}
