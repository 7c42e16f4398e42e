// SPDX-License-Identifier: Apache-2.0
package hashcache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutThenGetHits(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), ".hashcache.json"), 0)
	require.NoError(t, err)
	defer c.Close()

	mtime := time.Now().Truncate(time.Second)
	c.Put("/a/b/file.txt", 42, mtime, "abc123", "sha256")

	entry, ok := c.Get("/a/b/file.txt", 42, mtime)
	require.True(t, ok)
	assert.Equal(t, "abc123", entry.Digest)
	assert.Equal(t, "sha256", entry.Algorithm)
}

func TestGetMissesOnMtimeChange(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), ".hashcache.json"), 0)
	require.NoError(t, err)
	defer c.Close()

	mtime := time.Now().Truncate(time.Second)
	c.Put("/a/b/file.txt", 42, mtime, "abc123", "sha256")

	_, ok := c.Get("/a/b/file.txt", 42, mtime.Add(time.Second))
	assert.False(t, ok)
}

func TestEvictsLeastRecentlyUsedOverBound(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), ".hashcache.json"), 100)
	require.NoError(t, err)
	defer c.Close()

	mtime := time.Now().Truncate(time.Second)
	c.Put("/a", 60, mtime, "a-digest", "sha256")
	c.Put("/b", 60, mtime, "b-digest", "sha256")

	_, aStillPresent := c.Get("/a", 60, mtime)
	_, bStillPresent := c.Get("/b", 60, mtime)
	assert.False(t, aStillPresent, "oldest entry should have been evicted")
	assert.True(t, bStillPresent)
}

func TestSaveAndReopenRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".hashcache.json")
	mtime := time.Now().Truncate(time.Second)

	c, err := Open(path, 0)
	require.NoError(t, err)
	c.Put("/persisted", 10, mtime, "persisted-digest", "sha256")
	require.NoError(t, c.Close())

	c2, err := Open(path, 0)
	require.NoError(t, err)
	defer c2.Close()

	entry, ok := c2.Get("/persisted", 10, mtime)
	require.True(t, ok)
	assert.Equal(t, "persisted-digest", entry.Digest)
}

func TestSecondOpenOnSamePathFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".hashcache.json")
	c, err := Open(path, 0)
	require.NoError(t, err)
	defer c.Close()

	_, err = Open(path, 0)
	assert.Error(t, err)
}
