// SPDX-License-Identifier: Apache-2.0
package archive

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snugarchive/snug/pkg/chunkstore"
	"github.com/snugarchive/snug/pkg/digest"
	"github.com/snugarchive/snug/pkg/layout"
)

func newStore(t *testing.T, opts ...chunkstore.Option) *chunkstore.Store {
	s, _ := newStoreWithRoot(t, opts...)
	return s
}

func newStoreWithRoot(t *testing.T, opts ...chunkstore.Option) (*chunkstore.Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := chunkstore.Open(root, digest.SHA256, layout.NewSharded(2), opts...)
	require.NoError(t, err)
	return s, root
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

// dedup across files sharing identical content.
func TestCreateDedupsIdenticalFiles(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt":     "hello",
		"b.txt":     "hello",
		"sub/c.txt": "world",
	})
	store := newStore(t)
	manifestPath := filepath.Join(t.TempDir(), "archive.snug")

	report, err := Create(src, manifestPath, ArchiveOptions{Store: store, HashAlgorithm: digest.SHA256, LayoutName: "sharded", LayoutDepth: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, report.FilesProcessed)

	var count int
	for range store.Enumerate() {
		count++
	}
	assert.Equal(t, 2, count)

	entries, err := List(manifestPath, ListOptions{})
	require.NoError(t, err)
	byPath := map[string]ListEntry{}
	for _, e := range entries {
		byPath[e.Path] = e
	}
	require.Contains(t, byPath, "a.txt")
	require.Contains(t, byPath, "b.txt")
	assert.Equal(t, byPath["a.txt"].Hash, byPath["b.txt"].Hash)
}

// multi-chunk file round-trips exactly.
func TestCreateExtractMultiChunkFile(t *testing.T) {
	src := t.TempDir()
	data := make([]byte, 3*defaultChunkSize)
	_, err := rand.Read(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(src, "big.bin"), data, 0o644))

	store := newStore(t)
	manifestPath := filepath.Join(t.TempDir(), "archive.snug")
	_, err = Create(src, manifestPath, ArchiveOptions{Store: store})
	require.NoError(t, err)

	dst := t.TempDir()
	_, err = Extract(manifestPath, dst, ExtractOptions{Store: store, Overwrite: true})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dst, "big.bin"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

// symlinks are preserved as metadata-only entries when not followed.
func TestCreatePreservesSymlinkMetadata(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"target.txt": "x"})
	require.NoError(t, os.Symlink("../target.txt", filepath.Join(src, "link.txt")))

	store := newStore(t)
	manifestPath := filepath.Join(t.TempDir(), "archive.snug")
	_, err := Create(src, manifestPath, ArchiveOptions{Store: store})
	require.NoError(t, err)

	entries, err := List(manifestPath, ListOptions{})
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.Path == "link.txt" {
			found = true
			assert.Equal(t, "symlink", e.Type)
		}
	}
	assert.True(t, found)
}

// deep validate detects a corrupted chunk.
func TestValidateDeepDetectsCorruption(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "hello world"})
	store, root := newStoreWithRoot(t)
	manifestPath := filepath.Join(t.TempDir(), "archive.snug")
	_, err := Create(src, manifestPath, ArchiveOptions{Store: store})
	require.NoError(t, err)

	id := digest.Sum(digest.SHA256, []byte("hello world"))
	lay := layout.NewSharded(2)
	target := filepath.Join(root, filepath.FromSlash(lay.StoragePath(id)))
	require.NoError(t, os.WriteFile(target, []byte("corrupted bytes"), 0o644))

	report, err := Validate(manifestPath, ValidateOptions{Store: store, Deep: true})
	require.NoError(t, err)
	assert.Contains(t, report.Corrupted, id.ID())
	assert.False(t, report.OK())
}

// a deleted chunk is reported missing without reading any bytes.
func TestValidateReportsMissingChunk(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "hello world"})
	store := newStore(t)
	manifestPath := filepath.Join(t.TempDir(), "archive.snug")
	_, err := Create(src, manifestPath, ArchiveOptions{Store: store})
	require.NoError(t, err)

	id := digest.Sum(digest.SHA256, []byte("hello world"))
	require.NoError(t, store.Delete(id))

	report, err := Validate(manifestPath, ValidateOptions{Store: store})
	require.NoError(t, err)
	assert.Contains(t, report.Missing, id.ID())
}

// re-running create into the same store writes no new chunks, and an
// unchanged source tree preserves the manifest's original CreatedAt
// instead of bumping it to the second run's timestamp.
func TestCreateTwiceIsIdempotent(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "hello", "sub/b.txt": "world"})
	store := newStore(t)
	manifestPath := filepath.Join(t.TempDir(), "archive.snug")

	report1, err := Create(src, manifestPath, ArchiveOptions{Store: store})
	require.NoError(t, err)
	assert.False(t, report1.Unchanged)
	m1, err := readManifest(manifestPath)
	require.NoError(t, err)

	report2, err := Create(src, manifestPath, ArchiveOptions{Store: store})
	require.NoError(t, err)
	assert.Equal(t, 0, report2.ChunksWritten)
	assert.True(t, report2.Unchanged)
	m2, err := readManifest(manifestPath)
	require.NoError(t, err)
	assert.True(t, m1.CreatedAt.Equal(m2.CreatedAt))
}

// editing the source tree between two create runs is detected: the
// rewritten manifest's CreatedAt moves forward and ChunksWritten is
// nonzero for the new content.
func TestCreateTwiceDetectsChange(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "hello"})
	store := newStore(t)
	manifestPath := filepath.Join(t.TempDir(), "archive.snug")

	_, err := Create(src, manifestPath, ArchiveOptions{Store: store})
	require.NoError(t, err)
	m1, err := readManifest(manifestPath)
	require.NoError(t, err)

	writeTree(t, src, map[string]string{"a.txt": "hello, but different now"})
	report2, err := Create(src, manifestPath, ArchiveOptions{Store: store})
	require.NoError(t, err)
	assert.False(t, report2.Unchanged)
	assert.NotZero(t, report2.ChunksWritten)

	m2, err := readManifest(manifestPath)
	require.NoError(t, err)
	assert.False(t, m1.CreatedAt.Equal(m2.CreatedAt))
}
