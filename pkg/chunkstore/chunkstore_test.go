// SPDX-License-Identifier: Apache-2.0
package chunkstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snugarchive/snug/internal"
	"github.com/snugarchive/snug/pkg/digest"
	"github.com/snugarchive/snug/pkg/layout"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), digest.SHA256, layout.NewSharded(2), opts...)
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	data := []byte("some chunk content")

	id, err := s.Put(data)
	require.NoError(t, err)
	assert.True(t, s.Exists(id))

	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPutIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	data := []byte("repeat me")

	id1, err := s.Put(data)
	require.NoError(t, err)
	id2, err := s.Put(data)
	require.NoError(t, err)
	assert.Equal(t, id1.ID(), id2.ID())
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := newTestStore(t)
	id := digest.Sum(digest.SHA256, []byte("never stored"))
	_, err := s.Get(id)
	require.Error(t, err)
	assert.Equal(t, internal.KindNotFound, internal.KindOf(err))
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Put([]byte("to be deleted"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(id))
	assert.False(t, s.Exists(id))
	require.NoError(t, s.Delete(id), "deleting an absent chunk must still succeed")
}

func TestPutPrehashedRejectsMismatch(t *testing.T) {
	s := newTestStore(t)
	wrongID := digest.Sum(digest.SHA256, []byte("decoy"))
	err := s.PutPrehashed(wrongID, []byte("actual bytes"))
	require.Error(t, err)
	assert.Equal(t, internal.KindIntegrity, internal.KindOf(err))
}

func TestEnumerateFindsAllPutChunks(t *testing.T) {
	s := newTestStore(t)
	want := map[string]bool{}
	for _, s2 := range []string{"a", "b", "c"} {
		id, err := s.Put([]byte(s2))
		require.NoError(t, err)
		want[id.ID()] = true
	}

	got := map[string]bool{}
	for id := range s.Enumerate() {
		got[id.ID()] = true
	}
	assert.Equal(t, want, got)
}

func TestVerifyAllReportsOK(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Put([]byte("healthy chunk"))
	require.NoError(t, err)

	report := s.VerifyAll()
	assert.Len(t, report.OK, 1)
	assert.Empty(t, report.Corrupted)
	assert.Empty(t, report.Missing)
}

func TestVerifyAllDetectsCorruption(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Put([]byte("trustworthy"))
	require.NoError(t, err)

	path := s.absPath(id)
	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))

	report := s.VerifyAll()
	assert.Empty(t, report.OK)
	assert.Contains(t, report.Corrupted, id)
}

func TestVerifyOnReadDetectsCorruption(t *testing.T) {
	s := newTestStore(t, WithVerifyOnRead(Verify))
	id, err := s.Put([]byte("trustworthy"))
	require.NoError(t, err)

	// Simulate on-disk corruption by overwriting the stored bytes directly.
	path := s.absPath(id)
	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o644))

	_, err = s.Get(id)
	require.Error(t, err)
	assert.Equal(t, internal.KindCorruption, internal.KindOf(err))
}
