// SPDX-License-Identifier: Apache-2.0
package mirror

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snugarchive/snug/pkg/chunkstore"
	"github.com/snugarchive/snug/pkg/digest"
	"github.com/snugarchive/snug/pkg/layout"
)

func newChunkStore(t *testing.T) *chunkstore.Store {
	t.Helper()
	s, err := chunkstore.Open(t.TempDir(), digest.SHA256, layout.NewFlat())
	require.NoError(t, err)
	return s
}

// flakyStore fails its first N Put calls, then delegates.
type flakyStore struct {
	mu       sync.Mutex
	failLeft int
	inner    *chunkstore.Store
}

func (f *flakyStore) Put(data []byte) (digest.Identifier, error) {
	f.mu.Lock()
	if f.failLeft > 0 {
		f.failLeft--
		f.mu.Unlock()
		return digest.Identifier{}, assertErr{}
	}
	f.mu.Unlock()
	return f.inner.Put(data)
}
func (f *flakyStore) Get(id digest.Identifier) ([]byte, error) { return f.inner.Get(id) }
func (f *flakyStore) Exists(id digest.Identifier) bool         { return f.inner.Exists(id) }
func (f *flakyStore) Delete(id digest.Identifier) error        { return f.inner.Delete(id) }

type assertErr struct{}

func (assertErr) Error() string { return "simulated transient failure" }

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestPutReplicatesToMirrorEventually(t *testing.T) {
	primary := newChunkStore(t)
	secondary := newChunkStore(t)

	m := NewStore(primary, []Secondary{{Name: "m1", Tier: TierMirror, Store: secondary}}, nil)

	id, err := m.Put(context.Background(), []byte("hello"))
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool { return secondary.Exists(id) })
}

func TestGetFallsBackToSecondaryAndRepairsPrimary(t *testing.T) {
	primary := newChunkStore(t)
	secondary := newChunkStore(t)

	id, err := secondary.Put([]byte("only on secondary"))
	require.NoError(t, err)
	require.False(t, primary.Exists(id))

	m := NewStore(primary, []Secondary{{Name: "s1", Tier: TierMirror, Store: secondary}}, nil)
	data, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "only on secondary", string(data))

	assert.True(t, primary.Exists(id), "recovered chunk should be re-inserted into primary")
}

func TestDeleteWaitsForMirrorTierOnly(t *testing.T) {
	primary := newChunkStore(t)
	mirrorTier := newChunkStore(t)
	glacierTier := newChunkStore(t)

	data := []byte("tiered chunk")
	id, err := primary.Put(data)
	require.NoError(t, err)
	_, err = mirrorTier.Put(data)
	require.NoError(t, err)
	_, err = glacierTier.Put(data)
	require.NoError(t, err)

	m := NewStore(primary, []Secondary{
		{Name: "mirror1", Tier: TierMirror, Store: mirrorTier},
		{Name: "glacier1", Tier: TierGlacier, Store: glacierTier},
	}, nil)

	require.NoError(t, m.Delete(id))
	assert.False(t, primary.Exists(id))
	assert.False(t, mirrorTier.Exists(id))
}

func TestSidelineRecordsPersistentFailures(t *testing.T) {
	dir := t.TempDir()
	sideline, err := OpenSideline(dir)
	require.NoError(t, err)

	require.NoError(t, sideline.Append(PendingRecord{ID: "deadbeef", Target: "mirror1", Attempts: 8, LastError: "boom"}))
	require.NoError(t, sideline.Append(PendingRecord{ID: "cafef00d", Target: "mirror1", Attempts: 8, LastError: "boom again"}))

	records, err := sideline.Drain()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "deadbeef", records[0].ID)
	assert.Equal(t, "cafef00d", records[1].ID)

	require.NoError(t, sideline.Replace(nil))
	records, err = sideline.Drain()
	require.NoError(t, err)
	assert.Empty(t, records)
}
