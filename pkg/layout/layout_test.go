// SPDX-License-Identifier: Apache-2.0
package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snugarchive/snug/pkg/digest"
)

func allLayouts() []Layout {
	return []Layout{NewFlat(), NewSharded(1), NewSharded(2), NewSharded(4)}
}

func TestLayoutBijection(t *testing.T) {
	id := digest.Sum(digest.SHA256, []byte("some chunk bytes"))
	for _, l := range allLayouts() {
		t.Run(l.Name(), func(t *testing.T) {
			p := l.StoragePath(id)
			assert.True(t, l.IsValidPath(p))

			recovered, ok := l.Identifier(p)
			require.True(t, ok)
			assert.Equal(t, id.ID(), recovered.ID())
		})
	}
}

func TestShardedDepthClamp(t *testing.T) {
	assert.Equal(t, 2, NewSharded(0).Depth())
	assert.Equal(t, 1, NewSharded(1).Depth())
	assert.Equal(t, 4, NewSharded(5).Depth())
	assert.Equal(t, 4, NewSharded(100).Depth())
}

func TestShardedPathShape(t *testing.T) {
	id := digest.Sum(digest.SHA256, []byte("x"))
	p := NewSharded(2).StoragePath(id)
	assert.Equal(t, id.ID()[0:2]+"/"+id.ID()[2:4]+"/"+id.ID(), p)
}

func TestInvalidPathRejected(t *testing.T) {
	for _, l := range allLayouts() {
		assert.False(t, l.IsValidPath("not-hex"))
		assert.False(t, l.IsValidPath("ABCDEF0123456789ABCDEF0123456789"))
	}
}

func TestParseLayoutByName(t *testing.T) {
	l, ok := Parse("flat", 0)
	require.True(t, ok)
	assert.Equal(t, "flat", l.Name())

	l, ok = Parse("sharded", 3)
	require.True(t, ok)
	assert.Equal(t, "sharded", l.Name())
	assert.Equal(t, 3, l.(Sharded).Depth())

	_, ok = Parse("unknown", 0)
	assert.False(t, ok)
}
