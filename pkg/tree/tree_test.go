// SPDX-License-Identifier: Apache-2.0
package tree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSampleTree() *Folder {
	root := NewFolder("", time.Unix(0, 0))
	sub := NewFolder("sub", time.Unix(0, 0))
	_ = sub.AddChild(&Entry{Metadata: EntryMetadata{Name: "z.txt", Size: 10}})
	_ = sub.AddChild(&Entry{Metadata: EntryMetadata{Name: "a.txt", Size: 5}})
	_ = root.AddChild(sub)
	_ = root.AddChild(&Entry{Metadata: EntryMetadata{Name: "top.txt", Size: 3}})
	return root
}

func TestAddChildRejectsDuplicateNames(t *testing.T) {
	f := NewFolder("root", time.Now())
	require.NoError(t, f.AddChild(&Entry{Metadata: EntryMetadata{Name: "a"}}))
	err := f.AddChild(&Entry{Metadata: EntryMetadata{Name: "a"}})
	assert.Error(t, err)
}

func TestWalkIsLexicographicDepthFirst(t *testing.T) {
	root := buildSampleTree()
	var visited []string
	root.Walk(func(path string, node Node) bool {
		visited = append(visited, path)
		return true
	})
	assert.Equal(t, []string{"sub", "sub/a.txt", "sub/z.txt", "top.txt"}, visited)
}

func TestTotalSizeAndFileCount(t *testing.T) {
	root := buildSampleTree()
	assert.Equal(t, int64(18), root.TotalSize())
	assert.Equal(t, 3, root.FileCount())
}

func TestWalkPruneSkipsDescent(t *testing.T) {
	root := buildSampleTree()
	var visited []string
	root.Walk(func(path string, node Node) bool {
		visited = append(visited, path)
		return path != "sub"
	})
	assert.Equal(t, []string{"sub", "top.txt"}, visited)
}

func TestCloneIsIndependentCopy(t *testing.T) {
	root := buildSampleTree()
	clone := root.Clone()

	sub, ok := clone.Get("sub")
	require.True(t, ok)
	subFolder := sub.(*Folder)
	entry, ok := subFolder.Get("a.txt")
	require.True(t, ok)
	entry.(*Entry).Metadata.Size = 999

	originalSub, _ := root.Get("sub")
	originalEntry, _ := originalSub.(*Folder).Get("a.txt")
	assert.Equal(t, int64(5), originalEntry.(*Entry).Metadata.Size, "mutating the clone must not affect the original")
}

func TestEntryCloneCopiesMapsAndSlices(t *testing.T) {
	e := &Entry{
		Metadata: EntryMetadata{
			Name:   "f",
			Xattrs: map[string]string{"user.foo": "YmFy"},
		},
	}
	clone := e.Clone()
	clone.Metadata.Xattrs["user.foo"] = "changed"
	assert.Equal(t, "YmFy", e.Metadata.Xattrs["user.foo"])
}
