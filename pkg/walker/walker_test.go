// SPDX-License-Identifier: Apache-2.0
package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func buildSampleDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b"), 0o755))
	writeFile(t, root, "z.txt", []byte("z"))
	writeFile(t, filepath.Join(root, "b"), "a.txt", []byte("a"))
	writeFile(t, root, "a.txt", []byte("aa"))
	return root
}

type recordingDelegate struct {
	paths  []string
	decide func(DirectoryEntry) Decision
}

func (r *recordingDelegate) Visit(e DirectoryEntry) (Decision, error) {
	r.paths = append(r.paths, e.RelPath)
	if r.decide != nil {
		return r.decide(e), nil
	}
	return Continue, nil
}

func TestWalkIsLexicographicDepthFirst(t *testing.T) {
	root := buildSampleDir(t)
	p := New(OSFileSystem{}, Options{})
	rec := &recordingDelegate{}
	require.NoError(t, p.Walk(root, rec))
	assert.Equal(t, []string{"a.txt", "b", "b/a.txt", "z.txt"}, rec.paths)
}

func TestPruneSkipsDescentNotWalk(t *testing.T) {
	root := buildSampleDir(t)
	p := New(OSFileSystem{}, Options{})
	rec := &recordingDelegate{decide: func(e DirectoryEntry) Decision {
		if e.RelPath == "b" {
			return Prune
		}
		return Continue
	}}
	require.NoError(t, p.Walk(root, rec))
	assert.Equal(t, []string{"a.txt", "b", "z.txt"}, rec.paths)
}

func TestIgnoreMatcherSkipsMatches(t *testing.T) {
	root := buildSampleDir(t)
	p := New(OSFileSystem{}, Options{IgnoreMatcher: GlobIgnoreMatcher{Patterns: []string{"*.txt"}}})
	rec := &recordingDelegate{}
	require.NoError(t, p.Walk(root, rec))
	assert.Equal(t, []string{"b"}, rec.paths)
}

func TestSymlinkNotFollowedByDefault(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "real.txt", []byte("data"))
	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")))

	p := New(OSFileSystem{}, Options{})
	var types []EntryType
	rec := DelegateFunc(func(e DirectoryEntry) (Decision, error) {
		types = append(types, e.Type)
		return Continue, nil
	})
	require.NoError(t, p.Walk(root, rec))
	assert.Contains(t, types, TypeSymlink)
}

func TestBasePathPrefixesEmittedPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "f.txt", []byte("x"))
	p := New(OSFileSystem{}, Options{BasePath: "prefix"})
	rec := &recordingDelegate{}
	require.NoError(t, p.Walk(root, rec))
	assert.Equal(t, []string{"prefix/f.txt"}, rec.paths)
}
