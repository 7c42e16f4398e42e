// SPDX-License-Identifier: Apache-2.0
/*
 * snug: a content-addressable archive engine for file-system trees
 * Copyright (C) 2026 snug authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package tree is the in-memory folder/file hierarchy shared between
// archive creation and extraction. It carries no absolute paths: a Folder
// is an interchange structure, not a live view of any file system.
package tree

import (
	"fmt"
	"sort"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/snugarchive/snug/pkg/digest"
)

// SpecialFileType enumerates non-regular-file kinds a Entry may represent.
type SpecialFileType string

const (
	SpecialSymlink         SpecialFileType = "symlink"
	SpecialBlockDevice     SpecialFileType = "block-device"
	SpecialCharacterDevice SpecialFileType = "character-device"
	SpecialSocket          SpecialFileType = "socket"
	SpecialFIFO            SpecialFileType = "fifo"
)

// EntryMetadata carries the descriptive fields of a file-system entry.
type EntryMetadata struct {
	Name            string
	Size            int64
	ModTime         time.Time
	CreateTime      *time.Time
	Permissions     string // octal string, e.g. "0644"
	Owner           string
	Group           string
	Hidden          bool
	System          bool
	SpecialFileType SpecialFileType // "" for regular files
	SymlinkTarget   string
	SecondaryHashes map[string]string
	Xattrs          map[string]string // base64-valued, optional
}

// Entry is a non-directory node: metadata plus, for regular files, a
// content reference. Invariant: if SpecialFileType is set, ChunkID must be
// the zero value and Chunks must be empty.
type Entry struct {
	Metadata EntryMetadata
	ChunkID  digest.Identifier // zero value if absent (symlink/special/empty file)
	Chunks   []digest.Identifier
}

// Name returns the entry's name, satisfying the same contract as
// Folder.Name for uniform traversal.
func (e *Entry) Name() string { return e.Metadata.Name }

// IsMultiChunk reports whether the entry's content spans more than one
// chunk, in which case Chunks (not ChunkID) carries the ordered list.
func (e *Entry) IsMultiChunk() bool { return len(e.Chunks) > 0 }

// Clone returns a deep copy of e. EntryMetadata is entirely exported
// fields, so mohae/deepcopy's reflection walk handles it correctly;
// Folder.Clone below cannot use the same approach because its fields are
// unexported.
func (e *Entry) Clone() *Entry {
	clone := *e
	clone.Metadata = deepcopy.Copy(e.Metadata).(EntryMetadata)
	clone.Chunks = append([]digest.Identifier(nil), e.Chunks...)
	return &clone
}

// Folder is a directory node owning an ordered, name-unique set of
// children. A child belongs to at most one folder.
type Folder struct {
	name     string
	modTime  time.Time
	children []Node
	byName   map[string]int // name -> index in children
}

// Node is the interface satisfied by both *Folder and *Entry, letting
// Folder.children hold either.
type Node interface {
	Name() string
}

// NewFolder returns an empty Folder.
func NewFolder(name string, modTime time.Time) *Folder {
	return &Folder{name: name, modTime: modTime, byName: map[string]int{}}
}

func (f *Folder) Name() string       { return f.name }
func (f *Folder) ModTime() time.Time { return f.modTime }
func (f *Folder) Children() []Node   { return f.children }
func (f *Folder) Len() int           { return len(f.children) }

// AddChild appends child to f, enforcing name-uniqueness within this
// folder. Returns an error if a child with the same name already exists.
func (f *Folder) AddChild(child Node) error {
	name := child.Name()
	if _, exists := f.byName[name]; exists {
		return fmt.Errorf("tree: folder %q already has a child named %q", f.name, name)
	}
	f.byName[name] = len(f.children)
	f.children = append(f.children, child)
	return nil
}

// Get returns the child of f named name, if any.
func (f *Folder) Get(name string) (Node, bool) {
	idx, ok := f.byName[name]
	if !ok {
		return nil, false
	}
	return f.children[idx], true
}

// SortedChildren returns f's children ordered lexicographically by name,
// leaving f.children (insertion order) untouched.
func (f *Folder) SortedChildren() []Node {
	sorted := make([]Node, len(f.children))
	copy(sorted, f.children)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name() < sorted[j].Name() })
	return sorted
}

// TotalSize returns the sum of every Entry's logical size reachable from
// f, depth-first.
func (f *Folder) TotalSize() int64 {
	var total int64
	f.Walk(func(_ string, node Node) bool {
		if e, ok := node.(*Entry); ok {
			total += e.Metadata.Size
		}
		return true
	})
	return total
}

// FileCount returns the number of Entry nodes (not Folders) reachable
// from f, depth-first.
func (f *Folder) FileCount() int {
	var count int
	f.Walk(func(_ string, node Node) bool {
		if _, ok := node.(*Entry); ok {
			count++
		}
		return true
	})
	return count
}

// Walk visits every node reachable from f, depth-first, in lexicographic
// order by name within each folder. visit receives the node's path
// relative to f (POSIX separators) and the node itself; returning false
// skips descent into that node if it is a folder, but continues the walk.
func (f *Folder) Walk(visit func(path string, node Node) bool) {
	f.walk("", visit)
}

func (f *Folder) walk(prefix string, visit func(path string, node Node) bool) {
	for _, child := range f.SortedChildren() {
		path := child.Name()
		if prefix != "" {
			path = prefix + "/" + path
		}
		descend := visit(path, child)
		if sub, ok := child.(*Folder); ok && descend {
			sub.walk(path, visit)
		}
	}
}

// Clone returns a deep copy of f. mohae/deepcopy's reflection walk skips
// unexported struct fields, so it cannot be used directly on Folder
// (unlike Entry.Clone); Clone instead rebuilds the tree node by node.
func (f *Folder) Clone() *Folder {
	clone := NewFolder(f.name, f.modTime)
	for _, child := range f.children {
		switch c := child.(type) {
		case *Folder:
			_ = clone.AddChild(c.Clone())
		case *Entry:
			_ = clone.AddChild(c.Clone())
		}
	}
	return clone
}
