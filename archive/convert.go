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

package archive

import (
	"fmt"
	"time"

	"github.com/snugarchive/snug/pkg/digest"
	"github.com/snugarchive/snug/pkg/tree"
)

// nodeFromFolder converts an in-memory Folder into its manifest wire form,
// recursing depth-first in the folder's insertion order; for a tree built
// by Create that is the parser's lexicographic traversal order, so the
// written manifest matches it.
func nodeFromFolder(f *tree.Folder) *Node {
	n := &Node{Type: NodeFolder, Name: f.Name()}
	if !f.ModTime().IsZero() {
		t := f.ModTime()
		n.Modified = &t
	}
	for _, child := range f.Children() {
		switch c := child.(type) {
		case *tree.Folder:
			n.Children = append(n.Children, nodeFromFolder(c))
		case *tree.Entry:
			n.Children = append(n.Children, nodeFromEntry(c))
		}
	}
	return n
}

// nodeFromEntry converts a tree Entry into its manifest wire form.
func nodeFromEntry(e *tree.Entry) *Node {
	typ := NodeFile
	if e.Metadata.SpecialFileType != "" {
		typ = NodeSpecial
		if e.Metadata.SpecialFileType == tree.SpecialSymlink {
			typ = NodeSymlink
		}
	}
	n := &Node{
		Type:            typ,
		Name:            e.Metadata.Name,
		Size:            e.Metadata.Size,
		Permissions:     e.Metadata.Permissions,
		Owner:           e.Metadata.Owner,
		Group:           e.Metadata.Group,
		Hidden:          e.Metadata.Hidden,
		System:          e.Metadata.System,
		SpecialFileType: string(e.Metadata.SpecialFileType),
		SymlinkTarget:   e.Metadata.SymlinkTarget,
	}
	if !e.Metadata.ModTime.IsZero() {
		t := e.Metadata.ModTime
		n.Modified = &t
	}
	if len(e.Metadata.Xattrs) > 0 {
		n.Xattrs = e.Metadata.Xattrs
	}
	if !e.ChunkID.IsZero() {
		n.ChunkID = e.ChunkID.ID()
	}
	if e.IsMultiChunk() {
		ids := make([]string, len(e.Chunks))
		for i, c := range e.Chunks {
			ids[i] = c.ID()
		}
		setChunkList(n, ids)
	}
	return n
}

// folderFromNode converts a manifest Node of type folder back into a
// Folder, recursing into its children. algoName names the hash algorithm used
// to re-mint digest.Identifier values for file entries.
func folderFromNode(n *Node, algoName string) (*tree.Folder, error) {
	if n.Type != NodeFolder {
		return nil, fmt.Errorf("archive: expected folder node, got %q", n.Type)
	}
	modTime := time.Time{}
	if n.Modified != nil {
		modTime = *n.Modified
	}
	f := tree.NewFolder(n.Name, modTime)
	for _, child := range n.Children {
		var node tree.Node
		var err error
		if child.Type == NodeFolder {
			node, err = folderFromNode(child, algoName)
		} else {
			node, err = entryFromNode(child, algoName)
		}
		if err != nil {
			return nil, err
		}
		if err := f.AddChild(node); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// entryFromNode converts a non-folder manifest Node back into a tree Entry.
func entryFromNode(n *Node, algoName string) (*tree.Entry, error) {
	e := &tree.Entry{
		Metadata: tree.EntryMetadata{
			Name:        n.Name,
			Size:        n.Size,
			Permissions: n.Permissions,
			Owner:       n.Owner,
			Group:       n.Group,
			Hidden:      n.Hidden,
			System:      n.System,
			Xattrs:      n.Xattrs,
		},
	}
	if n.Modified != nil {
		e.Metadata.ModTime = *n.Modified
	}
	switch n.Type {
	case NodeSymlink:
		e.Metadata.SpecialFileType = tree.SpecialSymlink
		e.Metadata.SymlinkTarget = n.SymlinkTarget
	case NodeSpecial:
		e.Metadata.SpecialFileType = tree.SpecialFileType(n.SpecialFileType)
	case NodeFile:
		// no special type
	default:
		return nil, fmt.Errorf("archive: unexpected node type %q", n.Type)
	}

	if n.ChunkID != "" {
		id, err := digest.ParseIdentifier(algoName, n.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("archive: entry %q has invalid chunkId: %w", n.Name, err)
		}
		e.ChunkID = id
	}
	if chunks := n.chunkList(); len(chunks) > 0 {
		ids := make([]digest.Identifier, len(chunks))
		for i, c := range chunks {
			id, err := digest.ParseIdentifier(algoName, c)
			if err != nil {
				return nil, fmt.Errorf("archive: entry %q has invalid chunk id at index %d: %w", n.Name, i, err)
			}
			ids[i] = id
		}
		e.Chunks = ids
	}
	return e, nil
}
