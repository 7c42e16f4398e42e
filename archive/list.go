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

	"github.com/snugarchive/snug/internal"
	"github.com/snugarchive/snug/pkg/tree"
)

// List parses the manifest at manifestPath and returns a flat listing of
// every node, in the same deterministic depth-first order Create wrote
// them in.
func List(manifestPath string, opts ListOptions) ([]ListEntry, error) {
	m, err := readManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if m.Root == nil {
		return nil, internal.NewError(internal.KindInvalidFormat, "archive.List",
			fmt.Errorf("manifest has no root")).WithPath(manifestPath)
	}
	root, err := folderFromNode(m.Root, m.HashAlgorithm)
	if err != nil {
		return nil, internal.NewError(internal.KindInvalidFormat, "archive.List", err).WithPath(manifestPath)
	}

	var out []ListEntry
	root.Walk(func(relPath string, node tree.Node) bool {
		out = append(out, listEntryFor(relPath, node, opts))
		return true
	})
	return out, nil
}

func listEntryFor(relPath string, node tree.Node, opts ListOptions) ListEntry {
	switch n := node.(type) {
	case *tree.Folder:
		le := ListEntry{Path: relPath, Type: "directory"}
		if !n.ModTime().IsZero() {
			le.Modified = n.ModTime().Format(time.RFC3339)
		}
		return le
	case *tree.Entry:
		typ := "file"
		switch n.Metadata.SpecialFileType {
		case tree.SpecialSymlink:
			typ = "symlink"
		case "":
			typ = "file"
		default:
			typ = string(n.Metadata.SpecialFileType)
		}
		le := ListEntry{Path: relPath, Size: n.Metadata.Size, Type: typ}
		if !n.Metadata.ModTime.IsZero() {
			le.Modified = n.Metadata.ModTime.Format(time.RFC3339)
		}
		if !n.ChunkID.IsZero() {
			le.Hash = n.ChunkID.ID()
		} else if n.IsMultiChunk() {
			le.Hash = n.Chunks[0].ID()
		}
		if opts.WithMetadata {
			le.Permissions = n.Metadata.Permissions
			le.Owner = n.Metadata.Owner
			le.Group = n.Metadata.Group
		}
		return le
	default:
		return ListEntry{Path: relPath}
	}
}
