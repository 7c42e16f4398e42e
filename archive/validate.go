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

	"github.com/snugarchive/snug/internal"
	"github.com/snugarchive/snug/pkg/digest"
	"github.com/snugarchive/snug/pkg/tree"
)

// Validate reads the manifest at manifestPath, collects every chunk id it
// references, and intersects that set with opts.Store.Enumerate(). If
// opts.Deep is set, each referenced chunk's bytes are also re-hashed and
// compared to its id. Validate never mutates the store.
func Validate(manifestPath string, opts ValidateOptions) (ValidateReport, error) {
	if opts.Store == nil {
		return ValidateReport{}, fmt.Errorf("archive: ValidateOptions.Store is required")
	}
	m, err := readManifest(manifestPath)
	if err != nil {
		return ValidateReport{}, err
	}
	if m.Root == nil {
		return ValidateReport{}, internal.NewError(internal.KindInvalidFormat, "archive.Validate",
			fmt.Errorf("manifest has no root")).WithPath(manifestPath)
	}
	root, err := folderFromNode(m.Root, m.HashAlgorithm)
	if err != nil {
		return ValidateReport{}, internal.NewError(internal.KindInvalidFormat, "archive.Validate", err).WithPath(manifestPath)
	}

	referenced := map[string]digest.Identifier{}
	root.Walk(func(_ string, node tree.Node) bool {
		if e, ok := node.(*tree.Entry); ok {
			for _, id := range entryChunkIDs(e) {
				referenced[id.ID()] = id
			}
		}
		return true
	})

	present := map[string]struct{}{}
	for id := range opts.Store.Enumerate() {
		present[id.ID()] = struct{}{}
	}

	var algo digest.Algorithm
	if opts.Deep {
		var ok bool
		algo, ok = digest.DefaultRegistry().Get(m.HashAlgorithm)
		if !ok {
			return ValidateReport{}, internal.NewError(internal.KindInvalidFormat, "archive.Validate",
				fmt.Errorf("unknown hash algorithm %q", m.HashAlgorithm)).WithPath(manifestPath)
		}
	}

	var report ValidateReport
	for idStr, id := range referenced {
		if _, ok := present[idStr]; !ok {
			report.Missing = append(report.Missing, idStr)
			continue
		}
		if !opts.Deep {
			continue
		}
		// Re-hash independently of the store's own VerifyOnRead setting:
		// deep validation must check bytes against id even when the store
		// was opened to trust its on-disk contents on ordinary Get calls.
		data, err := opts.Store.Get(id)
		if err != nil {
			if internal.Is(err, internal.KindCorruption) || internal.Is(err, internal.KindIntegrity) {
				report.Corrupted = append(report.Corrupted, idStr)
				continue
			}
			return report, err
		}
		if sum := digest.Sum(algo, data); sum.ID() != id.ID() {
			report.Corrupted = append(report.Corrupted, idStr)
		}
	}
	for idStr := range present {
		if _, ok := referenced[idStr]; !ok {
			report.Orphaned = append(report.Orphaned, idStr)
		}
	}
	return report, nil
}

func entryChunkIDs(e *tree.Entry) []digest.Identifier {
	if e.IsMultiChunk() {
		return e.Chunks
	}
	if !e.ChunkID.IsZero() {
		return []digest.Identifier{e.ChunkID}
	}
	return nil
}
