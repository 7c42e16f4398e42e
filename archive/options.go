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
	"iter"

	"github.com/snugarchive/snug/pkg/digest"
	"github.com/snugarchive/snug/pkg/hashcache"
	"github.com/snugarchive/snug/pkg/walker"
)

// defaultChunkSize is the fixed-size chunking window Create uses when
// ArchiveOptions.ChunkSize is unset.
const defaultChunkSize = 1 << 20 // 1 MiB

// ChunkStore is the subset of chunkstore.Store that the archive engine
// needs. A narrow interface, the same pattern pkg/mirror uses, lets tests
// substitute a fake without importing the concrete chunkstore package.
type ChunkStore interface {
	Put(data []byte) (digest.Identifier, error)
	Get(id digest.Identifier) ([]byte, error)
	Exists(id digest.Identifier) bool
	Enumerate() iter.Seq[digest.Identifier]
}

// Progress is reported during Create and Extract via ArchiveOptions.OnProgress
// / ExtractOptions.OnProgress, for a CLI progress bar to drive off of.
type Progress struct {
	Path           string
	FilesProcessed int
	BytesProcessed int64
}

// ArchiveOptions configures Create.
type ArchiveOptions struct {
	Store         ChunkStore
	HashAlgorithm digest.Algorithm
	LayoutName    string // "flat" or "sharded", recorded in the manifest
	LayoutDepth   int    // meaningful only for "sharded"
	ChunkSize     int64  // default 1 MiB if <= 0

	HashCache *hashcache.Cache // nil disables the hash cache

	// Transform (e.g. compression) is a property of Store, configured via
	// chunkstore.WithTransform when Store was opened; ArchiveOptions has
	// no separate transform knob so a given store's bytes are always
	// written the same way regardless of which Create call produced them.

	FollowSymlinks        bool
	IncludeHidden         bool
	IncludeSpecials       bool
	SkipPermissionErrors  bool
	ErrorOnBrokenSymlinks bool
	IgnoreMatcher         walker.IgnoreMatcher

	OnProgress func(Progress)
}

func (o *ArchiveOptions) chunkSize() int64 {
	if o.ChunkSize > 0 {
		return o.ChunkSize
	}
	return defaultChunkSize
}

// CreateReport summarizes a completed Create call.
type CreateReport struct {
	FilesProcessed    int
	BytesStored       int64
	BytesDeduplicated int64
	ChunksWritten     int
	Warnings          []string

	// Unchanged is true when manifestPath already held a manifest whose
	// tree was structurally identical to the one just built, in which
	// case the new manifest was written with the prior CreatedAt instead
	// of a fresh timestamp.
	Unchanged bool
}

// ExtractOptions configures Extract.
type ExtractOptions struct {
	Store ChunkStore

	PreservePermissions bool
	PreserveTimes       bool
	RestoreSymlinks     bool
	RestoreSpecials     bool
	Overwrite           bool

	OnProgress func(Progress)
}

// ExtractReport is returned by Extract.
type ExtractReport struct {
	FilesWritten int
	BytesWritten int64
	Warnings     []string
}

// ValidateOptions configures Validate.
type ValidateOptions struct {
	Store ChunkStore
	Deep  bool
}

// ValidateReport is returned by Validate.
type ValidateReport struct {
	Missing   []string
	Orphaned  []string
	Corrupted []string
}

// OK reports whether the archive passed validation: no missing or
// corrupted chunks. Orphans (unreferenced store objects) do not fail
// validation.
func (r ValidateReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Corrupted) == 0
}

// ListEntry is one row of List's flat listing.
type ListEntry struct {
	Path        string
	Size        int64
	Type        string
	Modified    string
	Hash        string
	Permissions string
	Owner       string
	Group       string
}

// ListOptions configures List.
type ListOptions struct {
	WithMetadata bool
}
