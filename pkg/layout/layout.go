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

// Package layout maps chunk identifiers to relative storage paths and
// back, as a pluggable strategy the chunk store is configured with.
package layout

import (
	"path"
	"strings"

	"github.com/snugarchive/snug/pkg/digest"
)

// Layout maps a chunk identifier to a relative path within a store, and
// recovers an (opaque) identifier from a path.
type Layout interface {
	// Name identifies the layout strategy, recorded in the manifest.
	Name() string

	// StoragePath returns the relative path (POSIX separators) at which id
	// should be stored.
	StoragePath(id digest.Identifier) string

	// Identifier parses a storage path back into an Identifier. Returns
	// false if path is not a valid path for this layout. The recovered
	// Identifier has Size() == 0 and a default algorithm name: per the
	// open question in the design notes, this is lossy and must be
	// treated as an opaque reference, never persisted back as metadata.
	Identifier(storagePath string) (digest.Identifier, bool)

	// IsValidPath reports whether storagePath could have been produced by
	// StoragePath for some identifier.
	IsValidPath(storagePath string) bool
}

// defaultRecoveredAlgorithm is the algorithm name stamped onto identifiers
// recovered via Identifier(), since a path alone doesn't carry the
// algorithm that produced it.
const defaultRecoveredAlgorithm = "sha256"

func isHexID(s string) bool {
	if len(s) < 32 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

// Flat is the simplest layout: path == id.
type Flat struct{}

// NewFlat returns a Flat layout.
func NewFlat() Flat { return Flat{} }

func (Flat) Name() string { return "flat" }

func (Flat) StoragePath(id digest.Identifier) string {
	return id.ID()
}

func (Flat) Identifier(storagePath string) (digest.Identifier, bool) {
	if !isHexID(storagePath) {
		return digest.Identifier{}, false
	}
	id, err := digest.ParseIdentifier(defaultRecoveredAlgorithm, storagePath)
	if err != nil {
		return digest.Identifier{}, false
	}
	return id, true
}

func (f Flat) IsValidPath(storagePath string) bool {
	_, ok := f.Identifier(storagePath)
	return ok
}

// Sharded is the git-style layout: the first 2*depth hex characters become
// depth single-byte directory components, e.g. for depth=2,
// "ab/cd/abcd1234...".
type Sharded struct {
	depth int
}

// NewSharded returns a Sharded layout with d clamped to [1,4] (default 2).
func NewSharded(d int) Sharded {
	if d <= 0 {
		d = 2
	}
	if d > 4 {
		d = 4
	}
	return Sharded{depth: d}
}

func (s Sharded) Name() string { return "sharded" }

// Depth returns the configured shard depth.
func (s Sharded) Depth() int { return s.depth }

func (s Sharded) StoragePath(id digest.Identifier) string {
	hexID := id.ID()
	parts := make([]string, 0, s.depth+1)
	for i := 0; i < s.depth && 2*(i+1) <= len(hexID); i++ {
		parts = append(parts, hexID[2*i:2*i+2])
	}
	parts = append(parts, hexID)
	return path.Join(parts...)
}

func (s Sharded) Identifier(storagePath string) (digest.Identifier, bool) {
	segments := strings.Split(storagePath, "/")
	if len(segments) == 0 {
		return digest.Identifier{}, false
	}
	last := segments[len(segments)-1]
	if !isHexID(last) {
		return digest.Identifier{}, false
	}
	id, err := digest.ParseIdentifier(defaultRecoveredAlgorithm, last)
	if err != nil {
		return digest.Identifier{}, false
	}
	return id, true
}

func (s Sharded) IsValidPath(storagePath string) bool {
	_, ok := s.Identifier(storagePath)
	return ok
}

// Parse resolves a layout by name, as recorded in a manifest or given on
// the command line. depth is only meaningful for "sharded".
func Parse(name string, depth int) (Layout, bool) {
	switch name {
	case "flat":
		return NewFlat(), true
	case "sharded":
		return NewSharded(depth), true
	default:
		return nil, false
	}
}
