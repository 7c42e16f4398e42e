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

// Package digest provides the pluggable digest-algorithm registry and the
// ChunkIdentifier type that the rest of snug builds on.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	godigest "github.com/opencontainers/go-digest"
	"lukechampine.com/blake3"
)

// Algorithm describes a hash algorithm that can be used to name chunks.
type Algorithm interface {
	// Name is the algorithm name as it appears in a ChunkIdentifier's
	// hashAlgorithm field and in the manifest (e.g. "sha256").
	Name() string
	// New returns a fresh hash.Hash for this algorithm.
	New() hash.Hash
	// Size is the digest size in bytes.
	Size() int
}

type sha256Algorithm struct{}

// Name and New delegate to go-digest's algorithm registry rather than
// calling crypto/sha256 directly, so the sha256 name string and hash
// constructor can never drift apart.
func (sha256Algorithm) Name() string   { return string(godigest.SHA256) }
func (sha256Algorithm) New() hash.Hash { return godigest.SHA256.Hash() }
func (sha256Algorithm) Size() int      { return sha256.Size }

type blake3Algorithm struct{}

func (blake3Algorithm) Name() string   { return "blake3" }
func (blake3Algorithm) New() hash.Hash { return blake3.New(32, nil) }
func (blake3Algorithm) Size() int      { return 32 }

// SHA256 and Blake3 are the two algorithms registered in DefaultRegistry.
var (
	SHA256 Algorithm = sha256Algorithm{}
	Blake3 Algorithm = blake3Algorithm{}
)

// Registry is an explicit, non-global mapping of algorithm name to
// Algorithm. The default singleton (DefaultRegistry) exists purely as a
// convenience wrapper around a Registry value, per the snug design notes on
// avoiding process-wide mutable registries.
type Registry struct {
	algorithms map[string]Algorithm
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{algorithms: map[string]Algorithm{}}
}

// Register adds algo to the registry. A later call with the same name
// replaces the previous registration (last-write-wins).
func (r *Registry) Register(algo Algorithm) {
	r.algorithms[algo.Name()] = algo
}

// Get looks up an Algorithm by name.
func (r *Registry) Get(name string) (Algorithm, bool) {
	algo, ok := r.algorithms[name]
	return algo, ok
}

// Names returns the registered algorithm names, for diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.algorithms))
	for name := range r.algorithms {
		names = append(names, name)
	}
	return names
}

var defaultRegistry = buildDefaultRegistry()

func buildDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(SHA256)
	r.Register(Blake3)
	return r
}

// DefaultRegistry returns a Registry pre-populated with sha256 and blake3.
// Callers that want a private registry (e.g. to forbid an algorithm, or add
// a custom one) should use NewRegistry instead.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Identifier is the hex-encoded digest of a chunk's raw bytes under a
// named algorithm. Identity is the pair (HashAlgorithm, ID); it is
// immutable after construction.
type Identifier struct {
	id            string
	size          int64
	hashAlgorithm string
}

// NewIdentifier builds an Identifier from a raw digest sum.
func NewIdentifier(algorithm string, sum []byte, size int64) Identifier {
	return Identifier{
		id:            hex.EncodeToString(sum),
		size:          size,
		hashAlgorithm: algorithm,
	}
}

// ParseIdentifier builds an Identifier from an already hex-encoded id. The
// hex string must be lowercase and at least 32 characters, matching what a
// Path Layout can recover from a storage path; size defaults to 0 since the
// caller has no way to recover it from a path alone.
//
// For an algorithm go-digest knows about (sha256, sha384, sha512), format
// validation is delegated to godigest.Digest.Validate rather than
// hand-rolled, so the length and encoding rules stay in sync with the
// library the chunk store's sha256 path already depends on. blake3 isn't
// in go-digest's algorithm table, so it falls back to a plain lowercase-hex
// check.
func ParseIdentifier(algorithm, id string) (Identifier, error) {
	if len(id) < 32 {
		return Identifier{}, fmt.Errorf("digest: id %q shorter than 32 hex chars", id)
	}
	if strings.ToLower(id) != id {
		return Identifier{}, fmt.Errorf("digest: id %q is not lowercase hex", id)
	}
	if alg := godigest.Algorithm(algorithm); alg.Available() {
		if err := godigest.NewDigestFromEncoded(alg, id).Validate(); err != nil {
			return Identifier{}, fmt.Errorf("digest: %w", err)
		}
	} else if _, err := hex.DecodeString(id); err != nil {
		return Identifier{}, fmt.Errorf("digest: id %q is not valid hex: %w", id, err)
	}
	return Identifier{id: id, size: 0, hashAlgorithm: algorithm}, nil
}

// ID is the lowercase hex digest.
func (i Identifier) ID() string { return i.id }

// Size is the chunk's byte size, or 0 if recovered from a path alone.
func (i Identifier) Size() int64 { return i.size }

// HashAlgorithm is the name of the digest algorithm that produced ID.
func (i Identifier) HashAlgorithm() string { return i.hashAlgorithm }

// ContentHash is an alias for ID: the chunk's content hash is its identity.
func (i Identifier) ContentHash() string { return i.id }

// IsZero reports whether i is the zero Identifier.
func (i Identifier) IsZero() bool { return i.id == "" }

// Equal compares identity: (HashAlgorithm, ID).
func (i Identifier) Equal(o Identifier) bool {
	return i.hashAlgorithm == o.hashAlgorithm && i.id == o.id
}

// String renders "<algorithm>:<hex>".
func (i Identifier) String() string {
	return fmt.Sprintf("%s:%s", i.hashAlgorithm, i.id)
}

// Sum computes an Identifier for data using algo.
func Sum(algo Algorithm, data []byte) Identifier {
	h := algo.New()
	h.Write(data)
	return NewIdentifier(algo.Name(), h.Sum(nil), int64(len(data)))
}
