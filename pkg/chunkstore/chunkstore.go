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

// Package chunkstore implements the content-addressable chunk store: a
// byte-addressed backend over the local file system, keyed by the
// layout's storage path for a chunk's digest. Writes go to a temp file in
// the same directory followed by a rename, with the digest computed over
// the chunk's bytes before writing, for any pkg/digest.Algorithm and
// pkg/layout.Layout pair.
package chunkstore

import (
	"bytes"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/snugarchive/snug/internal"
	"github.com/snugarchive/snug/internal/xio"
	"github.com/snugarchive/snug/pkg/digest"
	"github.com/snugarchive/snug/pkg/layout"
	"github.com/snugarchive/snug/pkg/transform"
)

// tmpPrefix marks temporary files created during an atomic put, so a
// scan-and-sweep can recognize and remove ones abandoned by a crash.
const tmpPrefix = ".snug-tmp-"

// VerifyOnRead controls whether Get re-verifies the digest of bytes read
// back from the store.
type VerifyOnRead bool

const (
	// SkipVerify trusts the on-disk bytes and skips re-hashing on Get.
	SkipVerify VerifyOnRead = false
	// Verify re-hashes every byte read back and fails with
	// internal.KindCorruption on mismatch.
	Verify VerifyOnRead = true
)

// Report is the result of VerifyAll.
type Report struct {
	OK        []digest.Identifier
	Corrupted []digest.Identifier
	Missing   []digest.Identifier
}

// Store is a content-addressable chunk store rooted at a directory.
type Store struct {
	root     string
	algo     digest.Algorithm
	layout   layout.Layout
	verify   VerifyOnRead
	xform    transform.Algorithm
	xformTag string
}

// Option configures a Store at construction.
type Option func(*Store)

// WithVerifyOnRead enables or disables digest verification on Get.
func WithVerifyOnRead(v VerifyOnRead) Option {
	return func(s *Store) { s.verify = v }
}

// WithTransform applies algo to chunk bytes before they are written, and
// reverses it on read. The empty-name identity transform is the default.
func WithTransform(algo transform.Algorithm) Option {
	return func(s *Store) {
		s.xform = algo
		s.xformTag = algo.Name()
	}
}

// Open returns a Store rooted at root, using algo to digest chunks and lay
// to map identifiers to paths. root is created if it does not exist.
func Open(root string, algo digest.Algorithm, lay layout.Layout, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, internal.NewError(internal.KindIO, "chunkstore.Open", err).WithPath(root)
	}
	s := &Store{
		root:   root,
		algo:   algo,
		layout: lay,
		verify: SkipVerify,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.xform == nil {
		if id, ok := transform.DefaultRegistry().Get(""); ok {
			s.xform = id
		}
	}
	return s, nil
}

func (s *Store) absPath(id digest.Identifier) string {
	return filepath.Join(s.root, filepath.FromSlash(s.layout.StoragePath(id)))
}

// Put digests data, applies the configured transform, and atomically writes
// the result under the layout path for the digest. Put is idempotent:
// storing identical bytes twice succeeds without rewriting. If a chunk
// already exists at the target path with different content, Put fails with
// internal.KindCorruption.
func (s *Store) Put(data []byte) (digest.Identifier, error) {
	id := digest.Sum(s.algo, data)
	if err := s.sweepStale(id); err != nil {
		return digest.Identifier{}, err
	}

	target := s.absPath(id)
	if existing, err := os.ReadFile(target); err == nil {
		if bytes.Equal(existing, s.mustTransform(data)) {
			return id, nil
		}
		return digest.Identifier{}, internal.NewError(internal.KindCorruption, "chunkstore.Put",
			errors.Errorf("existing chunk at %s does not match digest %s", target, id)).WithID(id.ID())
	} else if !errors.Is(err, fs.ErrNotExist) {
		return digest.Identifier{}, internal.NewError(internal.KindIO, "chunkstore.Put", err).WithPath(target)
	}

	transformed, err := s.xform.Apply(data)
	if err != nil {
		return digest.Identifier{}, internal.NewError(internal.KindIO, "chunkstore.Put", err).WithID(id.ID())
	}
	if err := s.writeAtomic(target, transformed); err != nil {
		return digest.Identifier{}, err
	}
	return id, nil
}

func (s *Store) mustTransform(data []byte) []byte {
	out, err := s.xform.Apply(data)
	if err != nil {
		return nil
	}
	return out
}

// PutPrehashed verifies that digest(data) == id before writing, failing
// with internal.KindIntegrity if it does not match.
func (s *Store) PutPrehashed(id digest.Identifier, data []byte) error {
	sum := digest.Sum(s.algo, data)
	if sum.ID() != id.ID() {
		return internal.NewError(internal.KindIntegrity, "chunkstore.PutPrehashed",
			errors.Errorf("computed digest %s does not match supplied id %s", sum.ID(), id.ID())).WithID(id.ID())
	}
	_, err := s.Put(data)
	return err
}

// writeAtomic writes data to target via a temp file in the same directory
// followed by a rename, matching oci/cas/dir.go's PutBlob.
func (s *Store) writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return internal.NewError(internal.KindIO, "chunkstore.writeAtomic", err).WithPath(dir)
	}

	fh, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return internal.NewError(internal.KindIO, "chunkstore.writeAtomic", err).WithPath(dir)
	}
	tempPath := fh.Name()
	defer os.Remove(tempPath) // no-op once renamed

	if _, err := xio.Copy(fh, bytes.NewReader(data)); err != nil {
		fh.Close()
		return internal.NewError(internal.KindIO, "chunkstore.writeAtomic", err).WithPath(tempPath)
	}
	if err := fh.Close(); err != nil {
		return internal.NewError(internal.KindIO, "chunkstore.writeAtomic", err).WithPath(tempPath)
	}
	if err := os.Rename(tempPath, target); err != nil {
		return internal.NewError(internal.KindIO, "chunkstore.writeAtomic", err).WithPath(target)
	}
	return nil
}

// sweepStale removes abandoned temp files left in id's target directory by
// a prior crashed Put, bounded to that one directory since sharded layout
// directories are small.
func (s *Store) sweepStale(id digest.Identifier) error {
	dir := filepath.Dir(s.absPath(id))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return internal.NewError(internal.KindIO, "chunkstore.sweepStale", err).WithPath(dir)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), tmpPrefix) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
	return nil
}

// Get reads a chunk's bytes back, reversing any configured transform. If
// the store was opened with Verify, the plain bytes are streamed back
// through a VerifiedReader, which returns an internal.KindCorruption
// error once its running hash disagrees with id on EOF.
func (s *Store) Get(id digest.Identifier) ([]byte, error) {
	target := s.absPath(id)
	raw, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, internal.NewError(internal.KindNotFound, "chunkstore.Get", err).WithID(id.ID())
		}
		return nil, internal.NewError(internal.KindIO, "chunkstore.Get", err).WithPath(target)
	}

	plain, err := s.xform.Reverse(raw)
	if err != nil {
		return nil, internal.NewError(internal.KindCorruption, "chunkstore.Get", err).WithID(id.ID())
	}

	if !s.verify {
		return plain, nil
	}
	vr := NewVerifiedReader(io.NopCloser(bytes.NewReader(plain)), s.algo, id)
	verified, err := io.ReadAll(vr)
	if err != nil {
		return nil, err
	}
	return verified, nil
}

// Exists reports whether a chunk is present, without reading or verifying
// its contents.
func (s *Store) Exists(id digest.Identifier) bool {
	_, err := os.Stat(s.absPath(id))
	return err == nil
}

// Delete removes a chunk. Deleting an absent chunk succeeds.
func (s *Store) Delete(id digest.Identifier) error {
	err := os.Remove(s.absPath(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return internal.NewError(internal.KindIO, "chunkstore.Delete", err).WithID(id.ID())
	}
	return nil
}

// Enumerate returns a lazy, single-pass sequence over every chunk
// identifier under the store root, in filesystem-walk order (unspecified
// by contract). The sequence must not be iterated concurrently with
// mutation of the store.
func (s *Store) Enumerate() iter.Seq[digest.Identifier] {
	return func(yield func(digest.Identifier) bool) {
		_ = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if strings.HasPrefix(d.Name(), tmpPrefix) {
				return nil
			}
			rel, err := filepath.Rel(s.root, path)
			if err != nil {
				return nil
			}
			id, ok := s.layout.Identifier(filepath.ToSlash(rel))
			if !ok {
				return nil
			}
			if !yield(id) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// VerifyAll streams every chunk in the store through a VerifiedReader,
// classifying each as ok, corrupted, or missing (vanished between Enumerate
// and read). This is the same verification path Get uses when opened with
// Verify, applied across the whole store instead of a single chunk.
func (s *Store) VerifyAll() Report {
	var report Report
	for id := range s.Enumerate() {
		data, err := os.ReadFile(s.absPath(id))
		if err != nil {
			report.Missing = append(report.Missing, id)
			continue
		}
		plain, err := s.xform.Reverse(data)
		if err != nil {
			report.Corrupted = append(report.Corrupted, id)
			continue
		}
		vr := NewVerifiedReader(io.NopCloser(bytes.NewReader(plain)), s.algo, id)
		if _, err := io.ReadAll(vr); err != nil {
			report.Corrupted = append(report.Corrupted, id)
			continue
		}
		report.OK = append(report.OK, id)
	}
	return report
}

// VerifiedReader wraps r, hashing every byte read and comparing the final
// digest against want when r reports EOF.
type VerifiedReader struct {
	r      io.ReadCloser
	algo   digest.Algorithm
	want   digest.Identifier
	hasher io.Writer
	sum    func() []byte
}

// NewVerifiedReader returns a VerifiedReader over r that verifies its
// content digests to want under algo.
func NewVerifiedReader(r io.ReadCloser, algo digest.Algorithm, want digest.Identifier) *VerifiedReader {
	h := algo.New()
	return &VerifiedReader{r: r, algo: algo, want: want, hasher: h, sum: h.Sum}
}

func (v *VerifiedReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if n > 0 {
		_, _ = v.hasher.Write(p[:n])
	}
	if errors.Is(err, io.EOF) {
		if got := digest.NewIdentifier(v.algo.Name(), v.sum(nil), 0); got.ID() != v.want.ID() {
			return n, internal.NewError(internal.KindCorruption, "chunkstore.VerifiedReader",
				errors.Errorf("expected %s got %s", v.want.ID(), got.ID())).WithID(v.want.ID())
		}
	}
	return n, err
}

// Close closes the underlying reader.
func (v *VerifiedReader) Close() error {
	return v.r.Close()
}
