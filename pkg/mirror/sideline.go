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

package mirror

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/snugarchive/snug/internal"
)

// sidelineDir is the directory, relative to a mirror's base directory,
// that holds the pending-replication sideline file.
const sidelineDir = ".snug"

// sidelineFile is the name of the sideline file within sidelineDir.
const sidelineFile = "pending"

// Sideline is an append-only log of PendingRecord entries for
// replications that exhausted their retries, stored as a sequence of
// CBOR-encoded items under "<baseDir>/.snug/pending".
type Sideline struct {
	mu   sync.Mutex
	path string
}

// OpenSideline returns a Sideline rooted at baseDir, creating the
// containing directory if necessary.
func OpenSideline(baseDir string) (*Sideline, error) {
	dir := filepath.Join(baseDir, sidelineDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, internal.NewError(internal.KindIO, "mirror.OpenSideline", err).WithPath(dir)
	}
	return &Sideline{path: filepath.Join(dir, sidelineFile)}, nil
}

// Append stamps rec.RecordedAt with the current time and appends it to the
// sideline file.
func (s *Sideline) Append(rec PendingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.RecordedAt = time.Now()

	fh, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return internal.NewError(internal.KindIO, "mirror.Sideline.Append", err).WithPath(s.path)
	}
	defer fh.Close()

	enc := cbor.NewEncoder(fh)
	if err := enc.Encode(rec); err != nil {
		return internal.NewError(internal.KindIO, "mirror.Sideline.Append", err).WithPath(s.path)
	}
	return nil
}

// Drain reads every pending record currently in the sideline file. It does
// not remove them; callers that successfully retry a record are
// responsible for calling Replace with the remaining set.
func (s *Sideline) Drain() ([]PendingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fh, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, internal.NewError(internal.KindIO, "mirror.Sideline.Drain", err).WithPath(s.path)
	}
	defer fh.Close()

	var records []PendingRecord
	dec := cbor.NewDecoder(fh)
	for {
		var rec PendingRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, internal.NewError(internal.KindInvalidFormat, "mirror.Sideline.Drain", err).WithPath(s.path)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Replace atomically rewrites the sideline file to contain exactly
// records, via the same temp-then-rename idiom the chunk store uses.
func (s *Sideline) Replace(records []PendingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	fh, err := os.CreateTemp(dir, ".pending-*")
	if err != nil {
		return internal.NewError(internal.KindIO, "mirror.Sideline.Replace", err).WithPath(dir)
	}
	tempPath := fh.Name()
	defer os.Remove(tempPath)

	enc := cbor.NewEncoder(fh)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			fh.Close()
			return internal.NewError(internal.KindIO, "mirror.Sideline.Replace", err).WithPath(tempPath)
		}
	}
	if err := fh.Close(); err != nil {
		return internal.NewError(internal.KindIO, "mirror.Sideline.Replace", err).WithPath(tempPath)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		return internal.NewError(internal.KindIO, "mirror.Sideline.Replace", err).WithPath(s.path)
	}
	return nil
}
