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

// Package mirror coordinates a primary chunk store with zero or more
// secondary tiers, replicating writes asynchronously with retry and
// falling back to a secondary on a primary read miss.
package mirror

import (
	"context"
	"time"

	"github.com/apex/log"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/snugarchive/snug/internal"
	"github.com/snugarchive/snug/pkg/digest"
)

// Tier classifies a secondary store's replication semantics.
type Tier int

const (
	// TierMirror requires a Delete to succeed on this tier for the overall
	// Delete to be considered complete.
	TierMirror Tier = iota
	// TierGlacier tolerates best-effort deletes; failures are logged at
	// debug and never escalated.
	TierGlacier
)

// ChunkStore is the subset of *chunkstore.Store the mirror needs. Declared
// as an interface here (rather than importing the concrete type) so the
// mirror can be exercised against fakes in tests.
type ChunkStore interface {
	Put(data []byte) (digest.Identifier, error)
	Get(id digest.Identifier) ([]byte, error)
	Exists(id digest.Identifier) bool
	Delete(id digest.Identifier) error
}

// Secondary is one replication target.
type Secondary struct {
	Name  string
	Tier  Tier
	Store ChunkStore
}

const (
	retryBaseInterval = 100 * time.Millisecond
	retryFactor       = 2.0
	retryMaxInterval  = 30 * time.Second
	retryMaxAttempts  = 8
)

// PendingRecord is one sideline entry, persisted CBOR-encoded by Sideline
// for a replication that exhausted its retries.
type PendingRecord struct {
	ID         string    `cbor:"id"`
	Target     string    `cbor:"target"`
	Attempts   int       `cbor:"attempts"`
	LastError  string    `cbor:"lastError"`
	RecordedAt time.Time `cbor:"recordedAt"`
}

// Store fans writes out to a primary and N secondaries.
type Store struct {
	primary    ChunkStore
	secondary  []Secondary
	sideline   *Sideline
	newBackoff func() backoff.BackOff
}

// NewStore returns a mirrored Store writing through primary and
// replicating to secondaries. sideline may be nil to disable persistent
// failure tracking.
func NewStore(primary ChunkStore, secondaries []Secondary, sideline *Sideline) *Store {
	return &Store{
		primary:   primary,
		secondary: secondaries,
		sideline:  sideline,
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = retryBaseInterval
			b.Multiplier = retryFactor
			b.MaxInterval = retryMaxInterval
			b.MaxElapsedTime = 0
			// WithMaxRetries counts retries after the first attempt.
			return backoff.WithMaxRetries(b, retryMaxAttempts-1)
		},
	}
}

// Put writes to the primary synchronously, then enqueues replication to
// every secondary. Replication runs in its own goroutine per secondary and
// does not block the caller.
func (s *Store) Put(ctx context.Context, data []byte) (digest.Identifier, error) {
	id, err := s.primary.Put(data)
	if err != nil {
		return digest.Identifier{}, errors.Wrap(err, "mirror: primary put")
	}
	// The caller may reuse data once Put returns, so the replication
	// goroutines get their own copy.
	owned := append([]byte(nil), data...)
	for _, sec := range s.secondary {
		sec := sec
		go s.replicate(ctx, sec, id, owned)
	}
	return id, nil
}

func (s *Store) replicate(ctx context.Context, sec Secondary, id digest.Identifier, data []byte) {
	op := func() error {
		_, err := sec.Store.Put(data)
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(s.newBackoff(), ctx))
	if err == nil {
		return
	}
	log.WithFields(log.Fields{"id": id.ID(), "target": sec.Name}).
		Warnf("mirror: replication to %s exhausted retries: %v", sec.Name, err)
	if s.sideline != nil {
		if serr := s.sideline.Append(PendingRecord{
			ID:        id.ID(),
			Target:    sec.Name,
			Attempts:  retryMaxAttempts,
			LastError: err.Error(),
		}); serr != nil {
			log.Warnf("mirror: failed to record sideline entry for %s: %v", id.ID(), serr)
		}
	}
}

// Get reads from the primary, falling back to secondaries in declared
// order on a primary miss. A chunk recovered from a secondary is
// re-inserted into the primary.
func (s *Store) Get(id digest.Identifier) ([]byte, error) {
	data, err := s.primary.Get(id)
	if err == nil {
		return data, nil
	}
	if internal.KindOf(err) != internal.KindNotFound {
		return nil, err
	}
	for _, sec := range s.secondary {
		data, serr := sec.Store.Get(id)
		if serr != nil {
			continue
		}
		if _, perr := s.primary.Put(data); perr != nil {
			log.Warnf("mirror: failed to re-insert %s into primary after recovery from %s: %v", id.ID(), sec.Name, perr)
		}
		return data, nil
	}
	return nil, err
}

// Exists reports presence in the primary only.
func (s *Store) Exists(id digest.Identifier) bool {
	return s.primary.Exists(id)
}

// Delete removes id from all tiers concurrently. It returns once the
// primary and every TierMirror secondary have completed (successfully or
// not); TierGlacier deletes are fire-and-forget.
func (s *Store) Delete(id digest.Identifier) error {
	err := s.primary.Delete(id)

	done := make(chan error, len(s.secondary))
	pending := 0
	for _, sec := range s.secondary {
		if sec.Tier == TierGlacier {
			sec := sec
			go func() {
				if gerr := sec.Store.Delete(id); gerr != nil {
					log.Debugf("mirror: best-effort glacier delete of %s on %s failed: %v", id.ID(), sec.Name, gerr)
				}
			}()
			continue
		}
		pending++
		sec := sec
		go func() { done <- sec.Store.Delete(id) }()
	}
	for i := 0; i < pending; i++ {
		if derr := <-done; derr != nil && err == nil {
			err = derr
		}
	}
	return err
}
