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
	"context"
	"time"

	"github.com/apex/log"

	"github.com/snugarchive/snug/pkg/digest"
)

// drainInterval is how often StartDrainLoop retries sideline entries in
// the background, beyond the one pass it always performs at startup.
const drainInterval = time.Minute

// StartDrainLoop retries every pending sideline record once immediately,
// then on a ticker, until ctx is cancelled. secondaryByName must contain
// every target name that ever appears in a PendingRecord.
func (s *Store) StartDrainLoop(ctx context.Context, secondaryByName map[string]ChunkStore) {
	s.drainOnce(secondaryByName)

	ticker := time.NewTicker(drainInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.drainOnce(secondaryByName)
			}
		}
	}()
}

func (s *Store) drainOnce(secondaryByName map[string]ChunkStore) {
	if s.sideline == nil {
		return
	}
	records, err := s.sideline.Drain()
	if err != nil {
		log.Warnf("mirror: failed to read sideline: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}

	var stillPending []PendingRecord
	for _, rec := range records {
		target, ok := secondaryByName[rec.Target]
		if !ok {
			stillPending = append(stillPending, rec)
			continue
		}
		// The sideline only records the hex id, not the algorithm that
		// produced it; like layout.Layout.Identifier, recovery here is
		// lossy and the algorithm tag is never relied upon beyond parsing.
		id, perr := digest.ParseIdentifier("sha256", rec.ID)
		if perr != nil {
			stillPending = append(stillPending, rec)
			continue
		}
		data, gerr := s.primary.Get(id)
		if gerr != nil {
			stillPending = append(stillPending, rec)
			continue
		}
		if _, perr := target.Put(data); perr != nil {
			rec.Attempts++
			rec.LastError = perr.Error()
			stillPending = append(stillPending, rec)
			continue
		}
		log.WithFields(log.Fields{"id": rec.ID, "target": rec.Target}).Info("mirror: drained pending replication")
	}

	if err := s.sideline.Replace(stillPending); err != nil {
		log.Warnf("mirror: failed to rewrite sideline after drain: %v", err)
	}
}
