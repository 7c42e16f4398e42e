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

package main

import (
	"context"
	"iter"
	"strings"

	"github.com/urfave/cli"

	"github.com/snugarchive/snug/pkg/chunkstore"
	"github.com/snugarchive/snug/pkg/digest"
	"github.com/snugarchive/snug/pkg/layout"
	"github.com/snugarchive/snug/pkg/mirror"
)

// mirroredStore adapts a mirror.Store (Put/Get only) to the archive
// package's ChunkStore interface by answering Exists/Enumerate from the
// primary tier directly; a chunk is "present" once it has landed there,
// regardless of whether replication to the secondaries has caught up.
type mirroredStore struct {
	*mirror.Store
	primary *chunkstore.Store
}

func (m *mirroredStore) Put(data []byte) (digest.Identifier, error) {
	return m.Store.Put(context.Background(), data)
}

func (m *mirroredStore) Exists(id digest.Identifier) bool {
	return m.primary.Exists(id)
}

func (m *mirroredStore) Enumerate() iter.Seq[digest.Identifier] {
	return m.primary.Enumerate()
}

// openMirroredStore wraps primary with secondary replication targets
// named in mirrorSpecs ("name=dir" pairs) plus an optional on-disk
// sideline for replications that exhaust their retries. Every secondary
// uses the same algorithm and layout as the primary.
func openMirroredStore(primary *chunkstore.Store, algo digest.Algorithm, lay layout.Layout, mirrorSpecs []string, sidelineDir string) (*mirroredStore, error) {
	var secondaries []mirror.Secondary
	for _, spec := range mirrorSpecs {
		name, dir, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, cli.NewExitError("invalid --mirror spec (want name=dir): "+spec, 2)
		}
		store, err := chunkstore.Open(dir, algo, lay)
		if err != nil {
			return nil, err
		}
		secondaries = append(secondaries, mirror.Secondary{Name: name, Tier: mirror.TierMirror, Store: store})
	}

	var sideline *mirror.Sideline
	if sidelineDir != "" {
		sl, err := mirror.OpenSideline(sidelineDir)
		if err != nil {
			return nil, err
		}
		sideline = sl
	}

	return &mirroredStore{
		Store:   mirror.NewStore(primary, secondaries, sideline),
		primary: primary,
	}, nil
}
