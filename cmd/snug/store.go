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
	"strings"

	"github.com/urfave/cli"

	"github.com/snugarchive/snug/pkg/chunkstore"
	"github.com/snugarchive/snug/pkg/digest"
	"github.com/snugarchive/snug/pkg/layout"
	"github.com/snugarchive/snug/pkg/transform"
)

const manifestSuffix = ".snug"

// storeDirFor derives the chunk store directory from an archive path: the
// output path minus the manifest suffix.
func storeDirFor(archivePath string) string {
	if strings.HasSuffix(archivePath, manifestSuffix) {
		return strings.TrimSuffix(archivePath, manifestSuffix)
	}
	return archivePath + ".chunks"
}

func resolveAlgorithm(name string) (digest.Algorithm, error) {
	algo, ok := digest.DefaultRegistry().Get(name)
	if !ok {
		return nil, cli.NewExitError("unknown digest algorithm: "+name, 2)
	}
	return algo, nil
}

func resolveLayout(name string, depth int) (layout.Layout, error) {
	lay, ok := layout.Parse(name, depth)
	if !ok {
		return nil, cli.NewExitError("unknown layout: "+name, 2)
	}
	return lay, nil
}

func resolveTransform(name string) (transform.Algorithm, error) {
	algo, ok := transform.DefaultRegistry().Get(name)
	if !ok {
		return nil, cli.NewExitError("unknown transform: "+name, 2)
	}
	return algo, nil
}

func openStore(archivePath, algorithmName, layoutName string, layoutDepth int, transformName string, verify bool) (*chunkstore.Store, error) {
	algo, err := resolveAlgorithm(algorithmName)
	if err != nil {
		return nil, err
	}
	lay, err := resolveLayout(layoutName, layoutDepth)
	if err != nil {
		return nil, err
	}
	xform, err := resolveTransform(transformName)
	if err != nil {
		return nil, err
	}
	opts := []chunkstore.Option{chunkstore.WithTransform(xform)}
	if verify {
		opts = append(opts, chunkstore.WithVerifyOnRead(chunkstore.Verify))
	}
	return chunkstore.Open(storeDirFor(archivePath), algo, lay, opts...)
}
