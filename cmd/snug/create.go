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
	"fmt"
	"path/filepath"

	"github.com/docker/go-units"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli"

	"github.com/snugarchive/snug/archive"
	"github.com/snugarchive/snug/pkg/hashcache"
	"github.com/snugarchive/snug/pkg/walker"
)

var createCommand = cli.Command{
	Name:      "create",
	Usage:     "create an archive from a directory",
	ArgsUsage: "<src> <out>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "algorithm", Value: "sha256", Usage: "digest algorithm (sha256, blake3)"},
		cli.StringFlag{Name: "layout", Value: "sharded", Usage: "chunk store layout (flat, sharded)"},
		cli.IntFlag{Name: "layout-depth", Value: 2, Usage: "shard depth, for sharded layout"},
		cli.StringFlag{Name: "chunk-size", Value: "1MiB", Usage: "fixed chunk size, e.g. 1MiB, 512KiB"},
		cli.StringFlag{Name: "transform", Value: "", Usage: "chunk transform: gzip, zstd, or empty for none"},
		cli.BoolFlag{Name: "hash-cache", Usage: "use a .hashcache.json file to skip re-chunking unchanged files"},
		cli.BoolFlag{Name: "follow-symlinks"},
		cli.BoolFlag{Name: "include-hidden"},
		cli.BoolFlag{Name: "include-specials"},
		cli.StringSliceFlag{Name: "ignore", Usage: "glob pattern to skip (repeatable)"},
		cli.StringSliceFlag{Name: "mirror", Usage: "replicate chunks to name=dir (repeatable)"},
		cli.StringFlag{Name: "sideline-dir", Usage: "directory for the mirror's exhausted-retry sideline (requires --mirror)"},
	},
	Action: runCreate,
	Before: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return cli.NewExitError("invalid number of positional arguments: expected <src> <out>", 2)
		}
		return nil
	},
}

func runCreate(ctx *cli.Context) error {
	src, out := ctx.Args().Get(0), ctx.Args().Get(1)

	chunkSize, err := units.RAMInBytes(ctx.String("chunk-size"))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("invalid --chunk-size: %v", err), 2)
	}

	primary, err := openStore(out, ctx.String("algorithm"), ctx.String("layout"), ctx.Int("layout-depth"), ctx.String("transform"), false)
	if err != nil {
		return err
	}
	algo, err := resolveAlgorithm(ctx.String("algorithm"))
	if err != nil {
		return err
	}

	var store archive.ChunkStore = primary
	if specs := ctx.StringSlice("mirror"); len(specs) > 0 {
		lay, err := resolveLayout(ctx.String("layout"), ctx.Int("layout-depth"))
		if err != nil {
			return err
		}
		store, err = openMirroredStore(primary, algo, lay, specs, ctx.String("sideline-dir"))
		if err != nil {
			return err
		}
	}

	var cache *hashcache.Cache
	if ctx.Bool("hash-cache") {
		cache, err = hashcache.Open(filepath.Join(storeDirFor(out), ".hashcache.json"), 0)
		if err != nil {
			return err
		}
		defer cache.Close()
	}

	var ignore walker.IgnoreMatcher
	if patterns := ctx.StringSlice("ignore"); len(patterns) > 0 {
		ignore = walker.GlobIgnoreMatcher{Patterns: patterns}
	}

	bar := progressbar.Default(-1, "creating archive")
	defer bar.Close()

	report, err := archive.Create(src, out, archive.ArchiveOptions{
		Store:           store,
		HashAlgorithm:   algo,
		LayoutName:      ctx.String("layout"),
		LayoutDepth:     ctx.Int("layout-depth"),
		ChunkSize:       chunkSize,
		HashCache:       cache,
		FollowSymlinks:  ctx.Bool("follow-symlinks"),
		IncludeHidden:   ctx.Bool("include-hidden"),
		IncludeSpecials: ctx.Bool("include-specials"),
		IgnoreMatcher:   ignore,
		OnProgress: func(p archive.Progress) {
			_ = bar.Add(1)
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("files processed: %d\n", report.FilesProcessed)
	fmt.Printf("bytes stored: %s\n", humanize.IBytes(uint64(report.BytesStored)))
	fmt.Printf("bytes deduplicated: %s\n", humanize.IBytes(uint64(report.BytesDeduplicated)))
	fmt.Printf("chunks written: %d\n", report.ChunksWritten)
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
