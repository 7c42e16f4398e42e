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

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli"

	"github.com/snugarchive/snug/archive"
)

var extractCommand = cli.Command{
	Name:      "extract",
	Usage:     "extract an archive into a directory",
	ArgsUsage: "<archive> <dst>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "algorithm", Value: "sha256"},
		cli.StringFlag{Name: "layout", Value: "sharded"},
		cli.IntFlag{Name: "layout-depth", Value: 2},
		cli.StringFlag{Name: "transform", Value: ""},
		cli.BoolFlag{Name: "preserve-permissions"},
		cli.BoolFlag{Name: "preserve-times"},
		cli.BoolFlag{Name: "restore-symlinks"},
		cli.BoolFlag{Name: "restore-specials"},
		cli.BoolFlag{Name: "overwrite"},
	},
	Action: runExtract,
	Before: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return cli.NewExitError("invalid number of positional arguments: expected <archive> <dst>", 2)
		}
		return nil
	},
}

func runExtract(ctx *cli.Context) error {
	archivePath, dst := ctx.Args().Get(0), ctx.Args().Get(1)

	store, err := openStore(archivePath, ctx.String("algorithm"), ctx.String("layout"), ctx.Int("layout-depth"), ctx.String("transform"), true)
	if err != nil {
		return err
	}

	bar := progressbar.Default(-1, "extracting archive")
	defer bar.Close()

	report, err := archive.Extract(archivePath, dst, archive.ExtractOptions{
		Store:               store,
		PreservePermissions: ctx.Bool("preserve-permissions"),
		PreserveTimes:       ctx.Bool("preserve-times"),
		RestoreSymlinks:     ctx.Bool("restore-symlinks"),
		RestoreSpecials:     ctx.Bool("restore-specials"),
		Overwrite:           ctx.Bool("overwrite"),
		OnProgress: func(p archive.Progress) {
			_ = bar.Add(1)
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf("files written: %d\n", report.FilesWritten)
	fmt.Printf("bytes written: %s\n", humanize.IBytes(uint64(report.BytesWritten)))
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
