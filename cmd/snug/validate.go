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

	"github.com/urfave/cli"

	"github.com/snugarchive/snug/archive"
)

var validateCommand = cli.Command{
	Name:      "validate",
	Usage:     "validate an archive's chunk store against its manifest",
	ArgsUsage: "<archive>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "algorithm", Value: "sha256"},
		cli.StringFlag{Name: "layout", Value: "sharded"},
		cli.IntFlag{Name: "layout-depth", Value: 2},
		cli.StringFlag{Name: "transform", Value: ""},
		cli.BoolFlag{Name: "deep", Usage: "re-verify every referenced chunk's bytes against its digest"},
	},
	Action: runValidate,
	Before: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.NewExitError("invalid number of positional arguments: expected <archive>", 2)
		}
		return nil
	},
}

func runValidate(ctx *cli.Context) error {
	archivePath := ctx.Args().Get(0)

	store, err := openStore(archivePath, ctx.String("algorithm"), ctx.String("layout"), ctx.Int("layout-depth"), ctx.String("transform"), false)
	if err != nil {
		return err
	}

	report, err := archive.Validate(archivePath, archive.ValidateOptions{Store: store, Deep: ctx.Bool("deep")})
	if err != nil {
		return err
	}

	fmt.Printf("missing: %d\n", len(report.Missing))
	for _, id := range report.Missing {
		fmt.Printf("  missing %s\n", id)
	}
	fmt.Printf("orphaned: %d\n", len(report.Orphaned))
	fmt.Printf("corrupted: %d\n", len(report.Corrupted))
	for _, id := range report.Corrupted {
		fmt.Printf("  corrupted %s\n", id)
	}

	if !report.OK() {
		return cli.NewExitError("archive failed validation", 4)
	}
	return nil
}
