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
	"github.com/urfave/cli"

	"github.com/snugarchive/snug/archive"
)

var listCommand = cli.Command{
	Name:      "list",
	Usage:     "list an archive's contents",
	ArgsUsage: "<archive>",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "metadata", Usage: "include permissions and ownership columns"},
	},
	Action: runList,
	Before: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.NewExitError("invalid number of positional arguments: expected <archive>", 2)
		}
		return nil
	},
}

func runList(ctx *cli.Context) error {
	entries, err := archive.List(ctx.Args().Get(0), archive.ListOptions{WithMetadata: ctx.Bool("metadata")})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if ctx.Bool("metadata") {
			fmt.Printf("%-6s %10s %s %s %s:%s %s\n", e.Type, humanize.IBytes(uint64(e.Size)), e.Modified, e.Permissions, e.Owner, e.Group, e.Path)
		} else {
			fmt.Printf("%-6s %10s %s\n", e.Type, humanize.IBytes(uint64(e.Size)), e.Path)
		}
	}
	return nil
}
