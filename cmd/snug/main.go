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

// Command snug is a thin CLI wrapper around the archive engine: create,
// extract, validate, and list.
package main

import (
	"fmt"
	"os"

	"github.com/apex/log"
	apexcli "github.com/apex/log/handlers/cli"
	"github.com/urfave/cli"

	"github.com/snugarchive/snug/internal"
)

// version is populated on build by make.
var version = ""

const usage = `snug is a content-addressable archive engine for file-system trees`

func main() {
	log.SetHandler(apexcli.Default)

	app := cli.NewApp()
	app.Name = "snug"
	app.Usage = usage
	v := "unknown"
	if version != "" {
		v = version
	}
	app.Version = v

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "debug",
			Usage: "set log level to debug",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		if ctx.GlobalBool("debug") {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	}

	app.Commands = []cli.Command{
		createCommand,
		extractCommand,
		validateCommand,
		listCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "snug: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the exit codes in the CLI surface: 0
// success, 2 usage, 3 I/O, 4 integrity, 5 cancelled. Any other error
// exits 1.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	if coder, ok := err.(cli.ExitCoder); ok {
		return coder.ExitCode()
	}
	switch internal.KindOf(err) {
	case internal.KindIO, internal.KindNotFound, internal.KindPermission, internal.KindBrokenSymlink:
		return 3
	case internal.KindIntegrity, internal.KindCorruption, internal.KindInvalidFormat:
		return 4
	case internal.KindCancelled:
		return 5
	default:
		return 1
	}
}
