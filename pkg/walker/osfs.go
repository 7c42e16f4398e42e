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

package walker

import "os"

// OSFileSystem is the HostFS backed directly by the local file system,
// the default the CLI wires the parser to.
type OSFileSystem struct{}

func (OSFileSystem) Lstat(path string) (os.FileInfo, error) { return os.Lstat(path) }
func (OSFileSystem) Stat(path string) (os.FileInfo, error)  { return os.Stat(path) }
func (OSFileSystem) Open(path string) (*os.File, error)     { return os.Open(path) }
func (OSFileSystem) Readlink(path string) (string, error)   { return os.Readlink(path) }

func (OSFileSystem) ReadDir(path string) (DirReader, error) {
	return os.Open(path)
}
