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

package xio

import (
	"bytes"

	"golang.org/x/sys/unix"
)

// Llistxattr is a wrapper around unix.Llistxattr that abstracts the
// NUL-splitting and resizing of the returned []string.
func Llistxattr(path string) ([]string, error) {
	var buffer []byte
	for {
		sz, err := unix.Llistxattr(path, nil)
		if err != nil {
			return nil, err
		}
		buffer = make([]byte, sz)

		_, err = unix.Llistxattr(path, buffer)
		if err != nil {
			if err == unix.ERANGE {
				continue
			}
			return nil, err
		}
		break
	}

	xattrs := make([]string, 0, bytes.Count(buffer, []byte{'\x00'}))
	for _, name := range bytes.Split(buffer, []byte{'\x00'}) {
		if len(name) == 0 {
			continue
		}
		xattrs = append(xattrs, string(name))
	}
	return xattrs, nil
}

// Lgetxattr is a wrapper around unix.Lgetxattr that abstracts the resizing of
// the returned buffer.
func Lgetxattr(path string, name string) ([]byte, error) {
	var buffer []byte
	for {
		sz, err := unix.Lgetxattr(path, name, nil)
		if err != nil {
			return nil, err
		}
		buffer = make([]byte, sz)

		_, err = unix.Lgetxattr(path, name, buffer)
		if err != nil {
			if err == unix.ERANGE {
				continue
			}
			return nil, err
		}
		break
	}
	return buffer, nil
}

// Lsetxattr is a thin wrapper around unix.Lsetxattr kept alongside
// Lgetxattr/Llistxattr so callers only need to import this package.
func Lsetxattr(path, name string, value []byte) error {
	return unix.Lsetxattr(path, name, value, 0)
}
