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

//go:build unix

package archive

import (
	"encoding/base64"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/snugarchive/snug/internal/xio"
	"github.com/snugarchive/snug/pkg/tree"
)

// ownerGroup extracts the numeric uid/gid of info as decimal strings.
// Nothing in the dependency set resolves uid/gid to names portably, so
// this stays on the standard library's syscall.Stat_t.
func ownerGroup(info os.FileInfo) (owner, group string) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", ""
	}
	return fmt.Sprintf("%d", st.Uid), fmt.Sprintf("%d", st.Gid)
}

func permissionsOf(info os.FileInfo) string {
	return fmt.Sprintf("%04o", info.Mode().Perm())
}

func chownPath(path, owner, group string) error {
	uid, gid, err := parseOwnerGroup(owner, group)
	if err != nil {
		return nil // best effort: unparsable owner/group is skipped, not fatal
	}
	return os.Lchown(path, uid, gid)
}

// mknodSpecial recreates a FIFO. Block and character devices (whose
// device numbers the manifest does not carry) and sockets are not
// recreated: it returns an error for them, which the caller reports as a
// skip.
func mknodSpecial(target string, typ tree.SpecialFileType) error {
	switch typ {
	case tree.SpecialFIFO:
		return unix.Mkfifo(target, 0o644)
	case tree.SpecialBlockDevice, tree.SpecialCharacterDevice:
		return fmt.Errorf("recreating device nodes requires a device number not carried in the manifest")
	default:
		return fmt.Errorf("unsupported special file type %q", typ)
	}
}

// readXattrs collects path's extended attributes, base64-encoding each
// value so it round-trips through the JSON manifest unchanged. A name
// whose value can't be read is skipped rather than failing the whole
// entry: xattrs are best-effort metadata, not load-bearing content.
func readXattrs(path string) map[string]string {
	names, err := xio.Llistxattr(path)
	if err != nil || len(names) == 0 {
		return nil
	}
	xattrs := make(map[string]string, len(names))
	for _, name := range names {
		value, err := xio.Lgetxattr(path, name)
		if err != nil {
			continue
		}
		xattrs[name] = base64.StdEncoding.EncodeToString(value)
	}
	if len(xattrs) == 0 {
		return nil
	}
	return xattrs
}

// restoreXattrs re-applies xattrs, as produced by readXattrs, to path.
func restoreXattrs(path string, xattrs map[string]string) {
	for name, encoded := range xattrs {
		value, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		_ = xio.Lsetxattr(path, name, value)
	}
}

func parseOwnerGroup(owner, group string) (int, int, error) {
	var uid, gid int
	if _, err := fmt.Sscanf(owner, "%d", &uid); err != nil {
		return 0, 0, err
	}
	if _, err := fmt.Sscanf(group, "%d", &gid); err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}
