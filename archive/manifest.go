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

// Package archive composes the path layout, chunk store, hash cache, tree
// model, and directory parser into create/extract/validate/list
// operations.
package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/blang/semver/v4"
)

// CurrentFormatVersion is the manifest format this package writes.
// MinSupportedFormatVersion/MaxSupportedFormatVersion bound what it will
// read; today that range is a single version, kept ready for a future v2.
// Each is a bare major number rather than a full dotted version because
// the manifest format itself has no minor/patch axis, but the comparison
// in checkFormatVersion still goes through blang/semver so widening the
// range to something like "2.1.0" later is a one-line change, not a
// rewrite of the comparison logic.
const (
	CurrentFormatVersion      = 1
	MinSupportedFormatVersion = 1
	MaxSupportedFormatVersion = 1
)

func formatVersionRange() semver.Range {
	r, err := semver.ParseRange(fmt.Sprintf(">=%d.0.0 <=%d.0.0", MinSupportedFormatVersion, MaxSupportedFormatVersion))
	if err != nil {
		panic(fmt.Sprintf("archive: invalid format version range: %v", err))
	}
	return r
}

// rawFields is embedded by manifest record types to preserve unknown JSON
// fields across a read-then-rewrite round trip, per the manifest
// evolution design note: every record type keeps whatever it doesn't
// recognize and re-emits it verbatim.
type rawFields map[string]json.RawMessage

func (r rawFields) clone() rawFields {
	out := make(rawFields, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Manifest is the serialized form of the archive: engine metadata plus the
// root folder record.
type Manifest struct {
	FormatVersion int       `json:"formatVersion"`
	HashAlgorithm string    `json:"hashAlgorithm"`
	Layout        string    `json:"layout"`
	LayoutDepth   *int      `json:"layoutDepth,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	Root          *Node     `json:"root"`

	extra rawFields
}

type manifestAlias Manifest

// MarshalJSON re-serializes m, re-emitting any fields that were present on
// read but aren't modeled above.
func (m Manifest) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(manifestAlias(m))
	if err != nil {
		return nil, err
	}
	return mergeExtra(known, m.extra)
}

// UnmarshalJSON decodes m, stashing any fields this package doesn't model
// into m.extra so MarshalJSON can reproduce them later.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var alias manifestAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*m = Manifest(alias)

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range []string{"formatVersion", "hashAlgorithm", "layout", "layoutDepth", "createdAt", "root"} {
		delete(all, known)
	}
	m.extra = all
	return nil
}

// NodeType discriminates Node records.
type NodeType string

const (
	NodeFolder  NodeType = "folder"
	NodeFile    NodeType = "file"
	NodeSymlink NodeType = "symlink"
	NodeSpecial NodeType = "special"
)

// Node is the JSON-wire form of either a FileSystemFolder or a
// FileSystemEntry, discriminated by Type.
type Node struct {
	Type            NodeType          `json:"type"`
	Name            string            `json:"name"`
	Modified        *time.Time        `json:"modified,omitempty"`
	Children        []*Node           `json:"children,omitempty"`
	Size            int64             `json:"size,omitempty"`
	Permissions     string            `json:"permissions,omitempty"`
	Owner           string            `json:"owner,omitempty"`
	Group           string            `json:"group,omitempty"`
	Hidden          bool              `json:"hidden,omitempty"`
	System          bool              `json:"system,omitempty"`
	SpecialFileType string            `json:"specialFileType,omitempty"`
	SymlinkTarget   string            `json:"symlinkTarget,omitempty"`
	ChunkID         string            `json:"chunkId,omitempty"`
	Hashes          map[string]any    `json:"hashes,omitempty"`
	Xattrs          map[string]string `json:"xattrs,omitempty"`

	extra rawFields
}

type nodeAlias Node

func (n Node) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(nodeAlias(n))
	if err != nil {
		return nil, err
	}
	return mergeExtra(known, n.extra)
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var alias nodeAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*n = Node(alias)

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range []string{
		"type", "name", "modified", "children", "size", "permissions", "owner",
		"group", "hidden", "system", "specialFileType", "symlinkTarget", "chunkId",
		"hashes", "xattrs",
	} {
		delete(all, known)
	}
	n.extra = all
	return nil
}

// chunkList extracts the ordered multi-chunk id list from Hashes["chunks"],
// if present.
func (n *Node) chunkList() []string {
	raw, ok := n.Hashes["chunks"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func setChunkList(n *Node, ids []string) {
	if n.Hashes == nil {
		n.Hashes = map[string]any{}
	}
	asAny := make([]any, len(ids))
	for i, id := range ids {
		asAny[i] = id
	}
	n.Hashes["chunks"] = asAny
}

// mergeExtra merges extra's fields into the JSON object in known, with
// fields already in known taking precedence.
func mergeExtra(known []byte, extra rawFields) ([]byte, error) {
	if len(extra) == 0 {
		return known, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(known, &obj); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, present := obj[k]; !present {
			obj[k] = v
		}
	}
	return json.Marshal(obj)
}

// checkFormatVersion rejects manifests outside the supported range.
func checkFormatVersion(v int) error {
	sv, err := semver.Parse(fmt.Sprintf("%d.0.0", v))
	if err != nil {
		return fmt.Errorf("archive: manifest format version %d is malformed: %w", v, err)
	}
	if !formatVersionRange()(sv) {
		return fmt.Errorf("archive: manifest format version %d is not supported (supported: %d-%d)",
			v, MinSupportedFormatVersion, MaxSupportedFormatVersion)
	}
	return nil
}
