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

package archive

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/snugarchive/snug/internal"
	"github.com/snugarchive/snug/pkg/digest"
	"github.com/snugarchive/snug/pkg/tree"
	"github.com/snugarchive/snug/pkg/walker"
)

// identicalTrees reports whether a and b describe the same folder/file
// structure: same names, same metadata, same chunk references. Each side
// is cloned first, so the comparison never observes a tree its owner
// might still be mutating concurrently. Timestamps are compared with
// time.Time.Equal rather than field-by-field, since a manifest round
// trip through JSON can change a time.Time's Location without changing
// the instant it represents.
func identicalTrees(a, b *tree.Folder) bool {
	return foldersEqual(a.Clone(), b.Clone())
}

func foldersEqual(a, b *tree.Folder) bool {
	ac, bc := a.SortedChildren(), b.SortedChildren()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		switch av := ac[i].(type) {
		case *tree.Folder:
			bv, ok := bc[i].(*tree.Folder)
			if !ok || av.Name() != bv.Name() || !foldersEqual(av, bv) {
				return false
			}
		case *tree.Entry:
			bv, ok := bc[i].(*tree.Entry)
			if !ok || !entriesEqual(av, bv) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func entriesEqual(a, b *tree.Entry) bool {
	am, bm := a.Metadata, b.Metadata
	if am.Name != bm.Name || am.Size != bm.Size || am.Permissions != bm.Permissions ||
		am.Owner != bm.Owner || am.Group != bm.Group || am.SpecialFileType != bm.SpecialFileType ||
		am.SymlinkTarget != bm.SymlinkTarget || !am.ModTime.Equal(bm.ModTime) {
		return false
	}
	if !a.ChunkID.Equal(b.ChunkID) || len(a.Chunks) != len(b.Chunks) {
		return false
	}
	for i := range a.Chunks {
		if !a.Chunks[i].Equal(b.Chunks[i]) {
			return false
		}
	}
	return true
}

// Create walks sourceDir, chunks and stores every regular file's content,
// and writes the resulting manifest to manifestPath: the parser delegate
// feeds the hash cache and chunk store, and the growing tree is
// serialized once the walk completes.
func Create(sourceDir, manifestPath string, opts ArchiveOptions) (CreateReport, error) {
	if opts.Store == nil {
		return CreateReport{}, errors.New("archive: ArchiveOptions.Store is required")
	}
	algo := opts.HashAlgorithm
	if algo == nil {
		algo = digest.SHA256
	}
	layoutName := opts.LayoutName
	if layoutName == "" {
		layoutName = "sharded"
	}

	rootInfo, err := os.Lstat(sourceDir)
	if err != nil {
		return CreateReport{}, internal.NewError(internal.KindIO, "archive.Create", err).WithPath(sourceDir)
	}

	root := tree.NewFolder("", rootInfo.ModTime())
	c := &creator{
		opts:    opts,
		algo:    algo,
		root:    root,
		folders: map[string]*tree.Folder{"": root},
		seen:    map[string]struct{}{},
	}

	p := walker.New(walker.OSFileSystem{}, walker.Options{
		FollowSymlinks:        opts.FollowSymlinks,
		ErrorOnBrokenSymlinks: opts.ErrorOnBrokenSymlinks,
		IncludeSpecialFiles:   opts.IncludeSpecials,
		SkipPermissionErrors:  opts.SkipPermissionErrors,
		SkipHiddenFiles:       !opts.IncludeHidden,
		IgnoreMatcher:         opts.IgnoreMatcher,
	})

	if err := p.Walk(sourceDir, walker.DelegateFunc(c.visit)); err != nil {
		return c.report, errors.Wrapf(err, "archive: walking %s", sourceDir)
	}

	if opts.HashCache != nil {
		_ = opts.HashCache.Save()
	}

	manifest := &Manifest{
		FormatVersion: CurrentFormatVersion,
		HashAlgorithm: algo.Name(),
		Layout:        layoutName,
		CreatedAt:     manifestTimestamp(),
		Root:          nodeFromFolder(c.root),
	}
	if layoutName == "sharded" && opts.LayoutDepth > 0 {
		d := opts.LayoutDepth
		manifest.LayoutDepth = &d
	}

	if prior, err := readManifest(manifestPath); err == nil && prior.Root != nil {
		if priorRoot, perr := folderFromNode(prior.Root, prior.HashAlgorithm); perr == nil {
			if identicalTrees(c.root, priorRoot) {
				manifest.CreatedAt = prior.CreatedAt
				c.report.Unchanged = true
			}
		}
	}

	if err := writeManifest(manifestPath, manifest); err != nil {
		return c.report, errors.Wrap(err, "archive: writing manifest")
	}
	return c.report, nil
}

// manifestTimestamp is overridable in tests to keep CreatedAt deterministic
// without relying on a wall-clock read inside library code.
var manifestTimestamp = func() time.Time { return time.Now().UTC() }

type creator struct {
	opts    ArchiveOptions
	algo    digest.Algorithm
	root    *tree.Folder
	folders map[string]*tree.Folder
	seen    map[string]struct{} // chunk ids already put this run
	report  CreateReport
}

func (c *creator) visit(e walker.DirectoryEntry) (walker.Decision, error) {
	parentPath, name := splitRel(e.RelPath)
	parent, ok := c.folders[parentPath]
	if !ok {
		return walker.Continue, errors.Errorf("archive: parent folder %q not seen before child %q", parentPath, e.RelPath)
	}

	switch e.Type {
	case walker.TypeDirectory:
		folder := tree.NewFolder(name, e.ModTime)
		if err := parent.AddChild(folder); err != nil {
			return walker.Continue, err
		}
		c.folders[e.RelPath] = folder
		return walker.Continue, nil

	case walker.TypeFile:
		entry, err := c.processFile(e, name)
		if err != nil {
			return walker.Continue, err
		}
		if err := parent.AddChild(entry); err != nil {
			return walker.Continue, err
		}
		c.report.FilesProcessed++
		if c.opts.OnProgress != nil {
			c.opts.OnProgress(Progress{Path: e.RelPath, FilesProcessed: c.report.FilesProcessed, BytesProcessed: c.report.BytesStored})
		}
		return walker.Continue, nil

	case walker.TypeSymlink:
		entry := &tree.Entry{Metadata: tree.EntryMetadata{
			Name: name, SpecialFileType: tree.SpecialSymlink, SymlinkTarget: e.SymlinkTarget,
			ModTime: e.ModTime, Hidden: e.Hidden, Xattrs: readXattrs(e.SourcePath),
		}}
		if err := parent.AddChild(entry); err != nil {
			return walker.Continue, err
		}
		return walker.Continue, nil

	default:
		special, ok := specialTypeFor(e.Type)
		if !ok {
			return walker.Continue, nil
		}
		entry := &tree.Entry{Metadata: tree.EntryMetadata{
			Name: name, SpecialFileType: special, ModTime: e.ModTime, Hidden: e.Hidden,
			Xattrs: readXattrs(e.SourcePath),
		}}
		if err := parent.AddChild(entry); err != nil {
			return walker.Continue, err
		}
		return walker.Continue, nil
	}
}

func specialTypeFor(t walker.EntryType) (tree.SpecialFileType, bool) {
	switch t {
	case walker.TypeBlockDevice:
		return tree.SpecialBlockDevice, true
	case walker.TypeCharacterDevice:
		return tree.SpecialCharacterDevice, true
	case walker.TypeSocket:
		return tree.SpecialSocket, true
	case walker.TypeFIFO:
		return tree.SpecialFIFO, true
	default:
		return "", false
	}
}

// processFile chunks e's file (or reuses a cached result), puts new chunks
// into the store, and returns the tree Entry describing it.
func (c *creator) processFile(e walker.DirectoryEntry, name string) (*tree.Entry, error) {
	info, err := os.Lstat(e.SourcePath)
	if err != nil {
		return nil, internal.NewError(internal.KindIO, "archive.processFile", err).WithPath(e.SourcePath)
	}
	owner, group := ownerGroup(info)
	meta := tree.EntryMetadata{
		Name: name, Size: e.Size, ModTime: e.ModTime, Hidden: e.Hidden,
		Permissions: permissionsOf(info), Owner: owner, Group: group,
		Xattrs: readXattrs(e.SourcePath),
	}

	if c.opts.HashCache != nil {
		if cached, ok := c.opts.HashCache.Get(e.SourcePath, e.Size, e.ModTime); ok && cached.Algorithm == c.algo.Name() {
			if ids, ok := c.idsFromCacheField(cached.Digest); ok {
				entry := &tree.Entry{Metadata: meta}
				c.attachChunks(entry, ids)
				c.report.BytesDeduplicated += e.Size
				return entry, nil
			}
		}
	}

	ids, err := c.chunkFile(e.SourcePath, e.Size)
	if err != nil {
		return nil, errors.Wrapf(err, "archive: chunking %s", e.SourcePath)
	}
	if c.opts.HashCache != nil {
		c.opts.HashCache.Put(e.SourcePath, e.Size, e.ModTime, c.cacheFieldFromIDs(ids), c.algo.Name())
	}

	entry := &tree.Entry{Metadata: meta}
	c.attachChunks(entry, ids)
	return entry, nil
}

func (c *creator) attachChunks(entry *tree.Entry, ids []digest.Identifier) {
	if len(ids) == 1 {
		entry.ChunkID = ids[0]
		return
	}
	entry.Chunks = ids
}

// cacheFieldFromIDs/idsFromCacheField encode a file's chunk id list into
// the single string field hashcache.Entry.Digest offers, a comma-joined
// list for multi-chunk files and the bare id for single-chunk ones. The
// hash cache was designed around a single whole-object digest; reusing its
// one string field this way lets Create skip re-chunking on a cache hit
// even for files that span multiple chunks, at the cost of this encoding.
func (c *creator) cacheFieldFromIDs(ids []digest.Identifier) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.ID()
	}
	return strings.Join(parts, ",")
}

func (c *creator) idsFromCacheField(field string) ([]digest.Identifier, bool) {
	if field == "" {
		return nil, false
	}
	parts := strings.Split(field, ",")
	ids := make([]digest.Identifier, 0, len(parts))
	for _, p := range parts {
		id, err := digest.ParseIdentifier(c.algo.Name(), p)
		if err != nil {
			return nil, false
		}
		if !c.opts.Store.Exists(id) {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// chunkFile streams path in fixed windows of chunkSize, putting each
// window (after the optional transform) into the store and tracking
// dedup/bytes-stored accounting.
func (c *creator) chunkFile(path string, size int64) ([]digest.Identifier, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, internal.NewError(internal.KindIO, "archive.chunkFile", err).WithPath(path)
	}
	defer fh.Close()

	chunkSize := c.opts.chunkSize()
	buf := make([]byte, chunkSize)
	var ids []digest.Identifier

	for {
		n, readErr := io.ReadFull(fh, buf)
		if n > 0 {
			window := buf[:n]
			id := digest.Sum(c.algo, window)
			if _, already := c.seen[id.ID()]; already || c.opts.Store.Exists(id) {
				c.report.BytesDeduplicated += int64(n)
			} else {
				if _, err := c.opts.Store.Put(window); err != nil {
					return nil, errors.Wrap(err, "archive: storing chunk")
				}
				c.report.BytesStored += int64(n)
				c.report.ChunksWritten++
			}
			c.seen[id.ID()] = struct{}{}
			ids = append(ids, id)
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return nil, internal.NewError(internal.KindIO, "archive.chunkFile", readErr).WithPath(path)
		}
	}
	if len(ids) == 0 {
		// Empty file: still needs a chunk identity so extract can
		// reconstruct a zero-byte file deterministically.
		id := digest.Sum(c.algo, nil)
		if !c.opts.Store.Exists(id) {
			if _, err := c.opts.Store.Put(nil); err != nil {
				return nil, errors.Wrap(err, "archive: storing empty chunk")
			}
			c.report.ChunksWritten++
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitRel(relPath string) (parent, name string) {
	idx := strings.LastIndexByte(relPath, '/')
	if idx < 0 {
		return "", relPath
	}
	return relPath[:idx], relPath[idx+1:]
}

// writeManifest serializes m to path via a temp file in the same directory
// followed by a rename, so a concurrent create's manifest write is
// atomic (a concurrent writer to the same path always wins outright).
func writeManifest(manifestPath string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "archive: encoding manifest")
	}
	dir := filepath.Dir(manifestPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return internal.NewError(internal.KindIO, "archive.writeManifest", err).WithPath(dir)
		}
	}
	fh, err := os.CreateTemp(dir, ".snug-manifest-*")
	if err != nil {
		return internal.NewError(internal.KindIO, "archive.writeManifest", err).WithPath(dir)
	}
	tmp := fh.Name()
	defer os.Remove(tmp)
	if _, err := fh.Write(data); err != nil {
		fh.Close()
		return internal.NewError(internal.KindIO, "archive.writeManifest", err).WithPath(tmp)
	}
	if err := fh.Close(); err != nil {
		return internal.NewError(internal.KindIO, "archive.writeManifest", err).WithPath(tmp)
	}
	if err := os.Rename(tmp, manifestPath); err != nil {
		return internal.NewError(internal.KindIO, "archive.writeManifest", err).WithPath(manifestPath)
	}
	return nil
}

// readManifest reads and format-checks a manifest file.
func readManifest(manifestPath string) (*Manifest, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, internal.NewError(internal.KindNotFound, "archive.readManifest", err).WithPath(manifestPath)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, internal.NewError(internal.KindInvalidFormat, "archive.readManifest", err).WithPath(manifestPath)
	}
	if err := checkFormatVersion(m.FormatVersion); err != nil {
		return nil, internal.NewError(internal.KindInvalidFormat, "archive.readManifest", err).WithPath(manifestPath)
	}
	return &m, nil
}
