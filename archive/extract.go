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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"

	"github.com/snugarchive/snug/internal"
	"github.com/snugarchive/snug/pkg/digest"
	"github.com/snugarchive/snug/pkg/tree"
)

// Extract reads the manifest at manifestPath and reconstructs its tree
// under destDir: directories are created depth-first in declared order,
// then each file's chunks are streamed back and metadata is applied.
func Extract(manifestPath, destDir string, opts ExtractOptions) (ExtractReport, error) {
	if opts.Store == nil {
		return ExtractReport{}, errors.New("archive: ExtractOptions.Store is required")
	}
	m, err := readManifest(manifestPath)
	if err != nil {
		return ExtractReport{}, errors.Wrapf(err, "archive: reading manifest %s", manifestPath)
	}
	if m.Root == nil {
		return ExtractReport{}, internal.NewError(internal.KindInvalidFormat, "archive.Extract",
			errors.New("manifest has no root")).WithPath(manifestPath)
	}
	root, err := folderFromNode(m.Root, m.HashAlgorithm)
	if err != nil {
		return ExtractReport{}, internal.NewError(internal.KindInvalidFormat, "archive.Extract", err).WithPath(manifestPath)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return ExtractReport{}, internal.NewError(internal.KindIO, "archive.Extract", err).WithPath(destDir)
	}

	ex := &extractor{opts: opts, destDir: destDir}
	root.Walk(func(relPath string, node tree.Node) bool {
		switch n := node.(type) {
		case *tree.Folder:
			ex.mkdir(relPath)
		case *tree.Entry:
			ex.visitEntry(relPath, n)
		}
		return true
	})
	if ex.err != nil {
		return ex.report, ex.err
	}
	return ex.report, nil
}

type extractor struct {
	opts    ExtractOptions
	destDir string
	report  ExtractReport
	err     error
}

func (ex *extractor) targetPath(relPath string) (string, error) {
	return securejoin.SecureJoin(ex.destDir, relPath)
}

func (ex *extractor) warn(format string, args ...any) {
	ex.report.Warnings = append(ex.report.Warnings, fmt.Sprintf(format, args...))
}

func (ex *extractor) mkdir(relPath string) {
	if ex.err != nil {
		return
	}
	target, err := ex.targetPath(relPath)
	if err != nil {
		ex.err = internal.NewError(internal.KindInvalidFormat, "archive.Extract", err).WithPath(relPath)
		return
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		ex.err = internal.NewError(internal.KindIO, "archive.Extract", err).WithPath(target)
	}
}

func (ex *extractor) visitEntry(relPath string, e *tree.Entry) {
	if ex.err != nil {
		return
	}
	switch e.Metadata.SpecialFileType {
	case tree.SpecialSymlink:
		ex.restoreSymlink(relPath, e)
	case "":
		ex.restoreFile(relPath, e)
	default:
		ex.restoreSpecial(relPath, e)
	}
}

func (ex *extractor) restoreFile(relPath string, e *tree.Entry) {
	target, err := ex.targetPath(relPath)
	if err != nil {
		ex.err = internal.NewError(internal.KindInvalidFormat, "archive.Extract", err).WithPath(relPath)
		return
	}
	if !ex.opts.Overwrite {
		if _, statErr := os.Lstat(target); statErr == nil {
			ex.warn("skipped existing file %s (overwrite disabled)", relPath)
			return
		}
	}

	ids := e.Chunks
	if len(ids) == 0 {
		if e.ChunkID.IsZero() {
			ex.warn("skipped %s: entry has no chunk reference", relPath)
			return
		}
		ids = []digest.Identifier{e.ChunkID}
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		ex.err = internal.NewError(internal.KindIO, "archive.Extract", err).WithPath(dir)
		return
	}
	fh, err := os.CreateTemp(dir, ".snug-extract-*")
	if err != nil {
		ex.err = internal.NewError(internal.KindIO, "archive.Extract", err).WithPath(dir)
		return
	}
	tmpPath := fh.Name()
	defer os.Remove(tmpPath)

	var written int64
	for _, id := range ids {
		data, err := ex.opts.Store.Get(id)
		if err != nil {
			fh.Close()
			ex.err = errors.Wrapf(err, "archive: reading chunk %s for %s", id.ID(), relPath)
			return
		}
		if _, err := fh.Write(data); err != nil {
			fh.Close()
			ex.err = internal.NewError(internal.KindIO, "archive.Extract", err).WithPath(tmpPath)
			return
		}
		written += int64(len(data))
	}
	if err := fh.Close(); err != nil {
		ex.err = internal.NewError(internal.KindIO, "archive.Extract", err).WithPath(tmpPath)
		return
	}
	if err := os.Rename(tmpPath, target); err != nil {
		ex.err = internal.NewError(internal.KindIO, "archive.Extract", err).WithPath(target)
		return
	}

	ex.applyMetadata(target, e)
	ex.report.FilesWritten++
	ex.report.BytesWritten += written
	if ex.opts.OnProgress != nil {
		ex.opts.OnProgress(Progress{Path: relPath, FilesProcessed: ex.report.FilesWritten, BytesProcessed: ex.report.BytesWritten})
	}
}

func (ex *extractor) restoreSymlink(relPath string, e *tree.Entry) {
	if !ex.opts.RestoreSymlinks {
		ex.warn("skipped symlink %s (restoreSymlinks disabled)", relPath)
		return
	}
	target, err := ex.targetPath(relPath)
	if err != nil {
		ex.err = internal.NewError(internal.KindInvalidFormat, "archive.Extract", err).WithPath(relPath)
		return
	}
	if ex.opts.Overwrite {
		_ = os.Remove(target)
	} else if _, statErr := os.Lstat(target); statErr == nil {
		ex.warn("skipped existing symlink %s (overwrite disabled)", relPath)
		return
	}
	if err := os.Symlink(e.Metadata.SymlinkTarget, target); err != nil {
		ex.warn("could not create symlink %s: %v", relPath, err)
		return
	}
	if ex.opts.PreservePermissions {
		_ = chownPath(target, e.Metadata.Owner, e.Metadata.Group)
		if len(e.Metadata.Xattrs) > 0 {
			restoreXattrs(target, e.Metadata.Xattrs)
		}
	}
}

func (ex *extractor) restoreSpecial(relPath string, e *tree.Entry) {
	if !ex.opts.RestoreSpecials {
		ex.warn("skipped special file %s (restoreSpecials disabled)", relPath)
		return
	}
	target, err := ex.targetPath(relPath)
	if err != nil {
		ex.err = internal.NewError(internal.KindInvalidFormat, "archive.Extract", err).WithPath(relPath)
		return
	}
	if err := mknodSpecial(target, e.Metadata.SpecialFileType); err != nil {
		ex.warn("could not create special file %s: %v", relPath, err)
		return
	}
	ex.applyMetadata(target, e)
}

func (ex *extractor) applyMetadata(target string, e *tree.Entry) {
	if ex.opts.PreservePermissions {
		if mode, err := strconv.ParseUint(e.Metadata.Permissions, 8, 32); err == nil {
			_ = os.Chmod(target, os.FileMode(mode))
		}
		_ = chownPath(target, e.Metadata.Owner, e.Metadata.Group)
		if len(e.Metadata.Xattrs) > 0 {
			restoreXattrs(target, e.Metadata.Xattrs)
		}
	}
	if ex.opts.PreserveTimes && !e.Metadata.ModTime.IsZero() {
		_ = os.Chtimes(target, time.Now(), e.Metadata.ModTime)
	}
}
