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

// Package walker implements the directory parser: a deterministic,
// lexicographic depth-first traversal over a HostFS. Unlike a
// goroutine-fanned scanner, this walker runs single-goroutine so that
// entries are always emitted in a stable, reproducible order; directory
// listings are still read in large batches to keep memory bounded on
// very large directories.
package walker

import (
	"io"
	"os"
	"path"
	"sort"
	"time"

	"github.com/snugarchive/snug/internal"
)

// readDirBatchSize bounds how many entries are read from a directory at
// once, the same batching ivoronin-dupedog's listDirectory uses to keep
// memory bounded on directories with very large fan-out.
const readDirBatchSize = 1000

// EntryType classifies a DirectoryEntry.
type EntryType string

const (
	TypeFile            EntryType = "file"
	TypeDirectory       EntryType = "directory"
	TypeSymlink         EntryType = "symlink"
	TypeBlockDevice     EntryType = "block-device"
	TypeCharacterDevice EntryType = "character-device"
	TypeSocket          EntryType = "socket"
	TypeFIFO            EntryType = "fifo"
)

// DirectoryEntry is the transient record produced for each node visited.
// It is created by the parser, consumed by a Delegate, then discarded.
type DirectoryEntry struct {
	RelPath       string // POSIX separators, never starts with "/", never contains ".."
	SourcePath    string // absolute path on the host file system
	Type          EntryType
	Size          int64
	SymlinkTarget string
	Permissions   string // octal string
	Owner         string
	Group         string
	ModTime       time.Time
	CreateTime    *time.Time
	Hidden        bool
}

// HostFS is the file-system surface the parser needs: just what a
// read-only directory walk actually touches.
type HostFS interface {
	Lstat(path string) (os.FileInfo, error)
	Stat(path string) (os.FileInfo, error)
	Open(path string) (*os.File, error)
	Readlink(path string) (string, error)
	ReadDir(path string) (DirReader, error)
}

// DirReader is satisfied by *os.File's ReadDir(n) batching method.
type DirReader interface {
	ReadDir(n int) ([]os.DirEntry, error)
	Close() error
}

// IgnoreMatcher tests a relative path and reports whether it should be
// skipped. For directories, a match prunes the entire subtree.
type IgnoreMatcher interface {
	Match(relPath string) bool
}

// GlobIgnoreMatcher matches relPath against a set of filepath.Match glob
// patterns, tested against both the full relative path and its base name.
type GlobIgnoreMatcher struct {
	Patterns []string
}

func (g GlobIgnoreMatcher) Match(relPath string) bool {
	base := path.Base(relPath)
	for _, pattern := range g.Patterns {
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
		if ok, _ := path.Match(pattern, relPath); ok {
			return true
		}
	}
	return false
}

// Options controls the parser's traversal policy.
type Options struct {
	BasePath              string // prefix prepended to every emitted relative path
	FollowSymlinks        bool
	ErrorOnBrokenSymlinks bool
	IncludeSpecialFiles   bool
	SkipPermissionErrors  bool
	SkipHiddenFiles       bool
	Verbose               bool
	IgnoreMatcher         IgnoreMatcher
}

// Decision is returned by a Delegate for each visited entry.
type Decision int

const (
	// Continue descends into directories normally.
	Continue Decision = iota
	// Prune skips descent into this subtree but continues the walk
	// elsewhere.
	Prune
)

// Delegate receives each DirectoryEntry as it is discovered.
type Delegate interface {
	Visit(entry DirectoryEntry) (Decision, error)
}

// DelegateFunc adapts a plain function to the Delegate interface.
type DelegateFunc func(entry DirectoryEntry) (Decision, error)

func (f DelegateFunc) Visit(entry DirectoryEntry) (Decision, error) { return f(entry) }

// Parser walks a HostFS rooted at a path, invoking a Delegate for every
// entry in deterministic, lexicographic depth-first order.
type Parser struct {
	fs      HostFS
	opts    Options
	visited map[string]struct{} // canonical resolved paths, guards symlink cycles
}

// New returns a Parser over fs with the given options.
func New(fs HostFS, opts Options) *Parser {
	return &Parser{fs: fs, opts: opts, visited: map[string]struct{}{}}
}

// Walk traverses root, invoking delegate for each discovered entry.
func (p *Parser) Walk(root string, delegate Delegate) error {
	info, err := p.fs.Lstat(root)
	if err != nil {
		return internal.NewError(internal.KindIO, "walker.Walk", err).WithPath(root)
	}
	if !info.IsDir() {
		return internal.NewError(internal.KindInvalidFormat, "walker.Walk",
			errErrorf("root %q is not a directory", root)).WithPath(root)
	}
	return p.walkDir(root, "", delegate)
}

func (p *Parser) walkDir(absPath, relPath string, delegate Delegate) error {
	names, err := p.listSorted(absPath)
	if err != nil {
		if os.IsPermission(err) && p.opts.SkipPermissionErrors {
			return nil
		}
		return internal.NewError(internal.KindIO, "walker.walkDir", err).WithPath(absPath)
	}

	for _, name := range names {
		childAbs := joinHost(absPath, name)
		childRel := name
		if relPath != "" {
			childRel = relPath + "/" + name
		}

		if p.opts.IgnoreMatcher != nil && p.opts.IgnoreMatcher.Match(childRel) {
			continue
		}
		if err := p.visitOne(childAbs, childRel, delegate); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) listSorted(absPath string) ([]string, error) {
	dh, err := p.fs.ReadDir(absPath)
	if err != nil {
		return nil, err
	}
	defer dh.Close()

	var names []string
	for {
		batch, err := dh.ReadDir(readDirBatchSize)
		for _, e := range batch {
			names = append(names, e.Name())
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return names, err
		}
		if len(batch) == 0 {
			break
		}
	}
	sort.Strings(names)
	return names, nil
}

func (p *Parser) visitOne(absPath, relPath string, delegate Delegate) error {
	info, err := p.fs.Lstat(absPath)
	if err != nil {
		if os.IsPermission(err) && p.opts.SkipPermissionErrors {
			return nil
		}
		return internal.NewError(internal.KindIO, "walker.visitOne", err).WithPath(absPath)
	}

	hidden := isHidden(info.Name())
	if hidden && p.opts.SkipHiddenFiles {
		return nil
	}

	emittedRel := relPath
	if p.opts.BasePath != "" {
		emittedRel = p.opts.BasePath + "/" + relPath
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return p.visitSymlink(absPath, emittedRel, relPath, info, delegate)
	case mode.IsDir():
		decision, err := delegate.Visit(DirectoryEntry{
			RelPath: emittedRel, SourcePath: absPath, Type: TypeDirectory,
			ModTime: info.ModTime(), Hidden: hidden,
		})
		if err != nil {
			return err
		}
		if decision == Prune {
			return nil
		}
		return p.walkDir(absPath, relPath, delegate)
	case mode.IsRegular():
		_, err := delegate.Visit(DirectoryEntry{
			RelPath: emittedRel, SourcePath: absPath, Type: TypeFile,
			Size: info.Size(), ModTime: info.ModTime(), Hidden: hidden,
		})
		return err
	default:
		return p.visitSpecial(absPath, emittedRel, mode, info, hidden, delegate)
	}
}

func (p *Parser) visitSymlink(absPath, emittedRel, relPath string, info os.FileInfo, delegate Delegate) error {
	target, err := p.fs.Readlink(absPath)
	if err != nil {
		return internal.NewError(internal.KindIO, "walker.visitSymlink", err).WithPath(absPath)
	}

	if !p.opts.FollowSymlinks {
		_, err := delegate.Visit(DirectoryEntry{
			RelPath: emittedRel, SourcePath: absPath, Type: TypeSymlink,
			SymlinkTarget: target, ModTime: info.ModTime(), Hidden: isHidden(info.Name()),
		})
		return err
	}

	resolved, err := p.fs.Stat(absPath)
	if err != nil {
		if p.opts.ErrorOnBrokenSymlinks {
			return internal.NewError(internal.KindBrokenSymlink, "walker.visitSymlink", err).WithPath(absPath)
		}
		return nil
	}
	canonical, err := resolveCanonical(absPath)
	if err == nil {
		if _, seen := p.visited[canonical]; seen {
			return nil
		}
		p.visited[canonical] = struct{}{}
	}
	if resolved.IsDir() {
		decision, err := delegate.Visit(DirectoryEntry{
			RelPath: emittedRel, SourcePath: absPath, Type: TypeDirectory,
			ModTime: resolved.ModTime(), Hidden: isHidden(info.Name()),
		})
		if err != nil || decision == Prune {
			return err
		}
		return p.walkDir(absPath, relPath, delegate)
	}
	_, err = delegate.Visit(DirectoryEntry{
		RelPath: emittedRel, SourcePath: absPath, Type: TypeFile,
		Size: resolved.Size(), ModTime: resolved.ModTime(), Hidden: isHidden(info.Name()),
	})
	return err
}

func (p *Parser) visitSpecial(absPath, emittedRel string, mode os.FileMode, info os.FileInfo, hidden bool, delegate Delegate) error {
	if !p.opts.IncludeSpecialFiles {
		return nil
	}
	var typ EntryType
	switch {
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0:
		typ = TypeCharacterDevice
	case mode&os.ModeDevice != 0:
		typ = TypeBlockDevice
	case mode&os.ModeSocket != 0:
		typ = TypeSocket
	case mode&os.ModeNamedPipe != 0:
		typ = TypeFIFO
	default:
		return nil
	}
	_, err := delegate.Visit(DirectoryEntry{
		RelPath: emittedRel, SourcePath: absPath, Type: typ, ModTime: info.ModTime(), Hidden: hidden,
	})
	return err
}
