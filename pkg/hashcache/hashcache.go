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

// Package hashcache memoizes (path, size, mtime) -> digest across runs, in
// a single JSON file written via a temp-then-rename and guarded by an
// advisory flock against concurrent writers.
package hashcache

import (
	"container/list"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/snugarchive/snug/internal"
)

// flushDebounce is how long a put() waits for quiet before flushing to
// disk.
const flushDebounce = 500 * time.Millisecond

// Entry is the value memoized for a (path, size, mtime) key.
type Entry struct {
	Digest    string    `json:"digest"`
	Algorithm string    `json:"algorithm"`
	Timestamp time.Time `json:"timestamp"`
}

type key struct {
	path  string
	size  int64
	mtime int64 // whole seconds
}

// onDiskRecord is one entry's serialized form; key fields are flattened
// since JSON object keys must be strings and the natural key is a tuple.
type onDiskRecord struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Mtime     int64     `json:"mtime"`
	Digest    string    `json:"digest"`
	Algorithm string    `json:"algorithm"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache memoizes file digests, bounded by maxCacheSize bytes of tracked
// file content, evicting least-recently-used entries over the bound.
type Cache struct {
	mu           sync.Mutex
	path         string
	lockFile     *os.File
	maxCacheSize int64
	trackedSize  int64

	entries map[key]*list.Element // -> *lruItem
	lru     *list.List

	flushTimer *time.Timer
	dirty      bool
}

type lruItem struct {
	key   key
	entry Entry
}

// Open opens (or creates) the cache file at path, taking a non-blocking
// exclusive flock for the lifetime of the returned Cache. A second process
// attempting to open the same path fails with internal.KindNotSupported,
// since the cache is documented as a single-process resource.
func Open(path string, maxCacheSize int64) (*Cache, error) {
	lockFile, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, internal.NewError(internal.KindIO, "hashcache.Open", err).WithPath(path)
	}
	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lockFile.Close()
		return nil, internal.NewError(internal.KindNotSupported, "hashcache.Open", err).WithPath(path)
	}

	c := &Cache{
		path:         path,
		lockFile:     lockFile,
		maxCacheSize: maxCacheSize,
		entries:      map[key]*list.Element{},
		lru:          list.New(),
	}
	if err := c.load(); err != nil {
		unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)
		lockFile.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return internal.NewError(internal.KindIO, "hashcache.load", err).WithPath(c.path)
	}
	if len(data) == 0 {
		return nil
	}

	var records []onDiskRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return internal.NewError(internal.KindInvalidFormat, "hashcache.load", err).WithPath(c.path)
	}
	for _, r := range records {
		k := key{path: r.Path, size: r.Size, mtime: r.Mtime}
		item := &lruItem{key: k, entry: Entry{Digest: r.Digest, Algorithm: r.Algorithm, Timestamp: r.Timestamp}}
		c.entries[k] = c.lru.PushBack(item)
		c.trackedSize += r.Size
	}
	return nil
}

// Get returns the memoized digest for (path, size, mtime), or false on
// miss. A hit moves the entry to the front of the LRU.
func (c *Cache) Get(path string, size int64, mtime time.Time) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{path: filepath.Clean(path), size: size, mtime: mtime.Unix()}
	el, ok := c.entries[k]
	if !ok {
		return Entry{}, false
	}
	c.lru.MoveToFront(el)
	return el.Value.(*lruItem).entry, true
}

// Put inserts or updates the entry for (path, size, mtime), evicting
// least-recently-used entries until the tracked size is back under
// maxCacheSize, then schedules a debounced flush.
func (c *Cache) Put(path string, size int64, mtime time.Time, digestValue, algorithm string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{path: filepath.Clean(path), size: size, mtime: mtime.Unix()}
	entry := Entry{Digest: digestValue, Algorithm: algorithm, Timestamp: time.Now()}

	if el, ok := c.entries[k]; ok {
		c.trackedSize -= el.Value.(*lruItem).key.size
		el.Value.(*lruItem).entry = entry
		c.lru.MoveToFront(el)
	} else {
		item := &lruItem{key: k, entry: entry}
		c.entries[k] = c.lru.PushFront(item)
	}
	c.trackedSize += size

	for c.maxCacheSize > 0 && c.trackedSize > c.maxCacheSize && c.lru.Len() > 0 {
		oldest := c.lru.Back()
		oi := oldest.Value.(*lruItem)
		c.lru.Remove(oldest)
		delete(c.entries, oi.key)
		c.trackedSize -= oi.key.size
	}

	c.dirty = true
	c.scheduleFlush()
}

// scheduleFlush arms (or re-arms) the debounce timer. Must be called with
// c.mu held.
func (c *Cache) scheduleFlush() {
	if c.flushTimer != nil {
		c.flushTimer.Stop()
	}
	c.flushTimer = time.AfterFunc(flushDebounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.dirty {
			_ = c.flushLocked()
		}
	})
}

// Save stops any pending debounce timer and flushes synchronously.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.flushTimer != nil {
		c.flushTimer.Stop()
	}
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	records := make([]onDiskRecord, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		item := el.Value.(*lruItem)
		records = append(records, onDiskRecord{
			Path:      item.key.path,
			Size:      item.key.size,
			Mtime:     item.key.mtime,
			Digest:    item.entry.Digest,
			Algorithm: item.entry.Algorithm,
			Timestamp: item.entry.Timestamp,
		})
	}

	data, err := json.Marshal(records)
	if err != nil {
		return internal.NewError(internal.KindIO, "hashcache.flush", err).WithPath(c.path)
	}

	dir := filepath.Dir(c.path)
	fh, err := os.CreateTemp(dir, ".hashcache-*")
	if err != nil {
		return internal.NewError(internal.KindIO, "hashcache.flush", err).WithPath(dir)
	}
	tempPath := fh.Name()
	if _, err := fh.Write(data); err != nil {
		fh.Close()
		os.Remove(tempPath)
		return internal.NewError(internal.KindIO, "hashcache.flush", err).WithPath(tempPath)
	}
	if err := fh.Close(); err != nil {
		os.Remove(tempPath)
		return internal.NewError(internal.KindIO, "hashcache.flush", err).WithPath(tempPath)
	}
	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return internal.NewError(internal.KindIO, "hashcache.flush", err).WithPath(c.path)
	}

	c.dirty = false
	return nil
}

// Close flushes any pending writes and releases the exclusive lock.
func (c *Cache) Close() error {
	err := c.Save()
	unix.Flock(int(c.lockFile.Fd()), unix.LOCK_UN)
	if cerr := c.lockFile.Close(); err == nil {
		err = cerr
	}
	return err
}
