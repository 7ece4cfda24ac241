// Copyright 2026 The Patchworkfs Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package handletable is the file handle table (C2): a registry of open
// backing files keyed by their own file descriptor, so the descriptor the
// kernel is given back as a handle ID needs no translation on the read/write
// hot path (spec.md §4.2).
package handletable

import (
	"os"
	"sync"
)

// Handle is the state kept for one open file: the descriptor that keeps the
// backing file alive, the relative path it was opened against, and the
// flags it was opened with.
type Handle struct {
	File  *os.File
	Path  string
	Flags uint32
}

// Table is a concurrency-safe map from file descriptor to Handle. The zero
// value is not usable; construct with New.
type Table struct {
	mu      sync.RWMutex
	handles map[uint64]*Handle
}

// New builds an empty Table.
func New() *Table {
	return &Table{handles: make(map[uint64]*Handle)}
}

// Insert registers f as open against relPath with the given open flags. The
// table takes ownership of f: Remove closes it. The handle ID returned is
// f's own file descriptor, matching spec.md §4.2's no-intermediate-mapping
// requirement.
func (t *Table) Insert(f *os.File, relPath string, flags uint32) uint64 {
	fd := uint64(f.Fd())
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handles[fd] = &Handle{File: f, Path: relPath, Flags: flags}
	return fd
}

// Contains is a cheap existence check, used as a safety assertion before
// read/write against a handle ID supplied by the kernel.
func (t *Table) Contains(fd uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.handles[fd]
	return ok
}

// Get returns the Handle registered for fd, if any.
func (t *Table) Get(fd uint64) (*Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handles[fd]
	return h, ok
}

// Remove drops the entry for fd and closes its descriptor. It must be
// called only from release; the descriptor must not be closed any earlier,
// since the kernel may still issue reads or writes against it up to that
// point. A close-time error is returned to the caller, who per spec.md
// §4.3 treats a bad-descriptor error on flush as success but not on release.
func (t *Table) Remove(fd uint64) error {
	t.mu.Lock()
	h, ok := t.handles[fd]
	if ok {
		delete(t.handles, fd)
	}
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return h.File.Close()
}

// Len returns the number of open handles.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.handles)
}

// FindWritable returns a handle open against relPath with write access, if
// any is currently registered. Used by setattr's size-change handling to
// prefer a descriptor-relative truncate over a path-based one (spec.md
// §4.3).
func (t *Table) FindWritable(relPath string) (*Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, h := range t.handles {
		if h.Path != relPath {
			continue
		}
		accessMode := h.Flags & 3 // O_RDONLY=0, O_WRONLY=1, O_RDWR=2
		if accessMode == uint32(os.O_WRONLY) || accessMode == uint32(os.O_RDWR) {
			return h, true
		}
	}
	return nil, false
}
