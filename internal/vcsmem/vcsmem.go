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

// Package vcsmem is a reference vcs.Backend: an in-memory, append-only log
// of whole-file patches keyed by path. It exists to exercise the VCS
// Translator (C7) end-to-end in this repository; the real patch-graph
// engine (Pijul, per original_source) is out of scope here.
package vcsmem

import (
	"fmt"
	"sync"

	"github.com/patchworkfs/patchworkfs/internal/vcs"
)

// change is one recorded patch: a full file state plus the commit message
// it was recorded with.
type change struct {
	path    string
	content []byte // nil means "file deleted"
	message string
}

// Backend is a concurrency-safe, process-local vcs.Backend. Every mutating
// call appends one change to an ordered log and updates the head-content
// index; nothing is persisted across process restarts.
type Backend struct {
	mu      sync.Mutex
	heads   map[string][]byte // path -> current content; absent means deleted/never created
	changes []change
}

// New builds an empty Backend.
func New() *Backend {
	return &Backend{heads: make(map[string][]byte)}
}

var _ vcs.Backend = (*Backend)(nil)

func (b *Backend) record(path string, content []byte, message string) {
	b.changes = append(b.changes, change{path: path, content: content, message: message})
	if content == nil {
		delete(b.heads, path)
		return
	}
	cp := make([]byte, len(content))
	copy(cp, content)
	b.heads[path] = cp
}

func (b *Backend) RecordFileCreate(path string, mode uint32, content []byte, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(path, content, message)
	return nil
}

func (b *Backend) RecordFileWrite(path string, content []byte, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(path, content, message)
	return nil
}

func (b *Backend) RecordFileTruncate(path string, content []byte, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(path, content, message)
	return nil
}

func (b *Backend) RecordFileDelete(path string, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(path, nil, message)
	return nil
}

func (b *Backend) RecordFileRename(oldPath, newPath string, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.heads[oldPath]
	if !ok {
		return fmt.Errorf("vcsmem: rename: %q has no recorded content: %w", oldPath, vcs.ErrUnsupported)
	}
	b.record(oldPath, nil, message)
	b.record(newPath, content, message)
	return nil
}

// GetFileContent returns the empty byte slice, not an error, for a path
// that was never created or has since been deleted — the Backend contract
// (spec.md's VCS API table: "get_file_content | path | bytes (empty if
// deleted)") is silent absence, not failure.
func (b *Backend) GetFileContent(path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.heads[path]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

func (b *Backend) FileExists(path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.heads[path]
	return ok, nil
}

func (b *Backend) ListChanges() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.changes))
	for i, c := range b.changes {
		out[i] = c.message
	}
	return out, nil
}
