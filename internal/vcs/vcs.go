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

// Package vcs is the VCS Translator (C7): a dedicated consumer that drains
// the opcode queue and applies each opcode to a patch-based backend,
// reconstructing whole-file content for writes and truncates the way a
// patch-based VCS records full states rather than deltas (spec.md §4.7).
//
// Backend is intentionally narrow — modeled on the real Pijul backend's
// high-level recording methods — so any patch store can be plugged in
// behind it; internal/vcsmem supplies a reference implementation.
package vcs

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/patchworkfs/patchworkfs/internal/opcode"
)

// ErrUnsupported is returned by ApplyOpcode for an opcode variant with no
// Backend method (directory ops, metadata ops, links). The translator counts
// these as skipped, logs them at debug level, and keeps going.
var ErrUnsupported = errors.New("vcs: unsupported operation")

// ErrNoChange is returned by ApplyOpcode for a FileWrite/FileTruncate whose
// reconstructed content is byte-identical to the current head; no Backend
// method is called, and the translator treats this as success.
var ErrNoChange = errors.New("vcs: no change")

// Backend is the narrow interface the translator drives. It mirrors the
// Pijul backend's high-level recording surface (create/write/truncate/
// delete/rename, content/existence queries, change listing) from
// original_source's pijul/backend.rs, generalized so any patch-based store
// can implement it.
type Backend interface {
	// RecordFileCreate records path's initial content as one patch.
	RecordFileCreate(path string, mode uint32, content []byte, message string) error
	// RecordFileWrite records path's full new content as one patch.
	RecordFileWrite(path string, content []byte, message string) error
	// RecordFileTruncate records path's full new (truncated) content.
	RecordFileTruncate(path string, content []byte, message string) error
	// RecordFileDelete records path's removal.
	RecordFileDelete(path string, message string) error
	// RecordFileRename records a path move.
	RecordFileRename(oldPath, newPath string, message string) error

	// GetFileContent returns path's current head content, or (nil, nil) if
	// path was never created or has since been deleted. A non-nil error
	// indicates a genuine backend failure, not absence.
	GetFileContent(path string) ([]byte, error)
	// FileExists reports whether path currently exists at head.
	FileExists(path string) (bool, error)
	// ListChanges returns an implementation-defined identifier for every
	// patch applied so far, oldest first.
	ListChanges() ([]string, error)
}

// Logger is the minimal logging surface the translator needs.
type Logger interface {
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// ApplyOpcode dispatches op to the appropriate Backend method, performing
// content reconstruction for FileWrite/FileTruncate as described in
// spec.md §4.7. It never returns ErrNoChange as a failure; callers that
// want to observe "no-op" should compare against ErrNoChange explicitly.
func ApplyOpcode(backend Backend, oc opcode.Opcode) error {
	op := oc.Op()
	message := fmt.Sprintf("Opcode #%d: %s", oc.Seq(), oc.Summary())

	switch op.Variant {
	case opcode.FileCreate:
		return backend.RecordFileCreate(op.Path, op.Mode, op.Content, message)

	case opcode.FileWrite:
		content, err := currentContent(backend, op.Path)
		if err != nil {
			return err
		}
		newContent := spliceWrite(content, op.Offset, op.Data)
		if bytes.Equal(content, newContent) {
			return ErrNoChange
		}
		return backend.RecordFileWrite(op.Path, newContent, message)

	case opcode.FileTruncate:
		content, err := currentContent(backend, op.Path)
		if err != nil {
			return err
		}
		newContent := truncateContent(content, op.Size)
		if bytes.Equal(content, newContent) {
			return ErrNoChange
		}
		return backend.RecordFileTruncate(op.Path, newContent, message)

	case opcode.FileDelete:
		return backend.RecordFileDelete(op.Path, message)

	case opcode.FileRename:
		return backend.RecordFileRename(op.Path, op.NewPath, message)

	default:
		// DirCreate, DirDelete, DirRename, SetPermissions, SetTimestamps,
		// SetOwnership, SymlinkCreate, SymlinkDelete, HardLinkCreate: the
		// reference backend (and the real Pijul tree-tracking surface this
		// mirrors) has no patch-level representation for these yet.
		return ErrUnsupported
	}
}

// currentContent reads path's head content, treating "does not exist yet"
// as an empty starting point rather than an error.
func currentContent(backend Backend, path string) ([]byte, error) {
	exists, err := backend.FileExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return backend.GetFileContent(path)
}

// spliceWrite extends content with zero bytes if offset exceeds its
// current length, then overwrites len(data) bytes starting at offset,
// growing the buffer if needed (spec.md §4.7 "Content reconstruction for
// writes").
func spliceWrite(content []byte, offset int64, data []byte) []byte {
	end := offset + int64(len(data))
	if int64(len(content)) < end {
		grown := make([]byte, end)
		copy(grown, content)
		content = grown
	}
	out := make([]byte, len(content))
	copy(out, content)
	copy(out[offset:end], data)
	return out
}

// truncateContent implements spec.md §4.7's "Content reconstruction for
// truncate": read current content, truncate to the new size (zero-padding
// if growing).
func truncateContent(content []byte, size uint64) []byte {
	if uint64(len(content)) == size {
		return content
	}
	out := make([]byte, size)
	copy(out, content)
	return out
}
