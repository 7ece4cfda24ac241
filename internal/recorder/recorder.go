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

// Package recorder is the concrete observer (C5): it bridges observing.Observer
// notifications to the opcode queue, resolving inodes to paths via the
// shared path map, disambiguating variants by peeking backing metadata, and
// stamping every opcode with a monotonic sequence number (spec.md §4.5).
package recorder

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/patchworkfs/patchworkfs/internal/clock"
	"github.com/patchworkfs/patchworkfs/internal/metrics"
	"github.com/patchworkfs/patchworkfs/internal/observing"
	"github.com/patchworkfs/patchworkfs/internal/opcode"
	"github.com/patchworkfs/patchworkfs/internal/opqueue"
	"github.com/patchworkfs/patchworkfs/internal/pathmap"
)

// Warner receives a short operator-facing message when a notification could
// not be translated into an opcode or was dropped. nil disables warnings.
type Warner interface {
	Warnf(format string, args ...any)
}

// Recorder implements observing.Observer, turning raw mutation
// notifications into opcode.Opcode values pushed onto an opqueue.Queue.
type Recorder struct {
	observing.NoopObserver

	paths      *pathmap.Map
	backingDir string
	clock      clock.Clock
	sender     opqueue.Sender
	warn       Warner
	metrics    *metrics.Handle

	nextSeq uint64
}

// SetMetrics attaches a metrics.Handle the recorder reports emitted/dropped
// opcode counts to. Left unset (nil), emit simply skips instrumentation.
func (r *Recorder) SetMetrics(h *metrics.Handle) {
	r.metrics = h
}

// New builds a Recorder. paths must be the same pathmap.Map instance the
// passthrough core registers inodes into, so resolution sees every inode
// the kernel has looked up.
func New(paths *pathmap.Map, backingDir string, clk clock.Clock, sender opqueue.Sender, warn Warner) *Recorder {
	return &Recorder{
		paths:      paths,
		backingDir: backingDir,
		clock:      clk,
		sender:     sender,
		warn:       warn,
		nextSeq:    0,
	}
}

var _ observing.Observer = (*Recorder)(nil)

func (r *Recorder) nextSequence() uint64 {
	return atomic.AddUint64(&r.nextSeq, 1)
}

func (r *Recorder) warnf(format string, args ...any) {
	if r.warn != nil {
		r.warn.Warnf(format, args...)
	}
}

func (r *Recorder) resolve(ino fuseops.InodeID) (string, bool) {
	return r.paths.Resolve(uint64(ino))
}

func (r *Recorder) resolveWithName(parent fuseops.InodeID, name string) (string, bool) {
	parentPath, ok := r.resolve(parent)
	if !ok {
		return "", false
	}
	return filepath.Join(parentPath, name), true
}

func (r *Recorder) real(relPath string) string {
	return filepath.Join(r.backingDir, relPath)
}

// emit stamps op with the next sequence number and the current time, then
// try-pushes it; a rejection (queue at capacity) is logged and dropped —
// the kernel call must never block on this (spec.md §4.5 point 4).
func (r *Recorder) emit(op opcode.Operation) {
	seq := r.nextSequence()
	oc := opcode.New(seq, r.clock.Now().UnixNano(), op)
	if _, ok := r.sender.TrySend(oc); !ok {
		r.warnf("recorder: queue at capacity, dropping opcode #%d (%s)", seq, oc.Summary())
		r.metrics.RecordDropped(context.Background(), op.Variant.String())
		return
	}
	r.metrics.RecordEmitted(context.Background(), op.Variant.String())
}

// lstatNoFollow peeks backing metadata without following a final symlink,
// used to disambiguate variants that depend on on-disk kind.
func (r *Recorder) lstatNoFollow(relPath string) (os.FileInfo, error) {
	return os.Lstat(r.real(relPath))
}

func (r *Recorder) OnCreate(parent fuseops.InodeID, name string, mode uint32) {
	path, ok := r.resolveWithName(parent, name)
	if !ok {
		r.warnf("recorder: OnCreate: could not resolve parent inode %d", parent)
		return
	}
	r.emit(opcode.Operation{Variant: opcode.FileCreate, Path: path, Mode: mode})
}

func (r *Recorder) OnWrite(ino fuseops.InodeID, handle fuseops.HandleID, offset int64, data []byte) {
	path, ok := r.resolve(ino)
	if !ok {
		r.warnf("recorder: OnWrite: could not resolve inode %d", ino)
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	r.emit(opcode.Operation{Variant: opcode.FileWrite, Path: path, Offset: offset, Data: buf})
}

func (r *Recorder) OnUnlink(parent fuseops.InodeID, name string) {
	path, ok := r.resolveWithName(parent, name)
	if !ok {
		r.warnf("recorder: OnUnlink: could not resolve parent inode %d", parent)
		return
	}
	variant := opcode.FileDelete
	if fi, err := r.lstatNoFollow(path); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		variant = opcode.SymlinkDelete
	}
	// If the stat itself now fails the file is already gone (a benign race
	// between notify and the inner filesystem's own delete); default to
	// FileDelete rather than dropping the opcode.
	r.emit(opcode.Operation{Variant: variant, Path: path})
}

func (r *Recorder) OnMkdir(parent fuseops.InodeID, name string, mode uint32) {
	path, ok := r.resolveWithName(parent, name)
	if !ok {
		r.warnf("recorder: OnMkdir: could not resolve parent inode %d", parent)
		return
	}
	r.emit(opcode.Operation{Variant: opcode.DirCreate, Path: path, Mode: mode})
}

func (r *Recorder) OnRmdir(parent fuseops.InodeID, name string) {
	path, ok := r.resolveWithName(parent, name)
	if !ok {
		r.warnf("recorder: OnRmdir: could not resolve parent inode %d", parent)
		return
	}
	r.emit(opcode.Operation{Variant: opcode.DirDelete, Path: path})
}

func (r *Recorder) OnRename(oldParent fuseops.InodeID, oldName string, newParent fuseops.InodeID, newName string) {
	oldPath, ok := r.resolveWithName(oldParent, oldName)
	if !ok {
		r.warnf("recorder: OnRename: could not resolve old parent inode %d", oldParent)
		return
	}
	newPath, ok := r.resolveWithName(newParent, newName)
	if !ok {
		r.warnf("recorder: OnRename: could not resolve new parent inode %d", newParent)
		return
	}
	variant := opcode.FileRename
	if fi, err := r.lstatNoFollow(oldPath); err == nil && fi.IsDir() {
		variant = opcode.DirRename
	}
	r.emit(opcode.Operation{Variant: variant, Path: oldPath, NewPath: newPath})
}

// OnSetAttr fans out into up to four opcodes, in the fixed order truncate,
// chmod, timestamps, ownership, with contiguous sequence numbers (spec.md
// §4.5). uid/gid are always nil today: internal/passthrough has no channel
// to learn of a kernel-driven chown (see DESIGN.md's Open Question); the
// SetOwnership branch stays in place so a future binding upgrade, or a
// non-kernel caller, only needs to start passing uid/gid non-nil.
func (r *Recorder) OnSetAttr(ino fuseops.InodeID, size *uint64, mode *uint32, atimeNanos, mtimeNanos *int64, uid, gid *uint32) {
	path, ok := r.resolve(ino)
	if !ok {
		r.warnf("recorder: OnSetAttr: could not resolve inode %d", ino)
		return
	}
	if size != nil {
		r.emit(opcode.Operation{Variant: opcode.FileTruncate, Path: path, Size: *size})
	}
	if mode != nil {
		r.emit(opcode.Operation{Variant: opcode.SetPermissions, Path: path, Mode: *mode})
	}
	if atimeNanos != nil || mtimeNanos != nil {
		r.emit(opcode.Operation{Variant: opcode.SetTimestamps, Path: path, Atime: atimeNanos, Mtime: mtimeNanos})
	}
	if uid != nil || gid != nil {
		r.emit(opcode.Operation{Variant: opcode.SetOwnership, Path: path, Uid: uid, Gid: gid})
	}
}

func (r *Recorder) OnSymlink(parent fuseops.InodeID, name string, target string) {
	path, ok := r.resolveWithName(parent, name)
	if !ok {
		r.warnf("recorder: OnSymlink: could not resolve parent inode %d", parent)
		return
	}
	r.emit(opcode.Operation{Variant: opcode.SymlinkCreate, Path: path, Target: target})
}

func (r *Recorder) OnLink(ino fuseops.InodeID, newParent fuseops.InodeID, newName string) {
	existingPath, ok := r.resolve(ino)
	if !ok {
		r.warnf("recorder: OnLink: could not resolve existing inode %d", ino)
		return
	}
	newPath, ok := r.resolveWithName(newParent, newName)
	if !ok {
		r.warnf("recorder: OnLink: could not resolve new parent inode %d", newParent)
		return
	}
	r.emit(opcode.Operation{Variant: opcode.HardLinkCreate, Path: existingPath, NewPath: newPath})
}
