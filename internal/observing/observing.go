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

// Package observing is the transparent decorator (C4) that fans out
// mutation notifications to registered observers before delegating to an
// inner fuseutil.FileSystem. Read-only calls are delegated untouched
// (spec.md §4.4).
package observing

import (
	"context"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// Observer receives notifications about filesystem mutations. All methods
// have empty default implementations via NoopObserver, so a concrete
// observer only overrides the hooks it cares about. Implementations must be
// non-blocking: no filesystem I/O, no acquiring the kernel's locks
// (spec.md §4.4).
type Observer interface {
	OnWrite(ino fuseops.InodeID, handle fuseops.HandleID, offset int64, data []byte)
	OnCreate(parent fuseops.InodeID, name string, mode uint32)
	OnUnlink(parent fuseops.InodeID, name string)
	OnMkdir(parent fuseops.InodeID, name string, mode uint32)
	OnRmdir(parent fuseops.InodeID, name string)
	OnRename(oldParent fuseops.InodeID, oldName string, newParent fuseops.InodeID, newName string)
	OnSetAttr(ino fuseops.InodeID, size *uint64, mode *uint32, atimeNanos, mtimeNanos *int64, uid, gid *uint32)
	OnSymlink(parent fuseops.InodeID, name string, target string)
	OnLink(ino fuseops.InodeID, newParent fuseops.InodeID, newName string)
}

// NoopObserver gives every Observer method a default empty body; embed it
// and override only the hooks a concrete observer needs.
type NoopObserver struct{}

func (NoopObserver) OnWrite(fuseops.InodeID, fuseops.HandleID, int64, []byte)                {}
func (NoopObserver) OnCreate(fuseops.InodeID, string, uint32)                                 {}
func (NoopObserver) OnUnlink(fuseops.InodeID, string)                                         {}
func (NoopObserver) OnMkdir(fuseops.InodeID, string, uint32)                                  {}
func (NoopObserver) OnRmdir(fuseops.InodeID, string)                                          {}
func (NoopObserver) OnRename(fuseops.InodeID, string, fuseops.InodeID, string)                {}
func (NoopObserver) OnSetAttr(fuseops.InodeID, *uint64, *uint32, *int64, *int64, *uint32, *uint32) {}
func (NoopObserver) OnSymlink(fuseops.InodeID, string, string)                                {}
func (NoopObserver) OnLink(fuseops.InodeID, fuseops.InodeID, string)                          {}

var _ Observer = NoopObserver{}

// Wrapper wraps inner and fans mutation notifications out to observers
// before delegating, per the notify-then-delegate ordering in spec.md §4.4.
// It embeds inner's full method set so any read-only or not-yet-overridden
// operation passes straight through.
type Wrapper struct {
	fuseutil.FileSystem
	inner     fuseutil.FileSystem
	observers []Observer
}

// New wraps inner with the given observers.
func New(inner fuseutil.FileSystem, observers ...Observer) *Wrapper {
	return &Wrapper{FileSystem: inner, inner: inner, observers: observers}
}

func (w *Wrapper) notify(f func(Observer)) {
	for _, o := range w.observers {
		f(o)
	}
}

func (w *Wrapper) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	w.notify(func(o Observer) { o.OnCreate(op.Parent, op.Name, uint32(op.Mode)) })
	return w.inner.CreateFile(ctx, op)
}

func (w *Wrapper) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	w.notify(func(o Observer) { o.OnWrite(op.Inode, op.Handle, op.Offset, op.Data) })
	return w.inner.WriteFile(ctx, op)
}

func (w *Wrapper) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	w.notify(func(o Observer) { o.OnUnlink(op.Parent, op.Name) })
	return w.inner.Unlink(ctx, op)
}

func (w *Wrapper) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	w.notify(func(o Observer) { o.OnMkdir(op.Parent, op.Name, uint32(op.Mode)) })
	return w.inner.MkDir(ctx, op)
}

func (w *Wrapper) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	w.notify(func(o Observer) { o.OnRmdir(op.Parent, op.Name) })
	return w.inner.RmDir(ctx, op)
}

func (w *Wrapper) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	w.notify(func(o Observer) { o.OnRename(op.OldParent, op.OldName, op.NewParent, op.NewName) })
	return w.inner.Rename(ctx, op)
}

func (w *Wrapper) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	var atimeNanos, mtimeNanos *int64
	if op.Atime != nil {
		n := op.Atime.UnixNano()
		atimeNanos = &n
	}
	if op.Mtime != nil {
		n := op.Mtime.UnixNano()
		mtimeNanos = &n
	}
	var mode *uint32
	if op.Mode != nil {
		m := uint32(*op.Mode)
		mode = &m
	}
	// uid/gid are always nil: fuseops.SetInodeAttributesOp carries only
	// Size/Mode/Atime/Mtime with this jacobsa/fuse version, so a kernel-driven
	// chown can never reach this wrapper (see DESIGN.md's Open Question on
	// the ownership axis).
	w.notify(func(o Observer) {
		o.OnSetAttr(op.Inode, op.Size, mode, atimeNanos, mtimeNanos, nil, nil)
	})
	return w.inner.SetInodeAttributes(ctx, op)
}

func (w *Wrapper) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	w.notify(func(o Observer) { o.OnSymlink(op.Parent, op.Name, op.Target) })
	return w.inner.CreateSymlink(ctx, op)
}

func (w *Wrapper) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) error {
	w.notify(func(o Observer) { o.OnLink(op.Target, op.Parent, op.Name) })
	return w.inner.CreateLink(ctx, op)
}
