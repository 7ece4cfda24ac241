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

// Package opcode defines the immutable mutation record produced by the
// recorder (C5), queued by the opcode queue (C6), and consumed by the VCS
// translator (C7). Paths are always relative to the mount root; inodes never
// appear here because inodes are ephemeral (spec.md §3, §9).
package opcode

import "fmt"

// Variant identifies which kind of mutation an Opcode carries.
type Variant int

const (
	FileCreate Variant = iota
	FileWrite
	FileTruncate
	FileDelete
	FileRename
	DirCreate
	DirDelete
	DirRename
	SetPermissions
	SetTimestamps
	SetOwnership
	SymlinkCreate
	SymlinkDelete
	HardLinkCreate
)

func (v Variant) String() string {
	switch v {
	case FileCreate:
		return "FileCreate"
	case FileWrite:
		return "FileWrite"
	case FileTruncate:
		return "FileTruncate"
	case FileDelete:
		return "FileDelete"
	case FileRename:
		return "FileRename"
	case DirCreate:
		return "DirCreate"
	case DirDelete:
		return "DirDelete"
	case DirRename:
		return "DirRename"
	case SetPermissions:
		return "SetPermissions"
	case SetTimestamps:
		return "SetTimestamps"
	case SetOwnership:
		return "SetOwnership"
	case SymlinkCreate:
		return "SymlinkCreate"
	case SymlinkDelete:
		return "SymlinkDelete"
	case HardLinkCreate:
		return "HardLinkCreate"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Operation is the tagged payload of an Opcode. Exactly the fields relevant
// to Variant are meaningful; the rest are left at their zero value. A
// struct-of-optional-fields (rather than one Go type per variant) matches
// how the recorder constructs these inline at the observation call site
// and keeps Opcode a single concrete type the queue can move around without
// an interface or type switch at every hop.
type Operation struct {
	Variant Variant

	// Path is the primary path affected. For FileRename/DirRename/HardLinkCreate
	// it is the source ("old" / "existing") path.
	Path string

	// NewPath is the destination path for FileRename/DirRename, or the new
	// link path for HardLinkCreate.
	NewPath string

	// Mode carries permission bits for FileCreate/DirCreate/SetPermissions.
	Mode uint32

	// Content is the initial file content for FileCreate (may be empty).
	Content []byte

	// Offset is the byte offset for FileWrite.
	Offset int64

	// Data is the bytes written for FileWrite.
	Data []byte

	// Size is the new size for FileTruncate.
	Size uint64

	// Atime/Mtime are set for SetTimestamps; nil means "leave unchanged".
	Atime *int64 // nanoseconds since epoch
	Mtime *int64

	// Uid/Gid are set for SetOwnership; nil means "leave unchanged".
	Uid *uint32
	Gid *uint32

	// Target is the symlink target for SymlinkCreate.
	Target string
}

// path returns the primary path affected by op, matching Opcode.Path.
func (op Operation) path() string { return op.Path }

// affectsPath reports whether op touches the given path, checking both
// endpoints of a rename/link.
func (op Operation) affectsPath(path string) bool {
	if op.Path == path {
		return true
	}
	switch op.Variant {
	case FileRename, DirRename, HardLinkCreate:
		return op.NewPath == path
	}
	return false
}

// Opcode is an immutable record of one observed mutation. Construct with
// New; never mutate a constructed Opcode.
type Opcode struct {
	seq       uint64
	timestamp int64 // nanoseconds since epoch
	op        Operation
}

// New builds an Opcode. seq must come from a single process-wide monotonic
// counter (see internal/recorder); timestampNanos is typically clock.Now().
func New(seq uint64, timestampNanos int64, op Operation) Opcode {
	return Opcode{seq: seq, timestamp: timestampNanos, op: op}
}

func (o Opcode) Seq() uint64       { return o.seq }
func (o Opcode) Timestamp() int64  { return o.timestamp }
func (o Opcode) Op() Operation     { return o.op }
func (o Opcode) Path() string      { return o.op.path() }
func (o Opcode) AffectsPath(p string) bool { return o.op.affectsPath(p) }

// Summary renders a short human-readable description used in VCS commit
// messages ("Opcode #{seq}: {variant-summary}", spec.md §4.7).
func (o Opcode) Summary() string {
	switch o.op.Variant {
	case FileRename, DirRename:
		return fmt.Sprintf("%s %s -> %s", o.op.Variant, o.op.Path, o.op.NewPath)
	case HardLinkCreate:
		return fmt.Sprintf("%s %s -> %s", o.op.Variant, o.op.Path, o.op.NewPath)
	default:
		return fmt.Sprintf("%s %s", o.op.Variant, o.op.Path)
	}
}

func (o Opcode) String() string {
	return fmt.Sprintf("Opcode#%d[%s]@%d", o.seq, o.Summary(), o.timestamp)
}
