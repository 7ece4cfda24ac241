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

// Package passthrough is the kernel-facing filesystem contract (C3): every
// operation resolves an inode (plus an optional child name) to a real path
// under the backing directory and performs the corresponding OS call
// (spec.md §4.3). It knows nothing about opcodes or the VCS backend; the
// observing wrapper (internal/observing) is layered on top of it to capture
// mutations.
package passthrough

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
	"golang.org/x/sys/unix"

	"github.com/patchworkfs/patchworkfs/internal/clock"
	"github.com/patchworkfs/patchworkfs/internal/handletable"
	"github.com/patchworkfs/patchworkfs/internal/pathmap"
)

// omitTime is the utimensat sentinel meaning "leave this timestamp alone".
const omitTime = unix.UTIME_OMIT

// dirHandle is the state kept for one open directory, mirroring the
// teacher's fs/dir_handle.go: a lock around a cached listing (in the order
// the backing directory returns it) so concurrent partial reads against the
// same handle serialize cleanly.
type dirHandle struct {
	Mu      syncutil.InvariantMutex
	path    string
	entries []fuseutil.Dirent // GUARDED_BY(Mu)
	loaded  bool               // GUARDED_BY(Mu)
}

// FS implements fuseutil.FileSystem by mirroring backingDir. It is the
// innermost layer; internal/observing wraps it to capture mutations.
//
// LOCK ORDERING: the filesystem-wide lock (FS) and a directory handle lock
// (DH) are never held together. ReadDir takes FS only to look up the handle,
// releases it, then holds DH while loading (backing-store readdir and lstat
// calls) and serving that handle's listing.
type FS struct {
	fuseutil.NotImplementedFileSystem

	backingDir string
	readOnly   bool
	clock      clock.Clock
	uid, gid   uint32

	paths *pathmap.Map
	files *handletable.Table

	// mu guards dirHandles and nextDirHandle only; it is never held across
	// a backing-store syscall.
	mu            syncutil.InvariantMutex
	dirHandles    map[fuseops.HandleID]*dirHandle // GUARDED_BY(mu)
	nextDirHandle fuseops.HandleID                // GUARDED_BY(mu)
}

var _ fuseutil.FileSystem = &FS{}

// Config is the construction-time configuration for FS.
type Config struct {
	BackingDir string
	ReadOnly   bool
	Clock      clock.Clock
	Uid, Gid   uint32
}

// New builds a passthrough filesystem rooted at cfg.BackingDir.
func New(cfg Config) *FS {
	fs := &FS{
		backingDir:    cfg.BackingDir,
		readOnly:      cfg.ReadOnly,
		clock:         cfg.Clock,
		uid:           cfg.Uid,
		gid:           cfg.Gid,
		paths:         pathmap.New(),
		files:         handletable.New(),
		dirHandles:    make(map[fuseops.HandleID]*dirHandle),
		nextDirHandle: 1,
	}
	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)
	return fs
}

// Paths returns the inode/path map this filesystem registers inodes into,
// so an external observer (internal/recorder) can resolve the same inode
// numbers the kernel hands it.
func (fs *FS) Paths() *pathmap.Map {
	return fs.paths
}

func (fs *FS) checkInvariants() {
	for id := range fs.dirHandles {
		if id >= fs.nextDirHandle {
			panic(fmt.Sprintf("illegal dir handle ID: %v", id))
		}
	}
}

////////////////////////////////////////////////////////////////////////
// Path helpers
////////////////////////////////////////////////////////////////////////

// realPath resolves ino to an absolute path under backingDir.
func (fs *FS) realPath(ino fuseops.InodeID) (string, error) {
	if ino == fuseops.RootInodeID {
		return fs.backingDir, nil
	}
	rel, ok := fs.paths.Resolve(uint64(ino))
	if !ok {
		return "", syscall.ENOENT
	}
	return filepath.Join(fs.backingDir, rel), nil
}

// relPath is realPath's inverse: the mount-relative path for ino.
func (fs *FS) relPath(ino fuseops.InodeID) (string, error) {
	if ino == fuseops.RootInodeID {
		return "", nil
	}
	rel, ok := fs.paths.Resolve(uint64(ino))
	if !ok {
		return "", syscall.ENOENT
	}
	return rel, nil
}

// realChildPath joins a parent inode's path with a child name.
func (fs *FS) realChildPath(parent fuseops.InodeID, name string) (string, string, error) {
	parentReal, err := fs.realPath(parent)
	if err != nil {
		return "", "", err
	}
	parentRel, err := fs.relPath(parent)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(parentReal, name), filepath.Join(parentRel, name), nil
}

// registerInode stats realAbsPath (without following a final symlink) and
// records its real inode number against relPath in the path map, returning
// the attributes the kernel expects.
func (fs *FS) registerInode(relPath, realAbsPath string) (fuseops.InodeID, fuseops.InodeAttributes, error) {
	fi, err := os.Lstat(realAbsPath)
	if err != nil {
		return 0, fuseops.InodeAttributes{}, err
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fuseops.InodeAttributes{}, fmt.Errorf("registerInode: unsupported Stat_t on this platform")
	}
	ino := fuseops.InodeID(st.Ino)
	fs.paths.Register(uint64(ino), relPath)
	return ino, attributesFromStat(fi, st), nil
}

func attributesFromStat(fi os.FileInfo, st *syscall.Stat_t) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(fi.Size()),
		Nlink: uint32(st.Nlink),
		Mode:  fi.Mode(),
		Atime: time.Unix(st.Atim.Sec, st.Atim.Nsec),
		Mtime: fi.ModTime(),
		Ctime: time.Unix(st.Ctim.Sec, st.Ctim.Nsec),
		Uid:   st.Uid,
		Gid:   st.Gid,
	}
}

////////////////////////////////////////////////////////////////////////
// Error mapping
////////////////////////////////////////////////////////////////////////

// errno maps any error reaching the kernel boundary to a syscall.Errno,
// preserving the backing OS's own code where one is present and falling
// back to EIO otherwise (spec.md §4.3 "Error mapping").
func errno(err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if pe, ok := err.(*os.PathError); ok {
		if e, ok := pe.Err.(syscall.Errno); ok {
			errno = e
		}
	} else if e, ok := err.(syscall.Errno); ok {
		errno = e
	} else if le, ok := err.(*os.LinkError); ok {
		if e, ok := le.Err.(syscall.Errno); ok {
			errno = e
		}
	}
	if errno == 0 {
		return syscall.EIO
	}
	// rmdir's ENOTEMPTY is already the kernel's not-empty code on Linux; no
	// translation needed beyond passing it through unchanged.
	return errno
}

func (fs *FS) checkWritable() error {
	if fs.readOnly {
		return syscall.EROFS
	}
	return nil
}

////////////////////////////////////////////////////////////////////////
// Read-only operations
////////////////////////////////////////////////////////////////////////

func (fs *FS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	childReal, childRel, err := fs.realChildPath(op.Parent, op.Name)
	if err != nil {
		return errno(err)
	}
	ino, attrs, err := fs.registerInode(childRel, childReal)
	if err != nil {
		return errno(err)
	}
	op.Entry.Child = ino
	op.Entry.Attributes = attrs
	return nil
}

func (fs *FS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	real, err := fs.realPath(op.Inode)
	if err != nil {
		return errno(err)
	}
	fi, err := os.Lstat(real)
	if err != nil {
		return errno(err)
	}
	st := fi.Sys().(*syscall.Stat_t)
	attrs := attributesFromStat(fi, st)
	if op.Inode == fuseops.RootInodeID {
		// The kernel must keep identifying the mount point by the reserved
		// root ID, never the backing directory's own real inode number.
		op.Attributes = attrs
		return nil
	}
	op.Attributes = attrs
	return nil
}

func (fs *FS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	real, err := fs.realPath(op.Inode)
	if err != nil {
		return errno(err)
	}
	rel, err := fs.relPath(op.Inode)
	if err != nil {
		return errno(err)
	}
	if _, err := os.Stat(real); err != nil {
		return errno(err)
	}

	dh := &dirHandle{path: rel}
	dh.Mu = syncutil.NewInvariantMutex(func() {})

	fs.mu.Lock()
	id := fs.nextDirHandle
	fs.nextDirHandle++
	fs.dirHandles[id] = dh
	fs.mu.Unlock()

	op.Handle = id
	return nil
}

func (fs *FS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	dh, ok := fs.dirHandles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		return syscall.EINVAL
	}

	dh.Mu.Lock()
	defer dh.Mu.Unlock()

	if !dh.loaded {
		entries, err := fs.listDirEntries(dh.path)
		if err != nil {
			return errno(err)
		}
		dh.entries = entries
		dh.loaded = true
	}

	if int(op.Offset) > len(dh.entries) {
		return nil
	}

	for _, e := range dh.entries[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

// listDirEntries emits "." and ".." first (parent of root is root, per
// spec.md §4.3), then every real directory entry, registering each one's
// real inode in the path map as it goes.
func (fs *FS) listDirEntries(relDirPath string) ([]fuseutil.Dirent, error) {
	absDir := filepath.Join(fs.backingDir, relDirPath)
	dirIno, err := fs.inoOf(relDirPath, absDir)
	if err != nil {
		return nil, err
	}

	parentRel := filepath.Dir(relDirPath)
	if parentRel == "." {
		parentRel = ""
	}
	parentAbs := filepath.Join(fs.backingDir, parentRel)
	parentIno := fuseops.RootInodeID
	if relDirPath != "" {
		parentIno, err = fs.inoOf(parentRel, parentAbs)
		if err != nil {
			return nil, err
		}
	}

	entries := []fuseutil.Dirent{
		{Offset: 1, Inode: dirIno, Name: ".", Type: fuseutil.DT_Directory},
		{Offset: 2, Inode: parentIno, Name: "..", Type: fuseutil.DT_Directory},
	}

	f, err := os.Open(absDir)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	children, err := f.Readdirnames(-1)
	if err != nil {
		return nil, err
	}

	offset := fuseops.DirOffset(3)
	for _, name := range children {
		childRel := filepath.Join(relDirPath, name)
		childAbs := filepath.Join(fs.backingDir, childRel)
		ino, attrs, err := fs.registerInode(childRel, childAbs)
		if err != nil {
			// The entry may have raced out from under us; skip it.
			continue
		}
		entries = append(entries, fuseutil.Dirent{
			Offset: offset,
			Inode:  ino,
			Name:   name,
			Type:   directTypeFromMode(attrs.Mode),
		})
		offset++
	}
	return entries, nil
}

func (fs *FS) inoOf(relPath, absPath string) (fuseops.InodeID, error) {
	if relPath == "" {
		return fuseops.RootInodeID, nil
	}
	ino, attrs, err := fs.registerInode(relPath, absPath)
	_ = attrs
	return ino, err
}

func directTypeFromMode(mode os.FileMode) fuseutil.DirentType {
	switch {
	case mode.IsDir():
		return fuseutil.DT_Directory
	case mode&os.ModeSymlink != 0:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

func (fs *FS) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	delete(fs.dirHandles, op.Handle)
	fs.mu.Unlock()
	return nil
}

func (fs *FS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	real, err := fs.realPath(op.Inode)
	if err != nil {
		return errno(err)
	}
	rel, err := fs.relPath(op.Inode)
	if err != nil {
		return errno(err)
	}

	flags := os.O_RDWR
	if fs.readOnly {
		flags = os.O_RDONLY
	}
	f, err := os.OpenFile(real, flags, 0)
	if err != nil {
		return errno(err)
	}
	op.Handle = fuseops.HandleID(fs.files.Insert(f, rel, uint32(flags)))
	return nil
}

func (fs *FS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	h, ok := fs.files.Get(uint64(op.Handle))
	if !ok {
		return syscall.EINVAL
	}
	n, err := h.File.ReadAt(op.Dst, op.Offset)
	op.BytesRead = n
	if err != nil && err != io.EOF {
		return errno(err)
	}
	return nil
}

func (fs *FS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	var st unix.Statfs_t
	if err := unix.Statfs(fs.backingDir, &st); err != nil {
		return errno(err)
	}
	op.BlockSize = uint32(st.Bsize)
	op.Blocks = st.Blocks
	op.BlocksFree = st.Bfree
	op.BlocksAvailable = st.Bavail
	op.Inodes = st.Files
	op.InodesFree = st.Ffree
	return nil
}

func (fs *FS) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	h, ok := fs.files.Get(uint64(op.Handle))
	if !ok {
		// The kernel sometimes flushes an already-closed handle; that is
		// success, not an error (spec.md §4.3).
		return nil
	}
	if err := h.File.Sync(); err != nil {
		if errno(err) == syscall.EBADF {
			return nil
		}
		return errno(err)
	}
	return nil
}

func (fs *FS) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	real, err := fs.realPath(op.Inode)
	if err != nil {
		return errno(err)
	}
	f, err := os.Open(real)
	if err != nil {
		return errno(err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return errno(err)
	}
	return nil
}

func (fs *FS) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	if err := fs.files.Remove(uint64(op.Handle)); err != nil {
		return errno(err)
	}
	return nil
}

func (fs *FS) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	real, err := fs.realPath(op.Inode)
	if err != nil {
		return errno(err)
	}
	target, err := os.Readlink(real)
	if err != nil {
		return errno(err)
	}
	op.Target = target
	return nil
}

////////////////////////////////////////////////////////////////////////
// Mutating operations
////////////////////////////////////////////////////////////////////////

func (fs *FS) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	real, rel, err := fs.realChildPath(op.Parent, op.Name)
	if err != nil {
		return errno(err)
	}
	if err := os.Mkdir(real, op.Mode); err != nil {
		return errno(err)
	}
	ino, attrs, err := fs.registerInode(rel, real)
	if err != nil {
		return errno(err)
	}
	op.Entry.Child = ino
	op.Entry.Attributes = attrs
	return nil
}

func (fs *FS) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	real, rel, err := fs.realChildPath(op.Parent, op.Name)
	if err != nil {
		return errno(err)
	}
	f, err := os.OpenFile(real, os.O_CREATE|os.O_EXCL|os.O_RDWR, op.Mode)
	if err != nil {
		return errno(err)
	}
	ino, attrs, err := fs.registerInode(rel, real)
	if err != nil {
		f.Close()
		return errno(err)
	}
	op.Entry.Child = ino
	op.Entry.Attributes = attrs
	op.Handle = fuseops.HandleID(fs.files.Insert(f, rel, uint32(os.O_RDWR)))
	return nil
}

func (fs *FS) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	real, rel, err := fs.realChildPath(op.Parent, op.Name)
	if err != nil {
		return errno(err)
	}
	if err := os.Symlink(op.Target, real); err != nil {
		return errno(err)
	}
	ino, attrs, err := fs.registerInode(rel, real)
	if err != nil {
		return errno(err)
	}
	op.Entry.Child = ino
	op.Entry.Attributes = attrs
	return nil
}

func (fs *FS) CreateLink(ctx context.Context, op *fuseops.CreateLinkOp) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	targetReal, err := fs.realPath(op.Target)
	if err != nil {
		return errno(err)
	}
	newReal, newRel, err := fs.realChildPath(op.Parent, op.Name)
	if err != nil {
		return errno(err)
	}
	if err := os.Link(targetReal, newReal); err != nil {
		return errno(err)
	}
	ino, attrs, err := fs.registerInode(newRel, newReal)
	if err != nil {
		return errno(err)
	}
	op.Entry.Child = ino
	op.Entry.Attributes = attrs
	return nil
}

func (fs *FS) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	real, rel, err := fs.realChildPath(op.Parent, op.Name)
	if err != nil {
		return errno(err)
	}
	if err := os.Remove(real); err != nil {
		return errno(err)
	}
	fs.paths.RemovePath(rel)
	return nil
}

func (fs *FS) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	real, rel, err := fs.realChildPath(op.Parent, op.Name)
	if err != nil {
		return errno(err)
	}
	if err := os.Remove(real); err != nil {
		return errno(err)
	}
	fs.paths.RemovePath(rel)
	return nil
}

func (fs *FS) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	oldReal, oldRel, err := fs.realChildPath(op.OldParent, op.OldName)
	if err != nil {
		return errno(err)
	}
	newReal, newRel, err := fs.realChildPath(op.NewParent, op.NewName)
	if err != nil {
		return errno(err)
	}
	if err := os.Rename(oldReal, newReal); err != nil {
		return errno(err)
	}
	fs.paths.Rename(oldRel, newRel)
	return nil
}

func (fs *FS) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	h, ok := fs.files.Get(uint64(op.Handle))
	if !ok {
		return syscall.EINVAL
	}
	if _, err := h.File.WriteAt(op.Data, op.Offset); err != nil {
		return errno(err)
	}
	return nil
}

// SetInodeAttributes implements the combined chmod/truncate/utimens
// operation described in spec.md §4.3. It does not implement the chown
// half of that contract: fuseops.SetInodeAttributesOp has no Uid/Gid
// fields in this jacobsa/fuse version, so there is no channel for the
// kernel to deliver an ownership change through (see DESIGN.md's Open
// Question on the ownership axis).
func (fs *FS) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	if err := fs.checkWritable(); err != nil {
		return err
	}
	real, err := fs.realPath(op.Inode)
	if err != nil {
		return errno(err)
	}

	if op.Size != nil {
		if err := fs.truncate(op.Inode, real, *op.Size); err != nil {
			return errno(err)
		}
	}
	if op.Mode != nil {
		if err := os.Chmod(real, *op.Mode); err != nil {
			return errno(err)
		}
	}
	if op.Atime != nil || op.Mtime != nil {
		if err := fs.utimens(real, op.Atime, op.Mtime); err != nil {
			return errno(err)
		}
	}

	fi, err := os.Lstat(real)
	if err != nil {
		return errno(err)
	}
	op.Attributes = attributesFromStat(fi, fi.Sys().(*syscall.Stat_t))
	return nil
}

// truncate prefers a descriptor-relative truncate through an already-open
// writable handle; otherwise it opens the path for write and truncates it.
func (fs *FS) truncate(ino fuseops.InodeID, real string, size uint64) error {
	rel, err := fs.relPath(ino)
	if err == nil {
		if h, ok := fs.files.FindWritable(rel); ok {
			return h.File.Truncate(int64(size))
		}
	}
	f, err := os.OpenFile(real, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(int64(size))
}

func (fs *FS) utimens(real string, atime, mtime *time.Time) error {
	ts := [2]unix.Timespec{
		{Sec: 0, Nsec: omitTime},
		{Sec: 0, Nsec: omitTime},
	}
	if atime != nil {
		ts[0] = unix.NsecToTimespec(atime.UnixNano())
	}
	if mtime != nil {
		ts[1] = unix.NsecToTimespec(mtime.UnixNano())
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, real, ts[:], unix.AT_SYMLINK_NOFOLLOW)
}

func (fs *FS) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	fs.paths.Forget(uint64(op.Inode))
	return nil
}
