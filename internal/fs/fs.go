// Copyright 2026 Google LLC
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

// Package fs serves the dump directory through FUSE. Every operation is
// passed through to the backing file system, except that opening a
// generated placeholder first fills it with fresh query output.
package fs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/dmvfs/dmvfs/internal/dumppath"
	"github.com/dmvfs/dmvfs/internal/logger"
	"github.com/dmvfs/dmvfs/internal/metrics"
	"github.com/dmvfs/dmvfs/internal/provenance"
	"github.com/dmvfs/dmvfs/internal/shutdown"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// Populator fills a generated placeholder before it is opened.
type Populator interface {
	Populate(ctx context.Context, mountPath string) error
}

type ServerConfig struct {
	// A clock used for attribute expiration.
	CacheClock timeutil.Clock

	// Translates mount paths into dump directory paths.
	Mapper dumppath.Mapper

	// Tells generated placeholders from user files.
	Tagger *provenance.Tagger

	// Fills generated placeholders on open.
	Populator Populator

	// How long to allow the kernel to cache inode attributes and entries.
	// Placeholders grow when populated, so keep this short.
	AttrCacheTTL time.Duration

	// The UID and GID that owns all inodes in the file system.
	Uid uint32
	Gid uint32

	MetricHandle metrics.MetricHandle
}

// NewFileSystem returns the pass-through file system described by cfg.
func NewFileSystem(ctx context.Context, cfg *ServerConfig) (fuseutil.FileSystem, error) {
	fi, err := os.Stat(cfg.Mapper.Root())
	if err != nil {
		return nil, fmt.Errorf("stat dump dir: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("dump dir %s is not a directory", cfg.Mapper.Root())
	}

	clock := cfg.CacheClock
	if clock == nil {
		clock = timeutil.RealClock()
	}

	fs := &fileSystem{
		cacheClock:   clock,
		mapper:       cfg.Mapper,
		tagger:       cfg.Tagger,
		populator:    cfg.Populator,
		attrCacheTTL: cfg.AttrCacheTTL,
		uid:          cfg.Uid,
		gid:          cfg.Gid,
		inodes:       make(map[fuseops.InodeID]*inodeRecord),
		pathInodes:   make(map[string]fuseops.InodeID),
		nextInodeID:  fuseops.RootInodeID + 1,
		handles:      make(map[fuseops.HandleID]interface{}),
	}

	root := &inodeRecord{id: fuseops.RootInodeID, path: "/", lookupCount: 1}
	fs.inodes[root.id] = root
	fs.pathInodes[root.path] = root.id

	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)
	return fs, nil
}

////////////////////////////////////////////////////////////////////////
// fileSystem type
////////////////////////////////////////////////////////////////////////

// LOCK ORDERING
//
// fs.mu guards the inode and handle tables only and is never held across a
// call into the backing file system or the populator. Handle locks may be
// held across such calls and are acquired without holding fs.mu.

type inodeRecord struct {
	id fuseops.InodeID

	// Mount-relative path, "/" for the root. Updated by Rename.
	path string

	// The number of kernel references to the inode.
	lookupCount uint64
}

type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	/////////////////////////
	// Dependencies
	/////////////////////////

	cacheClock timeutil.Clock
	mapper     dumppath.Mapper
	tagger     *provenance.Tagger
	populator  Populator

	/////////////////////////
	// Constant data
	/////////////////////////

	attrCacheTTL time.Duration

	// The user and group owning everything in the file system.
	uid uint32
	gid uint32

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu syncutil.InvariantMutex

	// INVARIANT: For all keys k, fuseops.RootInodeID <= k < nextInodeID
	// INVARIANT: For all keys k, inodes[k].id == k
	// INVARIANT: inodes[fuseops.RootInodeID].path == "/"
	//
	// GUARDED_BY(mu)
	inodes map[fuseops.InodeID]*inodeRecord

	// The live inode of each path. Unlinked inodes stay in inodes until
	// forgotten but are dropped from here.
	//
	// INVARIANT: For each k/v, inodes[v].path == k
	//
	// GUARDED_BY(mu)
	pathInodes map[string]fuseops.InodeID

	// GUARDED_BY(mu)
	nextInodeID fuseops.InodeID

	// INVARIANT: All values are of type *dirHandle or *fileHandle
	//
	// GUARDED_BY(mu)
	handles map[fuseops.HandleID]interface{}

	// INVARIANT: For all keys k in handles, k < nextHandleID
	//
	// GUARDED_BY(mu)
	nextHandleID fuseops.HandleID
}

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

func (fs *fileSystem) checkInvariants() {
	for id, in := range fs.inodes {
		if id < fuseops.RootInodeID || id >= fs.nextInodeID {
			panic(fmt.Sprintf("Illegal inode ID: %v", id))
		}
		if in.id != id {
			panic(fmt.Sprintf("ID mismatch: %v vs. %v", in.id, id))
		}
	}

	if root, ok := fs.inodes[fuseops.RootInodeID]; !ok || root.path != "/" {
		panic("Missing or misplaced root inode")
	}

	for p, id := range fs.pathInodes {
		in, ok := fs.inodes[id]
		if !ok || in.path != p {
			panic(fmt.Sprintf("Path %q maps to stale inode %v", p, id))
		}
	}

	for id, h := range fs.handles {
		if id >= fs.nextHandleID {
			panic(fmt.Sprintf("Illegal handle ID: %v", id))
		}
		switch h.(type) {
		case *dirHandle, *fileHandle:
		default:
			panic(fmt.Sprintf("Unexpected handle type: %T", h))
		}
	}
}

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// LOCKS_REQUIRED(fs.mu)
func (fs *fileSystem) inodeOrDie(id fuseops.InodeID) *inodeRecord {
	in, ok := fs.inodes[id]
	if !ok {
		panic(fmt.Sprintf("inode %v doesn't exist", id))
	}
	return in
}

// pathOf returns the mount path of id.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) pathOf(id fuseops.InodeID) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.inodeOrDie(id).path
}

// lookUpOrMint returns the inode of p, creating it if needed, and takes a
// kernel reference on it.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) lookUpOrMint(p string) fuseops.InodeID {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if id, ok := fs.pathInodes[p]; ok {
		fs.inodes[id].lookupCount++
		return id
	}

	in := &inodeRecord{id: fs.nextInodeID, path: p, lookupCount: 1}
	fs.nextInodeID++
	fs.inodes[in.id] = in
	fs.pathInodes[p] = in.id
	return in.id
}

// forgetPath detaches p and its descendants from their inodes after the
// backing entry went away.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) forgetPath(p string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prefix := p + "/"
	for q := range fs.pathInodes {
		if q == p || strings.HasPrefix(q, prefix) {
			delete(fs.pathInodes, q)
		}
	}
}

// movePath rewrites the paths of oldPath and its descendants after a rename.
// Whatever lived at newPath before is detached.
//
// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) movePath(oldPath, newPath string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	newPrefix := newPath + "/"
	for q := range fs.pathInodes {
		if q == newPath || strings.HasPrefix(q, newPrefix) {
			delete(fs.pathInodes, q)
		}
	}

	oldPrefix := oldPath + "/"
	moved := make(map[string]fuseops.InodeID)
	for q, id := range fs.pathInodes {
		switch {
		case q == oldPath:
			moved[newPath] = id
		case strings.HasPrefix(q, oldPrefix):
			moved[newPrefix+strings.TrimPrefix(q, oldPrefix)] = id
		default:
			continue
		}
		delete(fs.pathInodes, q)
	}
	for q, id := range moved {
		fs.inodes[id].path = q
		fs.pathInodes[q] = id
	}
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) newHandle(h interface{}) fuseops.HandleID {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.nextHandleID
	fs.nextHandleID++
	fs.handles[id] = h
	return id
}

func (fs *fileSystem) attributes(fi os.FileInfo) fuseops.InodeAttributes {
	attrs := fuseops.InodeAttributes{
		Size:   uint64(fi.Size()),
		Nlink:  1,
		Mode:   fi.Mode(),
		Atime:  fi.ModTime(),
		Mtime:  fi.ModTime(),
		Ctime:  fi.ModTime(),
		Crtime: fi.ModTime(),
		Uid:    fs.uid,
		Gid:    fs.gid,
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		attrs.Nlink = uint32(st.Nlink)
	}
	return attrs
}

// stat returns the attributes of the backing file of mount path p.
func (fs *fileSystem) stat(p string) (fuseops.InodeAttributes, time.Time, error) {
	fi, err := os.Lstat(fs.mapper.ToBackingPath(p))
	if err != nil {
		return fuseops.InodeAttributes{}, time.Time{}, err
	}
	return fs.attributes(fi), fs.cacheClock.Now().Add(fs.attrCacheTTL), nil
}

// fillEntry takes a reference on the inode of p and describes it in e.
func (fs *fileSystem) fillEntry(p string, e *fuseops.ChildInodeEntry) error {
	attrs, expiration, err := fs.stat(p)
	if err != nil {
		return err
	}

	e.Child = fs.lookUpOrMint(p)
	e.Attributes = attrs
	e.AttributesExpiration = expiration
	e.EntryExpiration = expiration
	return nil
}

////////////////////////////////////////////////////////////////////////
// FileSystem methods
////////////////////////////////////////////////////////////////////////

func (fs *fileSystem) Destroy() {
	fs.mu.Lock()
	handles := fs.handles
	fs.handles = make(map[fuseops.HandleID]interface{})
	fs.mu.Unlock()

	for _, h := range handles {
		if fh, ok := h.(*fileHandle); ok {
			fh.Close()
		}
	}
}

func (fs *fileSystem) StatFS(
	ctx context.Context,
	op *fuseops.StatFSOp) error {
	var st syscall.Statfs_t
	if err := syscall.Statfs(fs.mapper.Root(), &st); err != nil {
		return shutdown.ReportError("StatFS", "statfs "+fs.mapper.Root(), err)
	}

	op.BlockSize = uint32(st.Bsize)
	op.Blocks = st.Blocks
	op.BlocksFree = st.Bfree
	op.BlocksAvailable = st.Bavail
	op.Inodes = st.Files
	op.InodesFree = st.Ffree
	op.IoSize = 1 << 20
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) LookUpInode(
	ctx context.Context,
	op *fuseops.LookUpInodeOp) error {
	p := childPath(fs.pathOf(op.Parent), op.Name)
	return fs.fillEntry(p, &op.Entry)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) GetInodeAttributes(
	ctx context.Context,
	op *fuseops.GetInodeAttributesOp) (err error) {
	op.Attributes, op.AttributesExpiration, err = fs.stat(fs.pathOf(op.Inode))
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) SetInodeAttributes(
	ctx context.Context,
	op *fuseops.SetInodeAttributesOp) (err error) {
	p := fs.pathOf(op.Inode)
	backing := fs.mapper.ToBackingPath(p)

	if op.Size != nil {
		if err = os.Truncate(backing, int64(*op.Size)); err != nil {
			return
		}
	}

	if op.Mode != nil {
		if err = os.Chmod(backing, op.Mode.Perm()); err != nil {
			return
		}
	}

	if op.Atime != nil || op.Mtime != nil {
		var fi os.FileInfo
		if fi, err = os.Lstat(backing); err != nil {
			return
		}
		atime, mtime := fi.ModTime(), fi.ModTime()
		if op.Atime != nil {
			atime = *op.Atime
		}
		if op.Mtime != nil {
			mtime = *op.Mtime
		}
		if err = os.Chtimes(backing, atime, mtime); err != nil {
			return
		}
	}

	op.Attributes, op.AttributesExpiration, err = fs.stat(p)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ForgetInode(
	ctx context.Context,
	op *fuseops.ForgetInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	in := fs.inodeOrDie(op.Inode)
	if op.N > in.lookupCount {
		panic(fmt.Sprintf("Forgetting %d references to inode %v, which has %d", op.N, op.Inode, in.lookupCount))
	}
	in.lookupCount -= op.N

	if in.lookupCount == 0 && in.id != fuseops.RootInodeID {
		delete(fs.inodes, in.id)
		if fs.pathInodes[in.path] == in.id {
			delete(fs.pathInodes, in.path)
		}
	}
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) MkDir(
	ctx context.Context,
	op *fuseops.MkDirOp) error {
	p := childPath(fs.pathOf(op.Parent), op.Name)
	if err := os.Mkdir(fs.mapper.ToBackingPath(p), op.Mode.Perm()); err != nil {
		return err
	}
	return fs.fillEntry(p, &op.Entry)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) CreateFile(
	ctx context.Context,
	op *fuseops.CreateFileOp) error {
	p := childPath(fs.pathOf(op.Parent), op.Name)
	f, err := os.OpenFile(fs.mapper.ToBackingPath(p), os.O_RDWR|os.O_CREATE|os.O_EXCL, op.Mode.Perm())
	if err != nil {
		return err
	}

	if err := fs.fillEntry(p, &op.Entry); err != nil {
		f.Close()
		return err
	}

	op.Handle = fs.newHandle(newFileHandle(p, f))
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) Unlink(
	ctx context.Context,
	op *fuseops.UnlinkOp) error {
	p := childPath(fs.pathOf(op.Parent), op.Name)
	if err := syscall.Unlink(fs.mapper.ToBackingPath(p)); err != nil {
		return err
	}
	fs.forgetPath(p)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) RmDir(
	ctx context.Context,
	op *fuseops.RmDirOp) error {
	p := childPath(fs.pathOf(op.Parent), op.Name)
	if err := syscall.Rmdir(fs.mapper.ToBackingPath(p)); err != nil {
		return err
	}
	fs.forgetPath(p)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) Rename(
	ctx context.Context,
	op *fuseops.RenameOp) error {
	oldPath := childPath(fs.pathOf(op.OldParent), op.OldName)
	newPath := childPath(fs.pathOf(op.NewParent), op.NewName)

	if err := os.Rename(fs.mapper.ToBackingPath(oldPath), fs.mapper.ToBackingPath(newPath)); err != nil {
		return err
	}
	fs.movePath(oldPath, newPath)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenDir(
	ctx context.Context,
	op *fuseops.OpenDirOp) error {
	p := fs.pathOf(op.Inode)
	fi, err := os.Stat(fs.mapper.ToBackingPath(p))
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return syscall.ENOTDIR
	}

	op.Handle = fs.newHandle(newDirHandle(fs.mapper.ToBackingPath(p)))
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadDir(
	ctx context.Context,
	op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	dh := fs.handles[op.Handle].(*dirHandle)
	fs.mu.Unlock()

	return dh.ReadDir(op)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseDirHandle(
	ctx context.Context,
	op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Sanity check that this handle exists and is of the correct type.
	_ = fs.handles[op.Handle].(*dirHandle)

	delete(fs.handles, op.Handle)
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) OpenFile(
	ctx context.Context,
	op *fuseops.OpenFileOp) error {
	p := fs.pathOf(op.Inode)
	generated := fs.tagger.IsGenerated(p)

	if generated {
		if err := fs.populator.Populate(ctx, p); err != nil {
			return shutdown.ReportError("OpenFile", "populating "+p, err)
		}
	}

	f, err := openBacking(fs.mapper.ToBackingPath(p))
	if err != nil {
		return err
	}

	op.Handle = fs.newHandle(newFileHandle(p, f))

	// Generated files change size behind the kernel's back on every open, so
	// cached pages and sizes can't be trusted for them.
	op.KeepPageCache = !generated
	op.UseDirectIO = generated

	logger.Tracef("OpenFile: %s generated=%v", p, generated)
	return nil
}

// openBacking opens a backing file for reading and writing when permitted,
// for reading only otherwise.
func openBacking(backing string) (*os.File, error) {
	f, err := os.OpenFile(backing, os.O_RDWR, 0)
	if err == nil {
		return f, nil
	}
	if !os.IsPermission(err) && !isErrno(err, syscall.EROFS) {
		return nil, err
	}
	return os.Open(backing)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) fileHandle(id fuseops.HandleID) *fileHandle {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.handles[id].(*fileHandle)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReadFile(
	ctx context.Context,
	op *fuseops.ReadFileOp) (err error) {
	op.BytesRead, err = fs.fileHandle(op.Handle).Read(op.Dst, op.Offset)
	return
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) WriteFile(
	ctx context.Context,
	op *fuseops.WriteFileOp) error {
	return fs.fileHandle(op.Handle).Write(op.Data, op.Offset)
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) SyncFile(
	ctx context.Context,
	op *fuseops.SyncFileOp) error {
	return fs.fileHandle(op.Handle).Sync()
}

// Writes go straight to the backing file, so there is nothing to flush.
func (fs *fileSystem) FlushFile(
	ctx context.Context,
	op *fuseops.FlushFileOp) error {
	return nil
}

// LOCKS_EXCLUDED(fs.mu)
func (fs *fileSystem) ReleaseFileHandle(
	ctx context.Context,
	op *fuseops.ReleaseFileHandleOp) error {
	fs.mu.Lock()
	fh := fs.handles[op.Handle].(*fileHandle)
	delete(fs.handles, op.Handle)
	fs.mu.Unlock()

	return fh.Close()
}
