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

package wrappers

import (
	"context"

	"github.com/dmvfs/dmvfs/internal/shutdown"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

func errno(err error) error {
	if err == nil {
		return nil
	}
	return shutdown.Errno(err)
}

// WithErrorMapping wraps a FileSystem, processing the returned errors, and
// mapping them into syscall.Errno that can be understood by FUSE. Ops the
// wrapped file system doesn't implement pass through untouched.
func WithErrorMapping(wrapped fuseutil.FileSystem) fuseutil.FileSystem {
	return &errorMapping{FileSystem: wrapped}
}

type errorMapping struct {
	fuseutil.FileSystem
}

func (fs *errorMapping) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	return errno(fs.FileSystem.StatFS(ctx, op))
}

func (fs *errorMapping) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	return errno(fs.FileSystem.LookUpInode(ctx, op))
}

func (fs *errorMapping) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	return errno(fs.FileSystem.GetInodeAttributes(ctx, op))
}

func (fs *errorMapping) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	return errno(fs.FileSystem.SetInodeAttributes(ctx, op))
}

func (fs *errorMapping) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	return errno(fs.FileSystem.ForgetInode(ctx, op))
}

func (fs *errorMapping) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	return errno(fs.FileSystem.MkDir(ctx, op))
}

func (fs *errorMapping) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	return errno(fs.FileSystem.CreateFile(ctx, op))
}

func (fs *errorMapping) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	return errno(fs.FileSystem.Rename(ctx, op))
}

func (fs *errorMapping) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	return errno(fs.FileSystem.RmDir(ctx, op))
}

func (fs *errorMapping) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	return errno(fs.FileSystem.Unlink(ctx, op))
}

func (fs *errorMapping) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	return errno(fs.FileSystem.OpenDir(ctx, op))
}

func (fs *errorMapping) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	return errno(fs.FileSystem.ReadDir(ctx, op))
}

func (fs *errorMapping) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	return errno(fs.FileSystem.ReleaseDirHandle(ctx, op))
}

func (fs *errorMapping) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	return errno(fs.FileSystem.OpenFile(ctx, op))
}

func (fs *errorMapping) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	return errno(fs.FileSystem.ReadFile(ctx, op))
}

func (fs *errorMapping) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	return errno(fs.FileSystem.WriteFile(ctx, op))
}

func (fs *errorMapping) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	return errno(fs.FileSystem.SyncFile(ctx, op))
}

func (fs *errorMapping) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	return errno(fs.FileSystem.FlushFile(ctx, op))
}

func (fs *errorMapping) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	return errno(fs.FileSystem.ReleaseFileHandle(ctx, op))
}
