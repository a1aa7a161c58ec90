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
	"errors"
	"syscall"
	"time"

	"github.com/dmvfs/dmvfs/internal/metrics"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// categorize maps an error to an error-category, keeping the cardinality of
// the label small.
func categorize(err error) string {
	if err == nil {
		return ""
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		errno = syscall.EIO
	}
	switch errno {
	case syscall.ENOTEMPTY:
		return metrics.FsErrorCategoryDIRNOTEMPTY

	case syscall.EEXIST:
		return metrics.FsErrorCategoryFILEEXISTS

	case syscall.EBADF,
		syscall.EFBIG,
		syscall.EISDIR:
		return metrics.FsErrorCategoryFILEDIRERROR

	case syscall.ENOSYS:
		return metrics.FsErrorCategoryNOTIMPLEMENTED

	case syscall.EIO:
		return metrics.FsErrorCategoryIOERROR

	case syscall.ECANCELED,
		syscall.EINTR:
		return metrics.FsErrorCategoryINTERRUPTERROR

	case syscall.EINVAL:
		return metrics.FsErrorCategoryINVALIDARGUMENT

	case syscall.E2BIG,
		syscall.ENOTSUP,
		syscall.ENOTTY,
		syscall.ERANGE,
		syscall.ESPIPE:
		return metrics.FsErrorCategoryINVALIDOPERATION

	case syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.ETIMEDOUT:
		return metrics.FsErrorCategoryNETWORKERROR

	case syscall.ENOENT:
		return metrics.FsErrorCategoryNOFILEORDIR

	case syscall.ENOTDIR:
		return metrics.FsErrorCategoryNOTADIR

	case syscall.EACCES,
		syscall.EPERM,
		syscall.EROFS:
		return metrics.FsErrorCategoryPERMERROR

	case syscall.EMFILE,
		syscall.ENFILE:
		return metrics.FsErrorCategoryTOOMANYOPENFILES
	}
	return metrics.FsErrorCategoryMISCERROR
}

// Records file system operation count, failed operation count and the
// operation latency.
func recordOp(ctx context.Context, metricHandle metrics.MetricHandle, method string, start time.Time, fsErr error) {
	metricHandle.FsOpsCount(1, method)

	if fsErr != nil {
		metricHandle.FsOpsErrorCount(1, categorize(fsErr), method)
	}

	metricHandle.FsOpsLatency(ctx, time.Since(start), method)
}

// WithMonitoring takes a FileSystem, returns a FileSystem with monitoring
// on the counts of requests per API.
func WithMonitoring(fs fuseutil.FileSystem, metricHandle metrics.MetricHandle) fuseutil.FileSystem {
	return &monitoring{
		FileSystem:   fs,
		metricHandle: metricHandle,
	}
}

type monitoring struct {
	fuseutil.FileSystem
	metricHandle metrics.MetricHandle
}

type wrappedCall func(ctx context.Context) error

func (fs *monitoring) invokeWrapped(ctx context.Context, opName string, w wrappedCall) error {
	startTime := time.Now()
	err := w(ctx)
	recordOp(ctx, fs.metricHandle, opName, startTime, err)
	return err
}

func (fs *monitoring) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpStatFS, func(ctx context.Context) error { return fs.FileSystem.StatFS(ctx, op) })
}

func (fs *monitoring) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpLookUpInode, func(ctx context.Context) error { return fs.FileSystem.LookUpInode(ctx, op) })
}

func (fs *monitoring) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpGetInodeAttributes, func(ctx context.Context) error { return fs.FileSystem.GetInodeAttributes(ctx, op) })
}

func (fs *monitoring) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpSetInodeAttributes, func(ctx context.Context) error { return fs.FileSystem.SetInodeAttributes(ctx, op) })
}

func (fs *monitoring) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpForgetInode, func(ctx context.Context) error { return fs.FileSystem.ForgetInode(ctx, op) })
}

func (fs *monitoring) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpMkDir, func(ctx context.Context) error { return fs.FileSystem.MkDir(ctx, op) })
}

func (fs *monitoring) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpCreateFile, func(ctx context.Context) error { return fs.FileSystem.CreateFile(ctx, op) })
}

func (fs *monitoring) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpRename, func(ctx context.Context) error { return fs.FileSystem.Rename(ctx, op) })
}

func (fs *monitoring) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpRmDir, func(ctx context.Context) error { return fs.FileSystem.RmDir(ctx, op) })
}

func (fs *monitoring) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpUnlink, func(ctx context.Context) error { return fs.FileSystem.Unlink(ctx, op) })
}

func (fs *monitoring) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpOpenDir, func(ctx context.Context) error { return fs.FileSystem.OpenDir(ctx, op) })
}

func (fs *monitoring) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpReadDir, func(ctx context.Context) error { return fs.FileSystem.ReadDir(ctx, op) })
}

func (fs *monitoring) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpReleaseDirHandle, func(ctx context.Context) error { return fs.FileSystem.ReleaseDirHandle(ctx, op) })
}

func (fs *monitoring) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpOpenFile, func(ctx context.Context) error { return fs.FileSystem.OpenFile(ctx, op) })
}

func (fs *monitoring) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpReadFile, func(ctx context.Context) error { return fs.FileSystem.ReadFile(ctx, op) })
}

func (fs *monitoring) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpWriteFile, func(ctx context.Context) error { return fs.FileSystem.WriteFile(ctx, op) })
}

func (fs *monitoring) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpSyncFile, func(ctx context.Context) error { return fs.FileSystem.SyncFile(ctx, op) })
}

func (fs *monitoring) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpFlushFile, func(ctx context.Context) error { return fs.FileSystem.FlushFile(ctx, op) })
}

func (fs *monitoring) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	return fs.invokeWrapped(ctx, metrics.FsOpReleaseFileHandle, func(ctx context.Context) error { return fs.FileSystem.ReleaseFileHandle(ctx, op) })
}
