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

package metrics

import (
	"context"
	"time"
)

// Constants for attribute FsErrorCategory
const (
	FsErrorCategoryDIRNOTEMPTY      = "DIR_NOT_EMPTY"
	FsErrorCategoryFILEDIRERROR     = "FILE_DIR_ERROR"
	FsErrorCategoryFILEEXISTS       = "FILE_EXISTS"
	FsErrorCategoryINTERRUPTERROR   = "INTERRUPT_ERROR"
	FsErrorCategoryINVALIDARGUMENT  = "INVALID_ARGUMENT"
	FsErrorCategoryINVALIDOPERATION = "INVALID_OPERATION"
	FsErrorCategoryIOERROR          = "IO_ERROR"
	FsErrorCategoryMISCERROR        = "MISC_ERROR"
	FsErrorCategoryNETWORKERROR     = "NETWORK_ERROR"
	FsErrorCategoryNOFILEORDIR      = "NO_FILE_OR_DIR"
	FsErrorCategoryNOTADIR          = "NOT_A_DIR"
	FsErrorCategoryNOTIMPLEMENTED   = "NOT_IMPLEMENTED"
	FsErrorCategoryPERMERROR        = "PERM_ERROR"
	FsErrorCategoryTOOMANYOPENFILES = "TOO_MANY_OPEN_FILES"
)

// Constants for attribute FsOp
const (
	FsOpCreateFile         = "CreateFile"
	FsOpFlushFile          = "FlushFile"
	FsOpForgetInode        = "ForgetInode"
	FsOpGetInodeAttributes = "GetInodeAttributes"
	FsOpLookUpInode        = "LookUpInode"
	FsOpMkDir              = "MkDir"
	FsOpOpenDir            = "OpenDir"
	FsOpOpenFile           = "OpenFile"
	FsOpReadDir            = "ReadDir"
	FsOpReadFile           = "ReadFile"
	FsOpReleaseDirHandle   = "ReleaseDirHandle"
	FsOpReleaseFileHandle  = "ReleaseFileHandle"
	FsOpRename             = "Rename"
	FsOpRmDir              = "RmDir"
	FsOpSetInodeAttributes = "SetInodeAttributes"
	FsOpStatFS             = "StatFS"
	FsOpSyncFile           = "SyncFile"
	FsOpUnlink             = "Unlink"
	FsOpWriteFile          = "WriteFile"
)

// Constants for attribute PopulationStatus
const (
	PopulationStatusOK    = "ok"
	PopulationStatusError = "error"
)

// MetricHandle records every metric exported by dmvfs.
type MetricHandle interface {
	// DiscoveryFailureCount - Number of view discovery queries that failed or returned malformed data.
	DiscoveryFailureCount(inc int64, server string)

	// FsOpsCount - The cumulative number of ops processed by the file system.
	FsOpsCount(inc int64, fsOp string)

	// FsOpsErrorCount - The cumulative number of errors generated by file system operations.
	FsOpsErrorCount(inc int64, fsErrorCategory string, fsOp string)

	// FsOpsLatency - The cumulative distribution of file system operation latencies.
	FsOpsLatency(ctx context.Context, duration time.Duration, fsOp string)

	// PlaceholdersCreatedCount - Number of tagged placeholder files created at materialization.
	PlaceholdersCreatedCount(inc int64, server string)

	// PopulationCount - Number of placeholder populations, by outcome.
	PopulationCount(inc int64, server string, status string)

	// QueryLatency - The distribution of server query latencies.
	QueryLatency(ctx context.Context, duration time.Duration, format string)
}
