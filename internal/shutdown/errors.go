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

package shutdown

import (
	"context"
	"errors"
	"os"
	"syscall"

	"github.com/dmvfs/dmvfs/internal/logger"
)

// Errno extracts the errno carried by err. Errors without one map to EIO.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, os.ErrExist):
		return syscall.EEXIST
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	case errors.Is(err, context.DeadlineExceeded):
		return syscall.ETIMEDOUT
	case errors.Is(err, context.Canceled):
		return syscall.EINTR
	}

	return syscall.EIO
}

// ReportError logs a non-fatal failure of funcName and returns the errno to
// hand back to the kernel. The errno is taken from err before anything is
// logged.
func ReportError(funcName string, desc string, err error) syscall.Errno {
	errno := Errno(err)
	logger.Errorf("Error in %s :: Reason - %s, Details - %s", funcName, desc, errno.Error())
	return errno
}
