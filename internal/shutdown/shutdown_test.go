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
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ControllerTest struct {
	suite.Suite
	exitCodes []int
	c         *Controller
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerTest))
}

func (t *ControllerTest) SetupTest() {
	t.exitCodes = nil
	t.c = NewController(WithExitFunc(func(code int) {
		t.exitCodes = append(t.exitCodes, code)
	}))
}

func (t *ControllerTest) TestAbortRunsCallbacksInReverseOrder() {
	var order []string
	t.c.Register("first", func() error {
		order = append(order, "first")
		return nil
	})
	t.c.Register("second", func() error {
		order = append(order, "second")
		return nil
	})

	t.c.Abort("fatal: %s", "boom")

	assert.Equal(t.T(), []string{"second", "first"}, order)
	assert.Equal(t.T(), []int{1}, t.exitCodes)
	assert.True(t.T(), t.c.Aborted())
}

func (t *ControllerTest) TestFailingCallbackDoesNotStopOthers() {
	ran := false
	t.c.Register("survivor", func() error {
		ran = true
		return nil
	})
	t.c.Register("broken", func() error {
		return errors.New("unmount failed")
	})

	t.c.Abort("fatal")

	assert.True(t.T(), ran)
	assert.Equal(t.T(), []int{1}, t.exitCodes)
}

func (t *ControllerTest) TestSecondAbortOnlyLogs() {
	calls := 0
	t.c.Register("unmount", func() error {
		calls++
		return nil
	})

	t.c.Abort("first")
	t.c.Abort("second")

	assert.Equal(t.T(), 1, calls)
	assert.Equal(t.T(), []int{1}, t.exitCodes)
	assert.Equal(t.T(), "first", t.c.Reason())
}

func (t *ControllerTest) TestCallbacksSeeReason() {
	var seen string
	t.c.Register("report", func() error {
		seen = t.c.Reason()
		return nil
	})

	t.c.Abort("creating %s: %v", "/dump/PROD1", "permission denied")

	assert.Equal(t.T(), "creating /dump/PROD1: permission denied", seen)
}

func (t *ControllerTest) TestNotAbortedInitially() {
	assert.False(t.T(), t.c.Aborted())
	assert.Empty(t.T(), t.exitCodes)
	assert.Empty(t.T(), t.c.Reason())
}

func TestErrno(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected syscall.Errno
	}{
		{"nil", nil, 0},
		{"raw errno", syscall.EACCES, syscall.EACCES},
		{"path error", &os.PathError{Op: "open", Path: "/x", Err: syscall.ENOSPC}, syscall.ENOSPC},
		{"wrapped errno", fmt.Errorf("creating placeholder: %w", syscall.EROFS), syscall.EROFS},
		{"not exist", fmt.Errorf("lookup: %w", os.ErrNotExist), syscall.ENOENT},
		{"exist", os.ErrExist, syscall.EEXIST},
		{"permission", os.ErrPermission, syscall.EACCES},
		{"deadline", context.DeadlineExceeded, syscall.ETIMEDOUT},
		{"canceled", context.Canceled, syscall.EINTR},
		{"unknown", errors.New("mystery"), syscall.EIO},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Errno(tc.err))
		})
	}
}

func TestReportErrorReturnsErrnoOfCause(t *testing.T) {
	_, err := os.Open("/this/path/does/not/exist")
	require.Error(t, err)

	errno := ReportError("OpenFile", "opening backing file", err)

	assert.Equal(t, syscall.ENOENT, errno)
}
