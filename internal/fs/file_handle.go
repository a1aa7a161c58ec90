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

package fs

import (
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
)

// fileHandle wraps the open backing file of a mount path.
type fileHandle struct {
	path string

	mu sync.Mutex

	// GUARDED_BY(mu)
	f *os.File
}

func newFileHandle(path string, f *os.File) *fileHandle {
	return &fileHandle{path: path, f: f}
}

// Read fills dst from offset. As required by fuse, EOF is not an error.
func (fh *fileHandle) Read(dst []byte, offset int64) (int, error) {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	n, err := fh.f.ReadAt(dst, offset)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}

func (fh *fileHandle) Write(data []byte, offset int64) error {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	_, err := fh.f.WriteAt(data, offset)
	return err
}

func (fh *fileHandle) Sync() error {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	return fh.f.Sync()
}

func (fh *fileHandle) Close() error {
	fh.mu.Lock()
	defer fh.mu.Unlock()
	return fh.f.Close()
}

func isErrno(err error, errno syscall.Errno) bool {
	var e syscall.Errno
	return errors.As(err, &e) && e == errno
}
