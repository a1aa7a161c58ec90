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
	"os"
	"sync"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// State required for reading from directories.
type dirHandle struct {
	/////////////////////////
	// Constant data
	/////////////////////////

	backing string

	/////////////////////////
	// Mutable state
	/////////////////////////

	mu sync.Mutex

	// All entries in the directory. Populated by a read at offset zero, so
	// rewinddir sees fresh content.
	//
	// INVARIANT: For each i, entries[i].Offset == i + 1
	//
	// GUARDED_BY(mu)
	entries []fuseutil.Dirent
}

func newDirHandle(backing string) *dirHandle {
	return &dirHandle{backing: backing}
}

func direntType(m os.FileMode) fuseutil.DirentType {
	switch {
	case m.IsDir():
		return fuseutil.DT_Directory
	case m&os.ModeSymlink != 0:
		return fuseutil.DT_Link
	case m.IsRegular():
		return fuseutil.DT_File
	}
	return fuseutil.DT_Unknown
}

// LOCKS_REQUIRED(dh.mu)
func (dh *dirHandle) readEntries() error {
	des, err := os.ReadDir(dh.backing)
	if err != nil {
		return err
	}

	dh.entries = dh.entries[:0]
	for _, de := range des {
		// Readers skip entries with inode number zero, so report the backing
		// inode number.
		ino := uint64(fuseops.RootInodeID)
		if fi, err := de.Info(); err == nil {
			if st, ok := fi.Sys().(*syscall.Stat_t); ok && st.Ino != 0 {
				ino = uint64(st.Ino)
			}
		}

		dh.entries = append(dh.entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(len(dh.entries) + 1),
			Inode:  fuseops.InodeID(ino),
			Name:   de.Name(),
			Type:   direntType(de.Type()),
		})
	}
	return nil
}

// ReadDir serves a ReadDirOp from the listing taken at offset zero.
//
// LOCKS_EXCLUDED(dh.mu)
func (dh *dirHandle) ReadDir(op *fuseops.ReadDirOp) error {
	dh.mu.Lock()
	defer dh.mu.Unlock()

	if op.Offset == 0 {
		if err := dh.readEntries(); err != nil {
			return err
		}
	}

	index := int(op.Offset)
	if index > len(dh.entries) {
		return syscall.EINVAL
	}

	for _, e := range dh.entries[index:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}
