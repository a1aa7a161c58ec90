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

// System permissions-related code.
package perms

import (
	"fmt"
	"os"
)

// MyUserAndGroup returns the UID and GID of this process.
func MyUserAndGroup() (uid, gid uint32, err error) {
	signedUid := os.Getuid()
	signedGid := os.Getgid()

	// Only documented to happen on windows.
	if signedGid < 0 || signedUid < 0 {
		err = fmt.Errorf("failed to get uid/gid. UID = %d, GID = %d", signedUid, signedGid)
		return
	}

	uid = uint32(signedUid)
	gid = uint32(signedGid)
	return
}

// ResolveOwner picks the owner of every inode. A negative requested ID means
// the ID of this process.
func ResolveOwner(requestedUid, requestedGid int64) (uid, gid uint32, err error) {
	uid, gid, err = MyUserAndGroup()
	if err != nil {
		err = fmt.Errorf("MyUserAndGroup: %w", err)
		return
	}

	if requestedUid >= 0 {
		uid = uint32(requestedUid)
	}
	if requestedGid >= 0 {
		gid = uint32(requestedGid)
	}
	return
}
