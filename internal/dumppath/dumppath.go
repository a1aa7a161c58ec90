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

// Package dumppath translates mount-relative paths into paths under the dump
// directory that backs the mount.
package dumppath

// Mapper joins mount-relative paths onto the dump root.
type Mapper struct {
	root string
}

// New returns a Mapper for the given dump root. The root is used as given;
// callers clean it once at startup.
func New(root string) Mapper {
	return Mapper{root: root}
}

// Root returns the dump root.
func (m Mapper) Root() string {
	return m.root
}

// ToBackingPath returns root + mountPath. Nothing is normalized: FUSE hands
// us paths relative to the mount point starting with "/", and keeping ".."
// components out of them is the caller's job.
func (m Mapper) ToBackingPath(mountPath string) string {
	return m.root + mountPath
}

// ServerDir returns the backing directory of a server.
func (m Mapper) ServerDir(server string) string {
	return m.ToBackingPath("/" + server)
}
