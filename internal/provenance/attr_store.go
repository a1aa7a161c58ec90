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

package provenance

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrNoAttr is returned by AttrStore.Get when the file exists but does not
// carry the attribute.
var ErrNoAttr = errors.New("attribute not set")

// AttrStore reads and writes extended attributes of backing files.
type AttrStore interface {
	// Set attaches name with value to the file at path.
	Set(path, name string, value []byte) error

	// Has returns nil when path carries name, ErrNoAttr when it does not and
	// any other error when that could not be determined.
	Has(path, name string) error
}

// UnixAttrStore stores attributes as extended attributes of the file system
// holding the dump directory.
type UnixAttrStore struct{}

var _ AttrStore = UnixAttrStore{}

func (UnixAttrStore) Set(path, name string, value []byte) error {
	if err := unix.Setxattr(path, name, value, 0); err != nil {
		return &os.PathError{Op: "setxattr", Path: path, Err: err}
	}
	return nil
}

func (UnixAttrStore) Has(path, name string) error {
	// A nil buffer only asks for the size of the value.
	_, err := unix.Getxattr(path, name, nil)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ENODATA):
		return ErrNoAttr
	default:
		return &os.PathError{Op: "getxattr", Path: path, Err: err}
	}
}

// InMemoryAttrStore keeps attributes in memory. Files must still exist on
// disk, so that lookups of missing files fail the way xattr calls do.
type InMemoryAttrStore struct {
	mu sync.Mutex

	// GUARDED_BY(mu)
	attrs map[string]map[string][]byte
}

var _ AttrStore = &InMemoryAttrStore{}

func NewInMemoryAttrStore() *InMemoryAttrStore {
	return &InMemoryAttrStore{attrs: make(map[string]map[string][]byte)}
}

func (s *InMemoryAttrStore) Set(path, name string, value []byte) error {
	if _, err := os.Lstat(path); err != nil {
		return fmt.Errorf("setxattr: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attrs[path] == nil {
		s.attrs[path] = make(map[string][]byte)
	}
	s.attrs[path][name] = append([]byte(nil), value...)
	return nil
}

func (s *InMemoryAttrStore) Has(path, name string) error {
	if _, err := os.Lstat(path); err != nil {
		return fmt.Errorf("getxattr: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attrs[path][name]; !ok {
		return ErrNoAttr
	}
	return nil
}
