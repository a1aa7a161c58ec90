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

// Package provenance marks the files dmvfs generates and tells them apart
// from files users put into the mount.
//
// The marker is an extended attribute with an empty value. Only its presence
// matters; it is set once at creation and never updated or removed.
package provenance

import (
	"errors"
	"fmt"

	"github.com/dmvfs/dmvfs/internal/dumppath"
	"github.com/dmvfs/dmvfs/internal/logger"
)

// AttrName is the extended attribute carried by generated files.
const AttrName = "user.dmvfs.generated"

// attrValue is written with length zero: the marker has existence-only
// semantics and its value must not be relied upon.
var attrValue = []byte("1")[:0]

// Presence is the outcome of a marker lookup.
type Presence int

const (
	Absent Presence = iota
	Present
	LookupError
)

func (p Presence) String() string {
	switch p {
	case Absent:
		return "absent"
	case Present:
		return "present"
	case LookupError:
		return "lookup-error"
	}
	return fmt.Sprintf("Presence(%d)", int(p))
}

// Tagger sets and checks the generated-file marker.
type Tagger struct {
	mapper dumppath.Mapper
	store  AttrStore
}

func NewTagger(mapper dumppath.Mapper, store AttrStore) *Tagger {
	return &Tagger{mapper: mapper, store: store}
}

// TagGenerated marks the backing file at backingPath as generated.
func (t *Tagger) TagGenerated(backingPath string) error {
	if err := t.store.Set(backingPath, AttrName, attrValue); err != nil {
		return fmt.Errorf("tagging %s: %w", backingPath, err)
	}
	return nil
}

// LookupBacking checks the marker on a backing file.
func (t *Tagger) LookupBacking(backingPath string) Presence {
	err := t.store.Has(backingPath, AttrName)
	switch {
	case err == nil:
		return Present
	case errors.Is(err, ErrNoAttr):
		return Absent
	default:
		logger.Debugf("provenance: looking up %s: %v", backingPath, err)
		return LookupError
	}
}

// Lookup checks the marker of the file at a mount-relative path.
func (t *Tagger) Lookup(mountPath string) Presence {
	return t.LookupBacking(t.mapper.ToBackingPath(mountPath))
}

// IsGenerated reports whether the file at mountPath was created by dmvfs.
// Lookup errors count as user files.
func (t *Tagger) IsGenerated(mountPath string) bool {
	return t.Lookup(mountPath) == Present
}
