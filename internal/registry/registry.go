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

// Package registry holds the connection identity and settings of every
// configured server. A Registry is built once at startup and never changes
// afterwards, so concurrent readers need no locking.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dmvfs/dmvfs/internal/logger"
	"github.com/dmvfs/dmvfs/internal/shutdown"
)

// JSONMinVersion is the first protocol version whose servers can render
// results with FOR JSON.
const JSONMinVersion = 16

// ServerEntry describes one configured server. Entries are owned by the
// Registry and must not be modified.
type ServerEntry struct {
	Name              string
	Hostname          string
	Username          string
	Password          string
	Version           int
	CustomQueriesPath string
}

// SupportsJSON reports whether .json placeholders are created for the server.
func (e *ServerEntry) SupportsJSON() bool {
	return e.Version >= JSONMinVersion
}

// Registry maps server names to entries.
type Registry struct {
	aborter shutdown.Aborter

	// Constant after New returns.
	entries map[string]*ServerEntry
	sorted  []*ServerEntry
}

// New builds a registry from entries. Names must be unique, non-empty and
// usable as a single path component of the dump dir.
// The aborter is invoked by ResolveOrAbort on unknown names.
func New(entries []ServerEntry, aborter shutdown.Aborter) (*Registry, error) {
	r := &Registry{
		aborter: aborter,
		entries: make(map[string]*ServerEntry, len(entries)),
	}

	for i := range entries {
		e := entries[i]
		if e.Name == "" {
			return nil, fmt.Errorf("server entry %d has no name", i)
		}
		if strings.Contains(e.Name, "/") || e.Name == "." || e.Name == ".." {
			return nil, fmt.Errorf("server name %q is not a valid directory name", e.Name)
		}
		if _, ok := r.entries[e.Name]; ok {
			return nil, fmt.Errorf("duplicate server name %q", e.Name)
		}
		r.entries[e.Name] = &e
		r.sorted = append(r.sorted, &e)
	}

	sort.Slice(r.sorted, func(i, j int) bool {
		return r.sorted[i].Name < r.sorted[j].Name
	})

	return r, nil
}

// Lookup returns the entry called name.
func (r *Registry) Lookup(name string) (*ServerEntry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// GetServerInfo returns the entry called name, or nil.
func (r *Registry) GetServerInfo(name string) *ServerEntry {
	return r.entries[name]
}

// ResolveOrAbort returns the connection identity of name. An unknown name is
// fatal for the process, so it is only for names that must exist, such as
// servers named on the command line at startup. Lookups driven by the mount,
// where a stray directory name is a user error, use GetServerInfo.
func (r *Registry) ResolveOrAbort(name string) (hostname, username, password string) {
	e, ok := r.entries[name]
	if !ok {
		r.aborter.Abort("Unknown server %q: it is not present in the servers config", name)
		return "", "", ""
	}
	return e.Hostname, e.Username, e.Password
}

// GetUserCustomQueryPath returns the custom query directory configured for
// name. Unknown servers and servers without one yield "".
func (r *Registry) GetUserCustomQueryPath(name string) string {
	e, ok := r.entries[name]
	if !ok {
		logger.Debugf("GetUserCustomQueryPath: unknown server %q", name)
		return ""
	}
	return e.CustomQueriesPath
}

// Entries returns every entry ordered by name.
func (r *Registry) Entries() []*ServerEntry {
	out := make([]*ServerEntry, len(r.sorted))
	copy(out, r.sorted)
	return out
}

// Len returns the number of configured servers.
func (r *Registry) Len() int {
	return len(r.entries)
}
