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

// Package discovery asks a server which dynamic management views it exposes.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmvfs/dmvfs/internal/query"
	"github.com/dmvfs/dmvfs/internal/registry"
)

// ViewsQuery lists the views of the sys schema (schema_id 4), leaving out
// INFORMATION_SCHEMA.
const ViewsQuery = "SELECT name FROM sys.system_views WHERE schema_id = 4"

// ErrMalformedResponse is returned when the server answers with fewer than a
// header and one view.
var ErrMalformedResponse = errors.New("malformed view discovery response")

// ViewFileSet is the tokenized discovery response. The first element is the
// column header and is never a view.
type ViewFileSet []string

// Views returns the view names, header excluded.
func (s ViewFileSet) Views() []string {
	if len(s) < 2 {
		return nil
	}
	return s[1:]
}

// Tokenize splits a TSV response into lines, dropping empty lines and
// carriage returns.
func Tokenize(response string) ViewFileSet {
	var out ViewFileSet
	for _, tok := range strings.Split(response, "\n") {
		tok = strings.TrimSuffix(tok, "\r")
		if tok == "" {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// DiscoverViews runs ViewsQuery against the server of e.
func DiscoverViews(ctx context.Context, executor query.Executor, e *registry.ServerEntry) (ViewFileSet, error) {
	resp, err := executor.ExecuteQuery(ctx, ViewsQuery, query.TSV, e.Hostname, e.Username, e.Password)
	if err != nil {
		return nil, fmt.Errorf("discovering views of %s: %w", e.Name, err)
	}

	set := Tokenize(resp)
	if len(set) < 2 {
		return nil, fmt.Errorf("%w: server %s returned %d lines", ErrMalformedResponse, e.Name, len(set))
	}
	return set, nil
}
