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

// Package query defines how dmvfs talks to servers: a query string goes in,
// the rendered result text comes out.
package query

import (
	"context"
	"fmt"
)

// OutputFormat selects how a result set is rendered.
type OutputFormat int

const (
	// TSV renders a header row of column names followed by one tab separated
	// line per row.
	TSV OutputFormat = iota

	// JSON returns the text produced by a FOR JSON query.
	JSON
)

func (f OutputFormat) String() string {
	switch f {
	case TSV:
		return "tsv"
	case JSON:
		return "json"
	}
	return fmt.Sprintf("OutputFormat(%d)", int(f))
}

// Executor runs a query against a server.
type Executor interface {
	ExecuteQuery(
		ctx context.Context,
		query string,
		format OutputFormat,
		hostname, username, password string) (string, error)
}
