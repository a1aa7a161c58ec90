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

// Package fake provides an in-memory query.Executor for tests.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmvfs/dmvfs/internal/query"
)

// Call records one ExecuteQuery invocation.
type Call struct {
	Query    string
	Format   query.OutputFormat
	Hostname string
	Username string
	Password string
}

type result struct {
	text string
	err  error
}

// Executor answers queries from canned responses keyed by (hostname, query).
// Unknown queries fail.
type Executor struct {
	mu sync.Mutex

	// GUARDED_BY(mu)
	responses map[string]result

	// GUARDED_BY(mu)
	calls []Call

	// Block, when set, is received from before each response is returned.
	Block chan struct{}
}

var _ query.Executor = &Executor{}

func NewExecutor() *Executor {
	return &Executor{responses: make(map[string]result)}
}

func key(hostname, q string) string {
	return hostname + "\x00" + q
}

// SetResponse makes q against hostname return text.
func (e *Executor) SetResponse(hostname, q, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[key(hostname, q)] = result{text: text}
}

// SetError makes q against hostname fail with err.
func (e *Executor) SetError(hostname, q string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses[key(hostname, q)] = result{err: err}
}

// Calls returns a copy of the invocations seen so far.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

func (e *Executor) ExecuteQuery(
	ctx context.Context,
	q string,
	format query.OutputFormat,
	hostname, username, password string) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{
		Query:    q,
		Format:   format,
		Hostname: hostname,
		Username: username,
		Password: password,
	})
	r, ok := e.responses[key(hostname, q)]
	e.mu.Unlock()

	if e.Block != nil {
		select {
		case <-e.Block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if !ok {
		return "", fmt.Errorf("fake: no response for %q on %s", q, hostname)
	}
	return r.text, r.err
}
