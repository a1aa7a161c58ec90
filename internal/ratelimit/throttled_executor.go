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

package ratelimit

import (
	"context"

	"github.com/dmvfs/dmvfs/internal/query"
)

// NewThrottledExecutor returns an executor that waits on throttle before
// calling through to wrapped.
func NewThrottledExecutor(
	throttle Throttle,
	wrapped query.Executor) query.Executor {
	return &throttledExecutor{
		throttle: throttle,
		wrapped:  wrapped,
	}
}

// ThrottleExecutor limits wrapped to qps queries per second across all
// servers. A negative qps disables the limit.
func ThrottleExecutor(qps float64, wrapped query.Executor) (query.Executor, error) {
	if qps < 0 {
		return wrapped, nil
	}

	capacity, err := ChooseLimiterCapacity(qps)
	if err != nil {
		return nil, err
	}
	return NewThrottledExecutor(NewThrottle(qps, capacity), wrapped), nil
}

type throttledExecutor struct {
	throttle Throttle
	wrapped  query.Executor
}

func (e *throttledExecutor) ExecuteQuery(
	ctx context.Context,
	q string,
	format query.OutputFormat,
	hostname, username, password string) (text string, err error) {
	// Wait for permission to call through.
	err = e.throttle.Wait(ctx, 1)
	if err != nil {
		return
	}

	// Call through.
	text, err = e.wrapped.ExecuteQuery(ctx, q, format, hostname, username, password)

	return
}
