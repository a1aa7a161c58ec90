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
	"fmt"
	"math"

	"golang.org/x/time/rate"
)

// Throttle bounds the rate of queries sent to the configured servers. One
// token is one query; all servers share the same bucket.
//
// Safe for concurrent access.
type Throttle interface {
	// Capacity is the largest burst of queries allowed back to back.
	Capacity() (c uint64)

	// Wait blocks until tokens queries may be issued or ctx is done.
	//
	// REQUIRES: tokens <= capacity
	Wait(ctx context.Context, tokens uint64) (err error)
}

type queryLimiter struct {
	limiter *rate.Limiter
}

// NewThrottle returns a throttle admitting rateHz queries per second on
// average with bursts of up to capacity queries.
func NewThrottle(rateHz float64, capacity int) Throttle {
	return &queryLimiter{limiter: rate.NewLimiter(rate.Limit(rateHz), capacity)}
}

func (l *queryLimiter) Capacity() uint64 {
	return uint64(l.limiter.Burst())
}

func (l *queryLimiter) Wait(ctx context.Context, tokens uint64) error {
	if err := l.limiter.WaitN(ctx, int(tokens)); err != nil {
		return fmt.Errorf("waiting for query throttle: %w", err)
	}
	return nil
}

// ChooseLimiterCapacity returns a bucket capacity allowing one second worth
// of events to be issued back to back, and at least one.
func ChooseLimiterCapacity(rateHz float64) (capacity int, err error) {
	if !(rateHz > 0) || math.IsInf(rateHz, 0) || rateHz > math.MaxInt32 {
		err = fmt.Errorf("Illegal rate: %f", rateHz)
		return
	}

	capacity = int(math.Ceil(rateHz))
	return
}
