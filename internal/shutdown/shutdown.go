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

// Package shutdown is the single abort path of the process. Every fatal
// condition ends in Controller.Abort, which runs the registered cleanup
// callbacks (most importantly the FUSE unmount) before the process exits, so
// the mount point disappears instead of hanging.
package shutdown

import (
	"fmt"
	"os"
	"sync"

	"github.com/dmvfs/dmvfs/internal/logger"
)

// Aborter is implemented by anything able to terminate the process after a
// fatal error. Abort only returns when the exit function installed on the
// controller returns, which happens in tests only.
type Aborter interface {
	Abort(format string, v ...interface{})
}

type callback struct {
	name string
	fn   func() error
}

// Controller owns the cleanup callbacks run on abort.
type Controller struct {
	exit func(code int)

	mu sync.Mutex

	// GUARDED_BY(mu)
	callbacks []callback

	// GUARDED_BY(mu)
	aborted bool

	// The message of the first Abort.
	//
	// GUARDED_BY(mu)
	reason string
}

var _ Aborter = &Controller{}

// Option configures a Controller.
type Option func(*Controller)

// WithExitFunc replaces os.Exit as the last step of Abort.
func WithExitFunc(exit func(code int)) Option {
	return func(c *Controller) {
		c.exit = exit
	}
}

// NewController returns a controller with no callbacks registered.
func NewController(opts ...Option) *Controller {
	c := &Controller{exit: os.Exit}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a cleanup step. Steps run in reverse registration order.
func (c *Controller) Register(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, callback{name: name, fn: fn})
}

// Aborted reports whether Abort has been called.
func (c *Controller) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Reason returns the message of the first Abort, or "" before any.
func (c *Controller) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Abort logs the message, runs every cleanup step once and exits with status 1.
// Later calls only log.
func (c *Controller) Abort(format string, v ...interface{}) {
	logger.Errorf(format, v...)

	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		return
	}
	c.aborted = true
	c.reason = fmt.Sprintf(format, v...)
	steps := c.callbacks
	c.callbacks = nil
	c.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		logger.Infof("Shutdown: running %s", steps[i].name)
		if err := steps[i].fn(); err != nil {
			logger.Errorf("Shutdown: %s failed: %v", steps[i].name, err)
		}
	}

	c.exit(1)
}
