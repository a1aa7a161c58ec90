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

// Package sqlserver executes queries against SQL Server through go-mssqldb.
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmvfs/dmvfs/cfg"
	"github.com/dmvfs/dmvfs/internal/logger"
	"github.com/dmvfs/dmvfs/internal/metrics"
	"github.com/dmvfs/dmvfs/internal/query"

	// Registers the "sqlserver" driver.
	_ "github.com/microsoft/go-mssqldb"
)

const driverName = "sqlserver"

type poolKey struct {
	hostname string
	username string
	password string
}

// Executor keeps one connection pool per server identity.
type Executor struct {
	database string
	appName  string
	timeout  time.Duration
	metrics  metrics.MetricHandle

	mu sync.Mutex

	// GUARDED_BY(mu)
	pools map[poolKey]*sql.DB
}

var _ query.Executor = &Executor{}

// NewExecutor returns an executor that connects to c.Database on every server.
func NewExecutor(c cfg.QueryConfig, appName string, mh metrics.MetricHandle) *Executor {
	return &Executor{
		database: c.Database,
		appName:  appName,
		timeout:  c.Timeout,
		metrics:  mh,
		pools:    make(map[poolKey]*sql.DB),
	}
}

// connectionURL builds the go-mssqldb URL for hostname, which may carry a
// port ("host:1433") or a named instance ("host\SQLEXPRESS").
func connectionURL(hostname, username, password, database, appName string) *url.URL {
	u := &url.URL{
		Scheme: driverName,
		User:   url.UserPassword(username, password),
		Host:   hostname,
	}
	if host, instance, ok := strings.Cut(hostname, `\`); ok {
		u.Host = host
		u.Path = instance
	}

	q := url.Values{}
	if database != "" {
		q.Set("database", database)
	}
	if appName != "" {
		q.Set("app name", appName)
	}
	u.RawQuery = q.Encode()
	return u
}

func (e *Executor) pool(hostname, username, password string) (*sql.DB, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	k := poolKey{hostname: hostname, username: username, password: password}
	if db, ok := e.pools[k]; ok {
		return db, nil
	}

	db, err := sql.Open(driverName, connectionURL(hostname, username, password, e.database, e.appName).String())
	if err != nil {
		return nil, fmt.Errorf("opening connection to %s: %w", hostname, err)
	}
	e.pools[k] = db
	return db, nil
}

func (e *Executor) ExecuteQuery(
	ctx context.Context,
	q string,
	format query.OutputFormat,
	hostname, username, password string) (string, error) {
	db, err := e.pool(hostname, username, password)
	if err != nil {
		return "", err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		e.metrics.QueryLatency(ctx, time.Since(start), format.String())
	}()

	logger.Tracef("sqlserver: %s <- %q", hostname, q)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return "", fmt.Errorf("query on %s: %w", hostname, err)
	}
	defer rows.Close()

	var b strings.Builder
	switch format {
	case query.TSV:
		err = writeTSV(&b, rows)
	case query.JSON:
		err = writeJSON(&b, rows)
	default:
		err = fmt.Errorf("unsupported output format %v", format)
	}
	if err != nil {
		return "", fmt.Errorf("reading result of query on %s: %w", hostname, err)
	}

	return b.String(), nil
}

// Close closes every pool.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for k, db := range e.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(e.pools, k)
	}
	return firstErr
}
