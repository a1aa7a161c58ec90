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

// Package populate fills generated placeholders with fresh query output when
// they are opened.
package populate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dmvfs/dmvfs/internal/dumppath"
	"github.com/dmvfs/dmvfs/internal/logger"
	"github.com/dmvfs/dmvfs/internal/materialize"
	"github.com/dmvfs/dmvfs/internal/metrics"
	"github.com/dmvfs/dmvfs/internal/query"
	"github.com/dmvfs/dmvfs/internal/registry"
	"golang.org/x/sync/singleflight"
)

// Request is what a placeholder path resolves to.
type Request struct {
	Server *registry.ServerEntry
	Query  string
	Format query.OutputFormat
}

type Populator struct {
	mapper   dumppath.Mapper
	registry *registry.Registry
	executor query.Executor
	metrics  metrics.MetricHandle
	fileMode os.FileMode

	// Collapses concurrent opens of the same placeholder into one query.
	group singleflight.Group
}

func NewPopulator(
	mapper dumppath.Mapper,
	r *registry.Registry,
	executor query.Executor,
	mh metrics.MetricHandle,
	fileMode os.FileMode) *Populator {
	return &Populator{
		mapper:   mapper,
		registry: r,
		executor: executor,
		metrics:  mh,
		fileMode: fileMode,
	}
}

// quoteName brackets a view name the way QUOTENAME does.
func quoteName(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// ViewQuery returns the query rendering view in format.
func ViewQuery(view string, format query.OutputFormat) string {
	q := "SELECT * FROM sys." + quoteName(view)
	if format == query.JSON {
		q += " FOR JSON PATH"
	}
	return q
}

// Resolve maps a mount path of a placeholder to the query producing its
// content:
//
//	/<server>/<view>                 TSV of sys.<view>
//	/<server>/<view>.json            JSON of sys.<view>
//	/<server>/customQueries/<query>  TSV of <customQueriesPath>/<query>.sql
func (p *Populator) Resolve(mountPath string) (*Request, error) {
	parts := strings.Split(strings.TrimPrefix(mountPath, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("%s is not a placeholder path: %w", mountPath, syscall.EINVAL)
	}

	e := p.registry.GetServerInfo(parts[0])
	if e == nil {
		return nil, fmt.Errorf("unknown server %q: %w", parts[0], syscall.ENOENT)
	}

	if len(parts) == 3 {
		if parts[1] != materialize.CustomQueryFolderName || e.CustomQueriesPath == "" {
			return nil, fmt.Errorf("%s is not a placeholder path: %w", mountPath, syscall.EINVAL)
		}
		src := filepath.Join(e.CustomQueriesPath, parts[2]+materialize.CustomQueryExt)
		text, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("reading custom query %s: %v: %w", src, err, syscall.EIO)
		}
		return &Request{Server: e, Query: string(text), Format: query.TSV}, nil
	}

	if view, ok := strings.CutSuffix(parts[1], materialize.JSONExt); ok {
		return &Request{Server: e, Query: ViewQuery(view, query.JSON), Format: query.JSON}, nil
	}
	return &Request{Server: e, Query: ViewQuery(parts[1], query.TSV), Format: query.TSV}, nil
}

// Populate replaces the content of the backing file of mountPath with the
// output of its query. Concurrent calls for the same path share one query.
func (p *Populator) Populate(ctx context.Context, mountPath string) error {
	// Waiters share the first caller's query, so an interrupted first open
	// must not fail theirs.
	_, err, shared := p.group.Do(mountPath, func() (interface{}, error) {
		return nil, p.populate(context.WithoutCancel(ctx), mountPath)
	})
	if shared {
		logger.Tracef("populate: %s shared an in-flight query", mountPath)
	}
	return err
}

func (p *Populator) populate(ctx context.Context, mountPath string) (err error) {
	req, err := p.Resolve(mountPath)
	if err != nil {
		return err
	}

	defer func() {
		status := metrics.PopulationStatusOK
		if err != nil {
			status = metrics.PopulationStatusError
		}
		p.metrics.PopulationCount(1, req.Server.Name, status)
	}()

	e := req.Server
	text, err := p.executor.ExecuteQuery(ctx, req.Query, req.Format, e.Hostname, e.Username, e.Password)
	if err != nil {
		return fmt.Errorf("populating %s: %w", mountPath, err)
	}

	backing := p.mapper.ToBackingPath(mountPath)
	if err = os.WriteFile(backing, []byte(text), p.fileMode); err != nil {
		return fmt.Errorf("populating %s: %w", mountPath, err)
	}

	logger.Debugf("Populated %s with %d bytes", mountPath, len(text))
	return nil
}
