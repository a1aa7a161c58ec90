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

// Package materialize lays out the dump directory of a server: its directory,
// the custom query directory and one tagged, empty placeholder per view.
//
// Materialization runs once per server at startup, before the file system is
// served, and must not run concurrently for the same server.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dmvfs/dmvfs/internal/discovery"
	"github.com/dmvfs/dmvfs/internal/dumppath"
	"github.com/dmvfs/dmvfs/internal/logger"
	"github.com/dmvfs/dmvfs/internal/metrics"
	"github.com/dmvfs/dmvfs/internal/provenance"
	"github.com/dmvfs/dmvfs/internal/query"
	"github.com/dmvfs/dmvfs/internal/registry"
	"github.com/dmvfs/dmvfs/internal/shutdown"
	"golang.org/x/sys/unix"
)

// CustomQueryFolderName is the directory under each server holding the
// output of user defined queries.
const CustomQueryFolderName = "customQueries"

// CustomQueryExt is the extension of query files in a server's custom
// queries path.
const CustomQueryExt = ".sql"

// JSONExt is appended to a view name for its JSON rendering.
const JSONExt = ".json"

type Config struct {
	Mapper   dumppath.Mapper
	Tagger   *provenance.Tagger
	Executor query.Executor
	Aborter  shutdown.Aborter
	Metrics  metrics.MetricHandle

	// Permissions of created directories and placeholders.
	DirMode  os.FileMode
	FileMode os.FileMode
}

type Materializer struct {
	mapper   dumppath.Mapper
	tagger   *provenance.Tagger
	executor query.Executor
	aborter  shutdown.Aborter
	metrics  metrics.MetricHandle
	dirMode  os.FileMode
	fileMode os.FileMode
}

func NewMaterializer(c *Config) *Materializer {
	mh := c.Metrics
	if mh == nil {
		mh = metrics.NewNoopMetrics()
	}
	return &Materializer{
		mapper:   c.Mapper,
		tagger:   c.Tagger,
		executor: c.Executor,
		aborter:  c.Aborter,
		metrics:  mh,
		dirMode:  c.DirMode,
		fileMode: c.FileMode,
	}
}

// MaterializeAll materializes every server of r in name order. It stops at
// the first fatal error.
func (m *Materializer) MaterializeAll(ctx context.Context, r *registry.Registry) error {
	for _, e := range r.Entries() {
		if err := m.MaterializeServer(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// MaterializeServer creates the dump layout of e. Failing to create the
// server directory, a placeholder or its marker aborts the process; the
// error is returned as well for callers whose aborter returns. Discovery
// failures and custom query directory failures are only logged.
func (m *Materializer) MaterializeServer(ctx context.Context, e *registry.ServerEntry) error {
	serverDir := m.mapper.ServerDir(e.Name)

	if err := m.createServerDir(serverDir); err != nil {
		m.aborter.Abort("There was an error creating the folder holding the DMV files of server %s: %v", e.Name, err)
		return err
	}

	if err := m.createCustomQueryFiles(serverDir, e); err != nil {
		return err
	}

	set, err := discovery.DiscoverViews(ctx, m.executor, e)
	if err != nil {
		logger.Errorf("Failed to query DMV list of server %s: %v", e.Name, err)
		m.metrics.DiscoveryFailureCount(1, e.Name)
		return nil
	}

	created := 0
	for _, view := range set.Views() {
		if strings.ContainsRune(view, '/') || view == "." || view == ".." {
			logger.Warnf("Skipping view %q of server %s: not a valid file name", view, e.Name)
			continue
		}

		p := serverDir + "/" + view
		if err := m.createPlaceholder(e.Name, p); err != nil {
			return err
		}
		created++

		if e.SupportsJSON() {
			if err := m.createPlaceholder(e.Name, p+JSONExt); err != nil {
				return err
			}
			created++
		}
	}

	logger.Infof("Materialized server %s: %d views, %d placeholders", e.Name, len(set.Views()), created)
	return nil
}

// createServerDir creates dir. A writable directory left over from an
// earlier mount is reused.
func (m *Materializer) createServerDir(dir string) error {
	err := os.Mkdir(dir, m.dirMode)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return err
	}

	fi, statErr := os.Stat(dir)
	if statErr != nil {
		return statErr
	}
	if !fi.IsDir() {
		return &os.PathError{Op: "mkdir", Path: dir, Err: syscall.ENOTDIR}
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return &os.PathError{Op: "access", Path: dir, Err: err}
	}

	logger.Infof("Reusing existing directory %s", dir)
	return nil
}

// createCustomQueryFiles creates the custom query directory of a server and
// a placeholder for every query file in the server's custom queries path.
// Only placeholder failures are returned.
func (m *Materializer) createCustomQueryFiles(serverDir string, e *registry.ServerEntry) error {
	dir := serverDir + "/" + CustomQueryFolderName
	if err := os.Mkdir(dir, m.dirMode); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			logger.Errorf("mkdir failed for %s: %v", dir, err)
			return nil
		}
		if fi, statErr := os.Stat(dir); statErr != nil || !fi.IsDir() {
			logger.Errorf("mkdir failed for %s: %v", dir, err)
			return nil
		}
	}

	if e.CustomQueriesPath == "" {
		return nil
	}

	entries, err := os.ReadDir(e.CustomQueriesPath)
	if err != nil {
		logger.Errorf("Reading custom queries of server %s from %s: %v", e.Name, e.CustomQueriesPath, err)
		return nil
	}

	for _, de := range entries {
		if de.IsDir() || filepath.Ext(de.Name()) != CustomQueryExt {
			continue
		}
		name := strings.TrimSuffix(de.Name(), CustomQueryExt)
		if name == "" {
			continue
		}
		if err := m.createPlaceholder(e.Name, dir+"/"+name); err != nil {
			return err
		}
	}
	return nil
}

// createPlaceholder creates an empty, tagged file at p, truncating whatever
// was there.
func (m *Materializer) createPlaceholder(server, p string) error {
	err := m.writeEmptyFile(p)
	if err == nil {
		err = m.tagger.TagGenerated(p)
	}
	if err != nil {
		err = fmt.Errorf("creating placeholder %s: %w", p, err)
		m.aborter.Abort("There was an error creating the DMV files of server %s: %v", server, err)
		return err
	}

	m.metrics.PlaceholdersCreatedCount(1, server)
	return nil
}

func (m *Materializer) writeEmptyFile(p string) error {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, m.fileMode)
	if err != nil {
		return err
	}
	return f.Close()
}
