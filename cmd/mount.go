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

// Package cmd wires the configuration, the SQL Server transport and the FUSE
// file system together.
//
// Usage:
//
//	dmvfs [flags] mount_point
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/dmvfs/dmvfs/cfg"
	"github.com/dmvfs/dmvfs/internal/dumppath"
	"github.com/dmvfs/dmvfs/internal/fs"
	"github.com/dmvfs/dmvfs/internal/logger"
	"github.com/dmvfs/dmvfs/internal/materialize"
	"github.com/dmvfs/dmvfs/internal/metrics"
	"github.com/dmvfs/dmvfs/internal/mount"
	"github.com/dmvfs/dmvfs/internal/perms"
	"github.com/dmvfs/dmvfs/internal/populate"
	"github.com/dmvfs/dmvfs/internal/provenance"
	"github.com/dmvfs/dmvfs/internal/query"
	"github.com/dmvfs/dmvfs/internal/query/sqlserver"
	"github.com/dmvfs/dmvfs/internal/ratelimit"
	"github.com/dmvfs/dmvfs/internal/registry"
	"github.com/dmvfs/dmvfs/internal/shutdown"
	"github.com/jacobsa/daemonize"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"
)

const (
	SuccessfulMountMessage         = "File system has been successfully mounted."
	UnsuccessfulMountMessagePrefix = "Error while mounting dmvfs"

	// DefaultAppName is reported to the servers when --app-name is not set.
	DefaultAppName = "dmvfs"
)

// components is everything the mounted file system is built from.
type components struct {
	mapper       dumppath.Mapper
	tagger       *provenance.Tagger
	registry     *registry.Registry
	executor     query.Executor
	metricHandle metrics.MetricHandle
	materializer *materialize.Materializer
	populator    *populate.Populator
}

func appName(c *cfg.Config) string {
	if c.AppName == "" {
		return DefaultAppName
	}
	return c.AppName
}

// setUpMetrics returns the metric handle for the mount, registering a
// shutdown step for the exporter when one is served.
func setUpMetrics(c *cfg.Config, ctrl *shutdown.Controller) (metrics.MetricHandle, error) {
	if c.Metrics.PrometheusPort <= 0 {
		return metrics.NewNoopMetrics(), nil
	}

	reg := prometheus.NewRegistry()
	mh, err := metrics.NewPrometheusMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("NewPrometheusMetrics: %w", err)
	}

	shutdownFn, err := metrics.ServePrometheus(c.Metrics.PrometheusPort, reg)
	if err != nil {
		return nil, err
	}
	ctrl.Register("metrics exporter", func() error {
		return shutdownFn(context.Background())
	})
	return mh, nil
}

// buildComponents loads the servers and assembles the query path. The
// returned executor is the one every query of the mount goes through.
func buildComponents(c *cfg.Config, ctrl *shutdown.Controller, prompt registry.PasswordPrompt) (*components, error) {
	r, err := registry.Load(string(c.ServersConfig), ctrl, prompt)
	if err != nil {
		return nil, fmt.Errorf("loading servers config: %w", err)
	}
	logger.Infof("Loaded %d server(s) from %s", r.Len(), c.ServersConfig)

	mh, err := setUpMetrics(c, ctrl)
	if err != nil {
		return nil, err
	}

	sqlExecutor := sqlserver.NewExecutor(c.Query, appName(c), mh)
	ctrl.Register("sql connections", sqlExecutor.Close)

	executor, err := ratelimit.ThrottleExecutor(c.Query.MaxQueriesPerSec, sqlExecutor)
	if err != nil {
		return nil, fmt.Errorf("ThrottleExecutor: %w", err)
	}

	return newComponents(c, ctrl, r, executor, provenance.UnixAttrStore{}, mh), nil
}

func newComponents(
	c *cfg.Config,
	aborter shutdown.Aborter,
	r *registry.Registry,
	executor query.Executor,
	store provenance.AttrStore,
	mh metrics.MetricHandle) *components {
	mapper := dumppath.New(string(c.DumpDir))
	tagger := provenance.NewTagger(mapper, store)

	return &components{
		mapper:       mapper,
		tagger:       tagger,
		registry:     r,
		executor:     executor,
		metricHandle: mh,
		materializer: materialize.NewMaterializer(&materialize.Config{
			Mapper:   mapper,
			Tagger:   tagger,
			Executor: executor,
			Aborter:  aborter,
			Metrics:  mh,
			DirMode:  os.FileMode(c.FileSystem.DirMode),
			FileMode: os.FileMode(c.FileSystem.FileMode),
		}),
		populator: populate.NewPopulator(mapper, r, executor, mh, os.FileMode(c.FileSystem.FileMode)),
	}
}

// serverConfig describes the file system served over the dump dir.
func serverConfig(c *cfg.Config, comps *components) (*fs.ServerConfig, error) {
	// If invoked as root without --uid, everything is going to be owned by
	// root. This is probably not what the user wants, so print a warning.
	uid, gid, err := perms.ResolveOwner(c.FileSystem.Uid, c.FileSystem.Gid)
	if err != nil {
		return nil, err
	}
	if uid == 0 && c.FileSystem.Uid < 0 {
		logger.Warnf("dmvfs invoked as root. All files will be owned by root unless --uid is given.")
	}

	return &fs.ServerConfig{
		CacheClock:   timeutil.RealClock(),
		Mapper:       comps.mapper,
		Tagger:       comps.tagger,
		Populator:    comps.populator,
		AttrCacheTTL: c.FileSystem.AttrCacheTtl,
		Uid:          uid,
		Gid:          gid,
		MetricHandle: comps.metricHandle,
	}, nil
}

// mountWithComponents materializes every server and mounts the dump dir at
// mountPoint.
func mountWithComponents(
	ctx context.Context,
	c *cfg.Config,
	mountPoint string,
	comps *components) (mfs *fuse.MountedFileSystem, err error) {
	if err = os.MkdirAll(comps.mapper.Root(), os.FileMode(c.FileSystem.DirMode)); err != nil {
		return nil, fmt.Errorf("creating dump dir: %w", err)
	}

	if err = comps.materializer.MaterializeAll(ctx, comps.registry); err != nil {
		return nil, fmt.Errorf("materializing servers: %w", err)
	}

	serverCfg, err := serverConfig(c, comps)
	if err != nil {
		return nil, err
	}

	server, err := fs.NewServer(ctx, serverCfg)
	if err != nil {
		return nil, fmt.Errorf("fs.NewServer: %w", err)
	}

	mfs, err = fuse.Mount(mountPoint, server, mount.Config(c))
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	return mfs, nil
}

func registerTerminatingSignalHandler(mountPoint string) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, unix.SIGTERM, unix.SIGHUP)

	// Start a goroutine that will unmount when the signal is received.
	go func() {
		for {
			sig := <-signalChan
			logger.Infof("Received %s, attempting to unmount...", sig)

			if err := fuse.Unmount(mountPoint); err != nil {
				logger.Errorf("Failed to unmount in response to %s: %v", sig, err)
			} else {
				logger.Infof("Successfully unmounted in response to %s.", sig)
				return
			}
		}
	}()
}

// Mount serves the file system described by c at mountPoint and blocks until
// it is unmounted. Unless c.Foreground is set it re-executes itself in the
// background and returns once the daemon reports the outcome of mounting.
func Mount(c *cfg.Config, mountPoint string) (err error) {
	logger.SetLogFormat(c.Logging.Format)

	if c.Foreground {
		if err = logger.InitLogFile(c.Logging); err != nil {
			return fmt.Errorf("init log file: %w", err)
		}
	}

	logger.Infof("Start dmvfs/%s for app %q using mount point: %s", version, appName(c), mountPoint)
	if c.Foreground || c.Logging.FilePath == "" {
		if s, err := cfg.Stringify(c); err == nil {
			logger.Debugf("dmvfs config:\n%s", s)
		}
	}

	if !c.Foreground {
		return runInBackground(c, mountPoint)
	}

	if c.Debug.ExitOnInvariantViolation {
		syncutil.EnableInvariantChecking()
	}

	ctx := context.Background()
	ctrl := shutdown.NewController()
	disarm := reportAbortToParent(ctrl, signalOutcome)

	markMountFailure := func(err error) error {
		logger.Errorf("%s: %v", UnsuccessfulMountMessagePrefix, err)
		err = fmt.Errorf("%s: %w", UnsuccessfulMountMessagePrefix, err)
		signalOutcome(err)
		return err
	}

	comps, err := buildComponents(c, ctrl, registry.TerminalPrompt)
	if err != nil {
		return markMountFailure(err)
	}

	mfs, err := mountWithComponents(ctx, c, mountPoint, comps)
	if err != nil {
		return markMountFailure(err)
	}
	disarm()
	logger.Info(SuccessfulMountMessage)
	signalOutcome(nil)

	ctrl.Register("unmount", func() error {
		return fuse.Unmount(mfs.Dir())
	})
	registerTerminatingSignalHandler(mfs.Dir())

	// Wait for the file system to be unmounted.
	if err = mfs.Join(ctx); err != nil {
		err = fmt.Errorf("MountedFileSystem.Join: %w", err)
	}
	return err
}

// reportAbortToParent makes an abort that happens before the mount is up
// reach report, since Abort exits without returning to Mount. The returned
// func disarms it once mounting succeeded.
func reportAbortToParent(ctrl *shutdown.Controller, report func(error)) (disarm func()) {
	var mounted atomic.Bool
	ctrl.Register("report mount failure", func() error {
		if !mounted.Load() {
			report(fmt.Errorf("%s: %s", UnsuccessfulMountMessagePrefix, ctrl.Reason()))
		}
		return nil
	})
	return func() { mounted.Store(true) }
}

// signalOutcome tells the parent process, if there is one, how mounting went.
func signalOutcome(outcome error) {
	if _, ok := os.LookupEnv(logger.InBackgroundModeEnv); !ok {
		return
	}
	if err := daemonize.SignalOutcome(outcome); err != nil {
		logger.Errorf("Failed to signal outcome to parent-process from daemon: %v", err)
	}
}
