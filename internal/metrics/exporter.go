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

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dmvfs/dmvfs/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ShutdownFn stops an exporter.
type ShutdownFn func(ctx context.Context) error

// ServePrometheus serves the metrics gathered by g on :port/metrics until the
// returned function is called. A port <= 0 disables the endpoint.
func ServePrometheus(port int64, g prometheus.Gatherer) (ShutdownFn, error) {
	if port <= 0 {
		return func(context.Context) error { return nil }, nil
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on port %d: %w", port, err)
	}

	return serveOn(l, g), nil
}

func serveOn(l net.Listener, g prometheus.Gatherer) ShutdownFn {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Prometheus server failed: %v", err)
		}
	}()
	logger.Infof("Serving metrics at %s/metrics", l.Addr())

	return func(ctx context.Context) error {
		logger.Info("Shutting down Prometheus exporter.")
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down Prometheus exporter: %w", err)
		}
		return nil
	}
}
