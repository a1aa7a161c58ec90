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
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dmvfs"

type promMetrics struct {
	discoveryFailures   *prometheus.CounterVec
	fsOps               *prometheus.CounterVec
	fsOpsErrors         *prometheus.CounterVec
	fsOpsLatency        *prometheus.HistogramVec
	placeholdersCreated *prometheus.CounterVec
	populations         *prometheus.CounterVec
	queryLatency        *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the dmvfs collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (MetricHandle, error) {
	m := &promMetrics{
		discoveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_failures_total",
			Help:      "Number of view discovery queries that failed or returned malformed data.",
		}, []string{"server"}),
		fsOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fs_ops_total",
			Help:      "The cumulative number of ops processed by the file system.",
		}, []string{"fs_op"}),
		fsOpsErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fs_ops_errors_total",
			Help:      "The cumulative number of errors generated by file system operations.",
		}, []string{"fs_error_category", "fs_op"}),
		fsOpsLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fs_ops_latency_seconds",
			Help:      "The cumulative distribution of file system operation latencies.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"fs_op"}),
		placeholdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placeholders_created_total",
			Help:      "Number of tagged placeholder files created at materialization.",
		}, []string{"server"}),
		populations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "populations_total",
			Help:      "Number of placeholder populations, by outcome.",
		}, []string{"server", "status"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_latency_seconds",
			Help:      "The distribution of server query latencies.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"format"}),
	}

	for _, c := range []prometheus.Collector{
		m.discoveryFailures,
		m.fsOps,
		m.fsOpsErrors,
		m.fsOpsLatency,
		m.placeholdersCreated,
		m.populations,
		m.queryLatency,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering collector: %w", err)
		}
	}

	return m, nil
}

func (m *promMetrics) DiscoveryFailureCount(inc int64, server string) {
	m.discoveryFailures.WithLabelValues(server).Add(float64(inc))
}

func (m *promMetrics) FsOpsCount(inc int64, fsOp string) {
	m.fsOps.WithLabelValues(fsOp).Add(float64(inc))
}

func (m *promMetrics) FsOpsErrorCount(inc int64, fsErrorCategory string, fsOp string) {
	m.fsOpsErrors.WithLabelValues(fsErrorCategory, fsOp).Add(float64(inc))
}

func (m *promMetrics) FsOpsLatency(ctx context.Context, duration time.Duration, fsOp string) {
	m.fsOpsLatency.WithLabelValues(fsOp).Observe(duration.Seconds())
}

func (m *promMetrics) PlaceholdersCreatedCount(inc int64, server string) {
	m.placeholdersCreated.WithLabelValues(server).Add(float64(inc))
}

func (m *promMetrics) PopulationCount(inc int64, server string, status string) {
	m.populations.WithLabelValues(server, status).Add(float64(inc))
}

func (m *promMetrics) QueryLatency(ctx context.Context, duration time.Duration, format string) {
	m.queryLatency.WithLabelValues(format).Observe(duration.Seconds())
}
