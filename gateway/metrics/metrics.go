// Copyright 2025 AxonFlow
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

// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spp_gateway"

// Metrics holds the gateway collectors. It satisfies executor.Observer.
type Metrics struct {
	QueriesTotal         *prometheus.CounterVec
	QueryDuration        *prometheus.HistogramVec
	ConnectionsDestroyed *prometheus.CounterVec
	PoolsCreated         *prometheus.CounterVec
	FilterDetections     *prometheus.CounterVec
	RateLimitRejections  prometheus.Counter
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of executed query specs",
			},
			[]string{"operation", "tenant", "outcome"},
		),
		QueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_milliseconds",
				Help:      "Query execution time in milliseconds, lease included",
				Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
			},
			[]string{"operation", "tenant"},
		),
		ConnectionsDestroyed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_destroyed_total",
				Help:      "Connections destroyed instead of returned to the pool",
			},
			[]string{"operation", "tenant"},
		),
		PoolsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pools_created_total",
				Help:      "Tenant pools created by the registry",
			},
			[]string{"tenant"},
		),
		FilterDetections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "filter_detections_total",
				Help:      "Suspicious raw filter fragments detected",
			},
			[]string{"operation", "pattern", "blocked"},
		),
		RateLimitRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_rejections_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_milliseconds",
				Help:      "HTTP request duration in milliseconds",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
			},
			[]string{"path"},
		),
	}

	reg.MustRegister(
		m.QueriesTotal,
		m.QueryDuration,
		m.ConnectionsDestroyed,
		m.PoolsCreated,
		m.FilterDetections,
		m.RateLimitRejections,
		m.RequestsTotal,
		m.RequestDuration,
	)
	return m
}

// ObserveQuery records one finished query spec.
func (m *Metrics) ObserveQuery(operation, tenant, outcome string, elapsed time.Duration) {
	m.QueriesTotal.WithLabelValues(operation, tenant, outcome).Inc()
	m.QueryDuration.WithLabelValues(operation, tenant).Observe(float64(elapsed) / float64(time.Millisecond))
}

// ConnectionDestroyed records a connection removed from its pool.
func (m *Metrics) ConnectionDestroyed(operation, tenant string) {
	m.ConnectionsDestroyed.WithLabelValues(operation, tenant).Inc()
}

// PoolCreated records a tenant pool creation.
func (m *Metrics) PoolCreated(tenant string) {
	m.PoolsCreated.WithLabelValues(tenant).Inc()
}

// FilterDetected records a raw filter detection.
func (m *Metrics) FilterDetected(operation, pattern string, blocked bool) {
	b := "false"
	if blocked {
		b = "true"
	}
	m.FilterDetections.WithLabelValues(operation, pattern, b).Inc()
}

// RateLimited records a rejected request.
func (m *Metrics) RateLimited(string) {
	m.RateLimitRejections.Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(path string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(path, statusClass(status)).Inc()
	m.RequestDuration.WithLabelValues(path).Observe(float64(elapsed) / float64(time.Millisecond))
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// PoolStatsSource returns the current database/sql stats per tenant.
type PoolStatsSource func() map[string]sql.DBStats

// PoolCollector exports pool stats at scrape time.
type PoolCollector struct {
	source PoolStatsSource

	open     *prometheus.Desc
	inUse    *prometheus.Desc
	idle     *prometheus.Desc
	waitCnt  *prometheus.Desc
	maxOpen  *prometheus.Desc
	lifetime *prometheus.Desc
}

// NewPoolCollector creates a collector reading from source.
func NewPoolCollector(source PoolStatsSource) *PoolCollector {
	labels := []string{"tenant"}
	return &PoolCollector{
		source:   source,
		open:     prometheus.NewDesc(namespace+"_pool_open_connections", "Established connections, in use and idle", labels, nil),
		inUse:    prometheus.NewDesc(namespace+"_pool_in_use_connections", "Connections currently leased", labels, nil),
		idle:     prometheus.NewDesc(namespace+"_pool_idle_connections", "Idle connections", labels, nil),
		waitCnt:  prometheus.NewDesc(namespace+"_pool_wait_count_total", "Leases that had to wait for a connection", labels, nil),
		maxOpen:  prometheus.NewDesc(namespace+"_pool_max_open_connections", "Configured connection limit", labels, nil),
		lifetime: prometheus.NewDesc(namespace+"_pool_max_lifetime_closed_total", "Connections closed for exceeding their lifetime", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.open
	ch <- c.inUse
	ch <- c.idle
	ch <- c.waitCnt
	ch <- c.maxOpen
	ch <- c.lifetime
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	for tenant, s := range c.source() {
		ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(s.OpenConnections), tenant)
		ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(s.InUse), tenant)
		ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle), tenant)
		ch <- prometheus.MustNewConstMetric(c.waitCnt, prometheus.CounterValue, float64(s.WaitCount), tenant)
		ch <- prometheus.MustNewConstMetric(c.maxOpen, prometheus.GaugeValue, float64(s.MaxOpenConnections), tenant)
		ch <- prometheus.MustNewConstMetric(c.lifetime, prometheus.CounterValue, float64(s.MaxLifetimeClosed), tenant)
	}
}
