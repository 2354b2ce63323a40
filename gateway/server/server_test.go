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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/connectors/mysql"
	"github.com/ddam2015/spp-app-data-hub/connectors/pooltest"
	"github.com/ddam2015/spp-app-data-hub/connectors/registry"
	"github.com/ddam2015/spp-app-data-hub/gateway/metrics"
	"github.com/ddam2015/spp-app-data-hub/gateway/ratelimit"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"data":{}}`))
})

func newRegistry(pool base.Pool) *registry.Registry {
	return registry.New(registry.Options{
		Factory: func(context.Context, registry.Tenant) (base.Pool, error) { return pool, nil },
	})
}

func TestHealthStartingThenHealthy(t *testing.T) {
	s := New(Options{Version: "1.2.3"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "starting", body["status"])
	assert.Equal(t, ServiceName, body["service"])
	assert.Equal(t, "1.2.3", body["version"])

	s.SetReady(true)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHealthReportsPools(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reg := newRegistry(mysql.NewFromDB("development", db, nil))
	_, err = reg.GetPool(context.Background(), registry.RoutingKey{Host: "localhost"})
	require.NoError(t, err)

	s := New(Options{Registry: reg})
	s.SetReady(true)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Status   string                `json:"status"`
		Pools    map[string]poolHealth `json:"pools"`
		Registry registry.Stats        `json:"registry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	require.Contains(t, body.Pools, "development")
	assert.True(t, body.Pools["development"].Healthy)
	assert.Equal(t, int64(1), body.Registry.FactoryCreations)
}

func TestHealthDegradedWhenPoolUnhealthy(t *testing.T) {
	pool := pooltest.New("dev", pooltest.Rows())
	reg := newRegistry(pool)
	_, err := reg.GetPool(context.Background(), registry.RoutingKey{Host: "localhost"})
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	s := New(Options{Registry: reg})
	s.SetReady(true)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := New(Options{Metrics: m, Gatherer: reg, GraphQL: okHandler})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("{}")))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `spp_gateway_http_requests_total{path="/graphql",status="2xx"} 1`)
}

func TestRequestIDPropagation(t *testing.T) {
	s := New(Options{GraphQL: okHandler})

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
}

func TestCORSAllowList(t *testing.T) {
	s := New(Options{GraphQL: okHandler})

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("https://admin.sportspassports.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://admin.sportspassports.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = preflight("https://evil.example.com")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGraphQLRateLimited(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := New(Options{
		GraphQL:      okHandler,
		Limiter:      ratelimit.NewMemoryLimiter(2, time.Minute),
		RateLimitMax: 2,
		Metrics:      m,
		Gatherer:     reg,
	})

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "198.51.100.7:1234"
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("/graphql"))
	assert.Equal(t, http.StatusOK, do("/graphql"))
	assert.Equal(t, http.StatusTooManyRequests, do("/graphql"))

	// Health and metrics checks are not rate limited
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.7:1234"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := New(Options{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphql", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := New(Options{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunReturnsListenError(t *testing.T) {
	s := New(Options{Addr: "256.0.0.1:bad"})
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, http.ErrServerClosed))
}

func TestPoolStatsSkipsPoolsWithoutStats(t *testing.T) {
	reg := newRegistry(pooltest.New("dev", pooltest.Rows()))
	_, err := reg.GetPool(context.Background(), registry.RoutingKey{Host: "localhost"})
	require.NoError(t, err)
	assert.Empty(t, PoolStats(reg))
}
