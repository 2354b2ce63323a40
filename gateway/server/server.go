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

// Package server wires the gateway's HTTP surface: the GraphQL endpoint
// behind CORS and the rate limiter, plus health and Prometheus endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ddam2015/spp-app-data-hub/connectors/registry"
	"github.com/ddam2015/spp-app-data-hub/gateway/metrics"
	"github.com/ddam2015/spp-app-data-hub/gateway/ratelimit"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

const (
	ServiceName = "spp-data-hub"

	shutdownTimeout = 10 * time.Second
	healthTimeout   = 3 * time.Second
)

// DefaultAllowedOrigins are the dashboard origins allowed to call the API.
var DefaultAllowedOrigins = []string{
	"https://admin.sportspassports.com",
	"https://sportspassports.com",
	"http://engineerings.sportspassports.com:8081",
}

// Options configures a Server.
type Options struct {
	Addr           string
	Version        string
	AllowedOrigins []string
	GraphQL        http.Handler
	Registry       *registry.Registry
	Limiter        ratelimit.Limiter
	RateLimitMax   int
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Logger         *logger.Logger
}

// Server is the gateway HTTP server.
type Server struct {
	opts    Options
	router  *mux.Router
	handler http.Handler
	http    *http.Server
	ready   atomic.Bool
	logger  *logger.Logger
}

// New builds the router and middleware chain. The server reports
// "starting" on /health until SetReady(true).
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = DefaultAllowedOrigins
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		opts:   opts,
		router: mux.NewRouter(),
		logger: log.Named("http"),
	}

	s.router.Use(s.requestIDMiddleware, s.loggingMiddleware)

	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	if opts.GraphQL != nil {
		gql := opts.GraphQL
		if opts.Limiter != nil {
			var onReject func(string)
			if opts.Metrics != nil {
				onReject = opts.Metrics.RateLimited
			}
			max := opts.RateLimitMax
			if max <= 0 {
				max = ratelimit.DefaultMax
			}
			gql = ratelimit.Middleware(opts.Limiter, max, log, onReject)(gql)
		}
		s.router.Handle("/graphql", gql).Methods(http.MethodGet, http.MethodPost)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:       opts.AllowedOrigins,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:       []string{"X-Request-ID"},
		AllowCredentials:     true,
		OptionsSuccessStatus: http.StatusOK,
	})
	s.handler = c.Handler(s.router)

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetReady flips the /health status between "starting" and "healthy".
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("", "", "Server listening", map[string]interface{}{"addr": s.opts.Addr})
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("", "", "Shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type poolHealth struct {
	Healthy      bool    `json:"healthy"`
	LatencyMS    float64 `json:"latency_ms"`
	Error        string  `json:"error,omitempty"`
	OpenConns    int     `json:"open_connections"`
	InUse        int     `json:"in_use"`
	Idle         int     `json:"idle"`
	MaxOpenConns int     `json:"max_open_connections"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "starting"
	code := http.StatusOK
	if s.ready.Load() {
		status = "healthy"
	}

	body := map[string]interface{}{
		"service":   ServiceName,
		"timestamp": time.Now().UTC(),
		"version":   s.opts.Version,
	}

	if s.opts.Registry != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		stats := PoolStats(s.opts.Registry)
		pools := make(map[string]poolHealth)
		for tenant, hs := range s.opts.Registry.HealthCheck(ctx) {
			ph := poolHealth{
				Healthy:   hs.Healthy,
				LatencyMS: float64(hs.Latency) / float64(time.Millisecond),
				Error:     hs.Error,
			}
			if st, ok := stats[string(tenant)]; ok {
				ph.OpenConns = st.OpenConnections
				ph.InUse = st.InUse
				ph.Idle = st.Idle
				ph.MaxOpenConns = st.MaxOpenConnections
			}
			if !hs.Healthy {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
			pools[string(tenant)] = ph
		}
		body["pools"] = pools
		body["registry"] = s.opts.Registry.GetStats()
	}
	body["status"] = status

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("", logger.RequestID(r.Context()), "Error encoding health response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
