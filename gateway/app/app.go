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

// Package app assembles the gateway from configuration: tenant pool
// registry, query pipeline, GraphQL schema and HTTP server.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ddam2015/spp-app-data-hub/config"
	"github.com/ddam2015/spp-app-data-hub/connectors/registry"
	"github.com/ddam2015/spp-app-data-hub/gateway/auth"
	"github.com/ddam2015/spp-app-data-hub/gateway/executor"
	"github.com/ddam2015/spp-app-data-hub/gateway/filterguard"
	"github.com/ddam2015/spp-app-data-hub/gateway/graphqlapi"
	"github.com/ddam2015/spp-app-data-hub/gateway/metrics"
	"github.com/ddam2015/spp-app-data-hub/gateway/queries"
	"github.com/ddam2015/spp-app-data-hub/gateway/ratelimit"
	"github.com/ddam2015/spp-app-data-hub/gateway/resolver"
	"github.com/ddam2015/spp-app-data-hub/gateway/server"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// App is a fully wired gateway.
type App struct {
	Config   *config.Config
	Registry *registry.Registry
	Server   *server.Server

	redis  *redis.Client
	logger *logger.Logger
}

// Options overrides pieces of the default wiring.
type Options struct {
	Version string
	// Factory replaces the MySQL pool factory.
	Factory registry.PoolFactory
	// Verifier replaces the Firebase verifier built from configuration.
	Verifier auth.IdentityVerifier
	// Registerer and Gatherer default to the global Prometheus registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Logger     *logger.Logger
}

// New wires every component. No database connection is opened here: tenant
// pools are created on first use.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = logger.New(server.ServiceName)
	}
	if opts.Registerer == nil || opts.Gatherer == nil {
		opts.Registerer, opts.Gatherer = prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	}

	m := metrics.New(opts.Registerer)

	creds := cfg.Credentials()
	factory := opts.Factory
	if factory == nil {
		factory = registry.MySQLFactory(creds, cfg.PoolOptions(), log)
	}
	reg := registry.New(registry.Options{
		Classifier: registry.Classifier{ProductionMarker: cfg.ProductionHostMarker},
		Factory:    factory,
		Prefixes:   registry.PrefixesOf(creds),
		OnCreate:   func(t registry.Tenant) { m.PoolCreated(string(t)) },
		Logger:     log,
	})
	opts.Registerer.MustRegister(metrics.NewPoolCollector(func() map[string]sql.DBStats {
		return server.PoolStats(reg)
	}))

	issuer, err := auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return nil, err
	}

	verifier := opts.Verifier
	if verifier == nil && cfg.Firebase.ProjectID != "" {
		fv, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to load sign-in keys: %w", err)
		}
		verifier = fv
	}
	var signIn *auth.SignIn
	if verifier != nil {
		signIn = auth.NewSignIn(verifier, issuer, log)
	} else {
		log.Warn("", "", "No sign-in verifier configured, signIn is disabled", nil)
	}

	a := &App{Config: cfg, Registry: reg, logger: log}

	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		client, err := ratelimit.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("", "", "Redis unavailable, using in-memory rate limiter", map[string]interface{}{
				"error": logger.SanitizeError(err),
			})
			limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		} else {
			a.redis = client
			limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimit.Max, cfg.RateLimit.Window, log)
		}
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	}

	guard := filterguard.New(cfg.FilterMode(),
		filterguard.WithLogger(log),
		filterguard.WithDetectionHook(m.FilterDetected),
	)

	svc := resolver.New(resolver.Options{
		Registry: reg,
		Composer: queries.NewComposer(cfg.QueryTimeout),
		Executor: executor.New(log, m),
		Gate:     auth.NewGate(issuer),
		Guard:    guard,
		SignIn:   signIn,
		Logger:   log,
	})

	schema, err := graphqlapi.NewSchema(svc)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}

	a.Server = server.New(server.Options{
		Addr:           cfg.Addr(),
		Version:        opts.Version,
		AllowedOrigins: cfg.AllowedOrigins,
		GraphQL:        graphqlapi.NewHandler(schema, log),
		Registry:       reg,
		Limiter:        limiter,
		RateLimitMax:   cfg.RateLimit.Max,
		Metrics:        m,
		Gatherer:       opts.Gatherer,
		Logger:         log,
	})
	return a, nil
}

// Run serves until ctx is cancelled, then closes every pool.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	a.Server.SetReady(true)
	a.logger.Info("", "", "Gateway starting", map[string]interface{}{
		"addr":        a.Config.Addr(),
		"env":         a.Config.Env,
		"filter_mode": string(a.Config.FilterMode()),
	})
	return a.Server.Run(ctx)
}

// Close releases pools and the Redis client.
func (a *App) Close() {
	a.Registry.CloseAll()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("", "", "Failed to close Redis client", map[string]interface{}{
				"error": logger.SanitizeError(err),
			})
		}
		a.redis = nil
	}
}
