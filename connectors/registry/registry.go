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

package registry

import (
	"context"
	"sync"
	"time"

	"github.com/ddam2015/spp-app-data-hub/connectors/base"
	"github.com/ddam2015/spp-app-data-hub/shared/logger"
)

// TenantPool is a tenant's long-lived pool plus the table-namespace prefix
// its queries are composed with.
type TenantPool struct {
	Tenant    Tenant
	Prefix    string
	Pool      base.Pool
	CreatedAt time.Time
}

// PoolFactory opens the pool for a tenant using that tenant's credentials.
type PoolFactory func(ctx context.Context, tenant Tenant) (base.Pool, error)

// Registry maps routing keys to tenant pools. Pools are created on first
// use and live until CloseAll at process exit; a tenant never has more than
// one pool.
type Registry struct {
	mu    sync.RWMutex
	pools map[Tenant]*TenantPool

	classifier Classifier
	factory    PoolFactory
	prefixes   map[Tenant]string
	onCreate   func(Tenant)
	logger     *logger.Logger

	stats registryStats
}

// Stats is a snapshot of registry activity.
type Stats struct {
	Hits              int64     `json:"hits"`
	Misses            int64     `json:"misses"`
	FactoryCreations  int64     `json:"factory_creations"`
	FactoryFailures   int64     `json:"factory_failures"`
	LastFactoryCreate time.Time `json:"last_factory_create"`
}

type registryStats struct {
	mu sync.Mutex
	Stats
}

// Options holds options for creating a Registry.
type Options struct {
	Classifier Classifier
	Factory    PoolFactory
	// Prefixes maps each tenant to its table-namespace prefix.
	Prefixes map[Tenant]string
	// OnCreate is invoked once per pool creation, under the registry lock.
	OnCreate func(Tenant)
	Logger   *logger.Logger
}

// New creates a Registry. It is constructed once at process start and
// passed to every resolver.
func New(opts Options) *Registry {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	prefixes := make(map[Tenant]string, len(opts.Prefixes))
	for k, v := range opts.Prefixes {
		prefixes[k] = v
	}
	return &Registry{
		pools:      make(map[Tenant]*TenantPool),
		classifier: opts.Classifier,
		factory:    opts.Factory,
		prefixes:   prefixes,
		onCreate:   opts.OnCreate,
		logger:     log.Named("pool_registry"),
	}
}

// Classify exposes the routing rule.
func (r *Registry) Classify(key RoutingKey) Tenant {
	return r.classifier.Classify(key)
}

// Prefix returns the tenant and table-namespace prefix for key without
// creating a pool. The prefix map is fixed at construction.
func (r *Registry) Prefix(key RoutingKey) (Tenant, string) {
	tenant := r.classifier.Classify(key)
	return tenant, r.prefixes[tenant]
}

// GetPool returns the pool for key's tenant, creating it on first use.
func (r *Registry) GetPool(ctx context.Context, key RoutingKey) (*TenantPool, error) {
	tenant := r.classifier.Classify(key)

	r.mu.RLock()
	tp, exists := r.pools[tenant]
	r.mu.RUnlock()
	if exists {
		r.recordHit()
		return tp, nil
	}

	return r.loadPool(ctx, tenant, key)
}

func (r *Registry) loadPool(ctx context.Context, tenant Tenant, key RoutingKey) (*TenantPool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check if another goroutine already created it
	if tp, exists := r.pools[tenant]; exists {
		r.recordHit()
		return tp, nil
	}

	r.recordMiss()

	if r.factory == nil {
		return nil, base.NewConnectorError(string(tenant), "GetPool", "pool factory not configured", nil).
			WithKind(base.ErrConnectionUnavailable)
	}

	start := time.Now()
	pool, err := r.factory(ctx, tenant)
	if err != nil {
		r.recordFactoryFailure()
		r.logger.Error("", "", "Failed to create tenant pool", map[string]interface{}{
			"tenant":      string(tenant),
			"routing_key": key.String(),
			"error":       logger.SanitizeError(err),
		})
		return nil, base.NewConnectorError(string(tenant), "GetPool", "failed to create pool", err).
			WithKind(base.ErrConnectionUnavailable)
	}

	tp := &TenantPool{
		Tenant:    tenant,
		Prefix:    r.prefixes[tenant],
		Pool:      pool,
		CreatedAt: time.Now(),
	}
	r.pools[tenant] = tp
	r.recordFactoryCreate()
	if r.onCreate != nil {
		r.onCreate(tenant)
	}

	r.logger.InfoWithDuration("", "", "Created tenant pool", float64(time.Since(start).Milliseconds()), map[string]interface{}{
		"tenant":      string(tenant),
		"pool":        pool.Name(),
		"routing_key": key.String(),
	})

	return tp, nil
}

// Count returns the number of live pools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// Pools returns the live pools.
func (r *Registry) Pools() []*TenantPool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*TenantPool, 0, len(r.pools))
	for _, tenant := range []Tenant{TenantProduction, TenantDevelopment} {
		if tp, ok := r.pools[tenant]; ok {
			out = append(out, tp)
		}
	}
	return out
}

// HealthCheck pings every live pool.
func (r *Registry) HealthCheck(ctx context.Context) map[Tenant]*base.HealthStatus {
	result := make(map[Tenant]*base.HealthStatus)
	for _, tp := range r.Pools() {
		status, err := tp.Pool.HealthCheck(ctx)
		if err != nil {
			status = &base.HealthStatus{
				Healthy:   false,
				Timestamp: time.Now(),
				Error:     logger.SanitizeError(err),
			}
		}
		result[tp.Tenant] = status
	}
	return result
}

// CloseAll closes every pool. Only called during process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for tenant, tp := range r.pools {
		if err := tp.Pool.Close(); err != nil {
			r.logger.Warn("", "", "Failed to close tenant pool", map[string]interface{}{
				"tenant": string(tenant),
				"error":  logger.SanitizeError(err),
			})
		}
	}
	r.pools = make(map[Tenant]*TenantPool)
	r.logger.Info("", "", "All tenant pools closed", nil)
}

// GetStats returns registry statistics.
func (r *Registry) GetStats() Stats {
	r.stats.mu.Lock()
	defer r.stats.mu.Unlock()
	return r.stats.Stats
}

func (r *Registry) recordHit() {
	r.stats.mu.Lock()
	r.stats.Hits++
	r.stats.mu.Unlock()
}

func (r *Registry) recordMiss() {
	r.stats.mu.Lock()
	r.stats.Misses++
	r.stats.mu.Unlock()
}

func (r *Registry) recordFactoryCreate() {
	r.stats.mu.Lock()
	r.stats.FactoryCreations++
	r.stats.LastFactoryCreate = time.Now()
	r.stats.mu.Unlock()
}

func (r *Registry) recordFactoryFailure() {
	r.stats.mu.Lock()
	r.stats.FactoryFailures++
	r.stats.mu.Unlock()
}
