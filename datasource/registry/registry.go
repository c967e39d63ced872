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

// Package registry owns the per-tenant connection pools. Lookups are lock
// free against an immutable snapshot; registrations build the pool outside
// any lock and publish a new snapshot to every subscriber.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/szijea/springboot-main-sub000/datasource/base"
	"github.com/szijea/springboot-main-sub000/shared/logger"
)

// ErrUnknownTenant is returned for ids that were never registered
var ErrUnknownTenant = errors.New("unknown tenant")

var poolBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pharmacy_pool_builds_total",
	Help: "Tenant pool registrations by outcome",
}, []string{"status"})

// PoolBuilder establishes a verified pool for one tenant
type PoolBuilder interface {
	Build(ctx context.Context, cfg base.TenantConfig) (*sql.DB, error)
}

// TargetSubscriber receives the full routing table after every change
type TargetSubscriber interface {
	SetTargets(targets map[string]*sql.DB)
}

// Pool is a registered tenant pool. DB is owned by the registry and must
// not be closed by callers.
type Pool struct {
	ID        string
	Driver    string
	DB        *sql.DB
	CreatedAt time.Time
	config    base.TenantConfig
}

// Config returns the tenant's connection parameters with the password masked
func (p *Pool) Config() base.TenantConfig {
	return p.config.Redacted()
}

// Stats tracks registration outcomes
type Stats struct {
	Builds        int64
	BuildFailures int64
	NoOps         int64
	LastBuild     time.Time
}

// Registry owns one pool per tenant id. Reads go through an immutable
// snapshot swapped atomically; writes are serialized by writeMu.
type Registry struct {
	builder     PoolBuilder
	snapshot    atomic.Pointer[map[string]*Pool]
	writeMu     sync.Mutex
	subscribers []TargetSubscriber
	group       singleflight.Group

	statsMu sync.Mutex
	stats   Stats

	log *logger.Logger
}

// New creates an empty registry
func New(builder PoolBuilder) *Registry {
	r := &Registry{
		builder: builder,
		log:     logger.New("registry"),
	}
	empty := map[string]*Pool{}
	r.snapshot.Store(&empty)
	return r
}

func (r *Registry) load() map[string]*Pool {
	return *r.snapshot.Load()
}

// Subscribe adds s to the subscribers and publishes the current targets to it
func (r *Registry) Subscribe(s TargetSubscriber) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.subscribers = append(r.subscribers, s)
	s.SetTargets(targetsOf(r.load()))
}

// Register builds and inserts a pool for cfg. Registering an id that already
// exists is a no-op returning the existing pool and created=false. Concurrent
// calls for the same id share one build.
func (r *Registry) Register(ctx context.Context, cfg base.TenantConfig) (*Pool, bool, error) {
	cfg.ID = strings.TrimSpace(cfg.ID)
	if cfg.ID == "" {
		return nil, false, base.NewDataSourceError("", "Register", "tenant id is required", nil)
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, false, base.NewDataSourceError(cfg.ID, "Register", "connection url is required", nil)
	}

	if p, ok := r.Get(cfg.ID); ok {
		r.recordNoOp(cfg.ID)
		return p, false, nil
	}

	leader := false
	v, err, _ := r.group.Do(cfg.ID, func() (interface{}, error) {
		leader = true
		return r.build(ctx, cfg)
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(registration)
	created := leader && res.created
	if !created {
		r.recordNoOp(cfg.ID)
	}
	return res.pool, created, nil
}

type registration struct {
	pool    *Pool
	created bool
}

func (r *Registry) build(ctx context.Context, cfg base.TenantConfig) (registration, error) {
	if p, ok := r.Get(cfg.ID); ok {
		return registration{pool: p}, nil
	}

	db, err := r.builder.Build(ctx, cfg)
	if err != nil {
		r.recordFailure()
		r.log.Error(cfg.ID, "", "Tenant registration failed", logger.WithError(nil, err))
		return registration{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current := r.load()
	if existing, ok := current[cfg.ID]; ok {
		_ = db.Close()
		return registration{pool: existing}, nil
	}

	p := &Pool{
		ID:        cfg.ID,
		Driver:    cfg.Driver(),
		DB:        db,
		CreatedAt: time.Now(),
		config:    cfg,
	}
	next := make(map[string]*Pool, len(current)+1)
	for id, existing := range current {
		next[id] = existing
	}
	next[cfg.ID] = p
	r.snapshot.Store(&next)

	targets := targetsOf(next)
	for _, s := range r.subscribers {
		s.SetTargets(targets)
	}

	r.recordBuild()
	r.log.Info(cfg.ID, "", "Tenant registered", map[string]interface{}{
		"driver":  p.Driver,
		"tenants": len(next),
	})
	return registration{pool: p, created: true}, nil
}

func targetsOf(pools map[string]*Pool) map[string]*sql.DB {
	targets := make(map[string]*sql.DB, len(pools))
	for id, p := range pools {
		targets[id] = p.DB
	}
	return targets
}

// Get returns the pool registered under id
func (r *Registry) Get(id string) (*Pool, bool) {
	p, ok := r.load()[id]
	return p, ok
}

// MustGet returns the pool for id or ErrUnknownTenant
func (r *Registry) MustGet(id string) (*Pool, error) {
	if p, ok := r.Get(id); ok {
		return p, nil
	}
	return nil, ErrUnknownTenant
}

// Default returns the default tenant's pool
func (r *Registry) Default() (*Pool, bool) {
	return r.Get(base.DefaultTenantID)
}

// ListIDs returns all registered tenant ids, sorted
func (r *Registry) ListIDs() []string {
	current := r.load()
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListPools returns all registered pools ordered by id
func (r *Registry) ListPools() []*Pool {
	current := r.load()
	pools := make([]*Pool, 0, len(current))
	for _, p := range current {
		pools = append(pools, p)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return pools
}

// Count returns the number of registered tenants
func (r *Registry) Count() int {
	return len(r.load())
}

// HealthCheck pings every registered pool
func (r *Registry) HealthCheck(ctx context.Context) map[string]*base.HealthStatus {
	pools := r.ListPools()
	results := make(map[string]*base.HealthStatus, len(pools))
	for _, p := range pools {
		start := time.Now()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.DB.PingContext(pingCtx)
		cancel()

		status := &base.HealthStatus{
			Healthy:   err == nil,
			Latency:   time.Since(start),
			Timestamp: time.Now(),
			Details: map[string]string{
				"driver":     p.Driver,
				"open_conns": strconv.Itoa(p.DB.Stats().OpenConnections),
				"in_use":     strconv.Itoa(p.DB.Stats().InUse),
				"registered": p.CreatedAt.UTC().Format(time.RFC3339),
			},
		}
		if err != nil {
			status.Error = err.Error()
		}
		results[p.ID] = status
	}
	return results
}

// Close closes every pool. The registry must not be used afterwards.
func (r *Registry) Close() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	var errs error
	for _, p := range r.load() {
		errs = multierr.Append(errs, p.DB.Close())
	}
	empty := map[string]*Pool{}
	r.snapshot.Store(&empty)
	for _, s := range r.subscribers {
		s.SetTargets(map[string]*sql.DB{})
	}
	return errs
}

// Stats returns a copy of the registration statistics
func (r *Registry) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

func (r *Registry) recordBuild() {
	poolBuilds.WithLabelValues("success").Inc()
	r.statsMu.Lock()
	r.stats.Builds++
	r.stats.LastBuild = time.Now()
	r.statsMu.Unlock()
}

func (r *Registry) recordFailure() {
	poolBuilds.WithLabelValues("failure").Inc()
	r.statsMu.Lock()
	r.stats.BuildFailures++
	r.statsMu.Unlock()
}

func (r *Registry) recordNoOp(id string) {
	poolBuilds.WithLabelValues("noop").Inc()
	r.statsMu.Lock()
	r.stats.NoOps++
	r.statsMu.Unlock()
	r.log.Debug(id, "", "Tenant already registered", nil)
}
