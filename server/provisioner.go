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
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/szijea/springboot-main-sub000/datasource/base"
	"github.com/szijea/springboot-main-sub000/datasource/registry"
	"github.com/szijea/springboot-main-sub000/schema"
	"github.com/szijea/springboot-main-sub000/seed"
	"github.com/szijea/springboot-main-sub000/shared/logger"
)

var provisionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "pharmacy_provision_duration_seconds",
	Help:    "Duration of the reconcile, heal and seed pipeline per tenant",
	Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
}, []string{"outcome"})

// Provisioner registers tenants and runs the schema pipeline on them:
// reconciliation, foreign key healing, then seeding. Runs for one tenant are
// serialized; different tenants proceed independently.
type Provisioner struct {
	registry   *registry.Registry
	reconciler *schema.Reconciler
	healer     *schema.Healer
	seeder     *seed.Seeder
	baseline   string

	locks sync.Map // tenant id -> *sync.Mutex
	log   *logger.Logger
}

// NewProvisioner creates a provisioner. baseline is the tenant whose tables
// are copied into the others.
func NewProvisioner(reg *registry.Registry, baseline string, seeder *seed.Seeder) *Provisioner {
	return &Provisioner{
		registry:   reg,
		reconciler: schema.NewReconciler(nil),
		healer:     schema.NewHealer(nil),
		seeder:     seeder,
		baseline:   baseline,
		log:        logger.New("server"),
	}
}

// Baseline returns the baseline tenant id
func (p *Provisioner) Baseline() string {
	return p.baseline
}

// ProvisionAll registers every tenant in order and runs the pipeline on each
// registered one, baseline first. Failing to register the default tenant is
// fatal; any other failure is logged and that tenant skipped.
func (p *Provisioner) ProvisionAll(ctx context.Context, tenants []base.TenantConfig) ([]*schema.Report, error) {
	var ids []string
	for _, cfg := range tenants {
		if _, _, err := p.registry.Register(ctx, cfg); err != nil {
			if cfg.ID == base.DefaultTenantID {
				return nil, fmt.Errorf("default tenant: %w", err)
			}
			p.log.Error(cfg.ID, "", "Skipping tenant, pool unavailable", logger.WithError(nil, err))
			continue
		}
		ids = append(ids, cfg.ID)
	}
	if _, ok := p.registry.Default(); !ok {
		return nil, fmt.Errorf("default tenant: %w", registry.ErrUnknownTenant)
	}

	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == p.baseline {
			ordered = append(ordered, id)
		}
	}
	for _, id := range ids {
		if id != p.baseline {
			ordered = append(ordered, id)
		}
	}

	reports := make([]*schema.Report, 0, len(ordered))
	for _, id := range ordered {
		rep, err := p.Reconcile(ctx, id)
		if err != nil {
			p.log.Error(id, "", "Provisioning failed", logger.WithError(nil, err))
			continue
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// Add registers cfg and provisions it. created is false, with a nil report,
// when the id was already registered; a concurrent Add for the same id
// returns only after the first one has finished provisioning.
func (p *Provisioner) Add(ctx context.Context, cfg base.TenantConfig) (rep *schema.Report, created bool, err error) {
	mu := p.lock(cfg.ID)
	mu.Lock()
	defer mu.Unlock()

	pool, created, err := p.registry.Register(ctx, cfg)
	if err != nil || !created {
		return nil, created, err
	}
	return p.provision(ctx, pool), true, nil
}

// Reconcile runs the pipeline on a registered tenant
func (p *Provisioner) Reconcile(ctx context.Context, id string) (*schema.Report, error) {
	mu := p.lock(id)
	mu.Lock()
	defer mu.Unlock()

	pool, ok := p.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownTenant, id)
	}
	return p.provision(ctx, pool), nil
}

// provision runs the pipeline; the caller holds the tenant's lock
func (p *Provisioner) provision(ctx context.Context, pool *registry.Pool) *schema.Report {
	id := pool.ID
	start := time.Now()
	target := catalogFor(pool)
	rep := p.reconciler.Reconcile(ctx, target, p.baselineCatalog(id))
	p.healer.Heal(ctx, target, rep)
	if p.seeder != nil {
		p.seeder.Seed(ctx, target, rep)
	}

	elapsed := time.Since(start)
	outcome := "ok"
	if len(rep.Errors) > 0 {
		outcome = "partial"
	}
	provisionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	p.log.InfoWithDuration(id, "", "Tenant provisioned", float64(elapsed.Milliseconds()), rep.Summary())
	return rep
}

func (p *Provisioner) lock(id string) *sync.Mutex {
	mu, _ := p.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// baselineCatalog returns the baseline's catalog, or nil when there is
// nothing to copy from
func (p *Provisioner) baselineCatalog(target string) *schema.Catalog {
	if p.baseline == "" || p.baseline == target {
		return nil
	}
	pool, ok := p.registry.Get(p.baseline)
	if !ok {
		p.log.Warn(target, "", "Baseline tenant not registered, skipping table propagation", map[string]interface{}{
			"baseline": p.baseline,
		})
		return nil
	}
	return catalogFor(pool)
}

func catalogFor(pool *registry.Pool) *schema.Catalog {
	return schema.NewCatalog(pool.ID, pool.DB, schema.DialectFor(pool.Driver))
}
