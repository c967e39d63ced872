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
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/szijea/springboot-main-sub000/datasource/registry"
	"github.com/szijea/springboot-main-sub000/schema"
	"github.com/szijea/springboot-main-sub000/shared/logger"
)

// Cache keys of the diagnostic reports
const (
	schemaHealthKey = "schema"
	schemaDiffKey   = "diff"
)

// maxConcurrentInspections bounds the catalogs queried at once
const maxConcurrentInspections = 8

// SchemaHealthResponse is returned by GET /health/schema
type SchemaHealthResponse struct {
	Tenants  []schema.TenantHealth `json:"tenants"`
	CachedAt time.Time             `json:"cached_at"`
}

// SchemaDiffResponse is returned by GET /health/diff
type SchemaDiffResponse struct {
	Baseline string              `json:"baseline"`
	Tenants  []schema.TenantDiff `json:"tenants"`
	CachedAt time.Time           `json:"cached_at"`
}

// SchemaHealthHandler serves the cached schema health and drift reports
type SchemaHealthHandler struct {
	registry  *registry.Registry
	inspector *schema.Inspector
	baseline  string
	cache     ReportCache
	group     singleflight.Group
	gen       atomic.Uint64 // bumped by Invalidate
	now       func() time.Time
	log       *logger.Logger
}

// NewSchemaHealthHandler creates the handler. baseline is the tenant the
// drift report compares against.
func NewSchemaHealthHandler(reg *registry.Registry, baseline string, cache ReportCache) *SchemaHealthHandler {
	return &SchemaHealthHandler{
		registry:  reg,
		inspector: schema.NewInspector(nil),
		baseline:  baseline,
		cache:     cache,
		now:       time.Now,
		log:       logger.New("server"),
	}
}

// RegisterRoutes registers GET /health/schema and GET /health/diff
func (h *SchemaHealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health/schema", h.handleSchema).Methods(http.MethodGet)
	r.HandleFunc("/health/diff", h.handleDiff).Methods(http.MethodGet)
}

// Invalidate drops both cached reports. Computations already in flight
// finish for their callers but are not written back.
func (h *SchemaHealthHandler) Invalidate(ctx context.Context) {
	h.gen.Add(1)
	h.group.Forget(schemaHealthKey)
	h.group.Forget(schemaDiffKey)
	if err := h.cache.Delete(ctx, schemaHealthKey, schemaDiffKey); err != nil {
		h.log.Warn("", RequestID(ctx), "Failed to invalidate health cache", logger.WithError(nil, err))
	}
}

func (h *SchemaHealthHandler) handleSchema(w http.ResponseWriter, r *http.Request) {
	var resp SchemaHealthResponse
	err := h.cached(r.Context(), schemaHealthKey, &resp, func(ctx context.Context) (interface{}, error) {
		return h.SchemaHealth(ctx), nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SchemaHealthHandler) handleDiff(w http.ResponseWriter, r *http.Request) {
	var resp SchemaDiffResponse
	err := h.cached(r.Context(), schemaDiffKey, &resp, func(ctx context.Context) (interface{}, error) {
		return h.SchemaDiff(ctx)
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// cached decodes the report under key into dst, computing and storing it
// on a miss. Concurrent misses share one computation.
func (h *SchemaHealthHandler) cached(ctx context.Context, key string, dst interface{}, compute func(context.Context) (interface{}, error)) error {
	data, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		h.log.Warn("", RequestID(ctx), "Health cache read failed", logger.WithError(map[string]interface{}{"key": key}, err))
	}
	if !ok {
		v, err, _ := h.group.Do(key, func() (interface{}, error) {
			gen := h.gen.Load()
			report, err := compute(ctx)
			if err != nil {
				return nil, err
			}
			encoded, err := json.Marshal(report)
			if err != nil {
				return nil, err
			}
			if h.gen.Load() != gen {
				return encoded, nil
			}
			if err := h.cache.Set(ctx, key, encoded); err != nil {
				h.log.Warn("", RequestID(ctx), "Health cache write failed", logger.WithError(map[string]interface{}{"key": key}, err))
			}
			return encoded, nil
		})
		if err != nil {
			return err
		}
		data = v.([]byte)
	}
	return json.Unmarshal(data, dst)
}

// SchemaHealth inspects every registered tenant
func (h *SchemaHealthHandler) SchemaHealth(ctx context.Context) SchemaHealthResponse {
	pools := h.registry.ListPools()
	results := make([]schema.TenantHealth, len(pools))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentInspections)
	for i, pool := range pools {
		i, pool := i, pool
		g.Go(func() error {
			results[i] = h.inspector.Health(gctx, catalogFor(pool))
			return nil
		})
	}
	_ = g.Wait()

	return SchemaHealthResponse{Tenants: results, CachedAt: h.now().UTC()}
}

// SchemaDiff compares every non-baseline tenant with the baseline
func (h *SchemaHealthHandler) SchemaDiff(ctx context.Context) (SchemaDiffResponse, error) {
	resp := SchemaDiffResponse{Baseline: h.baseline, Tenants: []schema.TenantDiff{}}

	basePool, ok := h.registry.Get(h.baseline)
	if !ok {
		return resp, fmt.Errorf("baseline tenant %q is not registered", h.baseline)
	}
	baseline, err := catalogFor(basePool).Snapshot(ctx)
	if err != nil {
		return resp, fmt.Errorf("baseline tenant %q: %w", h.baseline, err)
	}

	var pools []*registry.Pool
	for _, p := range h.registry.ListPools() {
		if p.ID != h.baseline {
			pools = append(pools, p)
		}
	}
	diffs := make([]schema.TenantDiff, len(pools))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentInspections)
	for i, pool := range pools {
		i, pool := i, pool
		g.Go(func() error {
			diffs[i] = h.inspector.Diff(gctx, baseline, catalogFor(pool))
			return nil
		})
	}
	_ = g.Wait()

	resp.Tenants = diffs
	resp.CachedAt = h.now().UTC()
	return resp, nil
}
