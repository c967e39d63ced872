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
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/szijea/springboot-main-sub000/datasource/config"
	"github.com/szijea/springboot-main-sub000/datasource/registry"
	"github.com/szijea/springboot-main-sub000/schema"
	"github.com/szijea/springboot-main-sub000/seed"
	"github.com/szijea/springboot-main-sub000/shared/logger"
	"github.com/szijea/springboot-main-sub000/tenant"
)

const (
	serviceName     = "pharmacy-datasource"
	shutdownTimeout = 15 * time.Second
)

// Version is set at build time
var Version = "dev"

// Server wires the registry, the routing store and the HTTP surface
type Server struct {
	cfg         *config.Config
	registry    *registry.Registry
	routing     *tenant.RoutingStore
	provisioner *Provisioner
	health      *SchemaHealthHandler
	admin       *TenantAdminHandler
	cache       ReportCache

	ready     atomic.Bool
	startedAt time.Time
	log       *logger.Logger
}

// New creates a server over reg. The routing store subscribes to reg so
// every registration is visible to request routing.
func New(ctx context.Context, cfg *config.Config, reg *registry.Registry) *Server {
	s := &Server{
		cfg:       cfg,
		registry:  reg,
		routing:   tenant.NewRoutingStore(),
		startedAt: time.Now(),
		log:       logger.New("server"),
	}
	reg.Subscribe(s.routing)

	s.cache = s.newReportCache(ctx)
	s.provisioner = NewProvisioner(reg, cfg.BaselineTenant,
		seed.New(seed.DefaultSpec(cfg.Seed.DefaultPassword), cfg.Seed.BcryptCost))
	s.health = NewSchemaHealthHandler(reg, cfg.BaselineTenant, s.cache)
	s.admin = NewTenantAdminHandler(reg, s.provisioner, s.health.Invalidate)
	return s
}

// newReportCache prefers Redis when configured and falls back to the
// in-process cache when Redis is unreachable
func (s *Server) newReportCache(ctx context.Context) ReportCache {
	if s.cfg.RedisURL == "" {
		return NewMemoryReportCache(s.cfg.HealthCacheTTL)
	}
	c, err := NewRedisReportCache(ctx, s.cfg.RedisURL, s.cfg.HealthCacheTTL)
	if err != nil {
		s.log.Warn("", "", "Redis unavailable, using in-process health cache", logger.WithError(nil, err))
		return NewMemoryReportCache(s.cfg.HealthCacheTTL)
	}
	s.log.Info("", "", "Health cache backed by Redis", nil)
	return c
}

// Provisioner returns the tenant provisioner
func (s *Server) Provisioner() *Provisioner {
	return s.provisioner
}

// Routing returns the tenant routing store
func (s *Server) Routing() *tenant.RoutingStore {
	return s.routing
}

// Router builds the HTTP handler
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.health.RegisterRoutes(r)
	s.admin.RegisterRoutes(r)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(tenant.Middleware(tenant.MiddlewareOptions{
		Header: s.cfg.TenantHeader,
		Param:  s.cfg.TenantParam,
	}))
	api.HandleFunc("/context", s.handleContext).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// Start provisions the configured tenants, then serves HTTP until ctx is
// cancelled. A default tenant that cannot be provisioned is fatal.
func (s *Server) Start(ctx context.Context) error {
	reports, err := s.provisioner.ProvisionAll(ctx, s.cfg.Tenants)
	if err != nil {
		return err
	}
	s.ready.Store(true)
	s.log.Info("", "", "Tenants provisioned", map[string]interface{}{
		"tenants":  s.registry.ListIDs(),
		"reports":  len(reports),
		"baseline": s.provisioner.Baseline(),
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("", "", "Listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	s.ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("", "", "Shutting down", nil)
	err = srv.Shutdown(shutdownCtx)
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close releases every tenant pool and the Redis connection
func (s *Server) Close() error {
	if rc, ok := s.cache.(*RedisReportCache); ok {
		_ = rc.Close()
	}
	return s.registry.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if !s.ready.Load() {
		status, code = "starting", http.StatusServiceUnavailable
	}
	stats := s.registry.Stats()
	writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   serviceName,
		"version":   Version,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"tenants":   s.registry.Count(),
		"pools": map[string]int64{
			"builds":   stats.Builds,
			"failures": stats.BuildFailures,
			"no_ops":   stats.NoOps,
		},
	})
}

// ContextResponse is returned by GET /api/v1/context
type ContextResponse struct {
	Requested string `json:"requested"`
	Tenant    string `json:"tenant"`
	Catalog   string `json:"catalog"`
}

// handleContext reports which tenant the request was routed to, resolving
// the catalog name through the routing store
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _, err := s.routing.Resolve(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	query := schema.MySQL{}.CatalogQuery()
	if p, ok := s.registry.Get(id); ok {
		query = schema.DialectFor(p.Driver).CatalogQuery()
	}

	var catalog string
	if err := s.routing.QueryRowContext(ctx, query).Scan(&catalog); err != nil {
		s.log.Error(id, RequestID(ctx), "Catalog lookup failed", logger.WithError(nil, err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ContextResponse{
		Requested: tenant.CurrentID(ctx),
		Tenant:    id,
		Catalog:   catalog,
	})
}
