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

package tenant

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/szijea/springboot-main-sub000/datasource/base"
	"github.com/szijea/springboot-main-sub000/shared/logger"
)

// ErrNoDefaultTarget is returned when a lookup falls back to the default
// tenant but no default pool has been published.
var ErrNoDefaultTarget = errors.New("no default tenant target")

var routeFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pharmacy_tenant_route_fallback_total",
	Help: "Operations whose tenant id was not registered and were routed to the default tenant",
})

// RoutingStore is a connection source that dispatches every operation to
// the pool of the tenant carried by the operation's context. The target map
// is replaced wholesale by SetTargets and read without locking.
type RoutingStore struct {
	targets atomic.Pointer[map[string]*sql.DB]
	log     *logger.Logger
}

// NewRoutingStore creates a store with no targets
func NewRoutingStore() *RoutingStore {
	s := &RoutingStore{log: logger.New("tenant")}
	empty := map[string]*sql.DB{}
	s.targets.Store(&empty)
	return s
}

// SetTargets publishes a new routing table
func (s *RoutingStore) SetTargets(targets map[string]*sql.DB) {
	next := make(map[string]*sql.DB, len(targets))
	for id, db := range targets {
		next[id] = db
	}
	s.targets.Store(&next)
}

// TargetIDs returns the ids currently routable, sorted
func (s *RoutingStore) TargetIDs() []string {
	current := *s.targets.Load()
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve returns the tenant id and pool that operations under ctx use.
// An unset id routes to the default tenant, as does an id with no target.
// The fallback is counted on every call and logged once per scope.
func (s *RoutingStore) Resolve(ctx context.Context) (string, *sql.DB, error) {
	current := *s.targets.Load()

	id := CurrentID(ctx)
	if id != "" {
		if db, ok := current[id]; ok {
			return id, db, nil
		}
		routeFallbacks.Inc()
		if FromContext(ctx).markFallback() {
			s.log.Warn(id, "", "Unknown tenant, routing to default", nil)
		}
	}

	db, ok := current[base.DefaultTenantID]
	if !ok {
		return "", nil, ErrNoDefaultTarget
	}
	return base.DefaultTenantID, db, nil
}

func (s *RoutingStore) db(ctx context.Context) (*sql.DB, error) {
	_, db, err := s.Resolve(ctx)
	return db, err
}

// ExecContext executes a statement against the current tenant
func (s *RoutingStore) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	return db.ExecContext(ctx, query, args...)
}

// QueryContext runs a query against the current tenant
func (s *RoutingStore) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	return db.QueryContext(ctx, query, args...)
}

// Row is the result of QueryRowContext. It defers a routing error to Scan
// the way *sql.Row defers query errors.
type Row struct {
	row *sql.Row
	err error
}

// Scan copies the row's columns into dest
func (r *Row) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	return r.row.Scan(dest...)
}

// Err returns the routing or query error, if any
func (r *Row) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.row.Err()
}

// QueryRowContext runs a single-row query against the current tenant
func (s *RoutingStore) QueryRowContext(ctx context.Context, query string, args ...interface{}) *Row {
	db, err := s.db(ctx)
	if err != nil {
		return &Row{err: err}
	}
	return &Row{row: db.QueryRowContext(ctx, query, args...)}
}

// BeginTx starts a transaction on the current tenant's pool
func (s *RoutingStore) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	return db.BeginTx(ctx, opts)
}

// Conn returns a dedicated connection from the current tenant's pool
func (s *RoutingStore) Conn(ctx context.Context) (*sql.Conn, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	return db.Conn(ctx)
}

// PingContext verifies the current tenant's pool
func (s *RoutingStore) PingContext(ctx context.Context) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}
