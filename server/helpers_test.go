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
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/szijea/springboot-main-sub000/datasource/base"
	"github.com/szijea/springboot-main-sub000/datasource/config"
	"github.com/szijea/springboot-main-sub000/datasource/registry"
	"github.com/szijea/springboot-main-sub000/schema"
	"github.com/szijea/springboot-main-sub000/seed"
)

const (
	qSnapshot       = `FROM information_schema.columns c`
	qTables         = `SELECT table_name FROM information_schema.tables`
	qCatalog        = `SELECT DATABASE\(\)`
	qConstraint     = `FROM information_schema.table_constraints`
	qOrphans        = `LEFT JOIN`
	qIndex          = `FROM information_schema.statistics`
	qCreateTable    = `CREATE TABLE IF NOT EXISTS`
	qCreateIndex    = `CREATE INDEX`
	qAddForeignKey  = `ADD CONSTRAINT`
	qRoleExists     = "FROM `role` WHERE `role_name`"
	qRoleInsert     = "INSERT INTO `role`"
	qRoleID         = "SELECT `role_id` FROM `role`"
	qOperatorExists = "FROM `employee` WHERE `username`"
	qOperatorInsert = "INSERT INTO `employee`"
	qSupplierExists = "FROM `supplier` WHERE `name`"
	qSupplierInsert = "INSERT INTO `supplier`"
)

const testPassword = "123456"

// mockBuilder hands out one sqlmock database per tenant id. Ids without a
// database fail to build.
type mockBuilder struct {
	mu    sync.Mutex
	dbs   map[string]*sql.DB
	mocks map[string]sqlmock.Sqlmock
}

func newMockBuilder(t *testing.T, ids ...string) *mockBuilder {
	t.Helper()
	b := &mockBuilder{dbs: map[string]*sql.DB{}, mocks: map[string]sqlmock.Sqlmock{}}
	for _, id := range ids {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		b.dbs[id] = db
		b.mocks[id] = mock
	}
	return b
}

func (b *mockBuilder) Build(_ context.Context, cfg base.TenantConfig) (*sql.DB, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	db, ok := b.dbs[cfg.ID]
	if !ok {
		return nil, base.NewDataSourceError(cfg.ID, "Build", "failed to connect after 1 attempt(s)", errors.New("connection refused"))
	}
	return db, nil
}

func (b *mockBuilder) mock(id string) sqlmock.Sqlmock {
	return b.mocks[id]
}

func tenantConfig(id string) base.TenantConfig {
	return base.TenantConfig{ID: id, URL: "jdbc:mysql://db:3306/" + id, Username: "root", Password: "x"}
}

func testConfig(baseline string, ids ...string) *config.Config {
	cfg := &config.Config{
		Port:           0,
		BaselineTenant: baseline,
		TenantHeader:   "X-Tenant-ID",
		TenantParam:    "tenant",
		HealthCacheTTL: 30 * time.Second,
		CORSOrigins:    []string{"*"},
		Seed:           config.SeedConfig{DefaultPassword: testPassword, BcryptCost: 4},
	}
	for _, id := range ids {
		cfg.Tenants = append(cfg.Tenants, tenantConfig(id))
	}
	return cfg
}

func testSeeder() *seed.Seeder {
	return seed.New(seed.DefaultSpec(testPassword), 4)
}

func count(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func fullSnapshot() *sqlmock.Rows {
	return snapshotWithout(nil)
}

// snapshotWithout renders every required column except those named
// "table.column" in skip
func snapshotWithout(skip map[string]bool) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "character_maximum_length", "numeric_precision", "numeric_scale", "is_nullable"})
	for _, t := range schema.RequiredTables() {
		for _, c := range t.Columns {
			if skip[t.Name+"."+c.Name] {
				continue
			}
			rows.AddRow(t.Name, c.Name, "varchar", int64(50), nil, nil, "YES")
		}
	}
	return rows
}

func emptySnapshot() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "character_maximum_length", "numeric_precision", "numeric_scale", "is_nullable"})
}

func fullTables() *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"table_name"})
	for _, t := range schema.RequiredTables() {
		rows.AddRow(t.Name)
	}
	return rows
}

// expectProvisioned expects the pipeline against a tenant that is already
// fully reconciled, healed and seeded
func expectProvisioned(m sqlmock.Sqlmock, tenantID string) {
	m.ExpectQuery(qSnapshot).WillReturnRows(fullSnapshot())
	m.ExpectQuery(qTables).WillReturnRows(fullTables())
	for _, fk := range schema.ForeignKeys() {
		m.ExpectQuery(qConstraint).WithArgs(fk.Table, fk.Name).WillReturnRows(count(1))
	}
	expectSeeded(m, tenantID)
}

func expectSeeded(m sqlmock.Sqlmock, tenantID string) {
	spec := seed.DefaultSpec(testPassword)
	m.ExpectQuery(qSnapshot).WillReturnRows(fullSnapshot())
	for _, r := range spec.Roles {
		m.ExpectQuery(qRoleExists).WithArgs(r.Name).WillReturnRows(count(1))
	}
	for _, op := range spec.OperatorsFor(tenantID) {
		m.ExpectQuery(qOperatorExists).WithArgs(op.Username).WillReturnRows(count(1))
	}
	m.ExpectQuery(qSupplierExists).WithArgs(seed.DefaultSupplierName).WillReturnRows(count(1))
}

// expectFreshProvision expects the pipeline against an empty database: every
// table created, every foreign key added, every seed row inserted
func expectFreshProvision(m sqlmock.Sqlmock, tenantID string) {
	m.ExpectQuery(qSnapshot).WillReturnRows(emptySnapshot())
	for range schema.RequiredTables() {
		m.ExpectExec(qCreateTable).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	m.ExpectQuery(qTables).WillReturnRows(fullTables())
	for _, fk := range schema.ForeignKeys() {
		m.ExpectQuery(qConstraint).WithArgs(fk.Table, fk.Name).WillReturnRows(count(0))
		m.ExpectQuery(qOrphans).WillReturnRows(count(0))
		m.ExpectQuery(qIndex).WithArgs(fk.Table, fk.Column).WillReturnRows(count(0))
		m.ExpectExec(qCreateIndex).WillReturnResult(sqlmock.NewResult(0, 0))
		m.ExpectExec(qAddForeignKey).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	spec := seed.DefaultSpec(testPassword)
	m.ExpectQuery(qSnapshot).WillReturnRows(fullSnapshot())
	for i, r := range spec.Roles {
		m.ExpectQuery(qRoleExists).WithArgs(r.Name).WillReturnRows(count(0))
		m.ExpectExec(qRoleInsert).WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}
	for _, op := range spec.OperatorsFor(tenantID) {
		m.ExpectQuery(qOperatorExists).WithArgs(op.Username).WillReturnRows(count(0))
		m.ExpectQuery(qRoleID).WithArgs(op.Role).WillReturnRows(sqlmock.NewRows([]string{"role_id"}).AddRow(1))
		m.ExpectExec(qOperatorInsert).WillReturnResult(sqlmock.NewResult(1, 1))
	}
	m.ExpectQuery(qSupplierExists).WithArgs(seed.DefaultSupplierName).WillReturnRows(count(0))
	m.ExpectExec(qSupplierInsert).WillReturnResult(sqlmock.NewResult(1, 1))
}

func expectHealthy(m sqlmock.Sqlmock, catalog string) {
	m.ExpectQuery(qCatalog).WillReturnRows(sqlmock.NewRows([]string{"DATABASE()"}).AddRow(catalog))
	m.ExpectQuery(qTables).WillReturnRows(fullTables())
}

func newRegistry(t *testing.T, b *mockBuilder, ids ...string) *registry.Registry {
	t.Helper()
	reg := registry.New(b)
	for _, id := range ids {
		_, _, err := reg.Register(context.Background(), tenantConfig(id))
		require.NoError(t, err)
	}
	return reg
}
