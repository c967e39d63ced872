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

package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/szijea/springboot-main-sub000/schema"
	"github.com/szijea/springboot-main-sub000/shared/logger"
)

// minimalTables are ensured before any row is written
var minimalTables = []string{"role", "employee", "supplier"}

// Seeder inserts reference data into a tenant. Every write is
// check-then-insert; existing rows are never updated.
type Seeder struct {
	spec       Spec
	cost       int
	reconciler *schema.Reconciler
	log        *logger.Logger
}

// New creates a seeder. cost is the bcrypt cost of operator passwords; values
// outside bcrypt's range select bcrypt.DefaultCost.
func New(spec Spec, cost int) *Seeder {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Seeder{
		spec:       spec,
		cost:       cost,
		reconciler: schema.NewReconciler(nil),
		log:        logger.New("seed"),
	}
}

// Seed fills the gaps in c's reference data and records the outcome in rep
func (s *Seeder) Seed(ctx context.Context, c *schema.Catalog, rep *schema.Report) {
	s.reconciler.EnsureRequired(ctx, c, minimalTables, rep)

	before := rep.RowsSeeded
	s.seedRoles(ctx, c, rep)
	s.seedOperators(ctx, c, rep)
	s.seedSupplier(ctx, c, rep)

	s.log.Info(c.TenantID, "", "Seeding complete", map[string]interface{}{
		"rows_seeded": rep.RowsSeeded - before,
	})
}

func (s *Seeder) seedRoles(ctx context.Context, c *schema.Catalog, rep *schema.Report) {
	d := c.Dialect
	insert := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s) VALUES (%s, CURRENT_TIMESTAMP)",
		d.Quote("role"), d.Quote("role_name"), d.Quote("permissions"), d.Quote("description"), d.Quote("create_time"),
		placeholders(d, 3))

	for _, role := range s.spec.Roles {
		exists, err := s.exists(ctx, c, "role", "role_name", role.Name)
		if err != nil {
			rep.Fail("seed_role", role.Name, err)
			continue
		}
		if exists {
			continue
		}
		if _, err := c.DB.ExecContext(ctx, insert, role.Name, role.Permissions, role.Description); err != nil {
			rep.Fail("seed_role", role.Name, err)
			s.log.Error(c.TenantID, "", "Failed to seed role", logger.WithError(map[string]interface{}{"role": role.Name}, err))
			continue
		}
		rep.Seeded(1)
		s.log.Info(c.TenantID, "", "Seeded role", map[string]interface{}{"role": role.Name})
	}
}

func (s *Seeder) seedOperators(ctx context.Context, c *schema.Catalog, rep *schema.Report) {
	d := c.Dialect
	insert := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s, %s, %s) VALUES (%s, 1, CURRENT_TIMESTAMP)",
		d.Quote("employee"), d.Quote("username"), d.Quote("password"), d.Quote("name"),
		d.Quote("role_id"), d.Quote("status"), d.Quote("create_time"),
		placeholders(d, 4))

	var hash string
	for _, op := range s.spec.OperatorsFor(c.TenantID) {
		exists, err := s.exists(ctx, c, "employee", "username", op.Username)
		if err != nil {
			rep.Fail("seed_operator", op.Username, err)
			continue
		}
		if exists {
			continue
		}

		roleID, err := s.roleID(ctx, c, op.Role)
		if err != nil {
			rep.Fail("seed_operator", op.Username, err)
			s.log.Warn(c.TenantID, "", "Operator role unavailable", logger.WithError(map[string]interface{}{
				"username": op.Username,
				"role":     op.Role,
			}, err))
			continue
		}

		if hash == "" {
			b, err := bcrypt.GenerateFromPassword([]byte(s.spec.Password), s.cost)
			if err != nil {
				rep.Fail("seed_operator", op.Username, err)
				return
			}
			hash = string(b)
		}

		if _, err := c.DB.ExecContext(ctx, insert, op.Username, hash, op.Name, roleID); err != nil {
			rep.Fail("seed_operator", op.Username, err)
			s.log.Error(c.TenantID, "", "Failed to seed operator", logger.WithError(map[string]interface{}{"username": op.Username}, err))
			continue
		}
		rep.Seeded(1)
		s.log.Info(c.TenantID, "", "Seeded operator", map[string]interface{}{"username": op.Username, "role": op.Role})
	}
}

func (s *Seeder) seedSupplier(ctx context.Context, c *schema.Catalog, rep *schema.Report) {
	name := s.spec.SupplierName
	if name == "" {
		return
	}
	exists, err := s.exists(ctx, c, "supplier", "name", name)
	if err != nil {
		rep.Fail("seed_supplier", name, err)
		return
	}
	if exists {
		return
	}

	d := c.Dialect
	insert := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (%s, CURRENT_TIMESTAMP)",
		d.Quote("supplier"), d.Quote("name"), d.Quote("contact_person"), d.Quote("create_time"),
		placeholders(d, 2))
	if _, err := c.DB.ExecContext(ctx, insert, name, "system"); err != nil {
		rep.Fail("seed_supplier", name, err)
		s.log.Error(c.TenantID, "", "Failed to seed supplier", logger.WithError(nil, err))
		return
	}
	rep.Seeded(1)
	s.log.Info(c.TenantID, "", "Seeded default supplier", nil)
}

func (s *Seeder) exists(ctx context.Context, c *schema.Catalog, table, column, value string) (bool, error) {
	d := c.Dialect
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s", d.Quote(table), d.Quote(column), d.Placeholder(1))
	var n int
	if err := c.DB.QueryRowContext(ctx, query, value).Scan(&n); err != nil {
		return false, fmt.Errorf("check %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

func (s *Seeder) roleID(ctx context.Context, c *schema.Catalog, name string) (int64, error) {
	d := c.Dialect
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s LIMIT 1",
		d.Quote("role_id"), d.Quote("role"), d.Quote("role_name"), d.Placeholder(1), d.Quote("role_id"))
	var id int64
	err := c.DB.QueryRowContext(ctx, query, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("role %q not found", name)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve role %q: %w", name, err)
	}
	return id, nil
}

func placeholders(d schema.Dialect, n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = d.Placeholder(i + 1)
	}
	return strings.Join(p, ", ")
}
