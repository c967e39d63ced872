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

package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/szijea/springboot-main-sub000/shared/logger"
)

// Reconciler brings a tenant's tables and columns up to the required set
// and copies tables that only the baseline tenant has. It never drops or
// narrows anything.
type Reconciler struct {
	tables []TableRequirement
	skip   map[string]bool
	log    *logger.Logger
}

// NewReconciler creates a reconciler for tables; nil selects RequiredTables()
func NewReconciler(tables []TableRequirement) *Reconciler {
	if tables == nil {
		tables = RequiredTables()
	}
	skip := make(map[string]bool, len(SkipTables))
	for _, t := range SkipTables {
		skip[t] = true
	}
	return &Reconciler{tables: tables, skip: skip, log: logger.New("schema")}
}

// Tables returns the requirements this reconciler enforces
func (r *Reconciler) Tables() []TableRequirement {
	return r.tables
}

// Reconcile copies baseline-only tables into target, then creates missing
// required tables and columns. baseline may be nil or the target itself,
// in which case propagation is skipped.
func (r *Reconciler) Reconcile(ctx context.Context, target, baseline *Catalog) *Report {
	rep := NewReport(target.TenantID)
	if baseline != nil && baseline.TenantID != target.TenantID {
		r.PropagateBaseline(ctx, target, baseline, rep)
	}
	r.EnsureRequired(ctx, target, nil, rep)
	return rep
}

// EnsureRequired creates absent required tables and adds absent columns to
// present ones. only restricts the check to the named tables; nil means all.
func (r *Reconciler) EnsureRequired(ctx context.Context, c *Catalog, only []string, rep *Report) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		rep.Fail("reconcile", "*", err)
		r.log.Error(c.TenantID, "", "Schema introspection failed", logger.WithError(nil, err))
		return
	}

	var filter map[string]bool
	if only != nil {
		filter = make(map[string]bool, len(only))
		for _, name := range only {
			filter[name] = true
		}
	}

	for _, t := range r.tables {
		if filter != nil && !filter[t.Name] {
			continue
		}
		if !snap.HasTable(t.Name) {
			if err := c.Exec(ctx, c.Dialect.CreateTable(t)); err != nil {
				rep.Fail("create_table", t.Name, err)
				r.log.Error(c.TenantID, "", "Failed to create table", logger.WithError(map[string]interface{}{"table": t.Name}, err))
				continue
			}
			rep.TableCreated(t.Name, DDLCreateTable)
			r.log.Info(c.TenantID, "", "Created table", map[string]interface{}{"table": t.Name})
			continue
		}

		for _, col := range t.Columns {
			if _, ok := snap.Column(t.Name, col.Name); ok {
				continue
			}
			if err := c.Exec(ctx, c.Dialect.AddColumn(t.Name, col)); err != nil {
				rep.Fail("add_column", t.Name+"."+col.Name, err)
				r.log.Error(c.TenantID, "", "Failed to add column", logger.WithError(map[string]interface{}{
					"table":  t.Name,
					"column": col.Name,
				}, err))
				continue
			}
			rep.ColumnAdded(t.Name, col.Name)
			r.log.Info(c.TenantID, "", "Added column", map[string]interface{}{"table": t.Name, "column": col.Name})
		}
	}
}

// PropagateBaseline creates in target every table the baseline has and the
// target lacks, using the baseline's own DDL. Housekeeping tables in
// SkipTables are never copied. Foreign keys are left to the Healer.
func (r *Reconciler) PropagateBaseline(ctx context.Context, target, baseline *Catalog, rep *Report) {
	if target.Dialect.Name() != baseline.Dialect.Name() {
		rep.Fail("baseline", baseline.TenantID, fmt.Errorf("cannot copy %s tables into a %s database",
			baseline.Dialect.Name(), target.Dialect.Name()))
		return
	}

	baseTables, err := baseline.Tables(ctx)
	if err != nil {
		rep.Fail("baseline", baseline.TenantID, err)
		r.log.Error(target.TenantID, "", "Baseline introspection failed", logger.WithError(map[string]interface{}{
			"baseline": baseline.TenantID,
		}, err))
		return
	}
	targetTables, err := target.Tables(ctx)
	if err != nil {
		rep.Fail("baseline", target.TenantID, err)
		return
	}

	var missing []string
	for key, name := range baseTables {
		if r.skip[key] {
			continue
		}
		if _, ok := targetTables[key]; ok {
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return
	}
	sort.Strings(missing)

	source, err := baseline.Name(ctx)
	if err != nil {
		rep.Fail("baseline", baseline.TenantID, err)
		return
	}

	for _, table := range missing {
		ddl, err := baseline.TableDDL(ctx, table)
		if err != nil {
			rep.Fail("copy_table", table, err)
			r.log.Error(target.TenantID, "", "Failed to read baseline table definition", logger.WithError(map[string]interface{}{
				"table":    table,
				"baseline": baseline.TenantID,
			}, err))
			continue
		}
		stmt := target.Dialect.RewriteDDL(ddl, source)
		if err := target.Exec(ctx, stmt); err != nil {
			rep.Fail("copy_table", table, err)
			r.log.Error(target.TenantID, "", "Failed to copy baseline table", logger.WithError(map[string]interface{}{
				"table": table,
			}, err))
			continue
		}
		rep.TableCreated(table, DDLCopyTable)
		r.log.Info(target.TenantID, "", "Copied table from baseline", map[string]interface{}{
			"table":    table,
			"baseline": baseline.TenantID,
			"ddl":      firstLine(stmt),
		})
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i != -1 {
		return s[:i]
	}
	return s
}
