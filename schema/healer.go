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

	"github.com/szijea/springboot-main-sub000/shared/logger"
)

// Healer creates the declared foreign keys on a tenant whose data allows it.
// A constraint is never forced over orphaned rows.
type Healer struct {
	specs []ForeignKeySpec
	log   *logger.Logger
}

// NewHealer creates a healer for specs; nil selects ForeignKeys()
func NewHealer(specs []ForeignKeySpec) *Healer {
	if specs == nil {
		specs = ForeignKeys()
	}
	return &Healer{specs: specs, log: logger.New("schema")}
}

// Heal processes every declared foreign key against c, recording results in rep
func (h *Healer) Heal(ctx context.Context, c *Catalog, rep *Report) {
	tables, err := c.Tables(ctx)
	if err != nil {
		rep.Fail("foreign_keys", "*", err)
		h.log.Error(c.TenantID, "", "Foreign key healing aborted", logger.WithError(nil, err))
		return
	}
	for _, fk := range h.specs {
		h.heal(ctx, c, tables, fk, rep)
	}
}

func (h *Healer) heal(ctx context.Context, c *Catalog, tables map[string]string, fk ForeignKeySpec, rep *Report) {
	child, okChild := tables[fk.Table]
	parent, okParent := tables[fk.RefTable]
	if !okChild || !okParent {
		h.log.Debug(c.TenantID, "", "Foreign key tables absent", map[string]interface{}{"constraint": fk.Name})
		return
	}
	fk.Table, fk.RefTable = child, parent

	exists, err := c.ConstraintExists(ctx, fk.Table, fk.Name)
	if err != nil {
		rep.Fail("foreign_key", fk.Name, err)
		return
	}
	if exists {
		return
	}

	orphans, err := c.CountOrphans(ctx, fk)
	if err != nil {
		rep.Fail("foreign_key", fk.Name, err)
		return
	}
	if orphans > 0 {
		rep.ForeignKeySkipped(fk, orphans)
		h.log.Warn(c.TenantID, "", "Foreign key skipped, orphaned rows present", map[string]interface{}{
			"constraint": fk.Name,
			"table":      fk.Table,
			"orphans":    orphans,
		})
		return
	}

	indexed, err := c.IndexOnColumn(ctx, fk.Table, fk.Column)
	if err != nil {
		rep.Fail("foreign_key", fk.Name, err)
		return
	}
	if !indexed {
		if err := c.Exec(ctx, c.Dialect.CreateIndex(fk.IndexName(), fk.Table, fk.Column)); err != nil {
			rep.Fail("create_index", fk.IndexName(), err)
			h.log.Error(c.TenantID, "", "Failed to create index", logger.WithError(map[string]interface{}{
				"index": fk.IndexName(),
			}, err))
			return
		}
		rep.IndexCreated()
	}

	if err := c.Exec(ctx, c.Dialect.AddForeignKey(fk)); err != nil {
		rep.Fail("foreign_key", fk.Name, err)
		h.log.Error(c.TenantID, "", "Failed to add foreign key", logger.WithError(map[string]interface{}{
			"constraint": fk.Name,
		}, err))
		return
	}
	rep.ForeignKeyAdded(fk.Name)
	h.log.Info(c.TenantID, "", "Added foreign key", map[string]interface{}{
		"constraint": fk.Name,
		"table":      fk.Table,
		"references": fk.RefTable,
		"on_delete":  fk.OnDelete,
	})
}
