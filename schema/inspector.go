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
	"sort"
)

// Schema health states
const (
	StatusOK         = "OK"
	StatusIncomplete = "INCOMPLETE"
	StatusError      = "ERROR"
)

// TenantHealth is one tenant's entry in the schema health report
type TenantHealth struct {
	Tenant        string   `json:"tenant"`
	Catalog       string   `json:"catalog"`
	MissingTables []string `json:"missing_tables"`
	Status        string   `json:"status"`
	Error         string   `json:"error,omitempty"`
}

// ColumnMismatch is a column whose type differs from the baseline
type ColumnMismatch struct {
	Column   string `json:"column"`
	Baseline string `json:"baseline"`
	Tenant   string `json:"tenant"`
}

// TableDiff lists the drift of one required table
type TableDiff struct {
	Table          string           `json:"table"`
	MissingColumns []string         `json:"missing_columns"`
	TypeMismatches []ColumnMismatch `json:"type_mismatches"`
}

// TenantDiff is one tenant's drift versus the baseline
type TenantDiff struct {
	Tenant string      `json:"tenant"`
	Tables []TableDiff `json:"tables"`
	Error  string      `json:"error,omitempty"`
}

// Inspector reports schema health and drift without changing anything
type Inspector struct {
	tables []TableRequirement
}

// NewInspector creates an inspector for tables; nil selects RequiredTables()
func NewInspector(tables []TableRequirement) *Inspector {
	if tables == nil {
		tables = RequiredTables()
	}
	return &Inspector{tables: tables}
}

// Health lists the required tables missing from c
func (i *Inspector) Health(ctx context.Context, c *Catalog) TenantHealth {
	h := TenantHealth{Tenant: c.TenantID, MissingTables: []string{}}

	name, err := c.Name(ctx)
	if err != nil {
		h.Status, h.Error = StatusError, err.Error()
		return h
	}
	h.Catalog = name

	tables, err := c.Tables(ctx)
	if err != nil {
		h.Status, h.Error = StatusError, err.Error()
		return h
	}
	for _, t := range i.tables {
		if _, ok := tables[t.Name]; !ok {
			h.MissingTables = append(h.MissingTables, t.Name)
		}
	}

	h.Status = StatusOK
	if len(h.MissingTables) > 0 {
		h.Status = StatusIncomplete
	}
	return h
}

// Diff compares c's required tables with the baseline snapshot. Columns the
// baseline has and c lacks are missing; columns whose type differs are
// mismatches.
func (i *Inspector) Diff(ctx context.Context, baseline Snapshot, c *Catalog) TenantDiff {
	d := TenantDiff{Tenant: c.TenantID, Tables: []TableDiff{}}

	snap, err := c.Snapshot(ctx)
	if err != nil {
		d.Error = err.Error()
		return d
	}

	for _, t := range i.tables {
		td := TableDiff{Table: t.Name, MissingColumns: []string{}, TypeMismatches: []ColumnMismatch{}}
		for _, col := range orderedColumns(baseline, t) {
			base, _ := baseline.Column(t.Name, col)
			have, ok := snap.Column(t.Name, col)
			if !ok {
				td.MissingColumns = append(td.MissingColumns, base.Name)
				continue
			}
			if base.Signature() != have.Signature() {
				td.TypeMismatches = append(td.TypeMismatches, ColumnMismatch{
					Column:   base.Name,
					Baseline: base.Signature(),
					Tenant:   have.Signature(),
				})
			}
		}
		d.Tables = append(d.Tables, td)
	}
	return d
}

// orderedColumns returns the baseline's columns of t: required columns in
// declaration order first, then any extra baseline columns sorted by name.
func orderedColumns(baseline Snapshot, t TableRequirement) []string {
	cols, ok := baseline[t.Name]
	if !ok {
		return nil
	}
	seen := make(map[string]bool, len(cols))
	var out []string
	for _, c := range t.Columns {
		if _, ok := cols[c.Name]; ok {
			out = append(out, c.Name)
			seen[c.Name] = true
		}
	}
	var extra []string
	for name := range cols {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}
