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
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/multierr"
)

var (
	ddlStatements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmacy_schema_ddl_total",
		Help: "DDL statements executed by reconciliation and foreign key healing",
	}, []string{"tenant", "kind"})

	foreignKeysSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pharmacy_fk_skipped_total",
		Help: "Foreign keys not created because orphaned rows exist",
	}, []string{"tenant"})
)

// DDL kinds recorded in pharmacy_schema_ddl_total
const (
	DDLCreateTable = "create_table"
	DDLCopyTable   = "copy_table"
	DDLAddColumn   = "add_column"
	DDLCreateIndex = "create_index"
	DDLForeignKey  = "foreign_key"
)

// SkippedForeignKey is a constraint left out because of orphaned rows
type SkippedForeignKey struct {
	Name    string `json:"name"`
	Table   string `json:"table"`
	Orphans int64  `json:"orphans"`
}

// StepError is one failure recorded during provisioning
type StepError struct {
	Step    string `json:"step"`
	Object  string `json:"object"`
	Message string `json:"message"`
}

// Report is the outcome of provisioning one tenant. Failures are recorded
// and never abort the remaining steps.
type Report struct {
	TenantID           string              `json:"tenant"`
	TablesCreated      []string            `json:"tables_created"`
	ColumnsAdded       []string            `json:"columns_added"`
	ForeignKeysAdded   []string            `json:"foreign_keys_added"`
	ForeignKeysSkipped []SkippedForeignKey `json:"foreign_keys_skipped"`
	RowsSeeded         int                 `json:"rows_seeded"`
	Errors             []StepError         `json:"errors"`

	mu   sync.Mutex
	ddl  int
	errs error
}

// NewReport creates an empty report for tenantID
func NewReport(tenantID string) *Report {
	return &Report{
		TenantID:           tenantID,
		TablesCreated:      []string{},
		ColumnsAdded:       []string{},
		ForeignKeysAdded:   []string{},
		ForeignKeysSkipped: []SkippedForeignKey{},
		Errors:             []StepError{},
	}
}

func (r *Report) recordDDL(kind string) {
	ddlStatements.WithLabelValues(r.TenantID, kind).Inc()
	r.ddl++
}

// TableCreated records a created table
func (r *Report) TableCreated(table, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TablesCreated = append(r.TablesCreated, table)
	r.recordDDL(kind)
}

// ColumnAdded records an added column
func (r *Report) ColumnAdded(table, column string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ColumnsAdded = append(r.ColumnsAdded, table+"."+column)
	r.recordDDL(DDLAddColumn)
}

// IndexCreated records a supporting index
func (r *Report) IndexCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordDDL(DDLCreateIndex)
}

// ForeignKeyAdded records a created constraint
func (r *Report) ForeignKeyAdded(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ForeignKeysAdded = append(r.ForeignKeysAdded, name)
	r.recordDDL(DDLForeignKey)
}

// ForeignKeySkipped records a constraint skipped because of orphans
func (r *Report) ForeignKeySkipped(fk ForeignKeySpec, orphans int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	foreignKeysSkipped.WithLabelValues(r.TenantID).Inc()
	r.ForeignKeysSkipped = append(r.ForeignKeysSkipped, SkippedForeignKey{Name: fk.Name, Table: fk.Table, Orphans: orphans})
}

// Seeded adds n to the seeded row count
func (r *Report) Seeded(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RowsSeeded += n
}

// Fail records err for step and object
func (r *Report) Fail(step, object string, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, StepError{Step: step, Object: object, Message: err.Error()})
	r.errs = multierr.Append(r.errs, fmt.Errorf("%s %s: %w", step, object, err))
}

// DDLCount returns the number of DDL statements executed
func (r *Report) DDLCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ddl
}

// Err combines every recorded error, or returns nil
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs
}

// Summary returns log fields describing the report
func (r *Report) Summary() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]interface{}{
		"tables_created":       len(r.TablesCreated),
		"columns_added":        len(r.ColumnsAdded),
		"foreign_keys_added":   len(r.ForeignKeysAdded),
		"foreign_keys_skipped": len(r.ForeignKeysSkipped),
		"rows_seeded":          r.RowsSeeded,
		"ddl_statements":       r.ddl,
		"errors":               len(r.Errors),
	}
}
