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
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

// Query patterns issued by Catalog (sqlmock matches by regexp)
const (
	qSnapshot   = `FROM information_schema.columns c`
	qTables     = `SELECT table_name FROM information_schema.tables`
	qCatalog    = `SELECT DATABASE\(\)`
	qConstraint = `FROM information_schema.table_constraints`
	qIndex      = `FROM information_schema.statistics`
	qOrphans    = `LEFT JOIN`
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func mysqlDataType(c ColumnSpec) (string, interface{}) {
	switch c.Type {
	case TypeBigInt:
		return "bigint", nil
	case TypeInt:
		return "int", nil
	case TypeVarchar:
		return "varchar", int64(c.Length)
	case TypeText:
		return "text", int64(65535)
	case TypeDecimal:
		return "decimal", nil
	case TypeBoolean:
		return "tinyint", nil
	case TypeDate:
		return "date", nil
	default:
		return "datetime", nil
	}
}

type snapshotOpts struct {
	skipTables  map[string]bool
	skipColumns map[string]bool // "table.column"
	extra       [][]interface{}
}

// snapshotRows renders the required tables as an information_schema.columns
// result set.
func snapshotRows(opts snapshotOpts) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "character_maximum_length", "numeric_precision", "numeric_scale", "is_nullable"})
	for _, t := range RequiredTables() {
		if opts.skipTables[t.Name] {
			continue
		}
		for _, c := range t.Columns {
			if opts.skipColumns[t.Name+"."+c.Name] {
				continue
			}
			dt, length := mysqlDataType(c)
			var precision, scale interface{}
			if c.Type == TypeDecimal {
				precision, scale = int64(c.Precision), int64(c.Scale)
			}
			nullable := "YES"
			if c.NotNull {
				nullable = "NO"
			}
			rows.AddRow(t.Name, c.Name, dt, length, precision, scale, nullable)
		}
	}
	for _, r := range opts.extra {
		values := make([]driver.Value, len(r))
		for i, v := range r {
			values[i] = v
		}
		rows.AddRow(values...)
	}
	return rows
}

// tableRows renders the required tables (minus skip) plus extra as an
// information_schema.tables result set.
func tableRows(skip map[string]bool, extra ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"table_name"})
	for _, t := range RequiredTables() {
		if !skip[t.Name] {
			rows.AddRow(t.Name)
		}
	}
	for _, name := range extra {
		rows.AddRow(name)
	}
	return rows
}

func countRow(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}
