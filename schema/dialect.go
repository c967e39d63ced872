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
	"database/sql"
	"regexp"
	"strings"

	"github.com/szijea/springboot-main-sub000/datasource/base"
)

// Querier is the subset of *sql.DB used for introspection and DDL
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Dialect renders the SQL that differs between database engines
type Dialect interface {
	Name() string
	Quote(ident string) string
	Placeholder(n int) string

	// SchemaExpr is the SQL expression naming the connection's own schema
	// in information_schema queries.
	SchemaExpr() string
	CatalogQuery() string
	IndexOnColumnQuery() string

	ColumnDefinition(c ColumnSpec) string
	CreateTable(t TableRequirement) string
	AddColumn(table string, c ColumnSpec) string
	CreateIndex(name, table, column string) string
	AddForeignKey(fk ForeignKeySpec) string

	// TableDDL returns a CREATE TABLE statement reproducing table.
	TableDDL(ctx context.Context, q Querier, table string) (string, error)
	// RewriteDDL makes DDL taken from the catalog named source portable to
	// another database.
	RewriteDDL(ddl, source string) string
}

// DialectFor returns the dialect for a base.Driver* name
func DialectFor(driver string) Dialect {
	if driver == base.DriverPostgres {
		return Postgres{}
	}
	return MySQL{}
}

func columnList(d Dialect, t TableRequirement) []string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, d.ColumnDefinition(c))
	}
	if t.PrimaryKey != "" {
		defs = append(defs, "PRIMARY KEY ("+d.Quote(t.PrimaryKey)+")")
	}
	return defs
}

var foreignKeyLine = regexp.MustCompile(`(?i)^\s*(CONSTRAINT\s+\S+\s+)?FOREIGN\s+KEY\b`)

// stripForeignKeyClauses removes FOREIGN KEY lines from a multi-line CREATE
// TABLE statement and repairs the trailing comma they leave behind.
func stripForeignKeyClauses(ddl string) string {
	lines := strings.Split(ddl, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if foreignKeyLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	for i := 0; i+1 < len(kept); i++ {
		if strings.HasPrefix(strings.TrimSpace(kept[i+1]), ")") {
			kept[i] = strings.TrimRight(kept[i], ", ")
		}
	}
	return strings.Join(kept, "\n")
}
