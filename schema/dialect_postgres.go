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
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Postgres is the dialect of PostgreSQL 12+
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Quote(ident string) string { return pq.QuoteIdentifier(ident) }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) SchemaExpr() string { return "current_schema()" }

func (Postgres) CatalogQuery() string { return "SELECT current_database()" }

func (Postgres) IndexOnColumnQuery() string {
	return `SELECT COUNT(*) FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = i.indkey[0]
		WHERE n.nspname = current_schema() AND c.relname = $1 AND a.attname = $2`
}

func (p Postgres) columnType(c ColumnSpec) string {
	switch c.Type {
	case TypeBigInt:
		if c.AutoIncrement {
			return "BIGSERIAL"
		}
		return "BIGINT"
	case TypeInt:
		if c.AutoIncrement {
			return "SERIAL"
		}
		return "INTEGER"
	case TypeVarchar:
		return fmt.Sprintf("VARCHAR(%d)", c.Length)
	case TypeText:
		return "TEXT"
	case TypeDecimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", c.Precision, c.Scale)
	case TypeBoolean:
		return "BOOLEAN"
	case TypeDate:
		return "DATE"
	case TypeDateTime:
		return "TIMESTAMP"
	default:
		return "VARCHAR(255)"
	}
}

func (p Postgres) ColumnDefinition(c ColumnSpec) string {
	def := p.Quote(c.Name) + " " + p.columnType(c)
	if c.NotNull {
		def += " NOT NULL"
	}
	if !c.AutoIncrement && c.Default != "" {
		def += " DEFAULT " + c.Default
	}
	return def
}

func (p Postgres) CreateTable(t TableRequirement) string {
	return "CREATE TABLE IF NOT EXISTS " + p.Quote(t.Name) + " (\n  " +
		strings.Join(columnList(p, t), ",\n  ") + "\n)"
}

func (p Postgres) AddColumn(table string, c ColumnSpec) string {
	if c.Default == "" {
		c.NotNull = false
	}
	c.AutoIncrement = false
	return "ALTER TABLE " + p.Quote(table) + " ADD COLUMN IF NOT EXISTS " + p.ColumnDefinition(c)
}

func (p Postgres) CreateIndex(name, table, column string) string {
	return "CREATE INDEX IF NOT EXISTS " + p.Quote(name) + " ON " + p.Quote(table) + " (" + p.Quote(column) + ")"
}

func (p Postgres) AddForeignKey(fk ForeignKeySpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s",
		p.Quote(fk.Table), p.Quote(fk.Name), p.Quote(fk.Column),
		p.Quote(fk.RefTable), p.Quote(fk.RefColumn), onDelete(fk.OnDelete))
}

// TableDDL synthesizes CREATE TABLE from information_schema; PostgreSQL has
// no SHOW CREATE TABLE. Sequence-backed defaults become SERIAL types because
// the source's sequences do not exist on the target.
func (p Postgres) TableDDL(ctx context.Context, q Querier, table string) (string, error) {
	rows, err := q.QueryContext(ctx, `SELECT column_name, data_type, character_maximum_length,
			numeric_precision, numeric_scale, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return "", fmt.Errorf("describe table %s: %w", table, err)
	}
	defer rows.Close()

	var defs []string
	for rows.Next() {
		var (
			name, dataType, nullable string
			length, precision, scale sql.NullInt64
			def                      sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &length, &precision, &scale, &nullable, &def); err != nil {
			return "", fmt.Errorf("describe table %s: %w", table, err)
		}
		defs = append(defs, p.describedColumn(name, dataType, length, precision, scale, nullable, def))
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("describe table %s: %w", table, err)
	}
	if len(defs) == 0 {
		return "", fmt.Errorf("describe table %s: no columns", table)
	}

	pkRows, err := q.QueryContext(ctx, `SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		WHERE tc.table_schema = current_schema() AND tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`, table)
	if err != nil {
		return "", fmt.Errorf("primary key of %s: %w", table, err)
	}
	defer pkRows.Close()

	var pk []string
	for pkRows.Next() {
		var col string
		if err := pkRows.Scan(&col); err != nil {
			return "", fmt.Errorf("primary key of %s: %w", table, err)
		}
		pk = append(pk, p.Quote(col))
	}
	if err := pkRows.Err(); err != nil {
		return "", fmt.Errorf("primary key of %s: %w", table, err)
	}
	if len(pk) > 0 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(pk, ", ")+")")
	}

	return "CREATE TABLE " + p.Quote(table) + " (\n  " + strings.Join(defs, ",\n  ") + "\n)", nil
}

func (p Postgres) describedColumn(name, dataType string, length, precision, scale sql.NullInt64, nullable string, def sql.NullString) string {
	typ := strings.ToUpper(dataType)
	serial := def.Valid && strings.HasPrefix(def.String, "nextval(")
	switch {
	case serial && typ == "BIGINT":
		typ = "BIGSERIAL"
	case serial && typ == "INTEGER":
		typ = "SERIAL"
	case serial && typ == "SMALLINT":
		typ = "SMALLSERIAL"
	case length.Valid && (typ == "CHARACTER VARYING" || typ == "CHARACTER"):
		typ = fmt.Sprintf("%s(%d)", typ, length.Int64)
	case typ == "NUMERIC" && precision.Valid:
		typ = fmt.Sprintf("NUMERIC(%d,%d)", precision.Int64, scale.Int64)
	}

	col := p.Quote(name) + " " + typ
	if nullable == "NO" {
		col += " NOT NULL"
	}
	if def.Valid && !serial {
		col += " DEFAULT " + def.String
	}
	return col
}

// RewriteDDL strips the source schema qualifier. Synthesized DDL carries no
// foreign keys or counters.
func (p Postgres) RewriteDDL(ddl, source string) string {
	if source != "" {
		ddl = strings.ReplaceAll(ddl, p.Quote(source)+".", "")
	}
	ddl = stripForeignKeyClauses(ddl)
	return createTablePrefix.ReplaceAllString(ddl, "CREATE TABLE IF NOT EXISTS ")
}
