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
	"regexp"
	"strings"
)

var (
	autoIncrementCounter = regexp.MustCompile(`(?i)\s+AUTO_INCREMENT=\d+`)
	definerClause        = regexp.MustCompile("(?i)\\s*DEFINER\\s*=\\s*(`[^`]*`|'[^']*'|\\S+)@(`[^`]*`|'[^']*'|\\S+)")
	createTablePrefix    = regexp.MustCompile(`(?i)^\s*CREATE\s+TABLE\s+(IF\s+NOT\s+EXISTS\s+)?`)
)

// MySQL is the dialect of MySQL 5.7+ and 8.0
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) SchemaExpr() string { return "DATABASE()" }

func (MySQL) CatalogQuery() string { return "SELECT DATABASE()" }

func (MySQL) IndexOnColumnQuery() string {
	return `SELECT COUNT(*) FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ? AND seq_in_index = 1`
}

func (m MySQL) columnType(c ColumnSpec) string {
	switch c.Type {
	case TypeBigInt:
		return "BIGINT"
	case TypeInt:
		return "INT"
	case TypeVarchar:
		return fmt.Sprintf("VARCHAR(%d)", c.Length)
	case TypeText:
		return "TEXT"
	case TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", c.Precision, c.Scale)
	case TypeBoolean:
		return "TINYINT(1)"
	case TypeDate:
		return "DATE"
	case TypeDateTime:
		return "DATETIME"
	default:
		return "VARCHAR(255)"
	}
}

func (m MySQL) ColumnDefinition(c ColumnSpec) string {
	def := m.Quote(c.Name) + " " + m.columnType(c)
	if c.NotNull {
		def += " NOT NULL"
	}
	if c.AutoIncrement {
		def += " AUTO_INCREMENT"
	} else if c.Default != "" {
		def += " DEFAULT " + c.Default
	}
	return def
}

func (m MySQL) CreateTable(t TableRequirement) string {
	return "CREATE TABLE IF NOT EXISTS " + m.Quote(t.Name) + " (\n  " +
		strings.Join(columnList(m, t), ",\n  ") +
		"\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
}

// AddColumn renders ALTER TABLE ... ADD COLUMN. Columns without a default
// are added as nullable so existing rows stay valid.
func (m MySQL) AddColumn(table string, c ColumnSpec) string {
	if c.Default == "" {
		c.NotNull = false
	}
	c.AutoIncrement = false
	return "ALTER TABLE " + m.Quote(table) + " ADD COLUMN " + m.ColumnDefinition(c)
}

func (m MySQL) CreateIndex(name, table, column string) string {
	return "CREATE INDEX " + m.Quote(name) + " ON " + m.Quote(table) + " (" + m.Quote(column) + ")"
}

func (m MySQL) AddForeignKey(fk ForeignKeySpec) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s",
		m.Quote(fk.Table), m.Quote(fk.Name), m.Quote(fk.Column),
		m.Quote(fk.RefTable), m.Quote(fk.RefColumn), onDelete(fk.OnDelete))
}

// TableDDL uses SHOW CREATE TABLE
func (m MySQL) TableDDL(ctx context.Context, q Querier, table string) (string, error) {
	var name, ddl string
	if err := q.QueryRowContext(ctx, "SHOW CREATE TABLE "+m.Quote(table)).Scan(&name, &ddl); err != nil {
		return "", fmt.Errorf("show create table %s: %w", table, err)
	}
	return ddl, nil
}

// RewriteDDL strips the source schema qualifier, the AUTO_INCREMENT counter,
// DEFINER clauses and foreign key clauses, and makes the statement
// conditional on the table not existing.
func (m MySQL) RewriteDDL(ddl, source string) string {
	if source != "" {
		ddl = strings.ReplaceAll(ddl, m.Quote(source)+".", "")
	}
	ddl = autoIncrementCounter.ReplaceAllString(ddl, "")
	ddl = definerClause.ReplaceAllString(ddl, "")
	ddl = stripForeignKeyClauses(ddl)
	return createTablePrefix.ReplaceAllString(ddl, "CREATE TABLE IF NOT EXISTS ")
}

func onDelete(policy string) string {
	switch strings.ToUpper(strings.TrimSpace(policy)) {
	case OnDeleteCascade:
		return OnDeleteCascade
	case OnDeleteSetNull:
		return OnDeleteSetNull
	default:
		return OnDeleteRestrict
	}
}
