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
	"sort"
	"strings"
	"sync"
)

// ColumnInfo is one column as reported by information_schema
type ColumnInfo struct {
	Name      string
	DataType  string
	Length    int64 // 0 when not applicable
	Precision int64 // DECIMAL/NUMERIC only
	Scale     int64
	Nullable  bool
}

// Signature is the comparable type of a column, e.g. "varchar(100)" or
// "decimal(10,2)"
func (c ColumnInfo) Signature() string {
	t := strings.ToLower(c.DataType)
	switch {
	case c.Length > 0:
		return fmt.Sprintf("%s(%d)", t, c.Length)
	case (t == "decimal" || t == "numeric") && c.Precision > 0:
		return fmt.Sprintf("%s(%d,%d)", t, c.Precision, c.Scale)
	}
	return t
}

// Snapshot maps lower-cased table name to lower-cased column name to column
type Snapshot map[string]map[string]ColumnInfo

// HasTable reports whether the snapshot contains table
func (s Snapshot) HasTable(table string) bool {
	_, ok := s[strings.ToLower(table)]
	return ok
}

// Column looks up a column
func (s Snapshot) Column(table, column string) (ColumnInfo, bool) {
	cols, ok := s[strings.ToLower(table)]
	if !ok {
		return ColumnInfo{}, false
	}
	c, ok := cols[strings.ToLower(column)]
	return c, ok
}

// Tables returns the table names, sorted
func (s Snapshot) Tables() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog introspects and alters one tenant database
type Catalog struct {
	TenantID string
	DB       Querier
	Dialect  Dialect

	nameOnce sync.Once
	name     string
	nameErr  error
}

// NewCatalog creates a catalog for the tenant's database
func NewCatalog(tenantID string, db Querier, dialect Dialect) *Catalog {
	if dialect == nil {
		dialect = MySQL{}
	}
	return &Catalog{TenantID: tenantID, DB: db, Dialect: dialect}
}

// Name returns the database (catalog) name, queried once
func (c *Catalog) Name(ctx context.Context) (string, error) {
	c.nameOnce.Do(func() {
		var name sql.NullString
		if err := c.DB.QueryRowContext(ctx, c.Dialect.CatalogQuery()).Scan(&name); err != nil {
			c.nameErr = fmt.Errorf("catalog name: %w", err)
			return
		}
		c.name = name.String
	})
	return c.name, c.nameErr
}

// Tables returns the base tables, keyed by lower-cased name and mapped to
// the name as stored
func (c *Catalog) Tables(ctx context.Context) (map[string]string, error) {
	rows, err := c.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT table_name FROM information_schema.tables WHERE table_schema = %s AND table_type = 'BASE TABLE'`,
		c.Dialect.SchemaExpr()))
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]string)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		tables[strings.ToLower(name)] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// Snapshot reads every column of every base table in one query
func (c *Catalog) Snapshot(ctx context.Context) (Snapshot, error) {
	rows, err := c.DB.QueryContext(ctx, fmt.Sprintf(`SELECT c.table_name, c.column_name, c.data_type,
			c.character_maximum_length, c.numeric_precision, c.numeric_scale, c.is_nullable
		FROM information_schema.columns c
		JOIN information_schema.tables t
			ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = %s AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`, c.Dialect.SchemaExpr()))
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	defer rows.Close()

	snap := make(Snapshot)
	for rows.Next() {
		var (
			table, column, dataType, nullable string
			length, precision, scale          sql.NullInt64
		)
		if err := rows.Scan(&table, &column, &dataType, &length, &precision, &scale, &nullable); err != nil {
			return nil, fmt.Errorf("read columns: %w", err)
		}
		t := strings.ToLower(table)
		if snap[t] == nil {
			snap[t] = make(map[string]ColumnInfo)
		}
		snap[t][strings.ToLower(column)] = ColumnInfo{
			Name:      column,
			DataType:  dataType,
			Length:    length.Int64,
			Precision: precision.Int64,
			Scale:     scale.Int64,
			Nullable:  strings.EqualFold(nullable, "YES"),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	return snap, nil
}

// ConstraintExists reports whether a foreign key named name exists on table
func (c *Catalog) ConstraintExists(ctx context.Context, table, name string) (bool, error) {
	d := c.Dialect
	query := fmt.Sprintf(`SELECT COUNT(*) FROM information_schema.table_constraints
		WHERE table_schema = %s AND table_name = %s AND constraint_name = %s AND constraint_type = 'FOREIGN KEY'`,
		d.SchemaExpr(), d.Placeholder(1), d.Placeholder(2))
	var n int
	if err := c.DB.QueryRowContext(ctx, query, table, name).Scan(&n); err != nil {
		return false, fmt.Errorf("constraint %s: %w", name, err)
	}
	return n > 0, nil
}

// IndexOnColumn reports whether an index leads with column
func (c *Catalog) IndexOnColumn(ctx context.Context, table, column string) (bool, error) {
	var n int
	if err := c.DB.QueryRowContext(ctx, c.Dialect.IndexOnColumnQuery(), table, column).Scan(&n); err != nil {
		return false, fmt.Errorf("index on %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

// CountOrphans counts child rows whose foreign column is set but matches no
// parent row
func (c *Catalog) CountOrphans(ctx context.Context, fk ForeignKeySpec) (int64, error) {
	q := c.Dialect.Quote
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s c LEFT JOIN %s p ON c.%s = p.%s
		WHERE c.%s IS NOT NULL AND p.%s IS NULL`,
		q(fk.Table), q(fk.RefTable), q(fk.Column), q(fk.RefColumn), q(fk.Column), q(fk.RefColumn))
	var n int64
	if err := c.DB.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("orphans for %s: %w", fk.Name, err)
	}
	return n, nil
}

// TableDDL returns a CREATE TABLE statement for table
func (c *Catalog) TableDDL(ctx context.Context, table string) (string, error) {
	return c.Dialect.TableDDL(ctx, c.DB, table)
}

// Exec runs one DDL statement
func (c *Catalog) Exec(ctx context.Context, stmt string) error {
	_, err := c.DB.ExecContext(ctx, stmt)
	return err
}
