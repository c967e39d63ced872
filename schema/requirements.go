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

// ColumnType is a dialect-neutral column type
type ColumnType int

const (
	TypeBigInt ColumnType = iota
	TypeInt
	TypeVarchar
	TypeText
	TypeDecimal
	TypeBoolean
	TypeDate
	TypeDateTime
)

// ColumnSpec describes one required column
type ColumnSpec struct {
	Name          string
	Type          ColumnType
	Length        int // VARCHAR
	Precision     int // DECIMAL
	Scale         int // DECIMAL
	NotNull       bool
	Default       string // SQL literal, rendered verbatim
	AutoIncrement bool
}

// TableRequirement is a table every tenant must have
type TableRequirement struct {
	Name       string
	Columns    []ColumnSpec
	PrimaryKey string
}

// Column returns the named column spec
func (t TableRequirement) Column(name string) (ColumnSpec, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Delete policies for ForeignKeySpec.OnDelete
const (
	OnDeleteCascade  = "CASCADE"
	OnDeleteSetNull  = "SET NULL"
	OnDeleteRestrict = "RESTRICT"
)

// ForeignKeySpec is a constraint the healer creates when the data allows it
type ForeignKeySpec struct {
	Table     string
	Name      string
	Column    string
	RefTable  string
	RefColumn string
	OnDelete  string
}

// IndexName is the name of the supporting index created before the constraint
func (f ForeignKeySpec) IndexName() string {
	return "idx_" + f.Table + "_" + f.Column
}

func bigID(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeBigInt, NotNull: true, AutoIncrement: true}
}

func varchar(name string, length int) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeVarchar, Length: length}
}

func money(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeDecimal, Precision: 10, Scale: 2, Default: "0.00"}
}

func created(name string) ColumnSpec {
	return ColumnSpec{Name: name, Type: TypeDateTime}
}

var requiredTables = []TableRequirement{
	{
		Name:       "role",
		PrimaryKey: "role_id",
		Columns: []ColumnSpec{
			bigID("role_id"),
			{Name: "role_name", Type: TypeVarchar, Length: 50, NotNull: true},
			varchar("permissions", 1000),
			varchar("description", 255),
			created("create_time"),
		},
	},
	{
		Name:       "employee",
		PrimaryKey: "employee_id",
		Columns: []ColumnSpec{
			bigID("employee_id"),
			{Name: "username", Type: TypeVarchar, Length: 50, NotNull: true},
			{Name: "password", Type: TypeVarchar, Length: 255, NotNull: true},
			varchar("name", 50),
			{Name: "role_id", Type: TypeBigInt},
			varchar("phone", 20),
			{Name: "status", Type: TypeInt, Default: "1"},
			created("create_time"),
		},
	},
	{
		Name:       "supplier",
		PrimaryKey: "supplier_id",
		Columns: []ColumnSpec{
			bigID("supplier_id"),
			{Name: "name", Type: TypeVarchar, Length: 100, NotNull: true},
			varchar("contact_person", 50),
			varchar("phone", 20),
			varchar("address", 255),
			created("create_time"),
		},
	},
	{
		Name:       "medicine",
		PrimaryKey: "medicine_id",
		Columns: []ColumnSpec{
			bigID("medicine_id"),
			{Name: "generic_name", Type: TypeVarchar, Length: 100, NotNull: true},
			varchar("trade_name", 100),
			varchar("spec", 100),
			varchar("manufacturer", 100),
			varchar("barcode", 64),
			money("retail_price"),
			money("member_price"),
			{Name: "stock", Type: TypeInt, Default: "0"},
			{Name: "is_rx", Type: TypeBoolean, Default: "FALSE"},
			created("create_time"),
		},
	},
	{
		Name:       "member",
		PrimaryKey: "member_id",
		Columns: []ColumnSpec{
			bigID("member_id"),
			varchar("name", 50),
			varchar("phone", 20),
			{Name: "points", Type: TypeInt, Default: "0"},
			created("create_time"),
		},
	},
	{
		Name:       "orders",
		PrimaryKey: "order_id",
		Columns: []ColumnSpec{
			{Name: "order_id", Type: TypeVarchar, Length: 32, NotNull: true},
			{Name: "member_id", Type: TypeBigInt},
			{Name: "employee_id", Type: TypeBigInt},
			money("total_amount"),
			money("discount_amount"),
			money("actual_payment"),
			{Name: "payment_type", Type: TypeInt},
			{Name: "payment_status", Type: TypeInt, Default: "0"},
			created("order_time"),
			varchar("remark", 255),
		},
	},
	{
		Name:       "order_item",
		PrimaryKey: "item_id",
		Columns: []ColumnSpec{
			bigID("item_id"),
			{Name: "order_id", Type: TypeVarchar, Length: 32, NotNull: true},
			{Name: "medicine_id", Type: TypeBigInt, NotNull: true},
			{Name: "quantity", Type: TypeInt, NotNull: true, Default: "1"},
			money("unit_price"),
			money("subtotal"),
		},
	},
	{
		Name:       "stock_in",
		PrimaryKey: "stock_in_id",
		Columns: []ColumnSpec{
			bigID("stock_in_id"),
			varchar("stock_in_no", 32),
			{Name: "supplier_id", Type: TypeBigInt},
			created("stock_in_date"),
			money("total_amount"),
			{Name: "status", Type: TypeInt, Default: "0"},
			varchar("remark", 255),
		},
	},
	{
		Name:       "stock_in_item",
		PrimaryKey: "item_id",
		Columns: []ColumnSpec{
			bigID("item_id"),
			{Name: "stock_in_id", Type: TypeBigInt, NotNull: true},
			{Name: "medicine_id", Type: TypeBigInt, NotNull: true},
			{Name: "quantity", Type: TypeInt, NotNull: true, Default: "0"},
			money("unit_price"),
			varchar("batch_number", 50),
			{Name: "expiry_date", Type: TypeDate},
		},
	},
	{
		Name:       "setting",
		PrimaryKey: "setting_key",
		Columns: []ColumnSpec{
			{Name: "setting_key", Type: TypeVarchar, Length: 100, NotNull: true},
			{Name: "setting_value", Type: TypeText},
			created("update_time"),
		},
	},
}

var foreignKeys = []ForeignKeySpec{
	{Table: "employee", Name: "fk_employee_role", Column: "role_id", RefTable: "role", RefColumn: "role_id", OnDelete: OnDeleteSetNull},
	{Table: "orders", Name: "fk_orders_member", Column: "member_id", RefTable: "member", RefColumn: "member_id", OnDelete: OnDeleteSetNull},
	{Table: "orders", Name: "fk_orders_employee", Column: "employee_id", RefTable: "employee", RefColumn: "employee_id", OnDelete: OnDeleteSetNull},
	{Table: "order_item", Name: "fk_order_item_order", Column: "order_id", RefTable: "orders", RefColumn: "order_id", OnDelete: OnDeleteCascade},
	{Table: "order_item", Name: "fk_order_item_medicine", Column: "medicine_id", RefTable: "medicine", RefColumn: "medicine_id", OnDelete: OnDeleteRestrict},
	{Table: "stock_in", Name: "fk_stock_in_supplier", Column: "supplier_id", RefTable: "supplier", RefColumn: "supplier_id", OnDelete: OnDeleteSetNull},
	{Table: "stock_in_item", Name: "fk_stock_in_item_stock_in", Column: "stock_in_id", RefTable: "stock_in", RefColumn: "stock_in_id", OnDelete: OnDeleteCascade},
	{Table: "stock_in_item", Name: "fk_stock_in_item_medicine", Column: "medicine_id", RefTable: "medicine", RefColumn: "medicine_id", OnDelete: OnDeleteRestrict},
}

// SkipTables are housekeeping tables never copied from the baseline
var SkipTables = []string{
	"flyway_schema_history",
	"schema_migrations",
	"databasechangelog",
	"databasechangeloglock",
	"goose_db_version",
}

// RequiredTables returns a copy of the tables every tenant must have
func RequiredTables() []TableRequirement {
	out := make([]TableRequirement, len(requiredTables))
	copy(out, requiredTables)
	return out
}

// ForeignKeys returns a copy of the declared foreign keys
func ForeignKeys() []ForeignKeySpec {
	out := make([]ForeignKeySpec, len(foreignKeys))
	copy(out, foreignKeys)
	return out
}

// RequiredTable looks up a required table by name
func RequiredTable(name string) (TableRequirement, bool) {
	for _, t := range requiredTables {
		if t.Name == name {
			return t, true
		}
	}
	return TableRequirement{}, false
}
