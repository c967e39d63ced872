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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szijea/springboot-main-sub000/datasource/base"
)

func TestDialectFor(t *testing.T) {
	assert.Equal(t, "mysql", DialectFor(base.DriverMySQL).Name())
	assert.Equal(t, "postgres", DialectFor(base.DriverPostgres).Name())
	assert.Equal(t, "mysql", DialectFor("").Name())
}

func TestMySQL_ColumnDefinition(t *testing.T) {
	d := MySQL{}
	tests := []struct {
		col  ColumnSpec
		want string
	}{
		{bigID("role_id"), "`role_id` BIGINT NOT NULL AUTO_INCREMENT"},
		{ColumnSpec{Name: "name", Type: TypeVarchar, Length: 100, NotNull: true}, "`name` VARCHAR(100) NOT NULL"},
		{money("retail_price"), "`retail_price` DECIMAL(10,2) DEFAULT 0.00"},
		{ColumnSpec{Name: "is_rx", Type: TypeBoolean, Default: "FALSE"}, "`is_rx` TINYINT(1) DEFAULT FALSE"},
		{ColumnSpec{Name: "expiry_date", Type: TypeDate}, "`expiry_date` DATE"},
		{ColumnSpec{Name: "setting_value", Type: TypeText}, "`setting_value` TEXT"},
	}
	for _, tt := range tests {
		t.Run(tt.col.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.ColumnDefinition(tt.col))
		})
	}
}

func TestMySQL_Statements(t *testing.T) {
	d := MySQL{}
	role, ok := RequiredTable("role")
	require.True(t, ok)

	ddl := d.CreateTable(role)
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS `role` (")
	assert.Contains(t, ddl, "PRIMARY KEY (`role_id`)")
	assert.Contains(t, ddl, "ENGINE=InnoDB")

	assert.Equal(t, "ALTER TABLE `employee` ADD COLUMN `password` VARCHAR(255)",
		d.AddColumn("employee", ColumnSpec{Name: "password", Type: TypeVarchar, Length: 255, NotNull: true}),
		"NOT NULL without a default is relaxed for existing rows")
	assert.Equal(t, "ALTER TABLE `employee` ADD COLUMN `status` INT DEFAULT 1",
		d.AddColumn("employee", ColumnSpec{Name: "status", Type: TypeInt, Default: "1"}))

	fk := ForeignKeySpec{Table: "order_item", Name: "fk_order_item_order", Column: "order_id", RefTable: "orders", RefColumn: "order_id", OnDelete: "cascade"}
	assert.Equal(t, "CREATE INDEX `idx_order_item_order_id` ON `order_item` (`order_id`)",
		d.CreateIndex(fk.IndexName(), fk.Table, fk.Column))
	assert.Equal(t, "ALTER TABLE `order_item` ADD CONSTRAINT `fk_order_item_order` FOREIGN KEY (`order_id`) REFERENCES `orders` (`order_id`) ON DELETE CASCADE",
		d.AddForeignKey(fk))

	fk.OnDelete = "bogus"
	assert.Contains(t, d.AddForeignKey(fk), "ON DELETE RESTRICT")
	assert.Equal(t, "`we``ird`", d.Quote("we`ird"))
}

func TestMySQL_RewriteDDL(t *testing.T) {
	ddl := "CREATE TABLE `rzt`.`supplier` (\n" +
		"  `supplier_id` bigint NOT NULL AUTO_INCREMENT,\n" +
		"  `name` varchar(100) NOT NULL,\n" +
		"  `region_id` bigint DEFAULT NULL,\n" +
		"  PRIMARY KEY (`supplier_id`),\n" +
		"  KEY `idx_supplier_region` (`region_id`),\n" +
		"  CONSTRAINT `fk_supplier_region` FOREIGN KEY (`region_id`) REFERENCES `rzt`.`region` (`region_id`)\n" +
		") ENGINE=InnoDB AUTO_INCREMENT=42 DEFAULT CHARSET=utf8mb4"

	want := "CREATE TABLE IF NOT EXISTS `supplier` (\n" +
		"  `supplier_id` bigint NOT NULL AUTO_INCREMENT,\n" +
		"  `name` varchar(100) NOT NULL,\n" +
		"  `region_id` bigint DEFAULT NULL,\n" +
		"  PRIMARY KEY (`supplier_id`),\n" +
		"  KEY `idx_supplier_region` (`region_id`)\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"

	assert.Equal(t, want, MySQL{}.RewriteDDL(ddl, "rzt"))
}

func TestMySQL_RewriteDDLDefiner(t *testing.T) {
	got := MySQL{}.RewriteDDL("CREATE DEFINER=`root`@`%` TABLE x", "")
	assert.NotContains(t, got, "DEFINER")
}

func TestPostgres_Statements(t *testing.T) {
	d := Postgres{}
	assert.Equal(t, "$2", d.Placeholder(2))
	assert.Equal(t, `"role_id" BIGSERIAL NOT NULL`, d.ColumnDefinition(bigID("role_id")))
	assert.Equal(t, `"is_rx" BOOLEAN DEFAULT FALSE`, d.ColumnDefinition(ColumnSpec{Name: "is_rx", Type: TypeBoolean, Default: "FALSE"}))
	assert.Equal(t, `"order_time" TIMESTAMP`, d.ColumnDefinition(created("order_time")))
	assert.Equal(t, `ALTER TABLE "member" ADD COLUMN IF NOT EXISTS "points" INTEGER DEFAULT 0`,
		d.AddColumn("member", ColumnSpec{Name: "points", Type: TypeInt, Default: "0"}))
	assert.Equal(t, `CREATE INDEX IF NOT EXISTS "idx_orders_member_id" ON "orders" ("member_id")`,
		d.CreateIndex("idx_orders_member_id", "orders", "member_id"))

	setting, _ := RequiredTable("setting")
	assert.Contains(t, d.CreateTable(setting), `PRIMARY KEY ("setting_key")`)
}

func TestPostgres_TableDDL(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`FROM information_schema.columns`).WithArgs("supplier").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "numeric_precision", "numeric_scale", "is_nullable", "column_default"}).
			AddRow("supplier_id", "bigint", nil, 64, 0, "NO", "nextval('supplier_supplier_id_seq'::regclass)").
			AddRow("name", "character varying", 100, nil, nil, "NO", nil).
			AddRow("balance", "numeric", nil, 12, 2, "YES", "0").
			AddRow("create_time", "timestamp without time zone", nil, nil, nil, "YES", nil))
	mock.ExpectQuery(`constraint_type = 'PRIMARY KEY'`).WithArgs("supplier").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("supplier_id"))

	ddl, err := Postgres{}.TableDDL(context.Background(), db, "supplier")
	require.NoError(t, err)

	want := "CREATE TABLE \"supplier\" (\n" +
		"  \"supplier_id\" BIGSERIAL NOT NULL,\n" +
		"  \"name\" CHARACTER VARYING(100) NOT NULL,\n" +
		"  \"balance\" NUMERIC(12,2) DEFAULT 0,\n" +
		"  \"create_time\" TIMESTAMP WITHOUT TIME ZONE,\n" +
		"  PRIMARY KEY (\"supplier_id\")\n" +
		")"
	assert.Equal(t, want, ddl)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"supplier\" (\n  \"id\" BIGINT\n)",
		Postgres{}.RewriteDDL("CREATE TABLE \"public\".\"supplier\" (\n  \"id\" BIGINT\n)", "public"))
}

func TestPostgres_TableDDLNoColumns(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(`FROM information_schema.columns`).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "character_maximum_length", "numeric_precision", "numeric_scale", "is_nullable", "column_default"}))

	_, err := Postgres{}.TableDDL(context.Background(), db, "ghost")
	assert.Error(t, err)
}
