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
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTables() map[string]bool {
	skip := make(map[string]bool)
	for _, t := range RequiredTables() {
		skip[t.Name] = true
	}
	return skip
}

func TestReconcile_EmptyDatabase(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(qSnapshot).WillReturnRows(snapshotRows(snapshotOpts{skipTables: allTables()}))

	var want []string
	for _, tbl := range RequiredTables() {
		mock.ExpectExec(regexp.QuoteMeta(MySQL{}.CreateTable(tbl))).WillReturnResult(sqlmock.NewResult(0, 0))
		want = append(want, tbl.Name)
	}

	rep := NewReconciler(nil).Reconcile(context.Background(), NewCatalog("newshop", db, MySQL{}), nil)

	assert.Equal(t, want, rep.TablesCreated)
	assert.Empty(t, rep.ColumnsAdded)
	assert.Empty(t, rep.Errors)
	assert.Equal(t, len(want), rep.DDLCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcile_AddsMissingColumns(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(qSnapshot).WillReturnRows(snapshotRows(snapshotOpts{
		skipColumns: map[string]bool{"employee.password": true, "employee.status": true},
	}))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `employee` ADD COLUMN `password` VARCHAR(255)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `employee` ADD COLUMN `status` INT DEFAULT 1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rep := NewReconciler(nil).Reconcile(context.Background(), NewCatalog("wx", db, MySQL{}), nil)

	assert.Equal(t, []string{"employee.password", "employee.status"}, rep.ColumnsAdded)
	assert.Empty(t, rep.TablesCreated)
	assert.NoError(t, rep.Err())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcile_SecondRunExecutesNoDDL(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(qSnapshot).WillReturnRows(snapshotRows(snapshotOpts{
		extra: [][]interface{}{{"legacy_audit", "id", "bigint", nil, nil, nil, "NO"}},
	}))

	rep := NewReconciler(nil).Reconcile(context.Background(), NewCatalog("rzt", db, MySQL{}), nil)

	assert.Zero(t, rep.DDLCount())
	assert.Empty(t, rep.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReconcile_TableNamesAreCaseInsensitive(t *testing.T) {
	db, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "character_maximum_length", "numeric_precision", "numeric_scale", "is_nullable"})
	for _, tbl := range RequiredTables() {
		if tbl.Name == "setting" {
			continue
		}
		for _, c := range tbl.Columns {
			rows.AddRow(tbl.Name, c.Name, "varchar", nil, nil, nil, "YES")
		}
	}
	rows.AddRow("Setting", "Setting_Key", "varchar", int64(100), nil, nil, "NO")
	rows.AddRow("Setting", "Setting_Value", "text", int64(65535), nil, nil, "YES")
	rows.AddRow("Setting", "Update_Time", "datetime", nil, nil, nil, "YES")
	mock.ExpectQuery(qSnapshot).WillReturnRows(rows)

	rep := NewReconciler(nil).Reconcile(context.Background(), NewCatalog("wx", db, MySQL{}), nil)
	assert.Zero(t, rep.DDLCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureRequired_OnlySelectedTables(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(qSnapshot).WillReturnRows(snapshotRows(snapshotOpts{skipTables: allTables()}))
	role, _ := RequiredTable("role")
	mock.ExpectExec(regexp.QuoteMeta(MySQL{}.CreateTable(role))).WillReturnResult(sqlmock.NewResult(0, 0))

	rep := NewReport("newshop")
	NewReconciler(nil).EnsureRequired(context.Background(), NewCatalog("newshop", db, MySQL{}), []string{"role"}, rep)

	assert.Equal(t, []string{"role"}, rep.TablesCreated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureRequired_FailureDoesNotStopOtherTables(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(qSnapshot).WillReturnRows(snapshotRows(snapshotOpts{
		skipTables: map[string]bool{"role": true, "supplier": true},
	}))
	role, _ := RequiredTable("role")
	supplier, _ := RequiredTable("supplier")
	mock.ExpectExec(regexp.QuoteMeta(MySQL{}.CreateTable(role))).WillReturnError(errors.New("permission denied"))
	mock.ExpectExec(regexp.QuoteMeta(MySQL{}.CreateTable(supplier))).WillReturnResult(sqlmock.NewResult(0, 0))

	rep := NewReconciler(nil).Reconcile(context.Background(), NewCatalog("wx", db, MySQL{}), nil)

	assert.Equal(t, []string{"supplier"}, rep.TablesCreated)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, StepError{Step: "create_table", Object: "role", Message: "permission denied"}, rep.Errors[0])
	assert.ErrorContains(t, rep.Err(), "create_table role")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureRequired_IntrospectionFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(qSnapshot).WillReturnError(errors.New("connection reset"))

	rep := NewReconciler(nil).Reconcile(context.Background(), NewCatalog("wx", db, MySQL{}), nil)

	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "reconcile", rep.Errors[0].Step)
	assert.Zero(t, rep.DDLCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

const supplierDDL = "CREATE TABLE `supplier` (\n" +
	"  `supplier_id` bigint NOT NULL AUTO_INCREMENT,\n" +
	"  `name` varchar(100) NOT NULL,\n" +
	"  `contact_person` varchar(50) DEFAULT NULL,\n" +
	"  `phone` varchar(20) DEFAULT NULL,\n" +
	"  `create_time` datetime DEFAULT NULL,\n" +
	"  `credit_level` int DEFAULT NULL,\n" +
	"  PRIMARY KEY (`supplier_id`),\n" +
	"  CONSTRAINT `fk_supplier_region` FOREIGN KEY (`region_id`) REFERENCES `region` (`region_id`)\n" +
	") ENGINE=InnoDB AUTO_INCREMENT=17 DEFAULT CHARSET=utf8mb4"

func TestReconcile_CopiesTablesFromBaseline(t *testing.T) {
	baseDB, baseMock := newMock(t)
	targetDB, targetMock := newMock(t)

	baseMock.ExpectQuery(qTables).WillReturnRows(tableRows(nil, "flyway_schema_history"))
	targetMock.ExpectQuery(qTables).WillReturnRows(tableRows(map[string]bool{"supplier": true}))
	baseMock.ExpectQuery(qCatalog).WillReturnRows(sqlmock.NewRows([]string{"DATABASE()"}).AddRow("rzt"))
	baseMock.ExpectQuery(regexp.QuoteMeta("SHOW CREATE TABLE `supplier`")).
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}).AddRow("supplier", supplierDDL))

	copied := "CREATE TABLE IF NOT EXISTS `supplier` (\n" +
		"  `supplier_id` bigint NOT NULL AUTO_INCREMENT,\n" +
		"  `name` varchar(100) NOT NULL,\n" +
		"  `contact_person` varchar(50) DEFAULT NULL,\n" +
		"  `phone` varchar(20) DEFAULT NULL,\n" +
		"  `create_time` datetime DEFAULT NULL,\n" +
		"  `credit_level` int DEFAULT NULL,\n" +
		"  PRIMARY KEY (`supplier_id`)\n" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	targetMock.ExpectExec(regexp.QuoteMeta(copied)).WillReturnResult(sqlmock.NewResult(0, 0))

	// The copied table carries the baseline's columns; the required address
	// column is then added on top.
	targetMock.ExpectQuery(qSnapshot).WillReturnRows(snapshotRows(snapshotOpts{
		skipColumns: map[string]bool{"supplier.address": true},
		extra:       [][]interface{}{{"supplier", "credit_level", "int", nil, nil, nil, "YES"}},
	}))
	targetMock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `supplier` ADD COLUMN `address` VARCHAR(255)")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	baseline := NewCatalog("rzt", baseDB, MySQL{})
	target := NewCatalog("default", targetDB, MySQL{})
	rep := NewReconciler(nil).Reconcile(context.Background(), target, baseline)

	assert.Equal(t, []string{"supplier"}, rep.TablesCreated)
	assert.Equal(t, []string{"supplier.address"}, rep.ColumnsAdded)
	assert.Empty(t, rep.Errors)
	assert.Equal(t, 2, rep.DDLCount())
	assert.NoError(t, baseMock.ExpectationsWereMet())
	assert.NoError(t, targetMock.ExpectationsWereMet())
}

func TestPropagateBaseline_NothingMissing(t *testing.T) {
	baseDB, baseMock := newMock(t)
	targetDB, targetMock := newMock(t)

	baseMock.ExpectQuery(qTables).WillReturnRows(tableRows(nil, "schema_migrations"))
	targetMock.ExpectQuery(qTables).WillReturnRows(tableRows(nil))

	rep := NewReport("default")
	NewReconciler(nil).PropagateBaseline(context.Background(),
		NewCatalog("default", targetDB, MySQL{}), NewCatalog("rzt", baseDB, MySQL{}), rep)

	assert.Zero(t, rep.DDLCount())
	assert.NoError(t, baseMock.ExpectationsWereMet())
	assert.NoError(t, targetMock.ExpectationsWereMet())
}

func TestPropagateBaseline_CopyFailureContinues(t *testing.T) {
	baseDB, baseMock := newMock(t)
	targetDB, targetMock := newMock(t)

	baseMock.ExpectQuery(qTables).WillReturnRows(tableRows(nil, "audit_log", "coupon"))
	targetMock.ExpectQuery(qTables).WillReturnRows(tableRows(nil))
	baseMock.ExpectQuery(qCatalog).WillReturnRows(sqlmock.NewRows([]string{"DATABASE()"}).AddRow("rzt"))
	baseMock.ExpectQuery(regexp.QuoteMeta("SHOW CREATE TABLE `audit_log`")).WillReturnError(errors.New("access denied"))
	baseMock.ExpectQuery(regexp.QuoteMeta("SHOW CREATE TABLE `coupon`")).
		WillReturnRows(sqlmock.NewRows([]string{"Table", "Create Table"}).
			AddRow("coupon", "CREATE TABLE `coupon` (\n  `id` int NOT NULL\n) ENGINE=InnoDB"))
	targetMock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS `coupon`")).WillReturnResult(sqlmock.NewResult(0, 0))

	rep := NewReport("wx")
	NewReconciler(nil).PropagateBaseline(context.Background(),
		NewCatalog("wx", targetDB, MySQL{}), NewCatalog("rzt", baseDB, MySQL{}), rep)

	assert.Equal(t, []string{"coupon"}, rep.TablesCreated)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "copy_table", rep.Errors[0].Step)
	assert.Equal(t, "audit_log", rep.Errors[0].Object)
	assert.NoError(t, baseMock.ExpectationsWereMet())
	assert.NoError(t, targetMock.ExpectationsWereMet())
}

func TestPropagateBaseline_DialectMismatch(t *testing.T) {
	baseDB, baseMock := newMock(t)
	targetDB, targetMock := newMock(t)

	rep := NewReport("pg")
	NewReconciler(nil).PropagateBaseline(context.Background(),
		NewCatalog("pg", targetDB, Postgres{}), NewCatalog("rzt", baseDB, MySQL{}), rep)

	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0].Message, "cannot copy mysql tables into a postgres database")
	assert.NoError(t, baseMock.ExpectationsWereMet())
	assert.NoError(t, targetMock.ExpectationsWereMet())
}

func TestReconcile_BaselineIsTarget(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(qSnapshot).WillReturnRows(snapshotRows(snapshotOpts{}))

	c := NewCatalog("rzt", db, MySQL{})
	rep := NewReconciler(nil).Reconcile(context.Background(), c, c)

	assert.Zero(t, rep.DDLCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}
