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

var employeeRole = ForeignKeySpec{
	Table: "employee", Name: "fk_employee_role", Column: "role_id",
	RefTable: "role", RefColumn: "role_id", OnDelete: OnDeleteSetNull,
}

const (
	createEmployeeRoleIndex = "CREATE INDEX `idx_employee_role_id` ON `employee` (`role_id`)"
	addEmployeeRoleFK       = "ALTER TABLE `employee` ADD CONSTRAINT `fk_employee_role` FOREIGN KEY (`role_id`) REFERENCES `role` (`role_id`) ON DELETE SET NULL"
)

func TestHeal(t *testing.T) {
	tests := []struct {
		name        string
		constraint  int
		orphans     int
		index       int
		wantIndex   bool
		wantAdded   []string
		wantSkipped []SkippedForeignKey
		wantDDL     int
	}{
		{
			name:      "clean data without index",
			wantIndex: true,
			wantAdded: []string{"fk_employee_role"},
			wantDDL:   2,
		},
		{
			name:      "index already present",
			index:     1,
			wantAdded: []string{"fk_employee_role"},
			wantDDL:   1,
		},
		{
			name:        "orphaned rows",
			orphans:     3,
			wantSkipped: []SkippedForeignKey{{Name: "fk_employee_role", Table: "employee", Orphans: 3}},
		},
		{
			name:       "constraint already present",
			constraint: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(qTables).WillReturnRows(tableRows(nil))
			mock.ExpectQuery(qConstraint).WithArgs("employee", "fk_employee_role").WillReturnRows(countRow(tt.constraint))
			if tt.constraint == 0 {
				mock.ExpectQuery(qOrphans).WillReturnRows(countRow(tt.orphans))
				if tt.orphans == 0 {
					mock.ExpectQuery(qIndex).WithArgs("employee", "role_id").WillReturnRows(countRow(tt.index))
					if tt.wantIndex {
						mock.ExpectExec(regexp.QuoteMeta(createEmployeeRoleIndex)).WillReturnResult(sqlmock.NewResult(0, 0))
					}
					mock.ExpectExec(regexp.QuoteMeta(addEmployeeRoleFK)).WillReturnResult(sqlmock.NewResult(0, 0))
				}
			}

			rep := NewReport("wx")
			NewHealer([]ForeignKeySpec{employeeRole}).Heal(context.Background(), NewCatalog("wx", db, MySQL{}), rep)

			if tt.wantAdded == nil {
				assert.Empty(t, rep.ForeignKeysAdded)
			} else {
				assert.Equal(t, tt.wantAdded, rep.ForeignKeysAdded)
			}
			if tt.wantSkipped == nil {
				assert.Empty(t, rep.ForeignKeysSkipped)
			} else {
				assert.Equal(t, tt.wantSkipped, rep.ForeignKeysSkipped)
			}
			assert.Equal(t, tt.wantDDL, rep.DDLCount())
			assert.Empty(t, rep.Errors)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHeal_TablesAbsent(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(qTables).WillReturnRows(tableRows(map[string]bool{"role": true}))

	rep := NewReport("newshop")
	NewHealer([]ForeignKeySpec{employeeRole}).Heal(context.Background(), NewCatalog("newshop", db, MySQL{}), rep)

	assert.Zero(t, rep.DDLCount())
	assert.Empty(t, rep.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHeal_FailureContinuesWithNextConstraint(t *testing.T) {
	stockIn := ForeignKeySpec{
		Table: "stock_in", Name: "fk_stock_in_supplier", Column: "supplier_id",
		RefTable: "supplier", RefColumn: "supplier_id", OnDelete: OnDeleteSetNull,
	}

	db, mock := newMock(t)
	mock.ExpectQuery(qTables).WillReturnRows(tableRows(nil))
	mock.ExpectQuery(qConstraint).WithArgs("employee", "fk_employee_role").WillReturnRows(countRow(0))
	mock.ExpectQuery(qOrphans).WillReturnRows(countRow(0))
	mock.ExpectQuery(qIndex).WithArgs("employee", "role_id").WillReturnRows(countRow(1))
	mock.ExpectExec(regexp.QuoteMeta(addEmployeeRoleFK)).WillReturnError(errors.New("Error 1452: Cannot add or update a child row"))

	mock.ExpectQuery(qConstraint).WithArgs("stock_in", "fk_stock_in_supplier").WillReturnRows(countRow(0))
	mock.ExpectQuery(qOrphans).WillReturnRows(countRow(0))
	mock.ExpectQuery(qIndex).WithArgs("stock_in", "supplier_id").WillReturnRows(countRow(1))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `stock_in` ADD CONSTRAINT `fk_stock_in_supplier`")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rep := NewReport("wx")
	NewHealer([]ForeignKeySpec{employeeRole, stockIn}).Heal(context.Background(), NewCatalog("wx", db, MySQL{}), rep)

	assert.Equal(t, []string{"fk_stock_in_supplier"}, rep.ForeignKeysAdded)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, StepError{Step: "foreign_key", Object: "fk_employee_role", Message: "Error 1452: Cannot add or update a child row"}, rep.Errors[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHeal_AllConstraintsPresent(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(qTables).WillReturnRows(tableRows(nil))
	for _, fk := range ForeignKeys() {
		mock.ExpectQuery(qConstraint).WithArgs(fk.Table, fk.Name).WillReturnRows(countRow(1))
	}

	rep := NewReport("rzt")
	NewHealer(nil).Heal(context.Background(), NewCatalog("rzt", db, MySQL{}), rep)

	assert.Zero(t, rep.DDLCount())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHeal_UsesStoredTableNames(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(qTables).WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("Employee").AddRow("Role"))
	mock.ExpectQuery(qConstraint).WithArgs("Employee", "fk_employee_role").WillReturnRows(countRow(1))

	rep := NewReport("legacy")
	NewHealer([]ForeignKeySpec{employeeRole}).Heal(context.Background(), NewCatalog("legacy", db, MySQL{}), rep)

	assert.Empty(t, rep.Errors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHeal_TablesQueryFails(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(qTables).WillReturnError(errors.New("gone away"))

	rep := NewReport("wx")
	NewHealer(nil).Heal(context.Background(), NewCatalog("wx", db, MySQL{}), rep)

	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "foreign_keys", rep.Errors[0].Step)
	assert.NoError(t, mock.ExpectationsWereMet())
}
