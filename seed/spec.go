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

// Package seed inserts the reference rows every store needs.
package seed

// Role names
const (
	RoleAdmin      = "ADMIN"
	RoleManager    = "MANAGER"
	RoleCashier    = "CASHIER"
	RolePharmacist = "PHARMACIST"
)

// DefaultSupplierName is the supplier row every tenant receives
const DefaultSupplierName = "default"

// Role is a role row inserted when no role of the same name exists
type Role struct {
	Name        string
	Permissions string
	Description string
}

// Operator is an employee account inserted when its username is free
type Operator struct {
	Username string
	Name     string
	Role     string
}

// Spec is the reference data every tenant needs to be usable
type Spec struct {
	Roles []Role

	// Operators lists the accounts per tenant id. Tenants without an entry
	// receive Fallback.
	Operators map[string][]Operator
	Fallback  []Operator

	SupplierName string
	Password     string
}

// DefaultSpec returns the built-in seed data with password as the operator
// credential
func DefaultSpec(password string) Spec {
	return Spec{
		Roles: []Role{
			{Name: RoleAdmin, Permissions: "*", Description: "Store administrator"},
			{Name: RoleManager, Permissions: "medicine,stock,order,member,report,employee", Description: "Store manager"},
			{Name: RolePharmacist, Permissions: "medicine,stock,order", Description: "Licensed pharmacist"},
			{Name: RoleCashier, Permissions: "order,member", Description: "Cashier"},
		},
		Operators: map[string][]Operator{
			"default": {
				{Username: "admin", Name: "Administrator", Role: RoleAdmin},
			},
			"rzt": {
				{Username: "admin", Name: "Administrator", Role: RoleAdmin},
				{Username: "rzt_manager", Name: "RZT Manager", Role: RoleManager},
			},
			"wx": {
				{Username: "admin", Name: "Administrator", Role: RoleAdmin},
				{Username: "wx_cashier", Name: "WX Cashier", Role: RoleCashier},
			},
			"gy": {
				{Username: "admin", Name: "Administrator", Role: RoleAdmin},
				{Username: "gy_pharmacist", Name: "GY Pharmacist", Role: RolePharmacist},
			},
		},
		Fallback: []Operator{
			{Username: "admin", Name: "Administrator", Role: RoleAdmin},
		},
		SupplierName: DefaultSupplierName,
		Password:     password,
	}
}

// OperatorsFor returns the accounts seeded into tenantID
func (s Spec) OperatorsFor(tenantID string) []Operator {
	if ops, ok := s.Operators[tenantID]; ok {
		return ops
	}
	return s.Fallback
}
