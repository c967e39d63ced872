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

// Package base defines the tenant descriptor and errors shared by the
// datasource packages.
package base

import (
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DefaultTenantID is the routing key used whenever a request carries no
// tenant, or an id the registry does not know.
const DefaultTenantID = "default"

// Supported database drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// TenantConfig holds the connection parameters of one tenant database
type TenantConfig struct {
	ID       string `json:"id" yaml:"id"`             // Routing key, case-sensitive
	URL      string `json:"url" yaml:"url"`           // jdbc:mysql://, mysql://, postgres:// or a native DSN
	Username string `json:"username" yaml:"username"` // Optional when embedded in URL
	Password string `json:"password" yaml:"password"` // May be a secret reference
}

// Driver derives the database driver from the connection URL.
// Anything that is not recognisably PostgreSQL is treated as MySQL.
func (c TenantConfig) Driver() string {
	u := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.URL)), "jdbc:")
	if strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://") {
		return DriverPostgres
	}
	return DriverMySQL
}

const (
	redactedMask    = "****"
	urlPasswordMask = "xxxxx" // matches url.URL.Redacted
)

// Redacted returns a copy safe to log or return over HTTP. Passwords embedded
// in the URL are masked as well as the Password field.
func (c TenantConfig) Redacted() TenantConfig {
	if c.Password != "" {
		c.Password = redactedMask
	}
	c.URL = redactURL(c.URL)
	return c
}

func redactURL(raw string) string {
	if !strings.Contains(raw, "@") {
		return raw
	}

	prefix, rest := "", strings.TrimSpace(raw)
	if len(rest) >= 5 && strings.EqualFold(rest[:5], "jdbc:") {
		prefix, rest = rest[:5], rest[5:]
	}

	if strings.Contains(rest, "://") {
		u, err := url.Parse(rest)
		if err != nil {
			return redactedMask
		}
		return prefix + u.Redacted()
	}

	mc, err := mysql.ParseDSN(rest)
	if err != nil {
		return redactedMask
	}
	if mc.Passwd != "" {
		mc.Passwd = urlPasswordMask
	}
	return prefix + mc.FormatDSN()
}

// HealthStatus represents the health of a tenant pool
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Latency   time.Duration     `json:"latency"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error,omitempty"`
}

// DataSourceError represents errors raised while building or using a tenant pool
type DataSourceError struct {
	TenantID  string
	Operation string
	Message   string
	Cause     error
}

func (e *DataSourceError) Error() string {
	if e.Cause != nil {
		return e.TenantID + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.TenantID + "." + e.Operation + ": " + e.Message
}

func (e *DataSourceError) Unwrap() error {
	return e.Cause
}

// NewDataSourceError creates a new DataSourceError
func NewDataSourceError(tenantID, operation, message string, cause error) *DataSourceError {
	return &DataSourceError{
		TenantID:  tenantID,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
