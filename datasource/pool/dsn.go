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

package pool

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/szijea/springboot-main-sub000/datasource/base"
)

const defaultMySQLPort = "3306"

// BuildDSN converts a tenant's connection parameters into a DSN understood by
// the driver returned from cfg.Driver().
func BuildDSN(cfg base.TenantConfig) (string, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return "", fmt.Errorf("connection url is required")
	}
	if cfg.Driver() == base.DriverPostgres {
		return buildPostgresDSN(cfg, raw)
	}
	return buildMySQLDSN(cfg, raw)
}

func buildMySQLDSN(cfg base.TenantConfig, raw string) (string, error) {
	trimmed := raw
	if len(trimmed) >= 5 && strings.EqualFold(trimmed[:5], "jdbc:") {
		trimmed = trimmed[5:]
	}

	var mc *mysql.Config
	if strings.HasPrefix(strings.ToLower(trimmed), "mysql://") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return "", fmt.Errorf("invalid mysql url: %w", err)
		}
		mc = mysql.NewConfig()
		mc.Net = "tcp"
		mc.Addr = u.Host
		if _, _, err := net.SplitHostPort(u.Host); err != nil {
			mc.Addr = net.JoinHostPort(u.Host, defaultMySQLPort)
		}
		mc.DBName = strings.TrimPrefix(u.Path, "/")
		if u.User != nil {
			mc.User = u.User.Username()
			mc.Passwd, _ = u.User.Password()
		}
		applyJDBCParams(mc, u.Query())
	} else {
		parsed, err := mysql.ParseDSN(trimmed)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		mc = parsed
	}

	if mc.DBName == "" {
		return "", fmt.Errorf("database name is required")
	}
	if cfg.Username != "" {
		mc.User = cfg.Username
	}
	if cfg.Password != "" {
		mc.Passwd = cfg.Password
	}

	// Production defaults
	mc.ParseTime = true
	if mc.Loc == nil {
		mc.Loc = time.UTC
	}
	if mc.Timeout == 0 {
		mc.Timeout = 10 * time.Second
	}
	if mc.ReadTimeout == 0 {
		mc.ReadTimeout = 30 * time.Second
	}
	if mc.WriteTimeout == 0 {
		mc.WriteTimeout = 30 * time.Second
	}
	mc.MultiStatements = false

	return mc.FormatDSN(), nil
}

// applyJDBCParams maps the JDBC query parameters that have a go-sql-driver
// equivalent. Everything else is dropped: unknown keys would otherwise be sent
// to the server as session variables.
func applyJDBCParams(mc *mysql.Config, q url.Values) {
	if tz := q.Get("serverTimezone"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			mc.Loc = loc
		}
	}
	if ssl := q.Get("useSSL"); ssl != "" {
		if on, err := strconv.ParseBool(ssl); err == nil && on {
			mc.TLSConfig = "preferred"
		}
	}
	if ms := q.Get("connectTimeout"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil && n > 0 {
			mc.Timeout = time.Duration(n) * time.Millisecond
		}
	}
	if cs := q.Get("characterEncoding"); strings.EqualFold(cs, "utf8") || strings.EqualFold(cs, "utf-8") {
		mc.Collation = "utf8mb4_general_ci"
	}
}

func buildPostgresDSN(cfg base.TenantConfig, raw string) (string, error) {
	trimmed := raw
	if len(trimmed) >= 5 && strings.EqualFold(trimmed[:5], "jdbc:") {
		trimmed = trimmed[5:]
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid postgres url: %w", err)
	}
	u.Scheme = "postgres"
	if strings.TrimPrefix(u.Path, "/") == "" {
		return "", fmt.Errorf("database name is required")
	}

	user, pass := "", ""
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	if cfg.Username != "" {
		user = cfg.Username
	}
	if cfg.Password != "" {
		pass = cfg.Password
	}
	if user != "" {
		if pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}

	q := u.Query()
	if q.Get("sslmode") == "" {
		// JDBC connects without TLS unless asked to; lib/pq defaults to require.
		q.Set("sslmode", "disable")
	}
	if q.Get("connect_timeout") == "" {
		q.Set("connect_timeout", "10")
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
