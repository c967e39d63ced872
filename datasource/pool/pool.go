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

// Package pool opens and verifies tenant connection pools.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/szijea/springboot-main-sub000/datasource/base"
	"github.com/szijea/springboot-main-sub000/shared/logger"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default maximum connection lifetime
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultConnMaxIdleTime is the default maximum idle time for connections
	DefaultConnMaxIdleTime = 5 * time.Minute
	// DefaultPingTimeout bounds a single verification attempt
	DefaultPingTimeout = 10 * time.Second
	// DefaultMaxAttempts is the number of connection attempts before giving up
	DefaultMaxAttempts = 10
	// DefaultBackoff is the fixed pause between connection attempts
	DefaultBackoff = 3 * time.Second
)

var buildAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pharmacy_pool_build_attempts_total",
	Help: "Connection attempts made while building tenant pools",
}, []string{"result"})

// OpenFunc opens a database handle. sql.Open by default; tests inject sqlmock.
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// Options configures a Builder. Zero values select the defaults above.
type Options struct {
	MaxAttempts     int
	Backoff         time.Duration
	PingTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Open            OpenFunc
	Logger          *logger.Logger
}

// Builder establishes and verifies one pooled handle per tenant.
type Builder struct {
	opts Options
	log  *logger.Logger
}

// NewBuilder creates a Builder, filling unset options with defaults
func NewBuilder(opts Options) *Builder {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	} else if opts.Backoff == 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = DefaultPingTimeout
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = DefaultMaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = DefaultMaxIdleConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if opts.ConnMaxIdleTime <= 0 {
		opts.ConnMaxIdleTime = DefaultConnMaxIdleTime
	}
	if opts.Open == nil {
		opts.Open = sql.Open
	}
	l := opts.Logger
	if l == nil {
		l = logger.New("pool")
	}
	return &Builder{opts: opts, log: l}
}

// MaxAttempts returns the effective attempt limit
func (b *Builder) MaxAttempts() int {
	return b.opts.MaxAttempts
}

// Build opens a pool for cfg and verifies it with a ping. Failed attempts are
// retried at a fixed interval until MaxAttempts is reached or ctx is done.
func (b *Builder) Build(ctx context.Context, cfg base.TenantConfig) (*sql.DB, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, base.NewDataSourceError(cfg.ID, "Build", "failed to build DSN", err)
	}
	driver := cfg.Driver()

	var (
		db      *sql.DB
		attempt int
	)
	operation := func() error {
		attempt++
		conn, err := b.connect(ctx, driver, dsn)
		if err != nil {
			buildAttempts.WithLabelValues("failure").Inc()
			return err
		}
		buildAttempts.WithLabelValues("success").Inc()
		db = conn
		return nil
	}
	notify := func(err error, wait time.Duration) {
		b.log.Warn(cfg.ID, "", "Tenant database not reachable, retrying", logger.WithError(map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": b.opts.MaxAttempts,
			"retry_in_ms":  wait.Milliseconds(),
		}, err))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(b.opts.Backoff), uint64(b.opts.MaxAttempts-1)),
		ctx,
	)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		b.log.Error(cfg.ID, "", "Tenant pool construction failed", logger.WithError(map[string]interface{}{
			"attempts": attempt,
			"driver":   driver,
		}, err))
		return nil, base.NewDataSourceError(cfg.ID, "Build",
			fmt.Sprintf("failed to connect after %d attempt(s)", attempt), err)
	}

	b.log.Info(cfg.ID, "", "Tenant pool ready", map[string]interface{}{
		"driver":   driver,
		"attempts": attempt,
		"max_open": b.opts.MaxOpenConns,
		"max_idle": b.opts.MaxIdleConns,
	})
	return db, nil
}

func (b *Builder) connect(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := b.opts.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	db.SetMaxOpenConns(b.opts.MaxOpenConns)
	db.SetMaxIdleConns(b.opts.MaxIdleConns)
	db.SetConnMaxLifetime(b.opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(b.opts.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, b.opts.PingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
