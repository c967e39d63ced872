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

// Package config loads process and tenant configuration from the
// environment, an optional .env file and an optional YAML tenants file.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/szijea/springboot-main-sub000/datasource/base"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "pharmacy"

// DBConfig holds the default tenant's connection
type DBConfig struct {
	URL      string `envconfig:"URL"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
}

// PoolConfig controls pool construction retries
type PoolConfig struct {
	MaxRetry     int           `split_words:"true" default:"10"`
	RetryBackoff time.Duration `split_words:"true" default:"3s"`
}

// SeedConfig controls reference data seeding
type SeedConfig struct {
	DefaultPassword string `split_words:"true" default:"123456"`
	BcryptCost      int    `split_words:"true" default:"10"`
}

// Config is the process configuration
type Config struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	DB             DBConfig      `envconfig:"DB"`
	TenantsFile    string        `split_words:"true"`
	BaselineTenant string        `split_words:"true"`
	TenantHeader   string        `split_words:"true" default:"X-Tenant-ID"`
	TenantParam    string        `split_words:"true" default:"tenant"`
	Pool           PoolConfig    `envconfig:"POOL"`
	HealthCacheTTL time.Duration `envconfig:"HEALTH_CACHE_TTL" default:"30s"`
	RedisURL       string        `envconfig:"REDIS_URL"`
	AWSRegion      string        `envconfig:"AWS_REGION"`
	CORSOrigins    []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	Seed           SeedConfig    `envconfig:"SEED"`

	// Tenants is the ordered tenant list, default first
	Tenants []base.TenantConfig `ignored:"true"`
}

func loadEnvironment(filename string) error {
	var err error
	if filename != "" {
		err = godotenv.Overload(filename)
	} else {
		err = godotenv.Load()
		// a missing .env file is fine
		if os.IsNotExist(err) {
			return nil
		}
	}
	return err
}

// LoadEnv loads an optional .env file and parses PHARMACY_* variables
// without touching tenant configuration.
func LoadEnv(filename string) (*Config, error) {
	if err := loadEnvironment(filename); err != nil {
		return nil, err
	}
	cfg := new(Config)
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds the full configuration: environment, the tenants file, the
// positional tenant records and resolved secret references.
func Load(ctx context.Context, filename string) (*Config, error) {
	cfg, err := LoadEnv(filename)
	if err != nil {
		return nil, err
	}
	if err := cfg.loadTenants(ctx, NewSecretResolver(cfg.AWSRegion)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadTenants(ctx context.Context, secrets *SecretResolver) error {
	var tenants []base.TenantConfig
	if c.DB.URL != "" {
		tenants = append(tenants, base.TenantConfig{
			ID:       base.DefaultTenantID,
			URL:      c.DB.URL,
			Username: c.DB.Username,
			Password: c.DB.Password,
		})
	}

	if c.TenantsFile != "" {
		file, err := LoadTenantsFile(c.TenantsFile)
		if err != nil {
			return err
		}
		tenants = append(tenants, file.Tenants...)
		if c.BaselineTenant == "" {
			c.BaselineTenant = file.Baseline
		}
	}
	tenants = append(tenants, tenantsFromEnv(EnvPrefix)...)

	if err := ValidateTenants(tenants); err != nil {
		return err
	}

	for i := range tenants {
		if err := resolveCredentials(ctx, secrets, &tenants[i]); err != nil {
			return err
		}
	}

	c.Tenants = orderDefaultFirst(tenants)
	c.BaselineTenant = selectBaseline(c.BaselineTenant, c.Tenants)
	return nil
}

func resolveCredentials(ctx context.Context, secrets *SecretResolver, t *base.TenantConfig) error {
	if !IsSecretRef(t.Username) && !IsSecretRef(t.Password) {
		return nil
	}
	user, err := secrets.Resolve(ctx, t.Username)
	if err != nil {
		return fmt.Errorf("tenant %s username: %w", t.ID, err)
	}
	pass, err := secrets.Resolve(ctx, t.Password)
	if err != nil {
		return fmt.Errorf("tenant %s password: %w", t.ID, err)
	}
	t.Username, t.Password = user, pass
	return nil
}

func orderDefaultFirst(tenants []base.TenantConfig) []base.TenantConfig {
	ordered := make([]base.TenantConfig, 0, len(tenants))
	for _, t := range tenants {
		if t.ID == base.DefaultTenantID {
			ordered = append(ordered, t)
		}
	}
	for _, t := range tenants {
		if t.ID != base.DefaultTenantID {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

// selectBaseline returns the configured baseline, else the first
// non-default tenant, else the default tenant.
func selectBaseline(configured string, tenants []base.TenantConfig) string {
	if configured != "" {
		return configured
	}
	for _, t := range tenants {
		if t.ID != base.DefaultTenantID {
			return t.ID
		}
	}
	return base.DefaultTenantID
}

// Tenant returns the configured tenant with the given id
func (c *Config) Tenant(id string) (base.TenantConfig, bool) {
	for _, t := range c.Tenants {
		if t.ID == id {
			return t, true
		}
	}
	return base.TenantConfig{}, false
}
