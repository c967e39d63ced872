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

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/szijea/springboot-main-sub000/datasource/base"
)

// ErrInvalidTenant is returned for tenant entries that cannot be used
var ErrInvalidTenant = errors.New("invalid tenant configuration")

// TenantsFile is the YAML layout of PHARMACY_TENANTS_FILE
type TenantsFile struct {
	Baseline string              `yaml:"baseline"`
	Tenants  []base.TenantConfig `yaml:"tenants"`
}

// LoadTenantsFile reads an ordered tenant list from a YAML file.
// ${VAR} and $VAR references are expanded before parsing.
func LoadTenantsFile(path string) (*TenantsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenants file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var file TenantsFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("failed to parse tenants file: %w", err)
	}
	return &file, nil
}

// tenantsFromEnv reads positional records PREFIX_TENANTS_<n>_ID|URL|USERNAME|PASSWORD
// starting at 0 and stopping at the first index with neither ID nor URL.
func tenantsFromEnv(prefix string) []base.TenantConfig {
	prefix = strings.ToUpper(prefix)
	var tenants []base.TenantConfig
	for n := 0; ; n++ {
		key := func(field string) string {
			return fmt.Sprintf("%s_TENANTS_%d_%s", prefix, n, field)
		}
		cfg := base.TenantConfig{
			ID:       strings.TrimSpace(os.Getenv(key("ID"))),
			URL:      strings.TrimSpace(os.Getenv(key("URL"))),
			Username: os.Getenv(key("USERNAME")),
			Password: os.Getenv(key("PASSWORD")),
		}
		if cfg.ID == "" && cfg.URL == "" {
			return tenants
		}
		tenants = append(tenants, cfg)
	}
}

// ValidateTenants checks ids and urls. The default tenant must be present
// and ids must be unique; ids are compared case-sensitively.
func ValidateTenants(tenants []base.TenantConfig) error {
	seen := make(map[string]bool, len(tenants))
	for i, t := range tenants {
		if t.ID == "" {
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidTenant, i)
		}
		if strings.TrimSpace(t.URL) == "" {
			return fmt.Errorf("%w: tenant %s has no url", ErrInvalidTenant, t.ID)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate tenant id %s", ErrInvalidTenant, t.ID)
		}
		seen[t.ID] = true
	}
	if !seen[base.DefaultTenantID] {
		return fmt.Errorf("%w: no %q tenant configured", ErrInvalidTenant, base.DefaultTenantID)
	}
	return nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string.
// Supports ${VAR_NAME}, $VAR_NAME and ${VAR_NAME:-default}; undefined
// variables expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}
