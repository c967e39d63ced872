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

/*
Command pharmacyd runs the pharmacy multi-tenant datasource service.

Every store (tenant) has its own database. pharmacyd builds one pool per
store, routes each request to the pool named by its tenant header or query
parameter, and keeps every store's schema aligned with the required schema
and with a baseline store.

# Usage

	pharmacyd serve [-c .env]
	pharmacyd reconcile [tenant...] [-c .env]
	pharmacyd tenants [-c .env]
	pharmacyd version

# Environment Variables

Required:
  - PHARMACY_DB_URL: default tenant connection (jdbc:mysql://host:3306/db)

Optional:
  - PHARMACY_DB_USERNAME, PHARMACY_DB_PASSWORD: default tenant credentials
  - PHARMACY_TENANTS_FILE: YAML file listing additional tenants
  - PHARMACY_TENANTS_<n>_ID, _URL, _USERNAME, _PASSWORD: positional tenants
  - PHARMACY_BASELINE_TENANT: tenant whose tables are copied into the others
  - PHARMACY_PORT: HTTP port (default: 8080)
  - PHARMACY_POOL_MAX_RETRY, PHARMACY_POOL_RETRY_BACKOFF: pool build retries
  - PHARMACY_REDIS_URL: share the schema health cache through Redis
  - PHARMACY_SEED_DEFAULT_PASSWORD: password of seeded operator accounts
  - LOG_LEVEL: DEBUG, INFO, WARN or ERROR (default: INFO)

Credentials of the form secretsmanager://<secret-id>#<key> are read from AWS Secrets
Manager.

# Endpoints

  - GET /health, GET /metrics
  - GET /health/schema, GET /health/diff
  - GET /tenants, POST /tenants, POST /tenants/{id}/reconcile
  - GET /api/v1/context
*/
package main
