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
Package server provisions tenants and exposes the admin and diagnostic HTTP
surface.

# Provisioning

A Provisioner runs, per tenant and in this order: table and column
reconciliation (including tables copied from the baseline tenant), foreign
key healing, then seeding. Every step records into a schema.Report and a
failure never stops the remaining steps. At startup the baseline tenant is
provisioned first; a default tenant whose pool cannot be built aborts
startup.

# Endpoints

	GET  /health                    liveness and pool statistics
	GET  /metrics                   Prometheus metrics
	GET  /health/schema             per tenant catalog and missing tables
	GET  /health/diff               column drift against the baseline
	GET  /tenants                   registered tenant ids
	POST /tenants                   register and provision a tenant
	POST /tenants/{id}/reconcile    re-run provisioning for one tenant
	GET  /api/v1/context            tenant the request was routed to

The two diagnostic reports are cached for a short TTL, in process or in
Redis when PHARMACY_REDIS_URL is set. Adding or reconciling a tenant drops
the cached reports.
*/
package server
