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
Package logger provides structured JSON logging with per-tenant fields.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (registry, schema, seed, server, ...)
  - Instance ID and container name
  - Tenant ID (the routing key of the tenant database concerned)
  - Request ID (for request correlation)
  - Custom fields

# Usage

	log := logger.New("schema")

	log.Info("rzt", "", "Created table", map[string]interface{}{
	    "table": "supplier",
	})

	log.ErrorWithCode("newshop", reqID, "Tenant add failed", 502, err, nil)

# Output Format

	{"timestamp":"2025-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"schema","instance_id":"i-abc123","container":"pharmacyd-xyz",
	 "tenant_id":"rzt","message":"Created table","fields":{"table":"supplier"}}

# Environment Variables

  - INSTANCE_ID: Deployment instance identifier
  - LOG_LEVEL: Minimum level written (default INFO)

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
