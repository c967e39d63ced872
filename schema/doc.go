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
Package schema keeps every tenant database structurally usable.

Three passes run per tenant, in this order:

  - Reconciler.PropagateBaseline copies tables that exist only in the
    baseline tenant, using the baseline's own DDL with catalog qualifiers,
    AUTO_INCREMENT counters, DEFINER clauses and foreign keys removed.
  - Reconciler.EnsureRequired creates the compiled-in required tables and
    adds missing required columns. Nothing is ever dropped or narrowed.
  - Healer.Heal adds the declared foreign keys, each only when no orphaned
    child rows exist, creating a supporting index first.

Every statement is preceded by an information_schema existence check, so a
second run against a reconciled tenant executes no DDL. Failures are
recorded in the tenant's Report and the remaining tables are still
processed.

MySQL is the primary dialect; PostgreSQL is supported through the Postgres
dialect. Inspector produces the read-only health and drift reports served
under /health.
*/
package schema
