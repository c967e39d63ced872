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

package tenant

import (
	"net/http"
	"strings"
)

// Default request locations of the tenant id
const (
	DefaultHeader = "X-Tenant-ID"
	DefaultParam  = "tenant"
)

// MiddlewareOptions configures where the tenant id is read from
type MiddlewareOptions struct {
	Header string
	Param  string
}

// ResolveID returns the tenant id carried by r: the header first, then the
// query or form parameter. Returns "" when neither is present.
func ResolveID(r *http.Request, header, param string) string {
	if header != "" {
		if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
			return id
		}
	}
	if param != "" {
		if id := strings.TrimSpace(r.FormValue(param)); id != "" {
			return id
		}
	}
	return ""
}

// Middleware binds a fresh Scope to every request and clears it when the
// handler returns or panics. Ids are not validated here: an unknown id is
// routed to the default tenant by the RoutingStore.
func Middleware(opts MiddlewareOptions) func(http.Handler) http.Handler {
	header := opts.Header
	if header == "" {
		header = DefaultHeader
	}
	param := opts.Param
	if param == "" {
		param = DefaultParam
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scope := NewScope()
			defer scope.Clear()

			if id := ResolveID(r, header, param); id != "" {
				scope.Set(id)
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), scope)))
		})
	}
}
