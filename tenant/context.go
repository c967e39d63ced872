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

// Package tenant carries the current tenant id through a request and routes
// database operations to that tenant's pool.
//
// The id lives in a Scope stored in the request context. Middleware binds a
// fresh Scope per request and clears it when the handler returns or panics.
package tenant

import (
	"context"
	"sync"
)

// contextKey is a private type for context keys to avoid collisions
// with other packages that might use string keys.
type contextKey string

// scopeContextKey is the key for storing a Scope in context.Context.
const scopeContextKey contextKey = "tenant_scope"

// Scope holds the tenant id resolved for one request. It is empty when
// created and must be empty again once the request is finished; the
// middleware clears it on every exit path.
type Scope struct {
	mu       sync.RWMutex
	id       string
	fellBack bool // an unknown id was already reported for this scope
}

// NewScope creates an empty scope
func NewScope() *Scope {
	return &Scope{}
}

// Set records the current tenant id
func (s *Scope) Set(id string) {
	s.mu.Lock()
	s.id = id
	s.fellBack = false
	s.mu.Unlock()
}

// Current returns the current tenant id, or "" when unset
func (s *Scope) Current() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Clear unsets the current tenant id
func (s *Scope) Clear() {
	s.mu.Lock()
	s.id = ""
	s.fellBack = false
	s.mu.Unlock()
}

// markFallback records that the scope's id was routed to the default
// tenant. It reports whether this is the first time for the current id.
func (s *Scope) markFallback() bool {
	if s == nil {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first := !s.fellBack
	s.fellBack = true
	return first
}

// NewContext stores a Scope in the context.Context. The scope travels with
// the request; goroutines started by the handler see the same scope.
//
// Example:
//
//	scope := tenant.NewScope()
//	ctx = tenant.NewContext(ctx, scope)
//	scope.Set("rzt")
func NewContext(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeContextKey, s)
}

// FromContext retrieves the Scope from the context, or nil
func FromContext(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	if s, ok := ctx.Value(scopeContextKey).(*Scope); ok {
		return s
	}
	return nil
}

// WithTenant returns a context bound to a new scope holding id. Used by
// background work (startup provisioning, CLI commands) that runs outside
// the HTTP middleware.
func WithTenant(ctx context.Context, id string) context.Context {
	s := NewScope()
	s.Set(id)
	return NewContext(ctx, s)
}

// CurrentID returns the tenant id carried by ctx, or "" when unset
func CurrentID(ctx context.Context) string {
	return FromContext(ctx).Current()
}
