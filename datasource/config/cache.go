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
	"sync"
	"time"
)

// DefaultCacheTTL is used when a cache is created without a positive TTL
const DefaultCacheTTL = 30 * time.Second

// CacheEntry represents a cached value with expiration
type CacheEntry[T any] struct {
	Value      T
	ExpiresAt  time.Time
	LastUpdate time.Time
}

// IsExpired checks if the cache entry has expired
func (e *CacheEntry[T]) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// Cache is a thread-safe keyed TTL cache
type Cache[T any] struct {
	entries map[string]*CacheEntry[T]
	ttl     time.Duration
	mu      sync.RWMutex
	stats   CacheStats
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	Hits         int64
	Misses       int64
	Evictions    int64
	LastEviction time.Time
	mu           sync.Mutex
}

// NewCache creates a cache with the specified TTL
func NewCache[T any](ttl time.Duration) *Cache[T] {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache[T]{
		entries: make(map[string]*CacheEntry[T]),
		ttl:     ttl,
	}
}

// TTL returns the configured time-to-live
func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached entry for key if present and not expired
func (c *Cache[T]) Get(key string) (*CacheEntry[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || entry.IsExpired() {
		c.recordMiss()
		return nil, false
	}

	c.recordHit()
	return entry, true
}

// Set caches value under key
func (c *Cache[T]) Set(key string, value T) *CacheEntry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry := &CacheEntry[T]{
		Value:      value,
		ExpiresAt:  now.Add(c.ttl),
		LastUpdate: now,
	}
	c.entries[key] = entry
	return entry
}

// Invalidate drops key from the cache
func (c *Cache[T]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	c.recordEviction(1)
}

// InvalidateAll clears the cache
func (c *Cache[T]) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*CacheEntry[T])
	c.mu.Unlock()
	c.recordEviction(1)
}

// Cleanup removes expired entries and returns how many were evicted.
// Should be called periodically.
func (c *Cache[T]) Cleanup() int {
	c.mu.Lock()
	evicted := 0
	for key, entry := range c.entries {
		if entry.IsExpired() {
			delete(c.entries, key)
			evicted++
		}
	}
	c.mu.Unlock()

	if evicted > 0 {
		c.recordEviction(int64(evicted))
	}
	return evicted
}

// Stats returns a copy of the cache statistics
func (c *Cache[T]) Stats() (hits, misses, evictions int64) {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return c.stats.Hits, c.stats.Misses, c.stats.Evictions
}

func (c *Cache[T]) recordHit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
}

func (c *Cache[T]) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

func (c *Cache[T]) recordEviction(n int64) {
	c.stats.mu.Lock()
	c.stats.Evictions += n
	c.stats.LastEviction = time.Now()
	c.stats.mu.Unlock()
}
