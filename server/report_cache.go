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

package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/szijea/springboot-main-sub000/datasource/config"
)

// redisKeyPrefix namespaces health reports in a shared Redis
const redisKeyPrefix = "pharmacy:health:"

// ReportCache stores encoded diagnostic reports for a fixed TTL
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryReportCache keeps reports in process
type MemoryReportCache struct {
	cache *config.Cache[[]byte]
}

// NewMemoryReportCache creates an in-process cache with the given TTL
func NewMemoryReportCache(ttl time.Duration) *MemoryReportCache {
	return &MemoryReportCache{cache: config.NewCache[[]byte](ttl)}
}

func (m *MemoryReportCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

func (m *MemoryReportCache) Set(_ context.Context, key string, value []byte) error {
	m.cache.Set(key, value)
	return nil
}

func (m *MemoryReportCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.cache.Invalidate(k)
	}
	return nil
}

// RedisReportCache shares reports between replicas through Redis
type RedisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisReportCache connects to redisURL (redis://host:port/db) and
// verifies the connection
func NewRedisReportCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisReportCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisReportCache{client: client, ttl: ttl}, nil
}

func (c *RedisReportCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisReportCache) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, redisKeyPrefix+key, value, c.ttl).Err()
}

func (c *RedisReportCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = redisKeyPrefix + k
	}
	return c.client.Del(ctx, full...).Err()
}

// Close releases the Redis connection pool
func (c *RedisReportCache) Close() error {
	return c.client.Close()
}
