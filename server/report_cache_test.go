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
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReportCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryReportCache(50 * time.Millisecond)

	_, ok, err := c.Get(ctx, "schema")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "schema", []byte(`{"tenants":[]}`)))
	require.NoError(t, c.Set(ctx, "diff", []byte(`{}`)))

	got, ok, err := c.Get(ctx, "schema")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"tenants":[]}`, string(got))

	require.NoError(t, c.Delete(ctx, "schema"))
	_, ok, _ = c.Get(ctx, "schema")
	assert.False(t, ok)

	time.Sleep(80 * time.Millisecond)
	_, ok, _ = c.Get(ctx, "diff")
	assert.False(t, ok, "entry should expire after the TTL")
}

func setupRedisCache(t *testing.T, ttl time.Duration) (*RedisReportCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewRedisReportCache(context.Background(), "redis://"+mr.Addr(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisReportCache(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t, 30*time.Second)

	_, ok, err := c.Get(ctx, "schema")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "schema", []byte(`{"tenants":[]}`)))
	assert.True(t, mr.Exists("pharmacy:health:schema"))
	assert.Equal(t, 30*time.Second, mr.TTL("pharmacy:health:schema"))

	got, ok, err := c.Get(ctx, "schema")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"tenants":[]}`, string(got))

	mr.FastForward(31 * time.Second)
	_, ok, err = c.Get(ctx, "schema")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisReportCache_Delete(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t, time.Minute)

	require.NoError(t, c.Set(ctx, "schema", []byte("a")))
	require.NoError(t, c.Set(ctx, "diff", []byte("b")))
	require.NoError(t, c.Delete(ctx, "schema", "diff"))
	assert.False(t, mr.Exists("pharmacy:health:schema"))
	assert.False(t, mr.Exists("pharmacy:health:diff"))

	assert.NoError(t, c.Delete(ctx))
}

func TestRedisReportCache_ReadError(t *testing.T) {
	ctx := context.Background()
	c, mr := setupRedisCache(t, time.Minute)

	mr.SetError("ERR out of service")
	_, ok, err := c.Get(ctx, "schema")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNewRedisReportCache_Errors(t *testing.T) {
	_, err := NewRedisReportCache(context.Background(), "not a url", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")

	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisReportCache(context.Background(), "redis://"+addr, time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestServer_RedisCacheShared(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	b := newMockBuilder(t, "default")
	reg := newRegistry(t, b, "default")
	cfg := testConfig("default", "default")
	cfg.RedisURL = "redis://" + mr.Addr()

	s := New(context.Background(), cfg, reg)
	t.Cleanup(func() { _ = s.Close() })
	_, isRedis := s.cache.(*RedisReportCache)
	require.True(t, isRedis)

	expectHealthy(b.mock("default"), "pharmacy")
	rec := do(t, s.Router(), http.MethodGet, "/health/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)

	cached, err := mr.Get("pharmacy:health:schema")
	require.NoError(t, err)
	assert.Contains(t, cached, `"tenant":"default"`)
	assert.NoError(t, b.mock("default").ExpectationsWereMet())
}

func TestServer_RedisUnavailableFallsBackToMemory(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig("default", "default")
	cfg.RedisURL = "redis://" + addr

	s := New(context.Background(), cfg, newRegistry(t, newMockBuilder(t)))
	_, isMemory := s.cache.(*MemoryReportCache)
	assert.True(t, isMemory)
}
