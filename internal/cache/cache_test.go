// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	cache := NewMemoryCache(0) // No cleanup for this test
	defer cache.Close()

	cache.Set("key1", []byte("value1"), 5*time.Minute)

	val, ok := cache.Get("key1")
	require.True(t, ok, "expected to find key1")
	assert.Equal(t, []byte("value1"), val)

	_, ok = cache.Get("nonexistent")
	assert.False(t, ok, "expected not to find nonexistent key")
}

func TestMemoryCache_Expiration(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()

	cache.Set("shortlived", []byte("value"), 50*time.Millisecond)

	val, ok := cache.Get("shortlived")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), val)

	time.Sleep(100 * time.Millisecond)

	_, ok = cache.Get("shortlived")
	assert.False(t, ok, "expected key to be expired")
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()

	cache.Set("key", []byte("value"), 5*time.Minute)
	cache.Delete("key")

	_, ok := cache.Get("key")
	assert.False(t, ok)
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()

	cache.Set("a", []byte("1"), 5*time.Minute)
	cache.Set("b", []byte("2"), 5*time.Minute)
	cache.Clear()

	assert.Equal(t, 0, cache.Stats().CurrentSize)
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()

	cache.Set("k1", []byte("v1"), 5*time.Minute)
	cache.Get("k1")
	cache.Get("k1")
	cache.Get("missing")

	stats := cache.Stats()
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCache_JanitorEvicts(t *testing.T) {
	cache := NewMemoryCache(20 * time.Millisecond)
	defer cache.Close()

	cache.Set("doomed", []byte("v"), 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return cache.Stats().CurrentSize == 0
	}, time.Second, 10*time.Millisecond, "janitor should sweep the expired entry")
	assert.GreaterOrEqual(t, cache.Stats().Evictions, int64(1))
}

func TestMemoryCache_HealthCheck(t *testing.T) {
	cache := NewMemoryCache(0)
	defer cache.Close()

	assert.NoError(t, cache.HealthCheck(context.Background()))
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "ytdlp:video:dQw4w9WgXcQ", ProbeKey("dQw4w9WgXcQ"))
	assert.Equal(t, "meta:item:dQw4w9WgXcQ", MetaKey("dQw4w9WgXcQ"))
}
