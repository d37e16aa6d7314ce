// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBadger(t *testing.T) Cache {
	t.Helper()
	c, err := NewBadgerCache(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBadgerCache_SetGet(t *testing.T) {
	c := newBadger(t)

	c.Set("probe", []byte(`{"id":"abc"}`), time.Minute)

	val, found := c.Get("probe")
	require.True(t, found)
	assert.Equal(t, `{"id":"abc"}`, string(val))

	_, found = c.Get("missing")
	assert.False(t, found)
}

func TestBadgerCache_Delete(t *testing.T) {
	c := newBadger(t)

	c.Set("k", []byte("v"), time.Minute)
	c.Delete("k")

	_, found := c.Get("k")
	assert.False(t, found)
}

func TestBadgerCache_Clear(t *testing.T) {
	c := newBadger(t)

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)
	c.Clear()

	assert.Equal(t, 0, c.Stats().CurrentSize)
}

func TestBadgerCache_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("badger TTL has second granularity; skipping in short mode")
	}
	c := newBadger(t)

	c.Set("doomed", []byte("v"), time.Second)
	_, found := c.Get("doomed")
	require.True(t, found)

	time.Sleep(1500 * time.Millisecond)

	_, found = c.Get("doomed")
	assert.False(t, found, "entry should have expired")
}

func TestBadgerCache_Stats(t *testing.T) {
	c := newBadger(t)

	c.Set("k1", []byte("v1"), time.Minute)
	c.Get("k1")
	c.Get("nope")

	stats := c.Stats()
	assert.Equal(t, "badger", stats.Backend)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestBadgerCache_HealthCheck(t *testing.T) {
	c := newBadger(t)
	assert.NoError(t, c.HealthCheck(context.Background()))

	require.NoError(t, c.Close())
	assert.Error(t, c.HealthCheck(context.Background()))
}
