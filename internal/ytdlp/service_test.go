// SPDX-License-Identifier: MIT

package ytdlp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jellytube/ytbridge/internal/cache"
)

type runnerFunc func(ctx context.Context, videoID string) ([]byte, error)

func (f runnerFunc) Probe(ctx context.Context, videoID string) ([]byte, error) {
	return f(ctx, videoID)
}

func newTestService(r Runner) (*Service, cache.Cache) {
	c := cache.NewMemoryCache(0)
	return NewServiceWithRunner(r, c, time.Hour, "local", zerolog.Nop()), c
}

func TestServiceRejectsInvalidID(t *testing.T) {
	svc, _ := newTestService(runnerFunc(func(context.Context, string) ([]byte, error) {
		t.Fatal("runner must not be called for invalid ids")
		return nil, nil
	}))

	_, _, err := svc.Probe(context.Background(), "bad id!")
	require.ErrorIs(t, err, ErrInvalidVideoID)

	_, err = svc.ProbeFresh(context.Background(), ";;;;;;;")
	require.ErrorIs(t, err, ErrInvalidVideoID)
}

func TestServiceCachesProbe(t *testing.T) {
	calls := 0
	svc, c := newTestService(runnerFunc(func(context.Context, string) ([]byte, error) {
		calls++
		return []byte(sampleProbe), nil
	}))

	p, cached, err := svc.Probe(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "dQw4w9WgXcQ", p.ID)
	assert.Equal(t, 1, calls)

	// Second call is served from cache.
	p2, cached2, err := svc.Probe(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.True(t, cached2)
	assert.Equal(t, p.ID, p2.ID)
	assert.Equal(t, 1, calls)

	raw, ok := c.Get(cache.ProbeKey("dQw4w9WgXcQ"))
	require.True(t, ok)
	assert.Equal(t, sampleProbe, string(raw))
}

func TestServiceProbeFreshBypassesCacheRead(t *testing.T) {
	calls := 0
	svc, c := newTestService(runnerFunc(func(context.Context, string) ([]byte, error) {
		calls++
		return []byte(sampleProbe), nil
	}))

	// Seed the cache with a stale entry.
	c.Set(cache.ProbeKey("dQw4w9WgXcQ"), []byte(`{"id":"stale","formats":[]}`), time.Hour)

	p, err := svc.ProbeFresh(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "dQw4w9WgXcQ", p.ID)
	assert.Equal(t, 1, calls)

	// The fresh probe replaced the stale cache entry.
	raw, ok := c.Get(cache.ProbeKey("dQw4w9WgXcQ"))
	require.True(t, ok)
	assert.Equal(t, sampleProbe, string(raw))
}

func TestServicePropagatesRunnerFailure(t *testing.T) {
	svc, _ := newTestService(runnerFunc(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}))

	_, _, err := svc.Probe(context.Background(), "dQw4w9WgXcQ")
	require.ErrorIs(t, err, ErrProbeFailed)
}

func TestServiceDropsUnparseableCachedEntry(t *testing.T) {
	calls := 0
	svc, c := newTestService(runnerFunc(func(context.Context, string) ([]byte, error) {
		calls++
		return []byte(sampleProbe), nil
	}))

	c.Set(cache.ProbeKey("dQw4w9WgXcQ"), []byte("corrupted{"), time.Hour)

	p, cached, err := svc.Probe(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "dQw4w9WgXcQ", p.ID)
	assert.Equal(t, 1, calls, "corrupt cache entry must trigger a fresh probe")
}

func TestServiceParseFailureDoesNotCache(t *testing.T) {
	svc, c := newTestService(runnerFunc(func(context.Context, string) ([]byte, error) {
		return []byte("null"), nil
	}))

	_, _, err := svc.Probe(context.Background(), "dQw4w9WgXcQ")
	require.ErrorIs(t, err, ErrProbeFailed)

	_, ok := c.Get(cache.ProbeKey("dQw4w9WgXcQ"))
	assert.False(t, ok)
}
