// SPDX-License-Identifier: MIT

package cache

import (
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/jellytube/ytbridge/internal/config"
)

const memorySweepInterval = 10 * time.Minute

// New builds the configured cache backend. Redis and Badger failures fall
// back to the in-memory cache so the daemon always comes up.
func New(cfg config.Cache, dataDir string, logger zerolog.Logger) Cache {
	switch cfg.Backend {
	case config.CacheRedis:
		c, err := NewRedisCache(cfg.RedisURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, falling back to memory cache")
			return NewMemoryCache(memorySweepInterval)
		}
		return c
	case config.CacheBadger:
		c, err := NewBadgerCache(filepath.Join(dataDir, "probecache"), logger)
		if err != nil {
			logger.Warn().Err(err).Msg("badger unavailable, falling back to memory cache")
			return NewMemoryCache(memorySweepInterval)
		}
		return c
	default:
		return NewMemoryCache(memorySweepInterval)
	}
}
