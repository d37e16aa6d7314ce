// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/jellytube/ytbridge/internal/metrics"
)

// BadgerCache is an embedded on-disk implementation of Cache for
// single-node installs that want persistence without running Redis.
type BadgerCache struct {
	db     *badger.DB
	logger zerolog.Logger
	stats  struct {
		hits   atomic.Int64
		misses atomic.Int64
		sets   atomic.Int64
	}
}

// NewBadgerCache opens (or creates) a Badger store at dir.
func NewBadgerCache(dir string, logger zerolog.Logger) (Cache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}

	logger.Info().Str("dir", dir).Msg("opened badger cache")

	return &BadgerCache{db: db, logger: logger}, nil
}

// Get retrieves a value from the store. Badger enforces the entry TTL.
func (c *BadgerCache) Get(key string) ([]byte, bool) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		c.stats.misses.Add(1)
		metrics.IncCacheOp("badger", "get", "miss")
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger get failed")
		c.stats.misses.Add(1)
		metrics.IncCacheOp("badger", "get", "error")
		return nil, false
	}

	c.stats.hits.Add(1)
	metrics.IncCacheOp("badger", "get", "hit")
	return out, true
}

// Set stores a value with the given TTL.
func (c *BadgerCache) Set(key string, value []byte, ttl time.Duration) {
	err := c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger set failed")
		metrics.IncCacheOp("badger", "set", "error")
		return
	}

	c.stats.sets.Add(1)
	metrics.IncCacheOp("badger", "set", "ok")
}

// Delete removes a value from the store.
func (c *BadgerCache) Delete(key string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("badger delete failed")
	}
}

// Clear removes all values from the store.
func (c *BadgerCache) Clear() {
	if err := c.db.DropAll(); err != nil {
		c.logger.Warn().Err(err).Msg("badger drop failed")
	}
}

// Stats returns cache statistics. CurrentSize walks the key space, which is
// acceptable for a diagnostics endpoint.
func (c *BadgerCache) Stats() CacheStats {
	size := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			size++
		}
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("badger stats scan failed")
	}

	return CacheStats{
		Backend:     "badger",
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Sets:        c.stats.sets.Load(),
		CurrentSize: size,
	}
}

// HealthCheck reports whether the store is open.
func (c *BadgerCache) HealthCheck(context.Context) error {
	if c.db.IsClosed() {
		return errors.New("badger store is closed")
	}
	return nil
}

// Close closes the store.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}
