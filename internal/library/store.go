// SPDX-License-Identifier: MIT

// Package library persists the user's subscriptions and favorites as JSON
// files in the data directory, with import/export in the common exchange
// formats (OPML, FreeTube, NewPipe).
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
)

// File names inside the data directory.
const (
	subsFile = "subscriptions.json"
	favsFile = "favorites.json"
)

// Subscription is one followed channel.
type Subscription struct {
	ChannelID string `json:"channelId"`
	Title     string `json:"title,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Favorite is one bookmarked video.
type Favorite struct {
	VideoID string `json:"videoId"`
	Title   string `json:"title,omitempty"`
}

// Store holds both lists in memory and mirrors them to disk atomically.
// External edits to the files are picked up by Watch.
type Store struct {
	dir    string
	logger zerolog.Logger

	mu   sync.RWMutex
	subs []Subscription
	favs []Favorite
}

// NewStore opens (or creates) the library under dataDir.
func NewStore(dataDir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{dir: dataDir, logger: logger}
	s.reload()
	return s, nil
}

func (s *Store) subsPath() string { return filepath.Join(s.dir, subsFile) }
func (s *Store) favsPath() string { return filepath.Join(s.dir, favsFile) }

// reload replaces the in-memory lists with whatever is on disk. Unreadable
// or malformed files read as empty lists.
func (s *Store) reload() {
	subs := loadList[Subscription](s.subsPath(), s.logger)
	favs := loadList[Favorite](s.favsPath(), s.logger)

	s.mu.Lock()
	s.subs = subs
	s.favs = favs
	s.mu.Unlock()
}

func loadList[T any](path string, logger zerolog.Logger) []T {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", path).Msg("library file unreadable, treating as empty")
		}
		return nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("library file malformed, treating as empty")
		return nil
	}
	return items
}

// saveList writes the list atomically so a crash never leaves a torn file.
func saveList[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode library file: %w", err)
	}
	if err := renameio.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write library file: %w", err)
	}
	return nil
}

// Subscriptions returns a copy of the current subscription list.
func (s *Store) Subscriptions() []Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Subscription, len(s.subs))
	copy(out, s.subs)
	return out
}

// Favorites returns a copy of the current favorites list.
func (s *Store) Favorites() []Favorite {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Favorite, len(s.favs))
	copy(out, s.favs)
	return out
}

// AddSubscriptions merges items into the list. Duplicated channel IDs keep
// their first occurrence, so existing entries win over imports. Returns the
// list size after the merge.
func (s *Store) AddSubscriptions(items []Subscription) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := dedupeSubs(append(append([]Subscription{}, s.subs...), items...))
	if err := saveList(s.subsPath(), merged); err != nil {
		return len(s.subs), err
	}
	s.subs = merged
	return len(merged), nil
}

// AddFavorites merges items into the favorites list, first occurrence wins.
// Returns the list size after the merge.
func (s *Store) AddFavorites(items []Favorite) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := dedupeFavs(append(append([]Favorite{}, s.favs...), items...))
	if err := saveList(s.favsPath(), merged); err != nil {
		return len(s.favs), err
	}
	s.favs = merged
	return len(merged), nil
}

func dedupeSubs(items []Subscription) []Subscription {
	seen := make(map[string]struct{}, len(items))
	out := make([]Subscription, 0, len(items))
	for _, it := range items {
		if it.ChannelID == "" {
			continue
		}
		if _, dup := seen[it.ChannelID]; dup {
			continue
		}
		seen[it.ChannelID] = struct{}{}
		it.Title = norm.NFC.String(it.Title)
		out = append(out, it)
	}
	return out
}

func dedupeFavs(items []Favorite) []Favorite {
	seen := make(map[string]struct{}, len(items))
	out := make([]Favorite, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		if _, dup := seen[it.VideoID]; dup {
			continue
		}
		seen[it.VideoID] = struct{}{}
		it.Title = norm.NFC.String(it.Title)
		out = append(out, it)
	}
	return out
}

// Watch reloads the store when the library files change on disk, so manual
// edits and external sync tools take effect without a restart. Blocks until
// ctx is cancelled.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if name != subsFile && name != favsFile {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Debug().Str("file", name).Msg("library file changed, reloading")
			s.reload()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("library watcher error")
		}
	}
}
