// SPDX-License-Identifier: MIT

package library

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestStoreStartsEmpty(t *testing.T) {
	s := newStore(t)
	assert.Empty(t, s.Subscriptions())
	assert.Empty(t, s.Favorites())
}

func TestAddSubscriptionsDedupesKeepingFirst(t *testing.T) {
	s := newStore(t)

	total, err := s.AddSubscriptions([]Subscription{
		{ChannelID: "UCaaaaaaaaaaaaaaaaaaaaaa", Title: "First"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	total, err = s.AddSubscriptions([]Subscription{
		{ChannelID: "UCaaaaaaaaaaaaaaaaaaaaaa", Title: "Renamed"},
		{ChannelID: "UCbbbbbbbbbbbbbbbbbbbbbb", Title: "Second"},
		{ChannelID: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	subs := s.Subscriptions()
	require.Len(t, subs, 2)
	assert.Equal(t, "First", subs[0].Title, "existing entry wins over import")
	assert.Equal(t, "UCbbbbbbbbbbbbbbbbbbbbbb", subs[1].ChannelID)
}

func TestAddFavoritesDedupes(t *testing.T) {
	s := newStore(t)

	total, err := s.AddFavorites([]Favorite{
		{VideoID: "dQw4w9WgXcQ", Title: "a"},
		{VideoID: "dQw4w9WgXcQ", Title: "b"},
		{VideoID: "9bZkp7q19f0"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)

	_, err = s.AddSubscriptions([]Subscription{{ChannelID: "UCaaaaaaaaaaaaaaaaaaaaaa", Title: "Chan"}})
	require.NoError(t, err)
	_, err = s.AddFavorites([]Favorite{{VideoID: "dQw4w9WgXcQ"}})
	require.NoError(t, err)

	reopened, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, reopened.Subscriptions(), 1)
	assert.Len(t, reopened.Favorites(), 1)
}

func TestStoreFileFormat(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)

	_, err = s.AddSubscriptions([]Subscription{{ChannelID: "UCaaaaaaaaaaaaaaaaaaaaaa", Title: "Chan", URL: "https://example.test"}})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "subscriptions.json"))
	require.NoError(t, err)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(raw, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "UCaaaaaaaaaaaaaaaaaaaaaa", items[0]["channelId"])
	assert.Equal(t, "Chan", items[0]["title"])
}

func TestStoreMalformedFileReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "favorites.json"), []byte("{not json"), 0o644))

	s, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, s.Favorites())
}

func TestWatchPicksUpExternalEdits(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Watch(ctx)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	raw := []byte(`[{"videoId":"dQw4w9WgXcQ","title":"external"}]`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "favorites.json"), raw, 0o644))

	require.Eventually(t, func() bool {
		return len(s.Favorites()) == 1
	}, 3*time.Second, 25*time.Millisecond)

	cancel()
	<-done
}
