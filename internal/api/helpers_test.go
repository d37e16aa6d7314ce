// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jellytube/ytbridge/internal/backend"
	"github.com/jellytube/ytbridge/internal/cache"
	"github.com/jellytube/ytbridge/internal/config"
	"github.com/jellytube/ytbridge/internal/library"
	"github.com/jellytube/ytbridge/internal/proxy"
	"github.com/jellytube/ytbridge/internal/remux"
	"github.com/jellytube/ytbridge/internal/ytdlp"
)

const testVideoID = "abc123xyz00"

// fakeRunner serves canned probe JSON and counts invocations.
type fakeRunner struct {
	mu    sync.Mutex
	calls int
	probe func(call int, videoID string) ([]byte, error)
}

func (f *fakeRunner) Probe(_ context.Context, videoID string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	return f.probe(n, videoID)
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// staticRunner always returns the same probe document.
func staticRunner(raw []byte) *fakeRunner {
	return &fakeRunner{probe: func(int, string) ([]byte, error) { return raw, nil }}
}

func probeJSON(t *testing.T, formats []map[string]any, extra map[string]any) []byte {
	t.Helper()
	doc := map[string]any{
		"id":          testVideoID,
		"title":       "Test Video",
		"duration":    123,
		"channel":     "Test Channel",
		"extractor":   "youtube",
		"webpage_url": "https://www.youtube.com/watch?v=" + testVideoID,
		"formats":     formats,
	}
	for k, v := range extra {
		doc[k] = v
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

func muxedFormat(url string) map[string]any {
	return map[string]any{
		"format_id": "18",
		"ext":       "mp4",
		"vcodec":    "avc1.42001E",
		"acodec":    "mp4a.40.2",
		"height":    360,
		"tbr":       700,
		"url":       url,
	}
}

func videoOnlyFormat(url string) map[string]any {
	return map[string]any{
		"format_id": "137",
		"ext":       "mp4",
		"vcodec":    "avc1.640028",
		"acodec":    "none",
		"height":    1080,
		"tbr":       4400,
		"url":       url,
	}
}

func audioOnlyFormat(url string) map[string]any {
	return map[string]any{
		"format_id": "140",
		"ext":       "m4a",
		"vcodec":    "none",
		"acodec":    "mp4a.40.2",
		"abr":       128,
		"url":       url,
	}
}

func hlsFormat(url string) map[string]any {
	return map[string]any{
		"format_id":    "95",
		"ext":          "mp4",
		"protocol":     "m3u8_native",
		"vcodec":       "avc1.4d401f",
		"acodec":       "mp4a.40.2",
		"height":       720,
		"url":          url,
		"manifest_url": url,
	}
}

// newTestServer builds a Server over in-memory collaborators and returns
// its handler. mutate adjusts the default config before wiring.
func newTestServer(t *testing.T, runner ytdlp.Runner, mutate func(*config.Config)) (*Server, http.Handler) {
	t.Helper()

	cfg := config.Config{
		Port:    8080,
		DataDir: t.TempDir(),
		Cache:   config.Cache{Backend: config.CacheMemory, TTL: time.Hour, TTLSeconds: 3600},
		YTDLP:   config.YTDLP{Mode: config.YTDLPModeLocal, Cmd: "yt-dlp", Net: config.NetAuto},
		FFmpeg:  config.FFmpeg{Cmd: "ffmpeg"},
		Stream:  config.Stream{Mode: config.StreamModeProxy},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	logger := zerolog.Nop()

	c := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })

	lib, err := library.NewStore(cfg.DataDir, logger)
	require.NoError(t, err)

	srv := New(Deps{
		Config:  cfg,
		Logger:  logger,
		Cache:   c,
		Probes:  ytdlp.NewServiceWithRunner(runner, c, cfg.Cache.TTL, cfg.YTDLP.Mode, logger),
		Fetch:   proxy.NewClient(logger),
		Remuxer: remux.New(cfg.FFmpeg, logger),
		Meta:    backend.New(cfg.Backend, logger),
		Library: lib,
		Version: "test",
	})
	return srv, srv.Routes()
}

func decodeJSON(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	return m
}

func errorKind(t *testing.T, body []byte) string {
	t.Helper()
	m := decodeJSON(t, body)
	env, ok := m["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %s", body)
	kind, _ := env["kind"].(string)
	return kind
}
