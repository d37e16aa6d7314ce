// SPDX-License-Identifier: MIT

// Package backend is a thin client for an Invidious- or Piped-compatible
// metadata API. It powers the discovery endpoints; playback never depends
// on it.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jellytube/ytbridge/internal/config"
)

const requestTimeout = 30 * time.Second

// ErrNotConfigured is returned when no metadata provider is set up.
var ErrNotConfigured = errors.New("no metadata backend configured")

// ErrInvalidType is returned for unknown search result types.
var ErrInvalidType = errors.New("invalid search type")

// UpstreamError carries the provider's failure status and a bounded body
// snippet for diagnostics.
type UpstreamError struct {
	Status  int
	Snippet string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.Status, e.Snippet)
}

// Client talks to one configured provider.
type Client struct {
	provider string
	base     string
	http     *http.Client
	logger   zerolog.Logger
}

// New builds a Client from configuration. A "none" provider yields a
// disabled client whose calls all return ErrNotConfigured.
func New(cfg config.Backend, logger zerolog.Logger) *Client {
	return &Client{
		provider: cfg.Provider,
		base:     strings.TrimRight(cfg.Base, "/"),
		http:     &http.Client{Timeout: requestTimeout},
		logger:   logger,
	}
}

// Enabled reports whether a provider is configured.
func (c *Client) Enabled() bool {
	return c.provider == "invidious" || c.provider == "piped"
}

// Provider returns the configured provider name.
func (c *Client) Provider() string { return c.provider }

// Search proxies a search query. Invidious honours paging and type
// filters; Piped only takes the query. List results are truncated to
// limit entries.
func (c *Client) Search(ctx context.Context, q, typ string, page, limit int) (json.RawMessage, error) {
	switch typ {
	case "video", "channel", "playlist":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}

	params := url.Values{"q": []string{q}}
	switch c.provider {
	case "invidious":
		params.Set("page", strconv.Itoa(page))
		params.Set("type", typ)
	case "piped":
	default:
		return nil, ErrNotConfigured
	}

	body, err := c.get(ctx, "/api/v1/search", params)
	if err != nil {
		return nil, err
	}
	return truncateList(body, limit), nil
}

// ChannelVideos returns a channel's recent uploads as a JSON array,
// regardless of the provider's envelope shape.
func (c *Client) ChannelVideos(ctx context.Context, channelID string, page int) (json.RawMessage, error) {
	switch c.provider {
	case "invidious":
		body, err := c.get(ctx, "/api/v1/channels/"+url.PathEscape(channelID)+"/videos",
			url.Values{"page": []string{strconv.Itoa(page)}})
		if err != nil {
			return nil, err
		}
		return ensureArray(body), nil
	case "piped":
		body, err := c.get(ctx, "/api/v1/channel/"+url.PathEscape(channelID), nil)
		if err != nil {
			return nil, err
		}
		return pipedItems(body), nil
	default:
		return nil, ErrNotConfigured
	}
}

// Video fetches one video's metadata document.
func (c *Client) Video(ctx context.Context, videoID string) (map[string]any, error) {
	var path string
	switch c.provider {
	case "invidious":
		path = "/api/v1/videos/" + url.PathEscape(videoID)
	case "piped":
		path = "/api/v1/video/" + url.PathEscape(videoID)
	default:
		return nil, ErrNotConfigured
	}

	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var meta map[string]any
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("decode video metadata: %w", err)
	}
	return meta, nil
}

// Playlist fetches a playlist document.
func (c *Client) Playlist(ctx context.Context, playlistID string) (json.RawMessage, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	return c.get(ctx, "/api/v1/playlists/"+url.PathEscape(playlistID), nil)
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	u := c.base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}

	c.logger.Debug().Str("provider", c.provider).Str("path", path).Msg("backend request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("backend read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Status: resp.StatusCode, Snippet: snippet(body)}
	}
	return body, nil
}

// snippet bounds an upstream error body for logs and error payloads.
func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// truncateList caps a JSON array at limit entries; non-arrays pass through.
func truncateList(body json.RawMessage, limit int) json.RawMessage {
	if limit <= 0 {
		return body
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return body
	}
	if len(items) <= limit {
		return body
	}
	out, err := json.Marshal(items[:limit])
	if err != nil {
		return body
	}
	return out
}

// ensureArray coerces non-array payloads to an empty array.
func ensureArray(body json.RawMessage) json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return json.RawMessage("[]")
	}
	return body
}

// pipedItems digs the video list out of a Piped channel document. Piped
// has renamed this field across versions.
func pipedItems(body json.RawMessage) json.RawMessage {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return json.RawMessage("[]")
	}
	for _, key := range []string{"relatedStreams", "videos", "content"} {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) == nil {
			return raw
		}
	}
	return json.RawMessage("[]")
}
