// SPDX-License-Identifier: MIT

package ytdlp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jellytube/ytbridge/internal/config"
)

// RemoteRunner delegates probing to an HTTP sidecar that wraps yt-dlp.
type RemoteRunner struct {
	endpoint     string
	cookies      string
	sponsorblock bool
	client       *http.Client
	logger       zerolog.Logger
}

// NewRemoteRunner builds a runner for the sidecar at cfg.RemoteURL.
func NewRemoteRunner(cfg config.YTDLP, logger zerolog.Logger) *RemoteRunner {
	return &RemoteRunner{
		endpoint:     strings.TrimRight(cfg.RemoteURL, "/"),
		cookies:      cfg.Cookies,
		sponsorblock: cfg.SponsorBlock,
		client:       &http.Client{Timeout: probeTimeout},
		logger:       logger,
	}
}

// Probe asks the sidecar to resolve the watch URL. The sidecar answers with
// the same JSON document local yt-dlp would print.
func (r *RemoteRunner) Probe(ctx context.Context, videoID string) ([]byte, error) {
	if r.endpoint == "" {
		return nil, fmt.Errorf("remote probe: YTDLP_REMOTE_URL not configured")
	}

	q := url.Values{}
	q.Set("url", WatchURL(videoID))
	if r.cookies != "" {
		q.Set("cookies", r.cookies)
	}
	if r.sponsorblock {
		q.Set("sponsorblock", "all")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build probe request: %w", err)
	}

	r.logger.Debug().Str("video_id", videoID).Str("url", r.endpoint).Msg("remote probe")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote probe: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read probe response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote probe: status %d: %s", resp.StatusCode, tail(string(body)))
	}
	return body, nil
}
