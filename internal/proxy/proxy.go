// SPDX-License-Identifier: MIT

// Package proxy fetches media from the googlevideo origin and relays it to
// clients, refreshing expired signed URLs transparently.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jellytube/ytbridge/internal/metrics"
)

const (
	// manifestTimeout bounds an HLS manifest download.
	manifestTimeout = 15 * time.Second
	// probeTimeout bounds the tiny ranged GET behind HEAD synthesis.
	probeTimeout = 30 * time.Second
	// copyBufSize is the relay chunk size.
	copyBufSize = 64 * 1024
)

// Target is one upstream media URL with the headers to present to it.
type Target struct {
	URL    string
	Header http.Header
}

// RefreshFunc re-resolves a target after its signed URL expired. It must
// bypass any cache so the returned URL carries a fresh signature.
type RefreshFunc func(ctx context.Context) (Target, error)

// Client performs origin fetches. The streaming client carries no timeout:
// a movie-length body outlives any sane deadline, so cancellation is the
// request context's job.
type Client struct {
	stream *http.Client
	quick  *http.Client
	logger zerolog.Logger
}

// NewClient builds a Client.
func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		stream: &http.Client{},
		quick:  &http.Client{Timeout: probeTimeout},
		logger: logger,
	}
}

// expired reports whether the origin rejected a stale signed URL.
func expired(status int) bool {
	return status == http.StatusForbidden || status == http.StatusGone
}

// Open fetches the target for streaming. When the origin answers 403 or 410
// the signed URL has expired: refresh is invoked once and the fetch retried
// with the new target. Any other status is returned to the caller as-is,
// body open.
func (c *Client) Open(ctx context.Context, t Target, refresh RefreshFunc) (*http.Response, error) {
	resp, err := c.do(ctx, c.stream, t)
	if err != nil {
		return nil, err
	}
	if !expired(resp.StatusCode) || refresh == nil {
		return resp, nil
	}

	status := resp.StatusCode
	drain(resp)

	c.logger.Info().Int("status", status).Msg("signed url expired, refreshing")

	fresh, err := refresh(ctx)
	if err != nil {
		metrics.IncRefresh("failure")
		return nil, fmt.Errorf("refresh after %d: %w", status, err)
	}

	resp, err = c.do(ctx, c.stream, fresh)
	if err != nil {
		metrics.IncRefresh("failure")
		return nil, err
	}
	if expired(resp.StatusCode) {
		metrics.IncRefresh("failure")
	} else {
		metrics.IncRefresh("success")
	}
	return resp, nil
}

// ProbeHead performs a one-byte ranged GET against the target. The origin
// does not reliably answer HEAD, so HEAD responses are synthesised from the
// headers of a bytes=0-0 fetch. The returned response body is already
// closed.
func (c *Client) ProbeHead(ctx context.Context, t Target) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	probe := Target{URL: t.URL, Header: t.Header.Clone()}
	if probe.Header == nil {
		probe.Header = http.Header{}
	}
	probe.Header.Set("Range", "bytes=0-0")

	resp, err := c.do(ctx, c.quick, probe)
	if err != nil {
		return nil, err
	}
	drain(resp)
	return resp, nil
}

// FetchManifest downloads an HLS manifest.
func (c *Client) FetchManifest(ctx context.Context, url string, hdr http.Header) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, manifestTimeout)
	defer cancel()

	resp, err := c.do(ctx, c.quick, Target{URL: url, Header: hdr})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest fetch: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("manifest read: %w", err)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, client *http.Client, t Target) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build origin request: %w", err)
	}
	for k, vs := range t.Header {
		req.Header[k] = vs
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("origin fetch: %w", err)
	}
	return resp, nil
}

// drain discards and closes a response body so the connection is reusable.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

// Copy relays body to w in fixed-size chunks, flushing after every write so
// playback starts before the transfer finishes. It returns the bytes
// delivered to the client.
func Copy(w http.ResponseWriter, body io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, copyBufSize)

	var written int64
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			wn, werr := w.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return written, werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return written, nil
			}
			return written, rerr
		}
	}
}

// IsClientAbort reports whether an error is the client hanging up rather
// than a transfer failure. Players seek by dropping connections constantly,
// so these are logged at debug, not error.
func IsClientAbort(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var ne *net.OpError
	if errors.As(err, &ne) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "client disconnected")
}
