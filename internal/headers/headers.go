// SPDX-License-Identifier: MIT

// Package headers builds the request headers sent toward the media origin
// and mirrors a safe subset of origin response headers back to clients.
package headers

import (
	"net/http"
	"sort"
	"strings"
)

// DefaultUserAgent is presented to the media origin when the probe did not
// suggest one. Origins serve different (sometimes throttled) responses to
// non-browser agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// browser-shaped defaults applied when the probe suggests nothing.
var upstreamDefaults = map[string]string{
	"User-Agent":      DefaultUserAgent,
	"Accept":          "*/*",
	"Accept-Language": "en-US,en;q=0.9",
	"Connection":      "keep-alive",
}

// Upstream builds the header set for a media origin request: the probe's
// suggested headers overlaid on browser-shaped defaults.
func Upstream(suggested map[string]string) http.Header {
	h := make(http.Header, len(upstreamDefaults)+len(suggested))
	for k, v := range upstreamDefaults {
		h.Set(k, v)
	}
	for k, v := range suggested {
		if v == "" {
			continue
		}
		h.Set(k, v)
	}
	return h
}

// ForRange builds the upstream header set for a media fetch carrying the
// client's Range. Origins throttle un-ranged requests, so an absent client
// Range is forced to the full range.
func ForRange(suggested map[string]string, clientRange string) http.Header {
	h := Upstream(suggested)
	if clientRange == "" {
		clientRange = "bytes=0-"
	}
	h.Set("Range", clientRange)
	return h
}

// mirrored is the allow-list of origin response headers forwarded to the
// client. Everything else (cookies, alt-svc, server banners) is dropped.
var mirrored = []string{
	"Content-Type",
	"Content-Length",
	"Accept-Ranges",
	"Content-Range",
	"Last-Modified",
	"ETag",
	"Cache-Control",
}

// Mirror copies the allow-listed origin headers into dst and fills in
// playback-safe defaults for anything the origin left out.
func Mirror(dst http.Header, origin http.Header) {
	for _, k := range mirrored {
		if v := origin.Get(k); v != "" {
			dst.Set(k, v)
		}
	}
	if dst.Get("Accept-Ranges") == "" {
		dst.Set("Accept-Ranges", "bytes")
	}
	if dst.Get("Content-Type") == "" {
		dst.Set("Content-Type", "video/mp4")
	}
	if dst.Get("Cache-Control") == "" {
		dst.Set("Cache-Control", "no-store")
	}
}

// Flatten renders a header set as CRLF-joined "Key: value" lines, the shape
// ffmpeg's -headers flag expects. Keys are sorted for determinism.
func Flatten(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range h[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}
