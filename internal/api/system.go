// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"os"
	"time"
)

// diagProbeVideoID is a long-lived public video used to exercise the
// extractor from /diag/yt-dlp when the caller names none.
const diagProbeVideoID = "dQw4w9WgXcQ"

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	cookies := map[string]any{"enabled": s.cfg.YTDLP.Cookies != ""}
	if s.cfg.YTDLP.Cookies != "" {
		cookies["path"] = s.cfg.YTDLP.Cookies
		if fi, err := os.Stat(s.cfg.YTDLP.Cookies); err == nil {
			cookies["size"] = fi.Size()
		} else {
			cookies["error"] = err.Error()
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"ytdlp_mode":     s.probes.Mode(),
		"stream_mode":    s.cfg.Stream.Mode,
		"backend":        s.cfg.Backend.Provider,
		"cookies":        cookies,
	})
}

// handleReadyz fails when the cache backend is unreachable; an external
// Redis outage makes every playback request slow enough to matter.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.HealthCheck(r.Context()); err != nil {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleDiag(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
		"config":         s.cfg.Redacted(),
		"cache":          s.cache.Stats(),
		"library": map[string]int{
			"subscriptions": len(s.lib.Subscriptions()),
			"favorites":     len(s.lib.Favorites()),
		},
	})
}

// handleDiagYTDLP runs one uncached probe and reports whether extraction
// works end to end. Failures still answer 200; the payload carries the
// verdict.
func (s *Server) handleDiagYTDLP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("video_id")
	if id == "" {
		id = diagProbeVideoID
	}

	probe, err := s.probes.ProbeFresh(r.Context(), id)
	if err != nil {
		writeJSON(w, r, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"ok":        true,
		"title":     probe.Title,
		"duration":  probe.Duration.Int(0),
		"extractor": probe.Extractor,
		"n_formats": len(probe.Formats),
	})
}
