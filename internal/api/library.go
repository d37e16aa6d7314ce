// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/jellytube/ytbridge/internal/library"
)

const maxImportSize = 8 << 20

// readUpload returns the uploaded document: the "file" part of a multipart
// form, or the raw request body.
func readUpload(r *http.Request) ([]byte, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "multipart/") {
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, badRequest("multipart upload without a file part")
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, maxImportSize))
	}
	return io.ReadAll(io.LimitReader(r.Body, maxImportSize))
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs := s.lib.Subscriptions()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"subscriptions": subs,
		"total":         len(subs),
	})
}

// handleSubscriptionsImport accepts OPML or the JSON shapes of FreeTube,
// NewPipe and Invidious exports. format=auto sniffs, format=opml|json
// forces.
func (s *Server) handleSubscriptionsImport(w http.ResponseWriter, r *http.Request) {
	raw, err := readUpload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var subs []library.Subscription
	format := r.URL.Query().Get("format")
	switch {
	case format == "opml", format == "" && library.LooksLikeOPML(raw), format == "auto" && library.LooksLikeOPML(raw):
		subs = library.ParseOPML(string(raw))
	default:
		subs = library.ParseSubscriptionsJSON(raw)
	}
	if len(subs) == 0 {
		writeError(w, r, badRequest("no subscriptions found in upload"))
		return
	}

	total, err := s.lib.AddSubscriptions(subs)
	if err != nil {
		writeError(w, r, internal("save subscriptions: %v", err))
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"imported": len(subs),
		"total":    total,
	})
}

func (s *Server) handleSubscriptionsExport(w http.ResponseWriter, r *http.Request) {
	subs := s.lib.Subscriptions()

	switch format := r.URL.Query().Get("format"); format {
	case "", "opml":
		w.Header().Set("Content-Type", "text/x-opml; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="jellytube_subscriptions.opml"`)
		w.WriteHeader(http.StatusOK)
		w.Write(library.ExportOPML(subs, time.Now().UTC()))
	case "freetube", "json":
		body, err := library.ExportFreeTube(subs)
		if err != nil {
			writeError(w, r, internal("encode subscriptions: %v", err))
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="jellytube_subscriptions.json"`)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	default:
		writeError(w, r, badRequest("unknown export format %q (want opml or freetube)", format))
	}
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	favs := s.lib.Favorites()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"favorites": favs,
		"total":     len(favs),
	})
}

func (s *Server) handleFavoritesImport(w http.ResponseWriter, r *http.Request) {
	raw, err := readUpload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	favs := library.ParseFavoritesJSON(raw)
	if len(favs) == 0 {
		writeError(w, r, badRequest("no favorites found in upload"))
		return
	}

	total, err := s.lib.AddFavorites(favs)
	if err != nil {
		writeError(w, r, internal("save favorites: %v", err))
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"imported": len(favs),
		"total":    total,
	})
}

func (s *Server) handleFavoritesExport(w http.ResponseWriter, r *http.Request) {
	body, err := library.ExportFavorites(s.lib.Favorites())
	if err != nil {
		writeError(w, r, internal("encode favorites: %v", err))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="jellytube_favorites.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// handleFavoriteAdd adds one favorite from a JSON body or query params.
func (s *Server) handleFavoriteAdd(w http.ResponseWriter, r *http.Request) {
	var fav struct {
		VideoID string `json:"videoId"`
		Title   string `json:"title"`
	}
	if body, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize)); err == nil && len(body) > 0 {
		_ = json.Unmarshal(body, &fav)
	}
	if fav.VideoID == "" {
		fav.VideoID = r.URL.Query().Get("video_id")
		fav.Title = r.URL.Query().Get("title")
	}
	if fav.VideoID == "" {
		writeError(w, r, badRequest("missing videoId"))
		return
	}

	total, err := s.lib.AddFavorites([]library.Favorite{{VideoID: fav.VideoID, Title: fav.Title}})
	if err != nil {
		writeError(w, r, internal("save favorites: %v", err))
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"ok": true, "total": total})
}
