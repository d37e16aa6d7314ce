// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jellytube/ytbridge/internal/cache"
	"github.com/jellytube/ytbridge/internal/log"
	"github.com/jellytube/ytbridge/internal/selector"
	"github.com/jellytube/ytbridge/internal/ytdlp"
)

// writeRaw passes an upstream JSON document through untouched.
func writeRaw(w http.ResponseWriter, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 1 {
		return def
	}
	return v
}

// handleSearch proxies GET /search to the metadata backend.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, r, badRequest("missing required query parameter q"))
		return
	}
	typ := r.URL.Query().Get("type")
	if typ == "" {
		typ = "video"
	}

	raw, err := s.meta.Search(r.Context(), q, typ, queryInt(r, "page", 1), queryInt(r, "limit", 30))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

// handleChannel lists a channel's uploads via the metadata backend.
func (s *Server) handleChannel(w http.ResponseWriter, r *http.Request) {
	raw, err := s.meta.ChannelVideos(r.Context(), chi.URLParam(r, "id"), queryInt(r, "page", 1))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

// handlePlaylist fetches a playlist via the metadata backend.
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	raw, err := s.meta.Playlist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

// handleItem returns a single video's metadata from the backend, enriched
// with chapters, subtitles and duration from the probe. Enrichment failures
// are advisory; backend metadata alone is still a useful answer.
func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if cached, ok := s.cache.Get(cache.MetaKey(id)); ok {
		writeRaw(w, cached)
		return
	}

	item, err := s.meta.Video(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	probe, _, perr := s.probes.Probe(r.Context(), id)
	if perr != nil {
		log.FromContext(r.Context()).Warn().Err(perr).Str(log.FieldVideoID, id).Msg("item enrichment probe failed")
		item["_ytdlp_error"] = perr.Error()
	} else {
		if len(probe.Chapters) > 0 {
			item["chapters"] = probe.Chapters
		}
		if len(probe.Subtitles) > 0 {
			item["subtitles"] = probe.Subtitles
		}
		if _, ok := item["lengthSeconds"]; !ok && probe.Duration != nil {
			item["lengthSeconds"] = probe.Duration.Int(0)
		}
		if thumb := probe.BestThumbnail(); thumb != "" {
			if _, ok := item["videoThumbnails"]; !ok {
				item["videoThumbnails"] = []map[string]string{{"url": thumb}}
			}
		}
	}

	body, err := json.Marshal(item)
	if err != nil {
		writeError(w, r, internal("encode item: %v", err))
		return
	}
	if perr == nil {
		s.cache.Set(cache.MetaKey(id), body, s.cfg.Cache.TTL)
	}
	writeRaw(w, body)
}

// formatEntry is one row of the /formats listing.
type formatEntry struct {
	Itag         string  `json:"itag"`
	Ext          string  `json:"ext"`
	HasVideo     bool    `json:"has_video"`
	HasAudio     bool    `json:"has_audio"`
	VCodec       string  `json:"vcodec"`
	ACodec       string  `json:"acodec"`
	Height       *int    `json:"height"`
	TBR          float64 `json:"tbr"`
	QualityLabel string  `json:"quality_label"`
	URL          string  `json:"url"`
}

// handleFormats lists a video's playable formats, progressive first.
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	req := parsePlayRequest(r)

	probe, _, err := s.probes.Probe(r.Context(), req.id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	formats := probe.PlayableFormats()
	selector.SortForListing(formats)

	entries := make([]formatEntry, 0, len(formats))
	for i := range formats {
		f := &formats[i]
		if f.ID() == "" {
			continue
		}
		e := formatEntry{
			Itag:         f.ID(),
			Ext:          f.Ext,
			HasVideo:     f.HasVideo(),
			HasAudio:     f.HasAudio(),
			VCodec:       f.VCodec,
			ACodec:       f.ACodec,
			TBR:          f.TBR.Or(0),
			QualityLabel: qualityLabel(f),
			URL:          f.URL,
		}
		if f.Height != nil {
			h := f.Height.Int(0)
			e.Height = &h
		}
		entries = append(entries, e)
	}

	payload := map[string]any{
		"id":      probe.ID,
		"title":   probe.Title,
		"formats": entries,
	}
	if req.debug {
		payload["_raw_extractors"] = map[string]string{
			"extractor":   probe.Extractor,
			"webpage_url": probe.WebpageURL,
		}
	}
	writeJSON(w, r, http.StatusOK, payload)
}

func hasCodec(c string) bool { return c != "" && c != "none" }

func qualityLabel(f *ytdlp.Format) string {
	if f.FormatNote != "" {
		return f.FormatNote
	}
	if f.Height != nil {
		return strconv.Itoa(f.Height.Int(0)) + "p"
	}
	return ""
}

// handleResolve returns metadata plus the selected stream reference as
// JSON, for clients that do their own fetching instead of going through
// /play.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("video_id")
	if id == "" {
		id = q.Get("id")
	}
	if id == "" {
		writeError(w, r, badRequest("missing required query parameter video_id"))
		return
	}

	probe, _, err := s.probes.Probe(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	plan := selector.Select(probe, q.Get("policy"), q.Get("itag"))

	payload := map[string]any{
		"id":         probe.ID,
		"title":      probe.Title,
		"duration":   probe.Duration.Int(0),
		"author":     probe.Author(),
		"thumbnails": probe.Thumbnails,
		"chapters":   probe.Chapters,
		"subtitles":  probe.Subtitles,
	}

	switch plan.Kind {
	case selector.KindMuxed:
		payload["kind"] = "muxed"
		payload["url"] = plan.Video.URL
		payload["itag"] = plan.Video.ID()
		payload["container"] = containerOf(plan.Video)
		payload["codecs"] = codecsOf(plan.Video)
	case selector.KindSplit:
		payload["kind"] = "split"
		payload["video_url"] = plan.Video.URL
		payload["audio_url"] = plan.Audio.URL
		payload["container"] = "mp4"
	case selector.KindHLS:
		payload["kind"] = "hls"
		payload["url"] = plan.ManifestURL
		payload["itag"] = plan.Itag
	default:
		if manifestURL, itag := selector.DiscoverHLS(probe); manifestURL != "" {
			payload["kind"] = "hls"
			payload["url"] = manifestURL
			payload["itag"] = itag
		} else {
			writeError(w, r, badGateway("no playable stream (progressive or split) found"))
			return
		}
	}

	writeJSON(w, r, http.StatusOK, payload)
}

func containerOf(f *ytdlp.Format) string {
	if f.Container != "" {
		return f.Container
	}
	if f.Ext != "" {
		return f.Ext
	}
	return "mp4"
}

// codecsOf joins the present codec names, "avc1+mp4a" style.
func codecsOf(f *ytdlp.Format) string {
	parts := make([]string, 0, 2)
	if hasCodec(f.VCodec) {
		parts = append(parts, f.VCodec)
	}
	if hasCodec(f.ACodec) {
		parts = append(parts, f.ACodec)
	}
	return strings.Join(parts, "+")
}
