// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jellytube/ytbridge/internal/headers"
	"github.com/jellytube/ytbridge/internal/log"
	"github.com/jellytube/ytbridge/internal/metrics"
	"github.com/jellytube/ytbridge/internal/proxy"
	"github.com/jellytube/ytbridge/internal/remux"
	"github.com/jellytube/ytbridge/internal/selector"
	"github.com/jellytube/ytbridge/internal/ytdlp"
)

const (
	hlsContentType  = "application/vnd.apple.mpegurl"
	hlsCacheControl = "private, max-age=30"
	defaultHLSItag  = "94"
)

// errSelectionChanged aborts a refresh cycle whose re-selection no longer
// yields a direct muxed URL.
var errSelectionChanged = errors.New("selection changed kind after refresh")

// playRequest is the parsed query surface shared by the playback handlers.
type playRequest struct {
	id            string
	policy        string
	itag          string
	forceRedirect *bool
	debug         bool
}

func parsePlayRequest(r *http.Request) playRequest {
	q := r.URL.Query()
	req := playRequest{
		id:            chi.URLParam(r, "id"),
		policy:        q.Get("policy"),
		itag:          q.Get("itag"),
		forceRedirect: parseTriBool(q.Get("force_redirect")),
	}
	if v := parseTriBool(q.Get("debug")); v != nil {
		req.debug = *v
	}
	return req
}

// wantRedirect applies the per-request override, falling back to the
// configured stream mode.
func (p playRequest) wantRedirect(streamMode string) bool {
	if p.forceRedirect != nil {
		return *p.forceRedirect
	}
	return streamMode == "redirect"
}

// parseTriBool parses an optional boolean query value: nil when absent or
// unrecognised.
func parseTriBool(s string) *bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		v := true
		return &v
	case "0", "false", "no", "off":
		v := false
		return &v
	default:
		return nil
	}
}

// debugInfo feeds the advisory x-ytbridge-* headers.
type debugInfo struct {
	mode string
	want bool
	req  playRequest
	kind string
	itag string
}

func setDebugHeaders(w http.ResponseWriter, d debugInfo) {
	if !d.req.debug {
		return
	}
	h := w.Header()
	h.Set("x-ytbridge-mode", d.mode)
	h.Set("x-ytbridge-want-redirect", strconv.FormatBool(d.want))
	if d.req.policy != "" {
		h.Set("x-ytbridge-policy", d.req.policy)
	}
	itag := d.itag
	if itag == "" {
		itag = d.req.itag
	}
	if itag != "" {
		h.Set("x-ytbridge-itag", itag)
	}
	h.Set("x-ytbridge-kind", d.kind)
}

// handlePlay serves GET /play/{id}: redirect, proxied progressive stream,
// HLS manifest, or live remux, depending on selection and mode.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	req := parsePlayRequest(r)

	probe, _, err := s.probes.Probe(r.Context(), req.id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	plan := selector.Select(probe, req.policy, req.itag)
	metrics.IncPlan(string(plan.Kind), plan.Policy)
	want := req.wantRedirect(s.cfg.Stream.Mode)

	switch plan.Kind {
	case selector.KindHLS:
		s.serveManifest(w, r, req, want, plan.ManifestURL, plan.Itag)
	case selector.KindMuxed:
		if want {
			setDebugHeaders(w, debugInfo{mode: "redirect", want: want, req: req, kind: "muxed"})
			http.Redirect(w, r, plan.Video.URL, http.StatusFound)
			return
		}
		s.streamMuxed(w, r, req, probe, plan, want)
	case selector.KindSplit:
		s.streamSplit(w, r, req, probe, plan, want)
	default:
		s.hlsFallback(w, r, req, probe, want,
			badGateway("no playable stream (progressive or split) found"))
	}
}

// hlsFallback serves the probe's HLS manifest if it has one, else fails
// with fallbackErr.
func (s *Server) hlsFallback(w http.ResponseWriter, r *http.Request, req playRequest, probe *ytdlp.Probe, want bool, fallbackErr error) {
	manifestURL, itag := selector.DiscoverHLS(probe)
	if manifestURL == "" {
		writeError(w, r, fallbackErr)
		return
	}
	s.serveManifest(w, r, req, want, manifestURL, itag)
}

// serveManifest answers with a 302 to the manifest or its proxied body.
func (s *Server) serveManifest(w http.ResponseWriter, r *http.Request, req playRequest, want bool, manifestURL, itag string) {
	if want {
		setDebugHeaders(w, debugInfo{mode: "redirect", want: want, req: req, kind: "hls", itag: itag})
		http.Redirect(w, r, manifestURL, http.StatusFound)
		return
	}

	body, err := s.fetch.FetchManifest(r.Context(), manifestURL, headers.Upstream(nil))
	if err != nil {
		writeError(w, r, badGateway("fetch hls manifest: %v", err))
		return
	}

	w.Header().Set("Content-Type", hlsContentType)
	w.Header().Set("Cache-Control", hlsCacheControl)
	setDebugHeaders(w, debugInfo{mode: "proxy", want: want, req: req, kind: "hls", itag: itag})
	w.WriteHeader(http.StatusOK)
	n, _ := w.Write(body)
	metrics.AddStreamBytes("hls", int64(n))
}

// muxedTarget builds the origin fetch target for a muxed format, carrying
// the client's Range (forced to bytes=0- when absent) and If-Range.
func muxedTarget(probe *ytdlp.Probe, f *ytdlp.Format, clientRange, ifRange string) proxy.Target {
	h := headers.ForRange(probe.SuggestedHeaders(f), clientRange)
	if ifRange != "" {
		h.Set("If-Range", ifRange)
	}
	return proxy.Target{URL: f.URL, Header: h}
}

// streamMuxed proxies a progressive stream, refreshing the signed URL once
// on 403/410 and falling back to HLS when the origin will not serve it.
func (s *Server) streamMuxed(w http.ResponseWriter, r *http.Request, req playRequest, probe *ytdlp.Probe, plan selector.Plan, want bool) {
	clientRange := r.Header.Get("Range")
	ifRange := r.Header.Get("If-Range")

	refresh := func(ctx context.Context) (proxy.Target, error) {
		fresh, err := s.probes.ProbeFresh(ctx, req.id)
		if err != nil {
			return proxy.Target{}, err
		}
		again := selector.Select(fresh, req.policy, req.itag)
		if again.Kind != selector.KindMuxed || again.Video == nil || again.Video.URL == "" {
			return proxy.Target{}, errSelectionChanged
		}
		return muxedTarget(fresh, again.Video, clientRange, ifRange), nil
	}

	resp, err := s.fetch.Open(r.Context(), muxedTarget(probe, plan.Video, clientRange, ifRange), refresh)
	if err != nil {
		s.hlsFallback(w, r, req, probe, want, badGateway("origin fetch failed: %v", err))
		return
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		status := resp.StatusCode
		resp.Body.Close()
		s.hlsFallback(w, r, req, probe, want,
			&Error{Kind: KindBadGateway, Status: status, Message: fmt.Sprintf("origin responded %d", status)})
		return
	}
	defer resp.Body.Close()

	headers.Mirror(w.Header(), resp.Header)
	setDebugHeaders(w, debugInfo{mode: "proxy", want: want, req: req, kind: "muxed"})
	w.WriteHeader(resp.StatusCode)

	n, err := proxy.Copy(w, resp.Body)
	metrics.AddStreamBytes("muxed", n)

	logger := log.FromContext(r.Context())
	switch {
	case err == nil:
		logger.Debug().Str(log.FieldVideoID, req.id).Int64("bytes", n).Msg("stream complete")
	case proxy.IsClientAbort(err):
		logger.Debug().Str(log.FieldVideoID, req.id).Int64("bytes", n).Msg("client closed stream")
	default:
		logger.Warn().Err(err).Str(log.FieldVideoID, req.id).Int64("bytes", n).Msg("stream aborted")
	}
}

// streamSplit remuxes a video/audio pair into fragmented MP4. The output
// has no known length, so ranges are refused outright.
func (s *Server) streamSplit(w http.ResponseWriter, r *http.Request, req playRequest, probe *ytdlp.Probe, plan selector.Plan, want bool) {
	if !s.remuxer.Available() {
		writeError(w, r, remux.ErrBinaryMissing)
		return
	}

	h := headers.Upstream(probe.SuggestedHeaders(plan.Video))

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "none")
	w.Header().Set("Cache-Control", "no-store")
	setDebugHeaders(w, debugInfo{mode: "remux", want: want, req: req, kind: "split"})
	w.WriteHeader(http.StatusOK)

	_, err := s.remuxer.Stream(r.Context(), w,
		remux.Input{URL: plan.Video.URL, Header: h},
		remux.Input{URL: plan.Audio.URL, Header: h})
	if err != nil {
		// Status is already on the wire; all that is left is the log.
		log.FromContext(r.Context()).Warn().Err(err).Str(log.FieldVideoID, req.id).Msg("remux failed")
	}
}

// handlePlayHead serves HEAD /play/{id}. The origin is only contacted for
// muxed selections in proxy mode, via a tiny ranged GET.
func (s *Server) handlePlayHead(w http.ResponseWriter, r *http.Request) {
	req := parsePlayRequest(r)

	probe, _, err := s.probes.Probe(r.Context(), req.id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	plan := selector.Select(probe, req.policy, req.itag)
	want := req.wantRedirect(s.cfg.Stream.Mode)

	switch plan.Kind {
	case selector.KindHLS:
		w.Header().Set("Content-Type", hlsContentType)
		w.Header().Set("Accept-Ranges", "none")
		w.Header().Set("Cache-Control", "no-store")
		setDebugHeaders(w, debugInfo{mode: "head-hls", want: want, req: req, kind: "hls"})
		w.WriteHeader(http.StatusOK)
	case selector.KindMuxed:
		if want {
			http.Redirect(w, r, plan.Video.URL, http.StatusFound)
			return
		}
		s.headMuxed(w, r, req, probe, plan)
	case selector.KindSplit:
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Accept-Ranges", "none")
		w.Header().Set("Cache-Control", "no-store")
		setDebugHeaders(w, debugInfo{mode: "head-generic", want: want, req: req, kind: "split"})
		w.WriteHeader(http.StatusOK)
	default:
		// Answer optimistically; the GET path decides whether an HLS
		// fallback can actually serve.
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "no-store")
		setDebugHeaders(w, debugInfo{mode: "head-generic", want: want, req: req, kind: "other"})
		w.WriteHeader(http.StatusOK)
	}
}

// headTarget builds the origin preflight target, carrying the client's
// If-Range the same way muxedTarget does for GET.
func headTarget(probe *ytdlp.Probe, f *ytdlp.Format, ifRange string) proxy.Target {
	h := headers.Upstream(probe.SuggestedHeaders(f))
	if ifRange != "" {
		h.Set("If-Range", ifRange)
	}
	return proxy.Target{URL: f.URL, Header: h}
}

// headMuxed synthesises HEAD response headers from a bytes=0-0 GET, with
// the same single refresh allowance as the streaming path.
func (s *Server) headMuxed(w http.ResponseWriter, r *http.Request, req playRequest, probe *ytdlp.Probe, plan selector.Plan) {
	ifRange := r.Header.Get("If-Range")
	target := headTarget(probe, plan.Video, ifRange)

	resp, err := s.fetch.ProbeHead(r.Context(), target)
	if err != nil {
		writeError(w, r, badGateway("origin preflight failed: %v", err))
		return
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusGone {
		if fresh, ferr := s.probes.ProbeFresh(r.Context(), req.id); ferr == nil {
			again := selector.Select(fresh, req.policy, req.itag)
			if again.Kind == selector.KindMuxed && again.Video != nil {
				target = headTarget(fresh, again.Video, ifRange)
			}
		}
		if retry, rerr := s.fetch.ProbeHead(r.Context(), target); rerr == nil {
			resp = retry
		}
	}

	status := resp.StatusCode
	if status != http.StatusOK && status != http.StatusPartialContent {
		// Let the frontend attempt the GET; its fallback ladder is wider.
		status = http.StatusOK
	}
	headers.Mirror(w.Header(), resp.Header)
	setDebugHeaders(w, debugInfo{mode: "proxy-head", want: false, req: req, kind: "muxed"})
	w.WriteHeader(status)
}

// handleHLS serves GET /hls/{id}: the requested HLS variant (default itag
// 94), or the first discovered manifest, or 404.
func (s *Server) handleHLS(w http.ResponseWriter, r *http.Request) {
	req := parsePlayRequest(r)
	if req.itag == "" {
		req.itag = defaultHLSItag
	}

	probe, _, err := s.probes.Probe(r.Context(), req.id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	plan := selector.Select(probe, "", req.itag)
	manifestURL, itag := plan.ManifestURL, plan.Itag
	if plan.Kind != selector.KindHLS {
		manifestURL, itag = selector.DiscoverHLS(probe)
	}
	if manifestURL == "" {
		writeError(w, r, notFound("no hls manifest available for this video"))
		return
	}

	s.serveManifest(w, r, req, req.wantRedirect(s.cfg.Stream.Mode), manifestURL, itag)
}
