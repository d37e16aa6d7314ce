// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jellytube/ytbridge/internal/config"
)

func TestPlayMuxedProxiesStream(t *testing.T) {
	var gotRange string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", "5")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("MEDIA"))
	}))
	defer origin.Close()

	runner := staticRunner(probeJSON(t, []map[string]any{muxedFormat(origin.URL + "/v.mp4")}, nil))
	_, h := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/"+testVideoID, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MEDIA", rec.Body.String())
	// The origin always gets a Range, even when the client sent none.
	assert.Equal(t, "bytes=0-", gotRange)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestPlayMuxedForwardsClientRange(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "bytes=100-", r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 100-104/105")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("TAIL!"))
	}))
	defer origin.Close()

	runner := staticRunner(probeJSON(t, []map[string]any{muxedFormat(origin.URL + "/v.mp4")}, nil))
	_, h := newTestServer(t, runner, nil)

	req := httptest.NewRequest(http.MethodGet, "/play/"+testVideoID, nil)
	req.Header.Set("Range", "bytes=100-")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 100-104/105", rec.Header().Get("Content-Range"))
	assert.Equal(t, "TAIL!", rec.Body.String())
}

func TestPlayRedirectMode(t *testing.T) {
	streamURL := "https://media.example.test/v.mp4?sig=abc"
	runner := staticRunner(probeJSON(t, []map[string]any{muxedFormat(streamURL)}, nil))
	_, h := newTestServer(t, runner, func(cfg *config.Config) {
		cfg.Stream.Mode = config.StreamModeRedirect
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/"+testVideoID, nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, streamURL, rec.Header().Get("Location"))
}

func TestPlayForceRedirectOverridesMode(t *testing.T) {
	streamURL := "https://media.example.test/v.mp4"
	runner := staticRunner(probeJSON(t, []map[string]any{muxedFormat(streamURL)}, nil))
	_, h := newTestServer(t, runner, nil) // proxy mode

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/"+testVideoID+"?force_redirect=1", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, streamURL, rec.Header().Get("Location"))
}

func TestPlayRefreshesExpiredURLOnce(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stale" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("FRESH"))
	}))
	defer origin.Close()

	runner := &fakeRunner{probe: func(call int, _ string) ([]byte, error) {
		path := "/stale"
		if call > 1 {
			path = "/fresh"
		}
		return probeJSON(t, []map[string]any{muxedFormat(origin.URL + path)}, nil), nil
	}}
	_, h := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/"+testVideoID, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "FRESH", rec.Body.String())
	assert.Equal(t, 2, runner.count(), "expected exactly one re-probe")
}

func TestPlayFallsBackToHLSOnOriginError(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/manifest.m3u8" {
			w.Write([]byte("#EXTM3U\n#EXT-X-ENDLIST\n"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer origin.Close()

	runner := staticRunner(probeJSON(t, []map[string]any{
		muxedFormat(origin.URL + "/gone.mp4"),
		hlsFormat(origin.URL + "/manifest.m3u8"),
	}, nil))
	_, h := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/"+testVideoID, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, hlsContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, hlsCacheControl, rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "#EXTM3U")
}

func TestPlayNoStreamsIsBadGateway(t *testing.T) {
	runner := staticRunner(probeJSON(t, nil, nil))
	_, h := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/"+testVideoID, nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "bad_gateway", errorKind(t, rec.Body.Bytes()))
}

func TestPlayUnknownItagIsNotRemapped(t *testing.T) {
	// An explicit itag that matches nothing must not silently fall back to
	// the policy pick.
	runner := staticRunner(probeJSON(t, []map[string]any{muxedFormat("https://media.example.test/v.mp4")}, nil))
	_, h := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/"+testVideoID+"?itag=9999", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPlayInvalidVideoID(t *testing.T) {
	runner := staticRunner(probeJSON(t, nil, nil))
	_, h := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/ab", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", errorKind(t, rec.Body.Bytes()))
	assert.Equal(t, 0, runner.count())
}

func TestPlayDebugHeaders(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer origin.Close()

	runner := staticRunner(probeJSON(t, []map[string]any{muxedFormat(origin.URL + "/v.mp4")}, nil))
	_, h := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/play/"+testVideoID+"?debug=1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "proxy", rec.Header().Get("x-ytbridge-mode"))
	assert.Equal(t, "muxed", rec.Header().Get("x-ytbridge-kind"))
	assert.Equal(t, "false", rec.Header().Get("x-ytbridge-want-redirect"))
}

func TestPlayHeadHLS(t *testing.T) {
	runner := staticRunner(probeJSON(t, []map[string]any{hlsFormat("https://media.example.test/m.m3u8")}, nil))
	_, h := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/play/"+testVideoID, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, hlsContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "none", rec.Header().Get("Accept-Ranges"))
}

func TestPlayHeadMuxedUsesTinyRange(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "bytes=0-0", r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 0-0/12345")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("x"))
	}))
	defer origin.Close()

	runner := staticRunner(probeJSON(t, []map[string]any{muxedFormat(origin.URL + "/v.mp4")}, nil))
	_, h := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/play/"+testVideoID, nil))

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 0-0/12345", rec.Header().Get("Content-Range"))
}

func TestPlayHeadMuxedForwardsIfRange(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, `"etag-1"`, r.Header.Get("If-Range"))
		w.Header().Set("Content-Range", "bytes 0-0/12345")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("x"))
	}))
	defer origin.Close()

	runner := staticRunner(probeJSON(t, []map[string]any{muxedFormat(origin.URL + "/v.mp4")}, nil))
	_, h := newTestServer(t, runner, nil)

	req := httptest.NewRequest(http.MethodHead, "/play/"+testVideoID, nil)
	req.Header.Set("If-Range", `"etag-1"`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
}

func TestPlayHeadRedirectMode(t *testing.T) {
	streamURL := "https://media.example.test/v.mp4"
	runner := staticRunner(probeJSON(t, []map[string]any{muxedFormat(streamURL)}, nil))
	_, h := newTestServer(t, runner, func(cfg *config.Config) {
		cfg.Stream.Mode = config.StreamModeRedirect
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/play/"+testVideoID, nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, streamURL, rec.Header().Get("Location"))
}

func TestHLSEndpointServesManifest(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n"))
	}))
	defer origin.Close()

	runner := staticRunner(probeJSON(t, []map[string]any{hlsFormat(origin.URL + "/m.m3u8")}, nil))
	_, h := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hls/"+testVideoID, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, hlsContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "#EXTM3U")
}

func TestHLSEndpointWithoutManifestIs404(t *testing.T) {
	runner := staticRunner(probeJSON(t, []map[string]any{muxedFormat("https://media.example.test/v.mp4")}, nil))
	_, h := newTestServer(t, runner, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hls/"+testVideoID, nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorKind(t, rec.Body.Bytes()))
}
