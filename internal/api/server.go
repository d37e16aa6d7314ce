// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jellytube/ytbridge/internal/backend"
	"github.com/jellytube/ytbridge/internal/cache"
	"github.com/jellytube/ytbridge/internal/config"
	"github.com/jellytube/ytbridge/internal/library"
	"github.com/jellytube/ytbridge/internal/proxy"
	"github.com/jellytube/ytbridge/internal/remux"
	"github.com/jellytube/ytbridge/internal/ytdlp"
)

// Server wires the HTTP handlers with their collaborators.
type Server struct {
	cfg     config.Config
	logger  zerolog.Logger
	cache   cache.Cache
	probes  *ytdlp.Service
	fetch   *proxy.Client
	remuxer *remux.Remuxer
	meta    *backend.Client
	lib     *library.Store

	version   string
	startedAt time.Time
}

// Deps carries the Server's collaborators.
type Deps struct {
	Config  config.Config
	Logger  zerolog.Logger
	Cache   cache.Cache
	Probes  *ytdlp.Service
	Fetch   *proxy.Client
	Remuxer *remux.Remuxer
	Meta    *backend.Client
	Library *library.Store
	Version string
}

// New builds a Server.
func New(d Deps) *Server {
	return &Server{
		cfg:       d.Config,
		logger:    d.Logger,
		cache:     d.Cache,
		probes:    d.Probes,
		fetch:     d.Fetch,
		remuxer:   d.Remuxer,
		meta:      d.Meta,
		lib:       d.Library,
		version:   d.Version,
		startedAt: time.Now(),
	}
}

// Routes assembles the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID(s.logger))
	r.Use(recoverer)
	r.Use(instrument)
	r.Use(cors)

	// Playback.
	r.Get("/play/{id}", s.handlePlay)
	r.Head("/play/{id}", s.handlePlayHead)
	r.Get("/hls/{id}", s.handleHLS)
	r.Get("/resolve", s.handleResolve)
	r.Get("/formats/{id}", s.handleFormats)

	// Discovery through the metadata backend.
	r.Get("/search", s.handleSearch)
	r.Get("/channel/{id}", s.handleChannel)
	r.Get("/playlist/{id}", s.handlePlaylist)
	r.Get("/item/{id}", s.handleItem)

	// Library.
	r.Get("/subscriptions", s.handleSubscriptions)
	r.Post("/subscriptions/import", s.handleSubscriptionsImport)
	r.Get("/subscriptions/export", s.handleSubscriptionsExport)
	r.Get("/favorites", s.handleFavorites)
	r.Post("/favorites/import", s.handleFavoritesImport)
	r.Get("/favorites/export", s.handleFavoritesExport)
	r.Post("/favorites/add", s.handleFavoriteAdd)

	// Operational.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/diag", s.handleDiag)
	r.Get("/diag/yt-dlp", s.handleDiagYTDLP)
	r.Handle("/metrics", promhttp.Handler())

	if s.cfg.OTel.Enabled {
		return otelhttp.NewHandler(r, "ytbridge.http")
	}
	return r
}
