// SPDX-License-Identifier: MIT

// Command daemon runs the ytbridge HTTP service: it resolves YouTube video
// IDs into playable streams and serves them to DLNA/Jellyfin-style clients
// that cannot run an extractor themselves.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jellytube/ytbridge/internal/api"
	"github.com/jellytube/ytbridge/internal/backend"
	"github.com/jellytube/ytbridge/internal/cache"
	"github.com/jellytube/ytbridge/internal/config"
	"github.com/jellytube/ytbridge/internal/library"
	"github.com/jellytube/ytbridge/internal/log"
	"github.com/jellytube/ytbridge/internal/proxy"
	"github.com/jellytube/ytbridge/internal/remux"
	"github.com/jellytube/ytbridge/internal/telemetry"
	"github.com/jellytube/ytbridge/internal/ytdlp"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const shutdownGrace = 10 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ytbridge %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ytbridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "ytbridge",
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    "ytbridge",
		ServiceVersion: version,
		ExporterType:   cfg.OTel.Exporter,
		Endpoint:       cfg.OTel.Endpoint,
		SamplingRate:   cfg.OTel.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shCtx); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	probeCache := cache.New(cfg.Cache, cfg.DataDir, log.WithComponent("cache"))
	defer func() {
		if err := probeCache.Close(); err != nil {
			logger.Warn().Err(err).Msg("cache close")
		}
	}()

	lib, err := library.NewStore(cfg.DataDir, log.WithComponent("library"))
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}

	remuxer := remux.New(cfg.FFmpeg, log.WithComponent("remux"))
	if !remuxer.Available() {
		logger.Warn().Str("cmd", cfg.FFmpeg.Cmd).Msg("ffmpeg not found, split formats will not play")
	}

	srv := api.New(api.Deps{
		Config:  cfg,
		Logger:  log.Base(),
		Cache:   probeCache,
		Probes:  ytdlp.NewService(cfg.YTDLP, probeCache, cfg.Cache.TTL, log.WithComponent("ytdlp")),
		Fetch:   proxy.NewClient(log.WithComponent("proxy")),
		Remuxer: remuxer,
		Meta:    backend.New(cfg.Backend, log.WithComponent("backend")),
		Library: lib,
		Version: version,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// No write timeout: /play streams for as long as the video runs.
	}

	logger.Info().
		Int("port", cfg.Port).
		Str("ytdlp_mode", cfg.YTDLP.Mode).
		Str("stream_mode", cfg.Stream.Mode).
		Str("cache_backend", cfg.Cache.Backend).
		Str("backend", cfg.Backend.Provider).
		Str("version", version).
		Msg("starting")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// Hot reload for subscriptions/favorites edited outside the API.
		if err := lib.Watch(gctx); err != nil {
			logger.Warn().Err(err).Msg("library watcher stopped")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(shCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("stopped")
	return nil
}
