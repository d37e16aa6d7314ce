// SPDX-License-Identifier: MIT

package ytdlp

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/jellytube/ytbridge/internal/cache"
	"github.com/jellytube/ytbridge/internal/config"
	"github.com/jellytube/ytbridge/internal/metrics"
	"github.com/jellytube/ytbridge/internal/telemetry"
)

// Service resolves video IDs to probes, caching raw probe JSON. One probe
// attempt per request; concurrent probes of the same ID are not coalesced.
type Service struct {
	runner Runner
	cache  cache.Cache
	ttl    time.Duration
	mode   string
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewService wires the configured runner with the probe cache.
func NewService(cfg config.YTDLP, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *Service {
	var runner Runner
	if cfg.Mode == config.YTDLPModeRemote {
		runner = NewRemoteRunner(cfg, logger)
	} else {
		runner = NewLocalRunner(cfg, logger)
	}
	return NewServiceWithRunner(runner, c, ttl, cfg.Mode, logger)
}

// NewServiceWithRunner wires an explicit runner. Used by tests and
// specialised deployments.
func NewServiceWithRunner(r Runner, c cache.Cache, ttl time.Duration, mode string, logger zerolog.Logger) *Service {
	return &Service{
		runner: r,
		cache:  c,
		ttl:    ttl,
		mode:   mode,
		logger: logger,
		tracer: telemetry.Tracer("ytbridge/ytdlp"),
	}
}

// Mode returns the configured runner mode ("local" or "remote").
func (s *Service) Mode() string { return s.mode }

// Probe resolves a video ID, serving from cache when possible. The second
// return reports whether the probe came from cache.
func (s *Service) Probe(ctx context.Context, videoID string) (*Probe, bool, error) {
	if !ValidVideoID(videoID) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidVideoID, videoID)
	}

	if raw, ok := s.cache.Get(cache.ProbeKey(videoID)); ok {
		p, _, err := ParseProbeOutput(raw)
		if err == nil && (p.ID != "" || len(p.Formats) > 0) {
			return p, true, nil
		}
		// A cached entry that no longer parses, or parsed empty, is
		// dropped rather than served.
		s.logger.Warn().Err(err).Str("video_id", videoID).Msg("discarding unusable cached probe")
		s.cache.Delete(cache.ProbeKey(videoID))
	}

	p, err := s.probeFresh(ctx, videoID)
	return p, false, err
}

// ProbeFresh bypasses the cache read, probing upstream directly. The result
// still replaces the cached entry, so later requests see the fresh URLs.
func (s *Service) ProbeFresh(ctx context.Context, videoID string) (*Probe, error) {
	if !ValidVideoID(videoID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVideoID, videoID)
	}
	return s.probeFresh(ctx, videoID)
}

func (s *Service) probeFresh(ctx context.Context, videoID string) (*Probe, error) {
	ctx, span := s.tracer.Start(ctx, "ytdlp.probe")
	span.SetAttributes(telemetry.ExtractAttributes(s.mode, false)...)
	defer span.End()

	start := time.Now()
	out, err := s.runner.Probe(ctx, videoID)
	metrics.ObserveExtractDuration(s.mode, time.Since(start))
	if err != nil {
		metrics.IncExtract(s.mode, "failure")
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}

	p, raw, err := ParseProbeOutput(out)
	if err != nil {
		metrics.IncExtract(s.mode, "parse_failure")
		span.RecordError(err)
		return nil, err
	}

	metrics.IncExtract(s.mode, "success")
	s.cache.Set(cache.ProbeKey(videoID), raw, s.ttl)

	s.logger.Debug().
		Str("video_id", videoID).
		Int("formats", len(p.Formats)).
		Dur("took", time.Since(start)).
		Msg("probe complete")

	return p, nil
}
