// SPDX-License-Identifier: MIT

// Package metrics exposes the Prometheus collectors for the bridge.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExtractTotal counts yt-dlp probe attempts by runner mode and outcome.
	ExtractTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbridge_extract_total",
		Help: "Total yt-dlp extractions by mode and outcome",
	}, []string{"mode", "outcome"})

	// ExtractDuration tracks how long a probe takes end to end.
	ExtractDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ytbridge_extract_duration_seconds",
		Help:    "yt-dlp extraction latency",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30, 60},
	}, []string{"mode"})

	// CacheOps counts probe cache operations by backend, op and outcome.
	CacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbridge_cache_ops_total",
		Help: "Probe cache operations by backend, op and outcome",
	}, []string{"backend", "op", "outcome"})

	// PlansTotal counts selected playback plans by kind and policy.
	PlansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbridge_plans_total",
		Help: "Selected playback plans by kind and policy",
	}, []string{"kind", "policy"})

	// StreamBytes counts bytes sent to clients by plan kind.
	StreamBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbridge_stream_bytes_total",
		Help: "Bytes streamed to clients by plan kind",
	}, []string{"kind"})

	// RefreshTotal counts expired-URL refresh attempts by outcome.
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbridge_refresh_total",
		Help: "Signed URL refresh attempts after upstream 403/410",
	}, []string{"outcome"})

	// RemuxActive tracks concurrently running ffmpeg remux processes.
	RemuxActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ytbridge_remux_active",
		Help: "Currently running ffmpeg remux processes",
	})

	// RequestsTotal counts HTTP requests by route, method and status class.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ytbridge_http_requests_total",
		Help: "HTTP requests by route, method and status",
	}, []string{"route", "method", "status"})

	// RequestDuration tracks HTTP request latency by route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ytbridge_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"route"})
)

// IncExtract records one extraction attempt.
func IncExtract(mode, outcome string) {
	ExtractTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveExtractDuration records the extraction latency.
func ObserveExtractDuration(mode string, d time.Duration) {
	ExtractDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// IncCacheOp records a cache operation outcome.
func IncCacheOp(backend, op, outcome string) {
	CacheOps.WithLabelValues(backend, op, outcome).Inc()
}

// IncPlan records a selected plan.
func IncPlan(kind, policy string) {
	PlansTotal.WithLabelValues(kind, policy).Inc()
}

// AddStreamBytes records bytes delivered to a client.
func AddStreamBytes(kind string, n int64) {
	if n > 0 {
		StreamBytes.WithLabelValues(kind).Add(float64(n))
	}
}

// IncRefresh records one refresh attempt outcome ("success" or "failure").
func IncRefresh(outcome string) {
	RefreshTotal.WithLabelValues(outcome).Inc()
}

// IncRequest records a finished HTTP request.
func IncRequest(route, method string, status int, d time.Duration) {
	RequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
