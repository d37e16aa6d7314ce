// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Playback attributes
	PlaybackVideoIDKey = "playback.video_id"
	PlaybackPolicyKey  = "playback.policy"
	PlaybackItagKey    = "playback.itag"
	PlaybackKindKey    = "playback.kind"
	PlaybackModeKey    = "playback.mode"

	// Extraction attributes
	ExtractModeKey   = "extract.mode"
	ExtractCachedKey = "extract.cached"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// PlaybackAttributes creates playback-related span attributes.
func PlaybackAttributes(videoID, policy, kind string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if videoID != "" {
		attrs = append(attrs, attribute.String(PlaybackVideoIDKey, videoID))
	}
	if policy != "" {
		attrs = append(attrs, attribute.String(PlaybackPolicyKey, policy))
	}
	if kind != "" {
		attrs = append(attrs, attribute.String(PlaybackKindKey, kind))
	}
	return attrs
}

// ExtractAttributes creates extraction-related span attributes.
func ExtractAttributes(mode string, cached bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ExtractModeKey, mode),
		attribute.Bool(ExtractCachedKey, cached),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
