// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	FieldRequestID = "request_id"
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldVideoID = "video_id"
	FieldItag    = "itag"
	FieldPolicy  = "policy"
	FieldKind    = "kind"
	FieldMode    = "mode"

	// Infrastructure fields
	FieldBackend  = "backend"
	FieldCacheKey = "cache_key"
	FieldURL      = "url"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldDuration = "duration_ms"
)
