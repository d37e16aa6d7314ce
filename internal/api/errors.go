// SPDX-License-Identifier: MIT

// Package api is the HTTP surface of the bridge: playback, discovery,
// library and operational endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jellytube/ytbridge/internal/backend"
	"github.com/jellytube/ytbridge/internal/log"
	"github.com/jellytube/ytbridge/internal/remux"
	"github.com/jellytube/ytbridge/internal/ytdlp"
)

// Kind classifies an API failure for clients.
type Kind string

// Failure kinds.
const (
	KindBadRequest Kind = "bad_request"
	KindNotFound   Kind = "not_found"
	KindBadGateway Kind = "bad_gateway"
	KindInternal   Kind = "internal"
)

// Error is a failure with a client-facing kind and message.
type Error struct {
	Kind    Kind
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func badRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...), Status: http.StatusNotFound}
}

func badGateway(format string, args ...any) *Error {
	return &Error{Kind: KindBadGateway, Message: fmt.Sprintf(format, args...), Status: http.StatusBadGateway}
}

func internal(format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Status: http.StatusInternalServerError}
}

// writeJSON encodes v with the given status. Encoding failures are logged,
// not surfaced; the status line is already on the wire.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).Warn().Err(err).Msg("encode response")
	}
}

// writeError maps err onto the error envelope. Unclassified errors become
// opaque internal failures so upstream details never leak by accident.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := classify(err)

	logger := log.FromContext(r.Context())
	ev := logger.Warn()
	if apiErr.Status >= 500 && apiErr.Kind != KindBadGateway {
		ev = logger.Error()
	}
	ev.Err(err).Int(log.FieldStatus, apiErr.Status).Str(log.FieldPath, r.URL.Path).Msg("request failed")

	writeJSON(w, r, apiErr.Status, map[string]any{
		"error": map[string]any{
			"kind":    apiErr.Kind,
			"message": apiErr.Message,
		},
	})
}

// classify maps known sentinel errors from the inner packages onto API
// errors.
func classify(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var upstream *backend.UpstreamError
	switch {
	case errors.Is(err, ytdlp.ErrInvalidVideoID):
		return badRequest("%s", err.Error())
	case errors.Is(err, ytdlp.ErrProbeFailed):
		return badGateway("%s", err.Error())
	case errors.Is(err, remux.ErrBinaryMissing):
		return internal("%s", err.Error())
	case errors.Is(err, backend.ErrNotConfigured):
		return internal("no metadata backend configured (set BACKEND_PROVIDER)")
	case errors.Is(err, backend.ErrInvalidType):
		return badRequest("%s", err.Error())
	case errors.As(err, &upstream):
		return &Error{Kind: KindBadGateway, Message: upstream.Error(), Status: upstream.Status}
	}
	return internal("internal error")
}
