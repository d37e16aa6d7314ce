// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jellytube/ytbridge/internal/log"
	"github.com/jellytube/ytbridge/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestID assigns every request an ID, honouring one the client sent,
// and binds a correlated logger into the request context.
func requestID(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			logger := base.With().Str(log.FieldRequestID, id).Logger()
			ctx := log.ContextWithRequestID(r.Context(), id)
			ctx = logger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// recoverer converts panics into 500 envelopes instead of dropped
// connections, except on streaming paths where headers are already gone.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.FromContext(r.Context()).Error().
					Any("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")
				writeError(w, r, internal("internal error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and latency per chi route pattern, and
// logs one line per finished request.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		metrics.IncRequest(route, r.Method, ww.Status(), elapsed)

		log.FromContext(r.Context()).Debug().
			Str("method", r.Method).
			Str(log.FieldPath, r.URL.Path).
			Int(log.FieldStatus, ww.Status()).
			Int64("bytes", int64(ww.BytesWritten())).
			Dur(log.FieldDuration, elapsed).
			Msg("request")
	})
}

// cors allows any origin. The bridge runs on a trusted home network and
// the frontends load it cross-origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
