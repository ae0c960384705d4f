// Copyright 2025 CoReason, Inc.
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"net/http"

	"github.com/google/uuid"

	"coreason/conductor/shared/logger"
)

// TraceHeader carries the per-request correlation identifier.
const TraceHeader = "X-Trace-ID"

// traceMiddleware assigns a trace identifier to every request. The
// inbound header value is reused verbatim when present; otherwise a
// fresh UUID is generated. The identifier is set on the response before
// the handler runs, so error paths carry it too.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		w.Header().Set(TraceHeader, traceID)
		ctx := logger.WithTrace(r.Context(), traceID)

		s.log.Debug(ctx, "Request started", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoveryMiddleware converts panics into a generic 500. Full detail is
// logged server-side; nothing internal is leaked to the client.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error(r.Context(), "Panic in request handler", map[string]interface{}{
					"panic": rec,
					"path":  r.URL.Path,
				})
				writeError(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
