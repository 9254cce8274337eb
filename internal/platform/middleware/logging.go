// Package middleware holds HTTP middleware shared by the server routes.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jardisPsr/foundation/pkg/contracts"
)

// RequestLogger logs one entry per request with status and latency. It reads
// the request ID set by chi's RequestID middleware when present.
func RequestLogger(log contracts.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				kv = append(kv, "request_id", id)
			}
			if status >= http.StatusInternalServerError {
				log.Warn("http request failed", kv...)
				return
			}
			log.Debug("http request", kv...)
		})
	}
}
