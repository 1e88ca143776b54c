package middleware

import (
	"net/http"
	"time"

	"sheger-walk-admin/internal/logger"
)

// RequestLogger logs method, path, status and latency of every request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		logger.Request(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
