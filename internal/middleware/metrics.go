package middleware

import (
	"net/http"
	"time"
)

// RequestRecorder receives one call per finished request.
// *metrics.Collector satisfies it.
type RequestRecorder interface {
	RecordRequest(method, route string, status int, d time.Duration)
}

// Instrument reports every request to rec, labelled by chi route pattern.
// It must be mounted with r.Use on the router so the pattern is known once
// the handler returns.
func Instrument(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			rec.RecordRequest(r.Method, routePattern(r), wrapped.statusCode, time.Since(start))
		})
	}
}
