package middleware

import (
	"net/http"
	"time"

	"github.com/nsabot/updatescanner/internal/metrics"
)

// Prometheus records request duration and count for each request except scrapes of /metrics
func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := wrap(w)
		next.ServeHTTP(rw, r)
		// Skip scrapes
		if r.URL.Path == "/metrics" {
			return
		}
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		metrics.RecordRequest(r.Method, path, rw.statusCode, time.Since(start).Seconds())
	})
}

// Chain applies middleware so that the first one listed is the outermost
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
