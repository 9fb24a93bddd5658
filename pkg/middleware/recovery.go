package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
)

// Recovery recovers from handler panics, logs them and answers 500
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := wrap(w)
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			// Log the panic
			Logger(r.Context()).Error("Panic recovered",
				"error", err,
				"stack_trace", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			// Return 500 Internal Server Error unless the response already started
			if rw.wroteHeader {
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			rw.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(rw).Encode(map[string]string{
				"error":          http.StatusText(http.StatusInternalServerError),
				"correlation_id": GetCorrelationID(r.Context()),
			})
		}()

		next.ServeHTTP(rw, r)
	})
}
