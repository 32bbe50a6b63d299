package httpx

import (
	"log"
	"net/http"
	"time"
)

// AccessLogMiddleware writes one key=value line per request once the
// handler has finished. It wraps the writer to capture the status code,
// so it must sit inside any middleware that replaces the writer.
func AccessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		log.Printf("access method=%s path=%s status=%d bytes=%d duration_ms=%d request_id=%s user_id=%s",
			r.Method, r.URL.Path, rw.statusCode, rw.bytesWritten,
			time.Since(start).Milliseconds(), RequestIDFrom(r), UserIDFrom(r))
	})
}
