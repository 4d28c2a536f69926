package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/kbukum/chatstream/logger"
)

var quietPaths = []string{"/health", "/live", "/ready"}

// RequestLogger logs every request with method, path, status and duration.
// Probe paths are skipped.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(quietPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			fields := logger.Fields(
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.written,
				logger.FieldDuration, time.Since(start).Milliseconds(),
			)
			if id := r.Header.Get(HeaderRequestID); id != "" {
				fields[logger.FieldRequestID] = id
			}
			if sid := w.Header().Get("X-Session-Id"); sid != "" {
				fields[logger.FieldSessionID] = sid
			}
			logByStatus(log, fields, sw.status)
		})
	}
}

func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("request completed", fields)
	case status >= 400:
		log.Warn("request completed", fields)
	default:
		log.Debug("request completed", fields)
	}
}
