package middleware

import (
	"net/http"

	"github.com/dustin/go-humanize"
)

const defaultMaxBodySize = 1 << 20

// BodySizeLimit restricts request bodies to maxSize, a human-readable size
// such as "512KB" or "10MB". An unparsable size falls back to 1MB.
func BodySizeLimit(maxSize string) Middleware {
	size := int64(defaultMaxBodySize)
	if n, err := humanize.ParseBytes(maxSize); err == nil && n > 0 {
		size = int64(n)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, size)
			}
			next.ServeHTTP(w, r)
		})
	}
}
