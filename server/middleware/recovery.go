package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/logger"
)

// Recovery recovers from handler panics, logs the stack and answers 500 if
// nothing was written yet.
func Recovery(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.WithContext(r.Context()).Error("panic recovered", logger.Fields(
					logger.FieldError, fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				))
				if sw.wroteHeader {
					return
				}
				body := apperrors.ErrorResponse{Error: "Internal server error", Code: apperrors.ErrCodeInternal}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(body)
			}()
			next.ServeHTTP(sw, r)
		})
	}
}
