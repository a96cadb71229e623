package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/straye-as/deal-engine/internal/domain"
	"go.uber.org/zap"
)

// Recovery turns a panic in a handler into a 500 response
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("request_id", r.Header.Get("X-Request-ID")),
					zap.ByteString("stack", debug.Stack()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(domain.APIError{
					Type:   domain.ErrorTypeInternal,
					Title:  http.StatusText(http.StatusInternalServerError),
					Status: http.StatusInternalServerError,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
