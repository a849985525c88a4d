package http

import (
	"net/http"
	"time"

	"github.com/eunoia-app/eunoia/logger"
	"github.com/gorilla/mux"
)

// LoggingMiddleware records method, path, and elapsed time for every
// request.
func LoggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.Info("request handled", logger.Fields{
				"method":  r.Method,
				"path":    r.URL.Path,
				"elapsed": time.Since(start).String(),
			})
		})
	}
}
