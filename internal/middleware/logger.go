package middleware

import (
	"net/http"

	"github.com/pretty1020/lept-reviewer/internal/logger"
)

// LoggerMiddleware logs incoming HTTP requests.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		// Call the next handler in the chain
		next.ServeHTTP(w, r)

		logger := logger.New()
		logger.Debug().Msgf("%s %s", r.Method, r.URL.RequestURI())
	})
}
