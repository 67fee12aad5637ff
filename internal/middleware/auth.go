package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dreamframe/service/internal/response"
)

// RequireAPIKey returns middleware that validates the caller's API key from
// the X-API-Key header or an Authorization Bearer token. An empty configured
// key disables the check.
func RequireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			if provided == "" {
				parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
				if len(parts) == 2 && parts[0] == "Bearer" {
					provided = parts[1]
				}
			}
			if provided == "" {
				response.Unauthorized(w, "API key required")
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				response.Unauthorized(w, "invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
