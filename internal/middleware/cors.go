// Package middleware provides HTTP middleware for the portal.
package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware that answers cross-origin requests from
// allowedOrigins. Credentials are only allowed when every origin is
// explicit; a "*" entry turns them off. Nil or empty means same-origin only.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	credentials := true
	for _, o := range allowedOrigins {
		if o == "*" {
			credentials = false
			break
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: credentials,
		MaxAge:           300,
	})
}
