package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS lets a frontend on another origin call the API. "*" allows any
// origin; credentials travel in the Authorization header or the auth query
// token, so cookies are not needed.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Content-Disposition"},
		MaxAge:         600,
	})
	return c.Handler
}
