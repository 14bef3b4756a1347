package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS answers preflight requests from embedded widgets on any origin.
// Origin enforcement happens per project in the ingestion pipeline, not here.
func CORS(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Project-Key", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         86400,
	})
	return c.Handler(next)
}
