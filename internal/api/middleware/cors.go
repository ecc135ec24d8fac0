package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/rs/cors"
)

// CORS wraps h with a CORS handler. Origins come from CORS_ORIGINS
// (comma-separated); when unset every origin is allowed.
func CORS(h http.Handler) http.Handler {
	return cors.New(CORSOptions(os.Getenv("CORS_ORIGINS"))).Handler(h)
}

func CORSOptions(origins string) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:         600,
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			opts.AllowedOrigins = append(opts.AllowedOrigins, o)
		}
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return opts
}
