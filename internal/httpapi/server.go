package httpapi

import (
	"net/http"
	"time"

	"climate-server/internal/config"

	"github.com/rs/cors"
)

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(cfg, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler wraps mux in the middleware chain: request logging outermost,
// then panic recovery, then CORS when origins are configured.
func NewHandler(cfg config.Config, mux *http.ServeMux) http.Handler {
	var h http.Handler = mux
	if len(cfg.CORSAllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
		}).Handler(h)
	}
	return requestLogger(recoverer(h))
}
