package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"mediashrink/internal/http/handlers"
	"mediashrink/internal/middleware"
)

// RouterOptions carries the cross-cutting settings of the API surface.
type RouterOptions struct {
	Logger          zerolog.Logger
	Auth            middleware.BasicAuthConfig
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	limit := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.BasicAuth(opts.Auth))
			r.With(limit).Post("/upload", app.Upload)
			r.With(limit).Post("/compress", app.Compress)
			r.Get("/jobs/{id}", app.JobStatus)
			r.Post("/jobs/{id}/cancel", app.Cancel)
			r.Get("/jobs/{id}/download", app.Download)
		})
		r.With(middleware.BasicAuthOrToken(opts.Auth)).Get("/stream/{id}", app.Stream)
	})

	return r
}
