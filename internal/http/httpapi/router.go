package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"stylize/internal/http/handlers"
	"stylize/internal/infra"
	"stylize/internal/middleware"
)

type RouterOptions struct {
	// JWTSecret enables bearer auth; empty trusts the X-User-ID header.
	JWTSecret      string
	AllowedOrigins []string
	// RateLimitPerMinute caps requests per client IP; zero disables it.
	RateLimitPerMinute int
	// StaticDir is served under StaticPrefix when set.
	StaticDir    string
	StaticPrefix string
	Logger       infra.Logger
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.RateLimit(opts.RateLimitPerMinute, time.Minute),
			middleware.Identity(opts.JWTSecret),
		)
		r.Route("/v1/generations", func(r chi.Router) {
			r.Post("/", app.CreateGeneration)
			r.Get("/{job_id}", app.GenerationStatus)
			r.Post("/{job_id}/regenerate", app.Regenerate)
		})
	})

	if opts.StaticDir != "" {
		prefix := "/" + strings.Trim(opts.StaticPrefix, "/")
		if prefix == "/" {
			prefix = "/static"
		}
		fs := http.StripPrefix(prefix, http.FileServer(http.Dir(opts.StaticDir)))
		r.Get(prefix+"/*", fs.ServeHTTP)
	}

	return r
}
