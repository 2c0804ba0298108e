package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"genstudio/internal/http/handlers"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
)

// Options carries everything the router mounts besides the handlers.
type Options struct {
	Logger          *infra.Logger
	Verifier        middleware.Verifier
	Webhook         http.Handler
	Static          http.Handler
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Logger(*opts.Logger),
		chimw.Recoverer,
		cors.New(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler,
	)

	r.Get("/v1/healthz", app.Health)
	r.Handle("/metrics", promhttp.Handler())
	if opts.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static", opts.Static))
	}

	// Stripe authenticates webhooks by signature, not bearer token.
	if opts.Webhook != nil {
		r.Method(http.MethodPost, "/billing/webhook", opts.Webhook)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.Verifier))

		r.Post("/auth/session", app.Session)
		r.Get("/me", app.Me)
		r.Get("/usage", app.Usage)
		r.Get("/generations/{id}", app.Generation)

		limited := r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		limited.Post("/generate/image", app.GenerateImage)
		limited.Post("/generate/video", app.GenerateVideo)

		r.Post("/billing/checkout", app.Checkout)
		r.Post("/billing/portal", app.Portal)
	})

	return r
}
