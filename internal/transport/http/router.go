package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-employment-verify/internal/config"
	"github.com/go-employment-verify/internal/domain"
	"github.com/go-employment-verify/internal/obs"
	"github.com/go-employment-verify/internal/transport/http/handler"
	appmiddleware "github.com/go-employment-verify/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(obs.Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// Public token links: 5 requests/second, burst of 10 per client.
	linkRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	verificationH := handler.NewVerificationHandler(deps.Verifications)
	linkH := handler.NewLinkHandler(deps.Consent, deps.Outreach, deps.Verifications)
	webhookH := handler.NewWebhookHandler(deps.Outreach)

	r.Handle("/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(linkRL.Limit)
			r.Get("/consent/{token}", linkH.Consent)
			r.Post("/consent/{token}", linkH.Consent)
			r.Get("/employer-responses/{token}", linkH.EmployerResponse)
			r.Post("/employer-responses/{token}", linkH.EmployerResponse)
			r.Get("/work-email/{token}", linkH.WorkEmail)
			r.Post("/work-email/{token}", linkH.WorkEmail)
		})

		r.With(appmiddleware.RequireSecret(cfg.WebhookSecret)).Post("/webhooks/calls", webhookH.Call)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Post("/verifications", verificationH.Create)
			r.Get("/verifications", verificationH.List)
			r.Get("/verifications/{id}", verificationH.Get)
			r.Post("/verifications/{id}/work-email", verificationH.RequestWorkEmail)
			r.Post("/verifications/{id}/documents", verificationH.UploadDocument)
			r.Post("/resumes", verificationH.UploadResume)

			r.With(appmiddleware.RequireRole(domain.RoleAdmin)).
				Post("/verifications/{id}/outreach", verificationH.RetryOutreach)
		})
	})

	return r
}
