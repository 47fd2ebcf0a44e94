package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-booking-platform/internal/appointments"
	httpmiddleware "github.com/wolfman30/clinic-booking-platform/internal/http/middleware"
	"github.com/wolfman30/clinic-booking-platform/internal/leads"
	"github.com/wolfman30/clinic-booking-platform/internal/payments"
	"github.com/wolfman30/clinic-booking-platform/internal/referrals"
	"github.com/wolfman30/clinic-booking-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	AppointmentsHandler *appointments.Handler
	CheckoutHandler     *payments.CheckoutHandler
	StripeWebhook       *payments.StripeWebhookHandler
	ReferralsHandler    *referrals.Handler
	LeadsHandler        *leads.Handler

	JWTSecret          string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// Requests per second allowed on the public intake endpoints.
	// Zero disables rate limiting (tests).
	PublicRateLimit float64
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Infrastructure endpoints (no auth)
	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.StripeWebhook != nil {
		r.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
	}

	r.Route("/api", func(api chi.Router) {
		// Public intake forms, rate limited separately. The referral
		// lookup stays public too: patients open it from an emailed link
		// and the booking token is the credential.
		api.Group(func(public chi.Router) {
			if cfg.PublicRateLimit > 0 {
				public.Use(httpmiddleware.RateLimit(cfg.PublicRateLimit, int(cfg.PublicRateLimit)*2))
			}
			if cfg.ReferralsHandler != nil {
				public.Post("/referrals", cfg.ReferralsHandler.Create)
			}
			if cfg.LeadsHandler != nil {
				public.Post("/leads", cfg.LeadsHandler.Create)
			}
		})
		if cfg.ReferralsHandler != nil {
			api.Get("/referrals/{referralId}", cfg.ReferralsHandler.Lookup)
		}

		// Authenticated API
		api.Group(func(authed chi.Router) {
			authed.Use(httpmiddleware.RequireUser(cfg.JWTSecret, cfg.Logger))

			if cfg.AppointmentsHandler != nil {
				cfg.AppointmentsHandler.Routes(authed)
			}
			if cfg.CheckoutHandler != nil {
				authed.Post("/payments/checkout", cfg.CheckoutHandler.Handle)
			}
			if cfg.ReferralsHandler != nil {
				authed.Get("/referrals", cfg.ReferralsHandler.List)
				authed.Get("/referrals/stats", cfg.ReferralsHandler.GetStats)
			}
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
