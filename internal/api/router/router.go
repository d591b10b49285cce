package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/lead-intake/internal/http/middleware"
	"github.com/wolfman30/lead-intake/internal/intake"
	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	IntakeHandler      *intake.Handler
	LeadsHandler       *leads.Handler
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For,
	// X-Real-IP or True-Client-IP. Enable only behind a proxy that overwrites
	// those headers; otherwise clients can pick their own rate-limit identity.
	TrustProxyHeaders  bool
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Post("/api/inquiries", cfg.IntakeHandler.Submit)
	})

	if cfg.AdminAuthSecret != "" && cfg.LeadsHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/leads/{leadID}", cfg.LeadsHandler.GetLead)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
