package router

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/insurelab/termlife-ai-platform/internal/conversation"
	httpmiddleware "github.com/insurelab/termlife-ai-platform/internal/http/middleware"
	"github.com/insurelab/termlife-ai-platform/internal/payments"
	"github.com/insurelab/termlife-ai-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	PaymentsHandler     *payments.Handler
	MetricsHandler      http.Handler

	AdminAuthSecret    string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

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
	if cfg.RateLimitPerSecond > 0 {
		limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
		r.Use(limiter.Handler(turnAwareCost))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.ConversationHandler != nil {
			api.Mount("/conversation", cfg.ConversationHandler.Routes())
		}
		if cfg.PaymentsHandler != nil {
			api.Mount("/payments", cfg.PaymentsHandler.Routes())
		}
	})

	// Admin surface, JWT-protected. Exposes the same handlers plus manual
	// state control; disabled entirely without a secret.
	if cfg.AdminAuthSecret != "" && cfg.ConversationHandler != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Mount("/conversation", cfg.ConversationHandler.Routes())
			if cfg.PaymentsHandler != nil {
				admin.Mount("/payments", cfg.PaymentsHandler.Routes())
			}
		})
	}

	return r
}

// turnAwareCost weighs conversation turns heavier than other requests; each
// one fans out to the language model, so a burst of turns is far more
// expensive than a burst of session reads.
func turnAwareCost(r *http.Request) float64 {
	if strings.HasSuffix(r.URL.Path, "/send-message") {
		return 4
	}
	return 1
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
