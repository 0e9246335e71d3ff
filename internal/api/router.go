/**
 * @description
 * HTTP router setup for the portfolio-service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig carries the credentials the router's middleware checks.
type RouterConfig struct {
	JWTSecret      string
	InternalAPIKey string
	RequestTimeout time.Duration
}

// NewRouter creates a new Chi router and registers the portfolio routes.
func NewRouter(h *PortfolioHandlers, cfg RouterConfig) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 90 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Portfolio service is healthy"))
	})

	r.Route("/internal/users/{userID}", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))
		r.Get("/portfolio", h.InternalGetPortfolioHandler)
		r.Get("/accounts/{accountID}/sync-checkpoint", h.InternalSyncCheckpointHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(cfg.JWTSecret))
		r.Get("/portfolio", h.GetPortfolioHandler)
		r.Get("/accounts/default", h.GetDefaultAccountHandler)
		r.Get("/accounts/{id}", h.GetAccountHandler)
	})

	return r
}
