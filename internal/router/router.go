package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"classpulse-backend/internal/handlers"
	"classpulse-backend/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	sessionHandler *handlers.SessionHandler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Presence rate limiter (120 req/min per IP; heartbeats are chatty)
	presenceLimiter := middleware.NewRateLimiter(120, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jwtAuth.Middleware)

		// ──── Class Session Routes ────
		r.Route("/classes/{classID}/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Get("/", sessionHandler.ListByClass)
		})

		// ──── Session Routes ────
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Post("/start", sessionHandler.Start)
			r.Post("/end", sessionHandler.End)
			r.Post("/cancel", sessionHandler.Cancel)
			r.Post("/sync", sessionHandler.Sync)

			r.Route("/presence", func(r chi.Router) {
				r.Use(presenceLimiter.Middleware)
				r.Post("/join", sessionHandler.Join)
				r.Post("/heartbeat", sessionHandler.Heartbeat)
				r.Post("/leave", sessionHandler.Leave)
			})
		})
	})

	return r
}
