package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"recapstudio-backend/internal/handlers"
	"recapstudio-backend/internal/metrics"
	"recapstudio-backend/internal/middleware"
	"recapstudio-backend/internal/websocket"
)

type Handlers struct {
	Recap    *handlers.RecapHandler
	Settings *handlers.SettingsHandler
	Stats    *handlers.StatsHandler
	Health   *handlers.HealthHandler
	WSHub    *websocket.Hub
}

func New(h Handlers, frontendURL string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.EchoRequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(frontendURL))
	r.Use(metrics.Middleware)

	// Uploads start ffmpeg runs; 20 per minute per client is plenty for one studio.
	submitLimiter := middleware.NewRateLimiter(20, time.Minute)
	ratingLimiter := middleware.NewRateLimiter(10, time.Minute)

	r.Get("/health", h.Health.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Recap Routes ────
		r.Route("/recaps", func(r chi.Router) {
			r.With(submitLimiter.Middleware).Post("/", h.Recap.Create)
			r.Get("/{id}", h.Recap.Get)
			r.Get("/{id}/video", h.Recap.Video)
			r.Delete("/{id}/video", h.Recap.ReleaseVideo)
		})

		// ──── Settings Routes ────
		r.Route("/settings", func(r chi.Router) {
			r.Get("/suggest", h.Settings.Suggest)
			r.Get("/timing", h.Settings.Timing)
		})

		// ──── Stats Routes ────
		r.Route("/stats", func(r chi.Router) {
			r.Get("/", h.Stats.Get)
			r.With(ratingLimiter.Middleware).Post("/rating", h.Stats.Rate)
		})

		// ──── WebSocket ────
		r.Get("/ws", h.WSHub.HandleWebSocket)
	})

	return r
}
