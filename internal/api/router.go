package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	apimiddleware "github.com/phrazzld/scry-srs/internal/api/middleware"
	"github.com/phrazzld/scry-srs/internal/service/auth"
)

// RouterDeps are the handlers and services the router mounts.
type RouterDeps struct {
	JWT     auth.JWTService
	Reviews *ReviewHandler
	Due     *DueHandler
	Stats   *StatsHandler
	DB      Pinger
	Logger  *slog.Logger
}

// NewRouter creates the application router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.NewTraceMiddleware(deps.Logger))

	authMiddleware := apimiddleware.NewAuthMiddleware(deps.JWT)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/cards/{id}/reviews", deps.Reviews.SubmitReview)
		r.Get("/reviews/due/count", deps.Due.GetDueCount)
		r.Get("/reviews/due", deps.Due.ListDue)
		r.Get("/stats", deps.Stats.GetStats)
	})

	r.Get("/health", HealthHandler(deps.DB))

	return r
}
