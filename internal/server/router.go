package server

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/postboard/apiserver/internal/handlers"
	"github.com/postboard/apiserver/internal/services"
)

// Deps are the collaborators served by the router.
type Deps struct {
	Auth   *services.AuthService
	Posts  *services.PostService
	Likes  *services.LikeService
	Health map[string]handlers.Pinger
	Logger *slog.Logger
}

// NewRouter builds the chi router with middleware and all routes.
func NewRouter(d Deps) *chi.Mux {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authMiddleware := handlers.RequireAuth(d.Auth, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(d.Health))
	handlers.AuthRouter(router, d.Auth, logger)
	router.Route("/posts", func(r chi.Router) {
		handlers.PostRouter(r, d.Posts, authMiddleware, logger)
	})
	router.Route("/like", func(r chi.Router) {
		handlers.LikeRouter(r, d.Likes, authMiddleware, logger)
	})

	return router
}
