package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/postboard/apiserver/config"
	"github.com/postboard/apiserver/internal/auth"
	"github.com/postboard/apiserver/internal/cache"
	"github.com/postboard/apiserver/internal/db"
	"github.com/postboard/apiserver/internal/events"
	"github.com/postboard/apiserver/internal/handlers"
	"github.com/postboard/apiserver/internal/mq"
	"github.com/postboard/apiserver/internal/services"
	"github.com/postboard/apiserver/internal/store"
)

// Server wraps the HTTP server and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *store.DB
	redis      *redis.Client
	mq         *mq.MQ
	logger     *slog.Logger
}

// New connects the database and the optional Redis cache and broker, then
// builds the services and router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *Server, err error) {
	s := &Server{logger: logger}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	tokens, err := auth.NewTokenService(auth.TokenConfigFrom(cfg.Auth))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s.db = store.New(sqlDB)

	opts := []services.Option{services.WithLogger(logger)}
	health := map[string]handlers.Pinger{"database": s.db}

	if cfg.Redis.Addr != "" {
		s.redis, err = cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		ttl := time.Duration(cfg.Redis.TTLSeconds) * time.Second
		opts = append(opts, services.WithPostCache(cache.NewPostCache(s.redis, ttl)))
		health["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return s.redis.Ping(ctx).Err()
		})
		logger.Info("post cache enabled", slog.String("addr", cfg.Redis.Addr))
	}

	if cfg.MQ.Backend != "" {
		s.mq, err = mq.Open(ctx, cfg.MQ)
		if err != nil {
			return nil, err
		}
		opts = append(opts, services.WithEvents(events.NewPublisher(s.mq)))
		logger.Info("activity events enabled",
			slog.String("backend", cfg.MQ.Backend),
			slog.String("channel", cfg.MQ.Channel),
		)
	}

	users := store.NewUserRepository(s.db)
	posts := store.NewPostRepository(s.db)
	likes := store.NewLikeRepository(s.db)

	s.router = NewRouter(Deps{
		Auth:   services.NewAuthService(s.db, users, auth.NewBcryptHasher(0), tokens, opts...),
		Posts:  services.NewPostService(s.db, posts, opts...),
		Likes:  services.NewLikeService(s.db, posts, likes, opts...),
		Health: health,
		Logger: logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes owned connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.close()
	return err
}

func (s *Server) close() {
	if s.mq != nil {
		_ = s.mq.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
