// Package server собирает HTTP-поверхность сервера синхронизации.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/boardsync/internal/server/handlers"
	"github.com/iudanet/boardsync/internal/server/middleware"
	syncsvc "github.com/iudanet/boardsync/internal/server/sync"
)

// RouterConfig содержит настройки HTTP-поверхности
type RouterConfig struct {
	JWT             handlers.JWTConfig
	Version         string
	RateLimit       int           // запросов на пользователя за окно
	RateLimitWindow time.Duration // окно rate limit
}

// NewRouter собирает маршруты и middleware сервера.
// Все sync-эндпоинты за AuthMiddleware: авторизация проверяется
// до чтения тела, отказ не оставляет частично примененный батч.
func NewRouter(logger *slog.Logger, gateway *syncsvc.Gateway, storage handlers.Pinger, cfg RouterConfig) http.Handler {
	syncHandler := handlers.NewSyncHandler(logger, gateway)
	healthHandler := handlers.NewHealthHandler(logger, storage, cfg.Version)

	r := chi.NewRouter()
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingWithSkip(logger, []string{"/api/v1/health"}))

	r.Get("/api/v1/health", healthHandler.Health)

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(logger, cfg.JWT))
		if cfg.RateLimit > 0 {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit, cfg.RateLimitWindow, logger))
		}

		// Статический маршрут batch/push имеет приоритет над {collection}
		r.Post("/batch/push", syncHandler.HandleBatchPush)
		r.Get("/{collection}/pull", syncHandler.HandlePull)
		r.Post("/{collection}/push", syncHandler.HandlePush)
	})

	return r
}
