package api

import (
	"log/slog"
	"net/http"

	"socialp/internal/api/middleware"

	"github.com/go-chi/chi/v5"
	ChiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func newBaseRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(ChiMiddleware.RequestID)
	r.Use(ChiMiddleware.Logger)
	r.Use(ChiMiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func NewPostRouter(h *PostHandlers, redisClient *redis.Client, logger *slog.Logger) http.Handler {
	r := newBaseRouter()

	r.Route("/api/posts", func(r chi.Router) {
		r.Use(middleware.RequireUser)

		// Idempotent post creation
		r.With(middleware.Idempotency(redisClient, logger)).Post("/", h.CreatePost)
		r.Get("/", h.ListPosts)
		r.Get("/{id}", h.GetPost)
		r.Delete("/{id}", h.DeletePost)
	})

	logger.Info("registered routes", "service", "post",
		"routes", "POST /api/posts (idempotent), GET /api/posts, GET /api/posts/{id}, DELETE /api/posts/{id}")

	return r
}

func NewSearchRouter(h *SearchHandlers, logger *slog.Logger) http.Handler {
	r := newBaseRouter()

	r.Route("/api/search", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/posts", h.SearchPosts)
	})

	logger.Info("registered routes", "service", "search", "routes", "GET /api/search/posts?query=")

	return r
}

func NewMediaRouter(h *MediaHandlers, logger *slog.Logger) http.Handler {
	r := newBaseRouter()

	r.Route("/api/media", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Post("/upload", h.UploadMedia)
		r.Get("/", h.ListMedia)
		r.Get("/{id}", h.GetMedia)
	})

	logger.Info("registered routes", "service", "media", "routes", "POST /api/media/upload, GET /api/media, GET /api/media/{id}")

	return r
}
