package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"honeypot-lab/internal/api/handlers"
	apimiddleware "honeypot-lab/internal/api/middleware"
	"honeypot-lab/internal/config"
	"honeypot-lab/internal/infrastructure/cache"
	"honeypot-lab/pkg/logger"
)

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	cache    *cache.RedisCache
	logger   *logger.Logger
}

// NewRouter creates a new Router instance. c may be nil, which disables rate limiting.
func NewRouter(cfg config.Config, h *handlers.Handlers, c *cache.RedisCache, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		cache:    c,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Public routes
	router.Group(func(pub chi.Router) {
		pub.Get("/", r.handlers.Health.Root)
		pub.Get("/health", r.handlers.Health.Check)
		pub.Get("/ready", r.handlers.Health.Ready)
	})

	auth := apimiddleware.APIKeyAuth(r.config.Auth.Header, r.config.Auth.APIKey)
	message := []func(http.Handler) http.Handler{auth}
	if r.config.RateLimit.Enabled && r.cache != nil {
		message = append(message, apimiddleware.RateLimiter(r.cache, r.config.RateLimit, r.logger))
	}

	// Message endpoint at the root for callers that post to the bare host
	router.With(message...).Post("/", r.handlers.Honeypot.Message)

	router.Route("/api/v1", func(api chi.Router) {
		api.With(message...).Post("/honeypot/message", r.handlers.Honeypot.Message)

		// Operator API
		api.Group(func(op chi.Router) {
			op.Use(auth)

			op.Get("/sessions/{id}", r.handlers.Honeypot.Session)
			op.Post("/detect", r.handlers.Honeypot.Detect)

			op.Route("/reports", func(reports chi.Router) {
				reports.Get("/", r.handlers.Reports.List)
				reports.Get("/stats", r.handlers.Reports.Stats)
				reports.Get("/{sessionId}", r.handlers.Reports.Get)
			})

			op.Get("/intel/linked", r.handlers.Reports.Linked)

			op.Get("/stream", r.handlers.Streaming.HandleWebSocket)
			op.Get("/stream/stats", r.handlers.Streaming.GetStats)
		})
	})

	return router
}
