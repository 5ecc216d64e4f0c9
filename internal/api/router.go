package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/api/middleware"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/auth"
	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/handlers"
)

// RouterConfig holds what the router needs beyond the handler.
type RouterConfig struct {
	Tokens      *auth.Issuer
	CORSOrigins []string

	// Redis enables rate limiting when set.
	Redis            *redis.Client
	RateLimitBypass  []string
	AutoBlockEnabled bool

	// Socket serves the chat socket at /socket.io/ when set.
	Socket http.Handler
}

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024)) // 16KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	if cfg.Redis != nil {
		limiter := middleware.NewRateLimiter(cfg.Redis, logger, middleware.RateLimiterConfig{
			Bypass:           cfg.RateLimitBypass,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
			Tokens:           cfg.Tokens,
		})
		r.Use(limiter.Middleware)
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMW := middleware.NewAuthMiddleware(cfg.Tokens)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Get("/api", h.Root)
	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)
	r.Get("/api/users/{id}", h.GetUser)

	// Authenticated routes (require bearer token)
	r.Group(func(r chi.Router) {
		r.Use(authMW.RequireAuth)

		r.Get("/api/chat/conversations", h.ListConversations)
		r.Get("/api/chat/rooms/with/{userId}", h.RoomWith)
		r.Get("/api/chat/{roomId}", h.GetRoomMessages)
	})

	if cfg.Socket != nil {
		r.Handle(middleware.SocketPath+"*", cfg.Socket)
	}

	return r
}
