package handlers

import (
	"net/http"
	"time"

	"chat-backend/internal/middleware"
	"chat-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig wires services into the HTTP surface
type RouterConfig struct {
	UserService    *services.UserService
	MessageService *services.MessageService
	Hub            *services.WSHub
	Store          Pinger
	AllowedOrigins []string
	SendPerMinute  int
	SecureCookie   bool
}

// NewRouter builds the chi router with every API route
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.UserService, cfg.SecureCookie)
	messageHandler := NewMessageHandler(cfg.MessageService)
	wsHandler := NewWebSocketHandler(cfg.Hub, cfg.UserService, cfg.AllowedOrigins)
	healthHandler := NewHealthHandler(cfg.Store)

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", wsHandler.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.With(middleware.AuthMiddleware(cfg.UserService)).Get("/check", authHandler.Check)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(cfg.UserService))

			r.Get("/users", messageHandler.GetUsers)
			r.Get("/{id}", messageHandler.GetMessages)
			r.With(sendRateLimit(cfg.SendPerMinute)).Post("/send/{id}", messageHandler.SendMessage)
			r.Post("/mark-read/{id}", messageHandler.MarkMessagesAsRead)
			r.Post("/pin/{chatId}", messageHandler.PinChat)
			r.Post("/unpin/{chatId}", messageHandler.UnpinChat)
			r.Post("/view/{messageId}", messageHandler.MarkMessageAsViewed)
		})
	})

	return r
}

// sendRateLimit limits sends per authenticated user. A non-positive limit disables it.
func sendRateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return middleware.GetUserID(r.Context()), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, "Too many messages, slow down", http.StatusTooManyRequests)
		}),
	)
}
