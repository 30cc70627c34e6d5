package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/preyanshu/verdict/internal/domain"
	"github.com/preyanshu/verdict/internal/server/handler"
	"github.com/preyanshu/verdict/internal/server/middleware"
	"github.com/preyanshu/verdict/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	// RateLimitPerMinute caps requests per client IP; 0 disables limiting.
	RateLimitPerMinute int
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Status      *handler.StatusHandler
	Feeds       *handler.FeedHandler
	Markets     *handler.MarketHandler
	Redemptions *handler.RedeemHandler
	Audits      *handler.AuditHandler
	// Metrics serves the Prometheus exposition; nil leaves /metrics unrouted.
	Metrics http.Handler
}

// Server is the HTTP + WebSocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain:
// CORS, logging, auth, then rate limiting closest to the handlers.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	h := Routes(cfg, handlers, hub, limiter, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Routes builds the complete handler tree without binding a listener.
func Routes(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	mux.HandleFunc("GET /api/feeds", handlers.Feeds.ListFeeds)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)

	mux.HandleFunc("POST /api/markets/{id}/redeem", handlers.Redemptions.Redeem)
	mux.HandleFunc("GET /api/markets/{id}/redeem", handlers.Redemptions.Current)
	mux.HandleFunc("DELETE /api/markets/{id}/redeem", handlers.Redemptions.Reset)
	mux.HandleFunc("GET /api/redemptions", handlers.Redemptions.History)

	mux.HandleFunc("POST /api/markets/{id}/audit", handlers.Audits.RunAudit)
	mux.HandleFunc("GET /api/markets/{id}/audit", handlers.Audits.LastAudit)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimitPerMinute, time.Minute, logger)(h)
	h = middleware.Auth(cfg.APIKey, "/api/health", "/metrics")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
