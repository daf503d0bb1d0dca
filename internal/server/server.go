package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/server/handler"
	"github.com/alanyoungcy/polyedge/internal/server/middleware"
	"github.com/alanyoungcy/polyedge/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string        // if empty, authentication is disabled
	RateLimit   int           // requests per RateWindow per client; 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health      *handler.HealthHandler
	Evaluations *handler.EvaluationHandler
	Markets     *handler.MarketHandler
	Analytics   *handler.AnalyticsHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

const healthPath = "/api/health"

// NewServer registers all routes and wraps them in the middleware chain.
// limiter and hub may be nil.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, hub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+healthPath, handlers.Health.HealthCheck)

	ev := handlers.Evaluations
	mux.HandleFunc("GET /api/evaluations", ev.ListAccounts)
	mux.HandleFunc("GET /api/evaluations/{id}", ev.GetAccount)
	mux.HandleFunc("GET /api/evaluations/{id}/trades", ev.ListTrades)
	mux.HandleFunc("POST /api/evaluations/{id}/trades", ev.OpenTrade)
	mux.HandleFunc("POST /api/evaluations/{id}/trades/{tradeID}/close", ev.CloseTrade)
	mux.HandleFunc("GET /api/evaluations/{id}/calendar", ev.Calendar)
	mux.HandleFunc("GET /api/selection", ev.GetSelection)
	mux.HandleFunc("PUT /api/selection", ev.SetSelection)
	mux.HandleFunc("POST /api/admin/evaluations", ev.CreateEvaluation)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/events", handlers.Markets.ListEvents)

	an := handlers.Analytics
	mux.HandleFunc("GET /api/wallet", an.GetWallet)
	mux.HandleFunc("PUT /api/wallet", an.LinkWallet)
	mux.HandleFunc("GET /api/analytics", an.MyReport)
	mux.HandleFunc("GET /api/analytics/{wallet}", an.WalletReport)
	mux.HandleFunc("GET /api/leaderboard", an.Leaderboard)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	// Outermost first: CORS, logging, auth, identity, rate limit.
	var h http.Handler = mux
	h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.Identity(h)
	h = middleware.Auth(cfg.APIKey, healthPath)(h)
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
