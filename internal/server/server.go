// Package server exposes the oracle over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/bondoracle/internal/domain"
	"github.com/alanyoungcy/bondoracle/internal/metrics"
	"github.com/alanyoungcy/bondoracle/internal/server/handler"
	"github.com/alanyoungcy/bondoracle/internal/server/middleware"
	"github.com/alanyoungcy/bondoracle/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// SignatureSkew bounds how far a signed request's timestamp may be from
	// the server clock.
	SignatureSkew time.Duration

	// RateLimit requests per RateWindow per client IP; zero disables.
	RateLimit  int
	RateWindow time.Duration

	// Metrics mounts GET /metrics and instruments every route.
	Metrics bool
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Pairs   *handler.PairHandler
	Access  *handler.AccessHandler
	Admin   *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
// hub and limiter may be nil.
func NewServer(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewHandler(cfg, handlers, hub, limiter, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(cfg Config, handlers Handlers, hub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) http.Handler {
	skew := cfg.SignatureSkew
	if skew <= 0 {
		skew = 5 * time.Minute
	}
	signed := middleware.Signature(skew, time.Now, logger)
	withSig := func(f http.HandlerFunc) http.Handler { return signed(f) }

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/price", handlers.Markets.Price)
	mux.HandleFunc("GET /api/markets/{id}/decimals", handlers.Markets.Decimals)
	mux.Handle("POST /api/markets", withSig(handlers.Markets.Register))

	mux.HandleFunc("GET /api/pairs/{quote}/{payout}", handlers.Pairs.GetConfig)
	mux.HandleFunc("GET /api/pairs/{quote}/{payout}/price", handlers.Pairs.Price)
	mux.HandleFunc("GET /api/pairs/{quote}/{payout}/decimals", handlers.Pairs.Decimals)
	mux.Handle("PUT /api/pairs/{quote}/{payout}", withSig(handlers.Pairs.SetConfig))

	mux.HandleFunc("GET /api/auctioneers", handlers.Access.ListAuctioneers)
	mux.Handle("PUT /api/auctioneers/{address}", withSig(handlers.Access.SetAuctioneer))
	mux.HandleFunc("GET /api/owner", handlers.Access.GetOwner)
	mux.Handle("PUT /api/owner", withSig(handlers.Access.TransferOwnership))

	mux.Handle("POST /api/admin/snapshot", withSig(handlers.Admin.Snapshot))
	mux.Handle("GET /api/admin/audit", withSig(handlers.Admin.Audit))

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}
	if cfg.Metrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window, logger)(h)
	}
	if cfg.Metrics {
		h = metrics.Instrument(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
