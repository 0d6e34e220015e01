package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/api/handlers"
	"github.com/amaumene/bookarr/internal/api/middleware"
	"github.com/amaumene/bookarr/internal/blocklist"
	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/dispatch"
	"github.com/amaumene/bookarr/internal/models"
)

// Server represents the HTTP server
type Server struct {
	server    *http.Server
	db        *models.Database
	blocklist *blocklist.Manager
	snatcher  *dispatch.Snatcher
	searcher  handlers.ItemSearcher
	logger    *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *models.Database, bl *blocklist.Manager,
	snatcher *dispatch.Snatcher, searcher handlers.ItemSearcher, logger *logrus.Logger) *Server {
	s := &Server{
		db:        db,
		blocklist: bl,
		snatcher:  snatcher,
		searcher:  searcher,
		logger:    logger,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux, cfg)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // Manual searches wait for a full provider round
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux, cfg *config.Config) {
	// Health check
	healthHandler := handlers.NewHealthHandler(s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	// Status endpoint
	statusHandler := handlers.NewStatusHandler(s.db, s.logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	// Wanted item collection
	wantedHandler := handlers.NewWantedHandler(s.db, s.searcher, s.logger)
	mux.HandleFunc("/api/wanted", wantedHandler.ServeHTTP)
	mux.HandleFunc("/api/wanted/", wantedHandler.ServeHTTP)

	// Provider blocklist
	blocklistHandler := handlers.NewBlocklistHandler(s.blocklist, s.logger)
	mux.HandleFunc("/api/blocklist", blocklistHandler.ServeHTTP)

	// Provider connectivity test
	providerTimeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	testHandler := handlers.NewProviderTestHandler(providerTimeout, s.logger)
	mux.HandleFunc("/api/providers/test", testHandler.ServeHTTP)

	// Download client webhook
	webhookHandler := handlers.NewWebhookHandler(s.snatcher, s.logger)
	mux.HandleFunc("/api/webhook/downloads", webhookHandler.ServeHTTP)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
