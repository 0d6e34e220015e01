package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/api"
	"github.com/amaumene/bookarr/internal/blocklist"
	"github.com/amaumene/bookarr/internal/config"
	"github.com/amaumene/bookarr/internal/dispatch"
	"github.com/amaumene/bookarr/internal/downloaders"
	"github.com/amaumene/bookarr/internal/downloaders/blackhole"
	"github.com/amaumene/bookarr/internal/downloaders/qbittorrent"
	"github.com/amaumene/bookarr/internal/downloaders/sabnzbd"
	"github.com/amaumene/bookarr/internal/logging"
	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/providers/registry"
	"github.com/amaumene/bookarr/internal/scheduler"
	"github.com/amaumene/bookarr/internal/scoring"
	"github.com/amaumene/bookarr/internal/search"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("Starting Bookarr")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Initialize blocklist
	bl := blocklist.New(
		time.Duration(cfg.BlocklistBaseMinutes)*time.Minute,
		time.Duration(cfg.BlocklistCapHours)*time.Hour,
		logger,
	)

	// 5. Initialize providers
	rssPollTTL := time.Duration(cfg.RSSPollMinutes) * time.Minute
	reg, err := registry.New(cfg.Providers, rssPollTTL, bl, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}
	logger.WithField("count", len(reg.All())).Info("Providers initialized")

	// 6. Initialize download clients
	clients, err := buildClients(cfg, logger)
	if err != nil {
		return err
	}
	if len(clients) == 0 {
		return fmt.Errorf("no download client configured; set SABNZBD_URL, QBITTORRENT_URL or BLACKHOLE_DIR")
	}
	logger.WithField("count", len(clients)).Info("Download clients initialized")

	// 7. Initialize the acquisition pipeline
	engine := scoring.NewEngine(cfg.Scoring, logger)
	orchestrator := search.New(reg, bl, engine,
		time.Duration(cfg.ProviderTimeoutSeconds)*time.Second,
		time.Duration(cfg.RoundTimeoutSeconds)*time.Second,
		logger,
	)
	snatcher := dispatch.New(db, clients, cfg.MaxRetries, logger)

	// 8. Initialize scheduler
	sched := scheduler.New(db, orchestrator, snatcher,
		cfg.SearchCron, cfg.StuckCron,
		time.Duration(cfg.StuckTimeoutMinutes)*time.Minute,
		logger,
	)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 9. Initialize HTTP server
	server := api.NewServer(cfg, db, bl, snatcher, sched, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 10. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Bookarr is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("Bookarr stopped")
	return nil
}

// buildClients constructs every configured download client
func buildClients(cfg *config.Config, logger *logrus.Logger) ([]downloaders.Client, error) {
	var clients []downloaders.Client

	if cfg.SABnzbd != nil {
		clients = append(clients, sabnzbd.New(*cfg.SABnzbd, logger))
		logger.Info("SABnzbd client configured")
	}

	if cfg.QBittorrent != nil {
		qb, err := qbittorrent.New(*cfg.QBittorrent, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize qBittorrent client: %w", err)
		}
		clients = append(clients, qb)
		logger.Info("qBittorrent client configured")
	}

	if cfg.Blackhole != nil {
		bh, err := blackhole.New(*cfg.Blackhole, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize blackhole client: %w", err)
		}
		clients = append(clients, bh)
		logger.WithField("dir", cfg.Blackhole.Dir).Info("Blackhole client configured")
	}

	return clients, nil
}
