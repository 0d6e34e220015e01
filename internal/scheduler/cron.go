package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/dispatch"
	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/search"
)

// Scheduler drives the periodic work: the search sweep over wanted
// items and the stuck-job reaper
type Scheduler struct {
	cron         *cron.Cron
	db           *models.Database
	orchestrator *search.Orchestrator
	snatcher     *dispatch.Snatcher

	searchSpec   string
	stuckSpec    string
	stuckTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Logger
}

// New creates the scheduler. Specs are standard five-field cron
// expressions.
func New(db *models.Database, orch *search.Orchestrator, snatcher *dispatch.Snatcher,
	searchSpec, stuckSpec string, stuckTimeout time.Duration, logger *logrus.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	// Overlapping sweeps would race each other on the same items
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return &Scheduler{
		cron:         c,
		db:           db,
		orchestrator: orch,
		snatcher:     snatcher,
		searchSpec:   searchSpec,
		stuckSpec:    stuckSpec,
		stuckTimeout: stuckTimeout,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}
}

// Start registers the jobs, kicks off an immediate sweep, and starts
// the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.searchSpec, s.runSweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.stuckSpec, s.runStuckCheck); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"search_cron": s.searchSpec,
		"stuck_cron":  s.stuckSpec,
	}).Info("Scheduler started")

	go s.runSweep()
	s.cron.Start()
	return nil
}

// Stop cancels in-flight work and waits for running jobs to finish
func (s *Scheduler) Stop() {
	s.cancel()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("Scheduler stopped")
}

// runSweep searches every wanted item, one at a time. Serializing keeps
// the provider load at one round's worth regardless of backlog size.
func (s *Scheduler) runSweep() {
	items, err := s.db.GetItemsByStatus(models.ItemStatusWanted)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list wanted items")
		return
	}
	if len(items) == 0 {
		s.logger.Debug("Sweep found nothing wanted")
		return
	}

	s.logger.WithField("count", len(items)).Info("Search sweep started")

	for _, item := range items {
		if s.ctx.Err() != nil {
			return
		}
		if err := s.ProcessItem(s.ctx, item); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"item_id": item.ID,
				"title":   item.Title,
			}).Warn("Item left for the next sweep")
		}
	}
}

// ProcessItem runs one search-and-snatch cycle for a single item. Also
// called directly by the manual-search API surface.
func (s *Scheduler) ProcessItem(ctx context.Context, item *models.WantedItem) error {
	now := time.Now()
	item.LastSearchedAt = &now
	if err := s.db.UpdateWantedItem(item); err != nil {
		return err
	}

	candidates := s.orchestrator.SearchItem(ctx, item)
	if len(candidates) == 0 {
		s.logger.WithFields(logrus.Fields{
			"item_id": item.ID,
			"title":   item.Title,
		}).Debug("No candidates this round")
		return nil
	}

	_, err := s.snatcher.Snatch(ctx, item, candidates)
	if errors.Is(err, dispatch.ErrJobInFlight) {
		// Raced with a webhook or manual search; the open job wins
		return nil
	}
	return err
}

// runStuckCheck reaps open jobs that stopped making progress
func (s *Scheduler) runStuckCheck() {
	if _, err := s.snatcher.CheckStuck(s.stuckTimeout); err != nil {
		s.logger.WithError(err).Error("Stuck job check failed")
	}
}
