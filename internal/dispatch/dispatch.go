package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/timshannon/bolthold"

	"github.com/amaumene/bookarr/internal/downloaders"
	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/scoring"
)

// ErrNoViableClient means every candidate either had no configured
// client for its backend or every submission attempt failed
var ErrNoViableClient = errors.New("no candidate could be handed to a download client")

// ErrJobInFlight means the item already has an open acquisition job
var ErrJobInFlight = errors.New("item already has an acquisition job in flight")

// Snatcher hands ranked candidates to download clients and tracks the
// resulting acquisition jobs through their lifecycle. It enforces the
// single-open-job rule: an item never has more than one submitted or
// active job at a time.
type Snatcher struct {
	// mu serializes the open-job check against job creation; the cron
	// sweep and the manual-search handler can race on the same item
	mu         sync.Mutex
	db         *models.Database
	clients    map[downloaders.Kind]downloaders.Client
	maxRetries int
	logger     *logrus.Logger
}

// New creates a snatcher over the configured download clients
func New(db *models.Database, clients []downloaders.Client, maxRetries int, logger *logrus.Logger) *Snatcher {
	byKind := make(map[downloaders.Kind]downloaders.Client, len(clients))
	for _, c := range clients {
		byKind[c.Kind()] = c
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Snatcher{
		db:         db,
		clients:    byKind,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Clients returns the configured download clients
func (s *Snatcher) Clients() []downloaders.Client {
	out := make([]downloaders.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

// resolveClient picks the client for a candidate's backend, falling
// back to the blackhole folder when the native client is not configured
func (s *Snatcher) resolveClient(backend downloaders.Kind) (downloaders.Client, bool) {
	if c, ok := s.clients[backend]; ok {
		return c, true
	}
	if c, ok := s.clients[downloaders.KindBlackhole]; ok {
		return c, true
	}
	return nil, false
}

// Snatch walks the ranked candidates best first and submits the first
// one a download client accepts. It records the acquisition job and
// moves the item to snatched.
func (s *Snatcher) Snatch(ctx context.Context, item *models.WantedItem, candidates []scoring.Candidate) (*models.AcquisitionJob, error) {
	if len(candidates) == 0 {
		return nil, ErrNoViableClient
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.GetOpenJobForItem(item.ID); err == nil {
		return nil, ErrJobInFlight
	} else if !errors.Is(err, bolthold.ErrNotFound) {
		return nil, fmt.Errorf("failed to check open jobs: %w", err)
	}

	var lastErr error
	for _, cand := range candidates {
		client, ok := s.resolveClient(cand.Backend)
		if !ok {
			s.logger.WithFields(logrus.Fields{
				"title":   cand.Title,
				"backend": cand.Backend,
			}).Debug("No client for candidate backend, skipping")
			lastErr = fmt.Errorf("no client configured for %s payloads", cand.Backend)
			continue
		}

		handle, err := client.Submit(ctx, downloaders.Payload{
			Title:    cand.Title,
			URL:      cand.URL,
			Hit:      cand.Kind,
			Category: item.Category,
		})
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"client": client.Name(),
				"title":  cand.Title,
			}).Warn("Submission failed, trying next candidate")
			lastErr = err
			continue
		}

		job := &models.AcquisitionJob{
			ItemID:      item.ID,
			Provider:    cand.Provider,
			Title:       cand.Title,
			URL:         cand.URL,
			Size:        cand.SizeBytes,
			Score:       cand.Score,
			Client:      handle.Client,
			ClientJobID: handle.ID,
			Status:      models.JobStatusSubmitted,
		}
		if err := s.db.CreateJob(job); err != nil {
			return nil, fmt.Errorf("failed to record acquisition job: %w", err)
		}

		item.Status = models.ItemStatusSnatched
		if err := s.db.UpdateWantedItem(item); err != nil {
			return nil, fmt.Errorf("failed to update item status: %w", err)
		}

		s.logger.WithFields(logrus.Fields{
			"item_id": item.ID,
			"title":   cand.Title,
			"score":   cand.Score,
			"client":  handle.Client,
		}).Info("Candidate snatched")

		return job, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoViableClient, lastErr)
	}
	return nil, ErrNoViableClient
}

// MarkJobActive records that the download client started working on the
// payload
func (s *Snatcher) MarkJobActive(clientJobID string) error {
	job, err := s.db.GetJobByClientJobID(clientJobID)
	if err != nil {
		return fmt.Errorf("unknown client job %q: %w", clientJobID, err)
	}
	if !job.Status.IsOpen() {
		return fmt.Errorf("job %d already settled as %s", job.ID, job.Status)
	}

	job.Status = models.JobStatusActive
	return s.db.UpdateJob(job)
}

// CompleteJob settles a job as completed and marks its item processed
func (s *Snatcher) CompleteJob(clientJobID string) error {
	job, err := s.db.GetJobByClientJobID(clientJobID)
	if err != nil {
		return fmt.Errorf("unknown client job %q: %w", clientJobID, err)
	}
	if !job.Status.IsOpen() {
		return fmt.Errorf("job %d already settled as %s", job.ID, job.Status)
	}

	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	if err := s.db.UpdateJob(job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	item, err := s.db.GetWantedItemByID(job.ItemID)
	if err != nil {
		return fmt.Errorf("job %d references missing item %d: %w", job.ID, job.ItemID, err)
	}

	item.Status = models.ItemStatusProcessed
	item.ProcessedAt = &now
	if err := s.db.UpdateWantedItem(item); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"item_id": item.ID,
		"title":   item.Title,
		"client":  job.Client,
	}).Info("Acquisition completed")

	return nil
}

// FailJob settles a job as failed and returns its item to the search
// pool, or parks it as failed once the retry budget is spent
func (s *Snatcher) FailJob(clientJobID, reason string) error {
	job, err := s.db.GetJobByClientJobID(clientJobID)
	if err != nil {
		return fmt.Errorf("unknown client job %q: %w", clientJobID, err)
	}
	if !job.Status.IsOpen() {
		return fmt.Errorf("job %d already settled as %s", job.ID, job.Status)
	}
	return s.failJob(job, reason)
}

func (s *Snatcher) failJob(job *models.AcquisitionJob, reason string) error {
	job.Status = models.JobStatusFailed
	job.FailureReason = reason
	if err := s.db.UpdateJob(job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	item, err := s.db.GetWantedItemByID(job.ItemID)
	if err != nil {
		return fmt.Errorf("job %d references missing item %d: %w", job.ID, job.ItemID, err)
	}

	item.RetryCount++
	if item.RetryCount >= s.maxRetries {
		item.Status = models.ItemStatusFailed
		s.logger.WithFields(logrus.Fields{
			"item_id": item.ID,
			"title":   item.Title,
			"retries": item.RetryCount,
		}).Warn("Item exhausted its retry budget")
	} else {
		item.Status = models.ItemStatusWanted
		s.logger.WithFields(logrus.Fields{
			"item_id": item.ID,
			"title":   item.Title,
			"retries": item.RetryCount,
			"reason":  reason,
		}).Info("Acquisition failed, item returned to search pool")
	}

	return s.db.UpdateWantedItem(item)
}

// CheckStuck fails every open job that has not progressed within the
// timeout, so items do not stay parked behind a dead download forever.
// It returns the number of jobs reaped.
func (s *Snatcher) CheckStuck(timeout time.Duration) (int, error) {
	jobs, err := s.db.GetOpenJobs()
	if err != nil {
		return 0, fmt.Errorf("failed to list open jobs: %w", err)
	}

	cutoff := time.Now().Add(-timeout)
	reaped := 0
	for _, job := range jobs {
		if job.UpdatedAt.After(cutoff) {
			continue
		}
		reason := fmt.Sprintf("no progress for %s", timeout)
		if err := s.failJob(job, reason); err != nil {
			s.logger.WithError(err).WithField("job_id", job.ID).Error("Failed to reap stuck job")
			continue
		}
		reaped++
	}

	if reaped > 0 {
		s.logger.WithField("count", reaped).Info("Stuck jobs reaped")
	}
	return reaped, nil
}
