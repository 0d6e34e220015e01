package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amaumene/bookarr/internal/blocklist"
	"github.com/amaumene/bookarr/internal/models"
	"github.com/amaumene/bookarr/internal/providers"
	"github.com/amaumene/bookarr/internal/providers/registry"
	"github.com/amaumene/bookarr/internal/scoring"
)

// Orchestrator fans one wanted item's search out to every active
// provider in its category, tolerates partial failure, and returns
// ranked candidates. A round with zero answering providers yields an
// empty list, never an error.
type Orchestrator struct {
	registry  *registry.Registry
	blocklist *blocklist.Manager
	engine    *scoring.Engine

	providerTimeout time.Duration
	roundTimeout    time.Duration

	logger *logrus.Logger
}

// New creates a search orchestrator
func New(reg *registry.Registry, bl *blocklist.Manager, engine *scoring.Engine,
	providerTimeout, roundTimeout time.Duration, logger *logrus.Logger) *Orchestrator {
	if providerTimeout <= 0 {
		providerTimeout = 30 * time.Second
	}
	if roundTimeout <= 0 {
		roundTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		registry:        reg,
		blocklist:       bl,
		engine:          engine,
		providerTimeout: providerTimeout,
		roundTimeout:    roundTimeout,
		logger:          logger,
	}
}

type providerResult struct {
	entry registry.Entry
	hits  []providers.RawHit
	err   error
}

// SearchItem runs one search round for the item and returns candidates
// sorted best first
func (o *Orchestrator) SearchItem(ctx context.Context, item *models.WantedItem) []scoring.Candidate {
	entries := o.registry.ActiveFor(item.Category)
	if len(entries) == 0 {
		o.logger.WithFields(logrus.Fields{
			"item_id":  item.ID,
			"category": item.Category,
		}).Warn("No eligible providers for search round")
		return nil
	}

	query := providers.Query{
		Title:    item.Title,
		Author:   item.Author,
		Category: item.Category,
		Types:    item.WantedTypes,
	}

	roundCtx, cancel := context.WithTimeout(ctx, o.roundTimeout)
	defer cancel()

	// Buffered so abandoned goroutines can still deliver and exit
	results := make(chan providerResult, len(entries))
	var wg sync.WaitGroup

	for _, entry := range entries {
		wg.Add(1)
		go func(e registry.Entry) {
			defer wg.Done()
			pctx, pcancel := context.WithTimeout(roundCtx, o.providerTimeout)
			defer pcancel()

			hits, err := e.Provider.Search(pctx, query)
			results <- providerResult{entry: e, hits: hits, err: err}
		}(entry)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	priorities := make(map[string]int, len(entries))
	var collected []providers.RawHit

	for res := range results {
		name := res.entry.Config.Name
		if res.err != nil {
			o.reportFailure(name, res.err)
			continue
		}
		o.blocklist.RecordSuccess(name)
		priorities[name] = res.entry.Config.Priority
		collected = append(collected, res.hits...)

		o.logger.WithFields(logrus.Fields{
			"provider": name,
			"hits":     len(res.hits),
		}).Debug("Provider answered")
	}

	if ctx.Err() != nil {
		// Round abandoned; discard whatever subset arrived
		return nil
	}

	deduped := Dedupe(collected)
	candidates := o.scoreHits(item, deduped, priorities)
	ranked := scoring.Rank(candidates)

	o.logger.WithFields(logrus.Fields{
		"item_id":    item.ID,
		"title":      item.Title,
		"raw_hits":   len(collected),
		"candidates": len(ranked),
	}).Info("Search round completed")

	return ranked
}

// reportFailure classifies a provider error and feeds the blocklist
func (o *Orchestrator) reportFailure(name string, err error) {
	kind := providers.ErrProtocol
	var perr *providers.Error
	if errors.As(err, &perr) {
		kind = perr.Kind
	}

	o.logger.WithError(err).WithFields(logrus.Fields{
		"provider": name,
		"kind":     kind,
	}).Warn("Provider failed, excluding from round")

	o.blocklist.RecordFailure(name, kind, err.Error())
}

func (o *Orchestrator) scoreHits(item *models.WantedItem, hits []providers.RawHit, priorities map[string]int) []scoring.Candidate {
	var candidates []scoring.Candidate
	for _, hit := range hits {
		cand, err := o.engine.Score(item, hit)
		if err != nil {
			o.logger.WithFields(logrus.Fields{
				"title":  hit.Title,
				"reason": err.Error(),
			}).Debug("Hit rejected")
			continue
		}
		cand.Priority = priorities[hit.Provider]
		candidates = append(candidates, cand)
	}
	return candidates
}

// Dedupe collapses hits that resolve to the same underlying release
// (same normalized title and byte size), keeping the better-seeded copy.
func Dedupe(hits []providers.RawHit) []providers.RawHit {
	type key struct {
		title string
		size  int64
	}

	index := make(map[key]int, len(hits))
	var out []providers.RawHit

	for _, hit := range hits {
		k := key{title: scoring.Normalize(hit.Title), size: hit.SizeBytes}
		if i, seen := index[k]; seen {
			if hit.Seeders > out[i].Seeders {
				out[i] = hit
			}
			continue
		}
		index[k] = len(out)
		out = append(out, hit)
	}

	return out
}
