package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/wazeportal/ingest/config"
	apperrors "github.com/wazeportal/ingest/internal/errors"
	"github.com/wazeportal/ingest/internal/feed"
	"github.com/wazeportal/ingest/internal/logger"
	"github.com/wazeportal/ingest/internal/metrics"
	"github.com/wazeportal/ingest/internal/models"
	"github.com/wazeportal/ingest/internal/reconcile"
	"github.com/wazeportal/ingest/internal/store"
	"github.com/wazeportal/ingest/pkg/utils"
)

// Locker serializes ingestion cycles across processes. A nil Locker means
// single-instance deployment.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Pipeline coordinates concurrent feed fetching and reconciliation
type Pipeline struct {
	store   store.Store
	fetcher feed.Fetcher
	alerts  *reconcile.AlertReconciler
	jams    *reconcile.JamReconciler
	lock    Locker
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	cfg     config.PipelineConfig
	mu      sync.RWMutex
	running bool
}

// New creates a new pipeline instance
func New(st store.Store, fetcher feed.Fetcher, lock Locker, cfg config.PipelineConfig) *Pipeline {
	p := &Pipeline{
		store:   st,
		fetcher: fetcher,
		alerts:  reconcile.NewAlertReconciler(cfg.DuplicateRadiusMeters),
		jams:    reconcile.NewJamReconciler(cfg.JamDeactivateBatchSize),
		lock:    lock,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), int(cfg.RateLimit)),
		sem:     semaphore.NewWeighted(int64(cfg.WorkerCount)),
		cfg:     cfg,
	}

	logger.Info("Pipeline initialized",
		"interval", cfg.Interval,
		"rate_limit", cfg.RateLimit,
		"workers", cfg.WorkerCount,
	)

	return p
}

// Run starts the ingestion cycle loop and runs until context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline already running")
	}
	p.running = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	logger.Info("Starting pipeline")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Initial immediate run
	if err := p.RunCycle(ctx); err != nil {
		logger.Error("Initial ingestion cycle failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Pipeline stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := p.RunCycle(ctx); err != nil {
				logger.Error("Ingestion cycle failed", "error", err)
			}
		}
	}
}

// RunCycle executes one full ingestion cycle over every configured feed URL.
// Feed URLs are processed in parallel bounded by the worker count; a failure
// on one URL never blocks the others.
func (p *Pipeline) RunCycle(ctx context.Context) error {
	if p.lock != nil {
		release, err := p.lock.Acquire(ctx)
		if err != nil {
			if errors.Is(err, apperrors.ErrLockHeld) {
				logger.Info("Ingestion cycle skipped, lock held elsewhere")
				return nil
			}
			return fmt.Errorf("acquire run lock: %w", err)
		}
		defer release()
	}

	runID := uuid.NewString()
	start := time.Now()

	urls, err := p.store.FeedURLs(ctx)
	if err != nil {
		return fmt.Errorf("load feed urls: %w", err)
	}
	if len(urls) == 0 {
		logger.Warn("No feed URLs configured")
		return nil
	}

	logger.Info("Ingestion cycle starting", "run_id", runID, "feeds", len(urls))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var multi apperrors.MultiError

	for _, src := range urls {
		src := src
		// The URL is the identity of a source; a stray space or case
		// difference in feed_urls must not split one source into two.
		src.URL = utils.NormalizeURL(src.URL)
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := p.sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer p.sem.Release(1)

			if err := p.processSource(ctx, src); err != nil {
				logger.Error("Feed processing failed",
					"run_id", runID,
					"source_url", src.URL,
					"partner_id", src.PartnerID,
					"error", err,
				)
				mu.Lock()
				multi.Add(fmt.Errorf("source %s: %w", src.URL, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	duration := time.Since(start)
	logger.Info("Ingestion cycle complete",
		"run_id", runID,
		"feeds", len(urls),
		"errors", len(multi.Errors),
		"duration_ms", duration.Milliseconds(),
	)

	if multi.HasErrors() {
		return multi
	}
	return nil
}

// processSource fetches one feed URL and reconciles its snapshot inside a
// single transaction, so a partial failure leaves the source untouched.
func (p *Pipeline) processSource(ctx context.Context, src models.FeedURL) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.RecordFeedRun(src.URL, time.Since(start))
	}()

	payload, err := p.fetchWithRetry(ctx, src.URL)
	if err != nil {
		metrics.RecordAlertOutcome(src.URL, "fetch_error")
		return err
	}

	now := time.Now().UTC()

	return p.store.InTx(ctx, func(tx store.Store) error {
		var alertStats reconcile.AlertStats
		if len(payload.Alerts) > 0 {
			stats, err := p.alerts.Reconcile(ctx, tx, src, payload.Alerts, now)
			if err != nil {
				return fmt.Errorf("reconcile alerts: %w", err)
			}
			alertStats = stats
			metrics.RecordAlertOutcome(src.URL, "reconciled")
		} else {
			// An absent or empty alerts section carries no alert data for
			// this cycle; the active set stays untouched.
			metrics.RecordAlertOutcome(src.URL, "section_absent")
		}

		if payload.Jams == nil || len(*payload.Jams) == 0 {
			// A missing or empty jams section means the partner currently
			// has no jams anywhere, so every jam of the partner goes
			// inactive, not just this source URL's.
			if err := tx.DeactivateAllJamsForPartner(ctx, src.PartnerID, now); err != nil {
				return fmt.Errorf("deactivate partner jams: %w", err)
			}
			metrics.RecordJamOutcome(src.URL, "section_empty")
			return nil
		}

		jamStats, err := p.jams.Reconcile(ctx, tx, src, *payload.Jams, now)
		if err != nil {
			return fmt.Errorf("reconcile jams: %w", err)
		}
		metrics.RecordJamOutcome(src.URL, "reconciled")
		logger.Debug("Source processed",
			"source_url", src.URL,
			"alerts_inserted", alertStats.Inserted,
			"alerts_deactivated", alertStats.Deactivated,
			"jams_upserted", jamStats.Upserted,
			"jams_deactivated", jamStats.Deactivated,
		)
		return nil
	})
}

// fetchWithRetry retries transient fetch failures with linear backoff.
func (p *Pipeline) fetchWithRetry(ctx context.Context, url string) (*models.FeedResponse, error) {
	var payload *models.FeedResponse
	var err error

	for attempt := 0; attempt <= p.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * p.cfg.RetryDelay
			logger.Debug("Retrying fetch", "url", url, "attempt", attempt, "delay", delay)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		payload, err = p.fetcher.Fetch(ctx, url)
		if err == nil {
			return payload, nil
		}

		logger.Warn("Fetch attempt failed", "url", url, "attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("fetch failed after %d attempts: %w", p.cfg.RetryAttempts+1, err)
}
