// Package scheduler runs the five collection jobs on their configured
// cadence: three daily HH:MM jobs, one weekly maintenance job, and one
// interval job, each single-instance (a Redis SetNX lock collapses
// missed/overlapping runs), generalizing teacher's own ticker-based
// BulkJob.Run loop to multiple named jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yourorg/apt-bargain-aggregator/internal/comparison"
	"github.com/yourorg/apt-bargain-aggregator/internal/crawl"
	"github.com/yourorg/apt-bargain-aggregator/internal/events"
	"github.com/yourorg/apt-bargain-aggregator/internal/logger"
	"github.com/yourorg/apt-bargain-aggregator/internal/redisx"
	"github.com/yourorg/apt-bargain-aggregator/internal/source/appraisal"
	"github.com/yourorg/apt-bargain-aggregator/internal/source/listings"
	"github.com/yourorg/apt-bargain-aggregator/internal/source/transactions"
	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

// Config carries the cron-like settings from spec §4.8/§6.
type Config struct {
	AppraisalCronHH, AppraisalCronMM int           // default 6, 0
	TransactionsCronHH               int           // default 2 (minute fixed 0)
	ComparisonCronHH                 int           // default 7 (minute fixed 0)
	ListingsInterval                 time.Duration // default 150m
	ListingComparisonEnabled         bool
	FullCrawl                        crawl.FullCrawlConfig
	KBBatch                          crawl.KBBatchConfig
	LockTTL                          time.Duration // default 2h, covers the longest job

	// BackfillWeekday/BackfillCronHH schedule the total_units maintenance
	// pass (spec §14 supplemented feature); it runs once a week, off the
	// hot path, since it only ever fills a column the other jobs leave null.
	BackfillWeekday time.Weekday // default time.Sunday
	BackfillCronHH  int          // default 4 (minute fixed 0)
}

func (c Config) withDefaults() Config {
	if c.ListingsInterval <= 0 {
		c.ListingsInterval = 150 * time.Minute
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 2 * time.Hour
	}
	return c
}

// Scheduler owns the clients and store every job needs, plus the Redis
// lock client used for single-instance enforcement.
type Scheduler struct {
	Store        *store.Store
	Redis        *redisx.Client
	Listings     *listings.Client
	Appraisal    *appraisal.Client
	Transactions *transactions.Client
	Publisher    events.Publisher
	Log          *logger.Logger
	Regions      []crawl.Region
	Config       Config
}

// Run blocks until ctx is cancelled, ticking once a minute to check which
// daily HH:MM jobs are due and driving the listings interval ticker
// separately. Cooperative shutdown: no new job invocation starts once
// ctx is done; an in-flight job's own ctx-aware loops unwind on their own.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Config = s.Config.withDefaults()
	s.Log.Infof("scheduler starting: %d region(s), listings every %s", len(s.Regions), s.Config.ListingsInterval)

	minuteTicker := time.NewTicker(time.Minute)
	defer minuteTicker.Stop()
	listingsTicker := time.NewTicker(s.Config.ListingsInterval)
	defer listingsTicker.Stop()

	lastRun := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			s.Log.Infof("scheduler stopping: %v", ctx.Err())
			return nil
		case now := <-minuteTicker.C:
			s.maybeRunDaily(ctx, "appraisal_collection", lastRun, now, s.Config.AppraisalCronHH, s.Config.AppraisalCronMM, s.runAppraisalCollection)
			s.maybeRunDaily(ctx, "transactions_collection", lastRun, now, s.Config.TransactionsCronHH, 0, s.runTransactionsCollection)
			s.maybeRunDaily(ctx, "comparison_rebuild", lastRun, now, s.Config.ComparisonCronHH, 0, s.runComparisonRebuild)
			s.maybeRunWeekly(ctx, "total_units_backfill", lastRun, now, s.Config.BackfillWeekday, s.Config.BackfillCronHH, s.runBackfill)
		case <-listingsTicker.C:
			s.runLocked(ctx, "listings_crawl", s.runListingsCrawl)
		}
	}
}

func (s *Scheduler) maybeRunDaily(ctx context.Context, name string, lastRun map[string]time.Time, now time.Time, hh, mm int, job func(context.Context) error) {
	if now.Hour() != hh || now.Minute() != mm {
		return
	}
	if last, ok := lastRun[name]; ok && now.Sub(last) < 23*time.Hour {
		return
	}
	lastRun[name] = now
	s.runLocked(ctx, name, job)
}

func (s *Scheduler) maybeRunWeekly(ctx context.Context, name string, lastRun map[string]time.Time, now time.Time, weekday time.Weekday, hh int, job func(context.Context) error) {
	if now.Weekday() != weekday || now.Hour() != hh || now.Minute() != 0 {
		return
	}
	if last, ok := lastRun[name]; ok && now.Sub(last) < 6*24*time.Hour {
		return
	}
	lastRun[name] = now
	s.runLocked(ctx, name, job)
}

// runLocked acquires the per-job Redis lock before running; a job already
// in flight (lock present) is skipped, not queued (spec §5 "refuses to
// start a new invocation of a job while the previous one is running").
func (s *Scheduler) runLocked(ctx context.Context, name string, job func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	lockKey := "scheduler:lock:" + name
	acquired, err := s.Redis.SetNX(ctx, lockKey, "1", s.Config.LockTTL)
	if err != nil {
		s.Log.Errorf("scheduler: %s: lock error: %v", name, err)
		return
	}
	if !acquired {
		s.Log.Infof("scheduler: %s: previous invocation still running, skipping", name)
		return
	}
	defer s.Redis.Rdb.Del(ctx, lockKey)

	start := time.Now()
	if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.Log.Errorf("scheduler: %s: %v", name, err)
		return
	}
	s.Log.Infof("scheduler: %s completed in %s", name, time.Since(start))
}

func (s *Scheduler) runAppraisalCollection(ctx context.Context) error {
	summary, err := crawl.KBBatchCrawl(ctx, s.Store, s.Appraisal, s.Log, s.Config.KBBatch)
	if err != nil {
		return fmt.Errorf("kb batch: %w", err)
	}
	s.Log.Infof("appraisal collection: %d group(s), %d complex(es) priced, %d error(s)", summary.GroupsProcessed, summary.ComplexesPriced, summary.Errors)
	return nil
}

func (s *Scheduler) runTransactionsCollection(ctx context.Context) error {
	now := time.Now()
	current := now.Format("200601")
	previous := now.AddDate(0, -1, 0).Format("200601")
	summary, err := crawl.TransactionsBatchCrawl(ctx, s.Store, s.Transactions, s.Log, s.Publisher, s.Regions, []string{current, previous})
	if err != nil {
		return fmt.Errorf("transactions batch: %w", err)
	}
	s.Log.Infof("transactions collection: fetched=%d saved=%d duplicates=%d auto_created=%d", summary.Fetched, summary.Saved, summary.Duplicates, summary.AutoCreated)
	return nil
}

func (s *Scheduler) runComparisonRebuild(ctx context.Context) error {
	engine := comparison.NewEngine(s.Store)
	summary, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("comparison engine: %w", err)
	}
	s.Log.Infof("comparison rebuild: updated=%d skipped=%d", summary.Updated, summary.Skipped)
	if s.Publisher != nil {
		s.Publisher.PublishComparisonUpdated(ctx, events.ComparisonUpdated{Updated: summary.Updated, Skipped: summary.Skipped})
	}
	return nil
}

func (s *Scheduler) runBackfill(ctx context.Context) error {
	filled, err := crawl.BackfillTotalUnitsCrawl(ctx, s.Store, s.Appraisal, s.Log)
	if err != nil {
		return fmt.Errorf("total_units backfill: %w", err)
	}
	s.Log.Infof("total_units backfill: filled=%d", filled)
	return nil
}

// runListingsCrawl runs Full on the first-ever invocation (empty complexes
// table) and Incremental otherwise (spec §4.6/§4.8).
func (s *Scheduler) runListingsCrawl(ctx context.Context) error {
	empty, err := s.Store.IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("check store empty: %w", err)
	}
	if empty {
		summary, err := crawl.FullListingsCrawl(ctx, s.Store, s.Listings, s.Log, s.Regions, s.Config.FullCrawl)
		if err != nil {
			return fmt.Errorf("full listings crawl: %w", err)
		}
		s.Log.Infof("listings crawl (full): complexes=%d listings=%d deactivated=%d", summary.ComplexesSeen, summary.ListingsUpserted, summary.Deactivated)
		return nil
	}
	summary, err := crawl.IncrementalListingsCrawl(ctx, s.Store, s.Listings, s.Log, s.Regions)
	if err != nil {
		return fmt.Errorf("incremental listings crawl: %w", err)
	}
	s.Log.Infof("listings crawl (incremental): complexes=%d listings=%d deactivated=%d skipped_same=%d", summary.ComplexesSeen, summary.ListingsUpserted, summary.Deactivated, summary.SkippedSame)

	if s.Config.ListingComparisonEnabled {
		s.Log.Infof("listings crawl: per-listing comparison projection enabled, affected regions will be served on read via PerListingProjection")
	}
	return nil
}
