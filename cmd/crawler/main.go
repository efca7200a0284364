package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/apt-bargain-aggregator/internal/crawl"
	"github.com/yourorg/apt-bargain-aggregator/internal/env"
	"github.com/yourorg/apt-bargain-aggregator/internal/events"
	"github.com/yourorg/apt-bargain-aggregator/internal/logger"
	"github.com/yourorg/apt-bargain-aggregator/internal/redisx"
	"github.com/yourorg/apt-bargain-aggregator/internal/scheduler"
	"github.com/yourorg/apt-bargain-aggregator/internal/source/appraisal"
	"github.com/yourorg/apt-bargain-aggregator/internal/source/listings"
	"github.com/yourorg/apt-bargain-aggregator/internal/source/transactions"
	"github.com/yourorg/apt-bargain-aggregator/internal/store"
)

func main() {
	dsn := env.Must("PG_DSN")
	transactionsKey := env.Must("TRANSACTIONS_SERVICE_KEY")

	regionItems := env.GetStringList("TARGET_REGIONS")
	regions := crawl.ParseRegions(regionItems)
	if len(regions) == 0 {
		log.Fatal("TARGET_REGIONS must list at least one province:district pair")
	}

	redisAddr := env.Get("REDIS_ADDR", "localhost:6379")
	redisPassword := env.Get("REDIS_PASSWORD", "")
	redisDB := env.GetInt("REDIS_DB", 0)

	st, err := store.Open(dsn)
	if err != nil {
		log.Fatalf("store open error: %v", err)
	}
	defer st.DB.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := st.Ping(ctx); err != nil {
		cancel()
		log.Fatalf("postgres ping error: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		cancel()
		log.Fatalf("postgres migrate error: %v", err)
	}
	cancel()

	rdb := redisx.New(redisAddr, redisPassword, redisDB)
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("redis ping error: %v", err)
	}
	pingCancel()

	pub := events.NewInMemory(256)
	lg := logger.New("")

	sched := &scheduler.Scheduler{
		Store:        st,
		Redis:        rdb,
		Listings:     listings.NewClientWithThrottle(env.GetDuration("LISTINGS_THROTTLE", 1500*time.Millisecond)),
		Appraisal:    appraisal.NewClientWithThrottle(env.GetDuration("APPRAISAL_THROTTLE", 1500*time.Millisecond)),
		Transactions: transactions.NewClientWithThrottle(transactionsKey, env.GetDuration("TRANSACTIONS_THROTTLE", 1*time.Second)),
		Publisher:    pub,
		Log:          lg,
		Regions:      regions,
		Config: scheduler.Config{
			AppraisalCronHH:          env.GetInt("APPRAISAL_CRON_HH", 6),
			AppraisalCronMM:          env.GetInt("APPRAISAL_CRON_MM", 0),
			TransactionsCronHH:       env.GetInt("TRANSACTIONS_CRON_HH", 2),
			ComparisonCronHH:         env.GetInt("COMPARISON_CRON_HH", 7),
			BackfillWeekday:          time.Weekday(env.GetInt("BACKFILL_CRON_WEEKDAY", int(time.Sunday))),
			BackfillCronHH:           env.GetInt("BACKFILL_CRON_HH", 4),
			ListingsInterval:         time.Duration(env.GetInt("LISTINGS_INTERVAL_MIN", 150)) * time.Minute,
			ListingComparisonEnabled: env.GetBool("LISTING_COMPARISON_ENABLED", false),
			FullCrawl: crawl.FullCrawlConfig{
				InterRegionPause: env.GetDuration("FULL_CRAWL_INTER_REGION_PAUSE", 30*time.Second),
				BatchCallLimit:   env.GetInt("BATCH_CALL_LIMIT", 180),
				BatchCooldown:    env.GetDuration("FULL_CRAWL_BATCH_COOLDOWN", 10*time.Minute),
			},
			KBBatch: crawl.KBBatchConfig{
				Concurrency: env.GetInt("BATCH_KB_CONCURRENCY", 5),
			},
			LockTTL: env.GetDuration("SCHEDULER_LOCK_TTL", 2*time.Hour),
		},
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go events.RunAuditLog(rootCtx, pub, lg)

	if err := sched.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		lg.Errorf("scheduler stopped with error: %v", err)
		os.Exit(1)
	}
}
