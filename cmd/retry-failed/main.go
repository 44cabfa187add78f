package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/cflagle/unified-events/internal/config"
	"github.com/cflagle/unified-events/internal/queue"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// retry-failed [--hours=N] [--platform=code] [--limit=N] [--dry-run]
//
// Re-queues terminal-failed jobs from the last --hours that still have
// retry budget remaining, optionally scoped to one platform. An
// operator-triggered recovery path, distinct from the worker's own
// exponential-backoff retry loop.
func main() {
	hours := flag.Int("hours", 24, "look back this many hours for failed jobs")
	platform := flag.String("platform", "", "restrict to one platform code (empty = all platforms)")
	limit := flag.Int("limit", 1000, "maximum number of jobs to retry in one run")
	dryRun := flag.Bool("dry-run", false, "log the selected filters without retrying any jobs")
	flag.Parse()

	logger := logrus.StandardLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	pgStore := store.NewPostgresStore(db)
	q := queue.New(pgStore, nil, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	since := time.Now().Add(-time.Duration(*hours) * time.Hour)

	if *dryRun {
		logger.WithFields(logrus.Fields{
			"since": since, "platform": *platform, "limit": *limit,
		}).Info("dry-run: would retry matching failed jobs")
		return
	}

	retried, err := q.RetryFailed(ctx, since, *platform, *limit)
	if err != nil {
		log.Fatalf("retry failed: %v", err)
	}
	logger.WithFields(logrus.Fields{
		"retried": retried, "since": since, "platform": *platform,
	}).Info("retry-failed complete")
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{}
	if cfg.App.Environment == "production" {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	} else {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	return db, nil
}
