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

// cleanup [--task=queue|stuck|all] [--days=N] [--dry-run]
//
// queue deletes terminal queue jobs older than --days; stuck recovers
// leases abandoned by crashed workers (locked_until already past, no age
// threshold needed). all runs both.
func main() {
	task := flag.String("task", "all", "cleanup task to run: queue, stuck, all")
	days := flag.Int("days", 30, "age threshold in days for terminal job cleanup")
	dryRun := flag.Bool("dry-run", false, "report what would be cleaned without deleting")
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

	switch *task {
	case "queue":
		runQueueCleanup(ctx, q, *days, *dryRun, logger)
	case "stuck":
		runStuckReap(ctx, q, *dryRun, logger)
	case "all":
		runQueueCleanup(ctx, q, *days, *dryRun, logger)
		runStuckReap(ctx, q, *dryRun, logger)
	default:
		log.Fatalf("unknown --task %q, expected queue, stuck, or all", *task)
	}
}

func runQueueCleanup(ctx context.Context, q *queue.Queue, days int, dryRun bool, logger *logrus.Logger) {
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	if dryRun {
		logger.WithField("cutoff", cutoff).Info("dry-run: would delete terminal jobs older than cutoff")
		return
	}
	removed, err := q.Cleanup(ctx, cutoff)
	if err != nil {
		log.Fatalf("queue cleanup failed: %v", err)
	}
	logger.WithField("removed", removed).Info("queue cleanup complete")
}

func runStuckReap(ctx context.Context, q *queue.Queue, dryRun bool, logger *logrus.Logger) {
	if dryRun {
		logger.Info("dry-run: would reap leases past locked_until")
		return
	}
	recovered, err := q.ReapStuck(ctx)
	if err != nil {
		log.Fatalf("stuck lease reap failed: %v", err)
	}
	logger.WithField("recovered", recovered).Info("stuck lease reap complete")
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
