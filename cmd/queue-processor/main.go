package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/cflagle/unified-events/internal/adapter"
	"github.com/cflagle/unified-events/internal/alert"
	"github.com/cflagle/unified-events/internal/config"
	"github.com/cflagle/unified-events/internal/linker"
	"github.com/cflagle/unified-events/internal/metrics"
	natspkg "github.com/cflagle/unified-events/internal/nats"
	"github.com/cflagle/unified-events/internal/processor"
	"github.com/cflagle/unified-events/internal/queue"
	"github.com/cflagle/unified-events/internal/registries"
	"github.com/cflagle/unified-events/internal/router"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/cflagle/unified-events/internal/validator"
	"github.com/cflagle/unified-events/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// queue-processor [--once] [--workers=N] [--batch-size=N] [--sleep=N] [--max-runtime=N]
func main() {
	once := flag.Bool("once", false, "process batches until a lease returns no jobs, then exit")
	workers := flag.Int("workers", 0, "number of worker goroutines (0 = config default)")
	batchSize := flag.Int("batch-size", 0, "jobs leased per batch (0 = config default)")
	sleep := flag.Int("sleep", 0, "idle poll interval in seconds (0 = config default)")
	maxRuntime := flag.Int("max-runtime", 0, "maximum runtime in seconds before graceful exit (0 = unbounded)")
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

	idx := initIndex(cfg, logger)
	natsClient := initNATS(cfg, logger)

	ctx := context.Background()
	rtr, err := router.New(ctx, pgStore)
	if err != nil {
		log.Fatalf("failed to initialize router: %v", err)
	}

	bots := registries.NewBotRegistry(pgStore, logger)
	emails := registries.NewEmailRegistry(pgStore, cfg.Validation.CacheDays, logger)
	v := validator.New(bots, emails, validator.Config{})
	lk := linker.New(pgStore, pgStore, logger)

	var wakeup queue.WakeupPublisher
	if natsClient != nil {
		wakeup = natsClient
	}
	q := queue.New(pgStore, idx, wakeup, logger)
	proc := processor.New(pgStore, pgStore, pgStore, cfg.Validation.DailyLimit, v, lk, rtr, q, logger)
	adapters := adapter.NewRegistry()
	m := metrics.New()

	notifier, err := alert.New(ctx, alert.Config{
		AWSRegion:          cfg.AWS.Region,
		AWSAccessKeyID:     cfg.AWS.AccessKeyID,
		AWSSecretAccessKey: cfg.AWS.SecretAccessKey,
		SESFrom:            cfg.Email.SESFrom,
		SESFromName:        cfg.Email.SESFromName,
		AdminEmail:         cfg.App.AdminEmail,
		FCMProjectID:       cfg.Push.FCMProjectID,
		FCMCredentials:     cfg.Push.FCMCredentials,
		FCMOpsTopic:        cfg.Push.FCMOpsTopic,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("alert notifier init failed, ops alerts disabled")
		notifier = nil
	}

	workerCfg := worker.Config{
		Workers:               cfg.Worker.Workers,
		BatchSize:             cfg.Worker.BatchSize,
		LeaseSeconds:          cfg.Worker.LeaseSeconds,
		SleepInterval:         cfg.Worker.SleepInterval,
		ReaperInterval:        cfg.Worker.ReaperInterval,
		StuckRecoveryAlertMin: cfg.Worker.StuckRecoveryAlertMin,
		Once:                  *once,
	}
	if *workers > 0 {
		workerCfg.Workers = *workers
	}
	if *batchSize > 0 {
		workerCfg.BatchSize = *batchSize
	}
	if *sleep > 0 {
		workerCfg.SleepInterval = time.Duration(*sleep) * time.Second
	}
	if *maxRuntime > 0 {
		workerCfg.MaxRuntime = time.Duration(*maxRuntime) * time.Second
	}

	pool := worker.New(workerCfg, q, proc, rtr, adapters, emails, m, notifier, natsClient, logger)

	runCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"workers": workerCfg.Workers, "batch_size": workerCfg.BatchSize, "once": workerCfg.Once,
	}).Info("starting queue processor")
	pool.Run(runCtx)
	logger.Info("queue processor stopped")
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
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	return db, nil
}

func initIndex(cfg *config.Config, logger *logrus.Logger) *store.Index {
	if cfg.Redis.Addr() == "" {
		return store.NewIndex(nil, logger)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.WithError(err).Warn("redis unreachable, Index running in degraded no-op mode")
		return store.NewIndex(nil, logger)
	}
	return store.NewIndex(client, logger)
}

func initNATS(cfg *config.Config, logger *logrus.Logger) *natspkg.Client {
	if cfg.NATS.URL == "" {
		return nil
	}
	client, err := natspkg.NewClient(cfg.NATS.URL, cfg.NATS.MaxReconnects, cfg.NATS.ReconnectWait, logger)
	if err != nil {
		logger.WithError(err).Warn("nats unreachable, wake-up signal disabled")
		return nil
	}
	return client
}
