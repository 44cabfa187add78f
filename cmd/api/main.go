package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cflagle/unified-events/internal/config"
	"github.com/cflagle/unified-events/internal/httpapi"
	"github.com/cflagle/unified-events/internal/linker"
	"github.com/cflagle/unified-events/internal/metrics"
	natspkg "github.com/cflagle/unified-events/internal/nats"
	"github.com/cflagle/unified-events/internal/processor"
	"github.com/cflagle/unified-events/internal/queue"
	"github.com/cflagle/unified-events/internal/registries"
	"github.com/cflagle/unified-events/internal/router"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/cflagle/unified-events/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	logger := logrus.StandardLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
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

	m := metrics.New()
	handlers := httpapi.New(proc, q, rtr, pgStore, m, cfg.Server.DiskPath, cfg.Server.RedirectURL, logger)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(httpapi.CorrelationID())
	engine.Use(httpapi.Logger(logger))
	engine.Use(httpapi.Recovery(logger))
	engine.Use(httpapi.CORS())
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.Register(engine, cfg.Server.APIKeys)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("addr", addr).Info("starting intake API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down intake API")

	if natsClient != nil {
		natsClient.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("intake API stopped")
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
	sqlDB.SetMaxOpenConns(100)
	return db, nil
}

// initIndex connects the optional Redis accelerator. A connection failure
// here is a warning, never fatal: the Index is advisory-only.
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
	logger.Info("redis connected for Index acceleration")
	return store.NewIndex(client, logger)
}

// initNATS connects the optional wake-up signal. A connection failure
// here is a warning, never fatal: workers fall back to their poll interval.
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
