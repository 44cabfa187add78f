// Package worker drives the lease/execute loop: Queue.LeaseBatch →
// Processor.ExecuteJob → Adapter.Send → Queue.Complete/FailOrRetry/Skip,
// with a ticker-driven multi-worker pool and signal-driven graceful
// shutdown.
package worker

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/cflagle/unified-events/internal/adapter"
	"github.com/cflagle/unified-events/internal/alert"
	"github.com/cflagle/unified-events/internal/metrics"
	"github.com/cflagle/unified-events/internal/models"
	natspkg "github.com/cflagle/unified-events/internal/nats"
	"github.com/cflagle/unified-events/internal/processor"
	"github.com/cflagle/unified-events/internal/queue"
	"github.com/cflagle/unified-events/internal/registries"
	"github.com/cflagle/unified-events/internal/router"
	"github.com/sirupsen/logrus"
)

// Config controls one worker pool's shape and timing, mirroring the
// queue-processor CLI's flags.
type Config struct {
	Workers               int
	BatchSize             int
	LeaseSeconds          int
	SleepInterval         time.Duration
	MaxRuntime            time.Duration // 0 = unbounded
	Once                  bool
	ReaperInterval        time.Duration
	StuckRecoveryAlertMin int // alert threshold: jobs recovered in one reaper pass
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.LeaseSeconds <= 0 {
		c.LeaseSeconds = models.DefaultLeaseSecs
	}
	if c.SleepInterval <= 0 {
		c.SleepInterval = 5 * time.Second
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = 60 * time.Second
	}
	if c.StuckRecoveryAlertMin <= 0 {
		c.StuckRecoveryAlertMin = 25
	}
}

// Pool runs Config.Workers worker loops plus a reaper goroutine.
type Pool struct {
	cfg       Config
	queue     *queue.Queue
	proc      *processor.Processor
	router    *router.Router
	adapters  *adapter.Registry
	emails    *registries.EmailRegistry
	metrics   *metrics.Metrics
	alerts    *alert.Notifier
	wakeup    *natspkg.Client
	logger    *logrus.Entry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(
	cfg Config,
	q *queue.Queue,
	proc *processor.Processor,
	r *router.Router,
	adapters *adapter.Registry,
	emails *registries.EmailRegistry,
	m *metrics.Metrics,
	alerts *alert.Notifier,
	wakeup *natspkg.Client,
	logger *logrus.Logger,
) *Pool {
	cfg.applyDefaults()
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pool{
		cfg: cfg, queue: q, proc: proc, router: r, adapters: adapters,
		emails: emails, metrics: m, alerts: alerts, wakeup: wakeup,
		logger: logger.WithField("component", "worker"),
		stopCh: make(chan struct{}),
	}
}

// WorkerID derives a lease holder identity from host+pid+random.
func WorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%04x", host, os.Getpid(), rand.Intn(0x10000))
}

// Run starts the pool and blocks until ctx is cancelled (SIGINT/SIGTERM,
// handled by the caller) or, in --once mode, until every worker has
// drained one empty batch.
func (p *Pool) Run(ctx context.Context) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if p.cfg.MaxRuntime > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.MaxRuntime)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var sub *natspkg.Subscription
	wake := make(chan struct{}, 1)
	if p.wakeup != nil && !p.cfg.Once {
		s, err := p.wakeup.SubscribeJobReady(func() {
			select {
			case wake <- struct{}{}:
			default:
			}
		})
		if err != nil {
			p.logger.WithError(err).Warn("wake-up subscription failed, falling back to poll-only")
		}
		sub = s
	}
	if sub != nil {
		defer sub.Unsubscribe()
	}

	if !p.cfg.Once {
		p.wg.Add(1)
		go p.reaperLoop(runCtx)
	}

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.runWorker(runCtx, WorkerID(), wake)
	}

	p.wg.Wait()
}

// Stop signals every worker and the reaper to exit without leasing new
// work. A worker finishes the job it is executing and releases the rest of
// its batch.
func (p *Pool) Stop() {
	close(p.stopCh)
}

func (p *Pool) runWorker(ctx context.Context, workerID string, wake <-chan struct{}) {
	defer p.wg.Done()
	log := p.logger.WithField("worker_id", workerID)
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopped: context cancelled")
			return
		case <-p.stopCh:
			log.Info("worker stopped: shutdown requested")
			return
		default:
		}

		processed := p.runBatch(ctx, workerID)
		if p.cfg.Once && processed == 0 {
			log.Info("worker stopped: --once pass complete")
			return
		}
		if p.cfg.Once {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-wake:
		case <-time.After(p.cfg.SleepInterval):
		}
	}
}

// runBatch leases and executes one batch, returning how many jobs it saw.
// On shutdown mid-batch it releases every job it has not yet executed.
func (p *Pool) runBatch(ctx context.Context, workerID string) int {
	if backlog, err := p.queue.CountPending(ctx); err == nil && p.metrics != nil {
		p.metrics.QueueBacklogPending.Set(float64(backlog))
	}

	jobs, err := p.queue.LeaseBatch(ctx, workerID, p.cfg.BatchSize, p.cfg.LeaseSeconds)
	if err != nil {
		p.logger.WithError(err).Error("lease batch failed")
		return 0
	}
	if len(jobs) == 0 {
		return 0
	}
	if p.metrics != nil {
		p.metrics.JobsLeased.WithLabelValues(workerID).Add(float64(len(jobs)))
	}

	for i, job := range jobs {
		select {
		case <-ctx.Done():
			p.releaseRemaining(context.Background(), jobs[i:], workerID)
			return len(jobs)
		case <-p.stopCh:
			p.releaseRemaining(context.Background(), jobs[i:], workerID)
			return len(jobs)
		default:
		}
		p.executeOne(ctx, job, workerID)
		// Yield briefly between jobs so a slow/unresponsive store doesn't
		// turn the batch loop into a tight spin.
		time.Sleep(100 * time.Millisecond)
	}
	return len(jobs)
}

// quotaObserver combines the alert and metrics sinks into the single
// observer Processor.ExecuteJob expects for daily quota checks.
type quotaObserver struct {
	alerts  *alert.Notifier
	metrics *metrics.Metrics
}

func (o quotaObserver) AlertQuotaThreshold(ctx context.Context, platformCode string, count, limit int) {
	if o.alerts != nil {
		o.alerts.AlertQuotaThreshold(ctx, platformCode, count, limit)
	}
}

func (o quotaObserver) ObserveQuotaUsage(platformCode string, count, limit int) {
	o.metrics.SetValidationQuotaUsage(platformCode, count, limit)
}

func (p *Pool) executeOne(ctx context.Context, job models.QueueJob, workerID string) {
	platformCode := p.platformCode(job.PlatformID)
	status, err := p.proc.ExecuteJob(ctx, job, workerID, p.adapters, p.emails, quotaObserver{alerts: p.alerts, metrics: p.metrics})
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"job_id": job.ID, "event_id": job.EventID, "platform_id": job.PlatformID,
		}).Error("job execution error")
	}
	if p.metrics == nil {
		return
	}
	switch status {
	case processor.ExecCompleted:
		p.metrics.JobsCompleted.WithLabelValues(platformCode).Inc()
	case processor.ExecRetried:
		p.metrics.JobsRetried.WithLabelValues(platformCode).Inc()
	case processor.ExecFailed:
		p.metrics.JobsFailed.WithLabelValues(platformCode).Inc()
	case processor.ExecSkipped:
		p.metrics.JobsSkipped.WithLabelValues(platformCode, "precondition_unmet").Inc()
	}
}

func (p *Pool) platformCode(id int64) string {
	if platform := p.router.GetPlatformByID(id); platform != nil {
		return platform.PlatformCode
	}
	return "unknown"
}

func (p *Pool) releaseRemaining(ctx context.Context, jobs []models.QueueJob, workerID string) {
	for _, job := range jobs {
		if err := p.queue.Release(ctx, job); err != nil {
			p.logger.WithError(err).WithField("job_id", job.ID).Error("release on shutdown failed")
		}
	}
	p.logger.WithField("count", len(jobs)).WithField("worker_id", workerID).Info("released unprocessed jobs on shutdown")
}

// reaperLoop periodically recovers stuck leases, independent of any one
// worker's batch boundary. It doesn't need to run in the same process as
// the workers it reaps for — here it simply runs alongside the pool.
func (p *Pool) reaperLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.runReap(ctx)
		}
	}
}

func (p *Pool) runReap(ctx context.Context) {
	recovered, err := p.queue.ReapStuck(ctx)
	if err != nil {
		p.logger.WithError(err).Error("reap stuck leases failed")
		return
	}
	if recovered == 0 {
		return
	}
	p.logger.WithField("recovered", recovered).Info("recovered stuck leases")
	if p.alerts != nil && recovered >= int64(p.cfg.StuckRecoveryAlertMin) {
		p.alerts.AlertStuckLeaseRecovery(ctx, recovered, p.cfg.StuckRecoveryAlertMin)
	}
}
