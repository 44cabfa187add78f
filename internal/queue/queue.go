// Package queue implements the durable leased work queue: enqueue, leased
// batch dequeue, release, terminal transitions, sibling cancellation, and
// the stuck-lease reaper.
package queue

import (
	"context"
	"time"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// WakeupPublisher is the queue's best-effort low-latency signal. It is
// never required for correctness — the Worker always falls back to its
// own poll interval.
type WakeupPublisher interface {
	PublishJobReady(eventID uuid.UUID)
}

type noopWakeup struct{}

func (noopWakeup) PublishJobReady(uuid.UUID) {}

// Queue is the orchestration layer over the Store's queue primitives plus
// the optional Redis Index and NATS wake-up signal.
type Queue struct {
	store   store.QueueStore
	index   *store.Index
	wakeup  WakeupPublisher
	logger  *logrus.Entry
}

func New(s store.QueueStore, idx *store.Index, wakeup WakeupPublisher, logger *logrus.Logger) *Queue {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if wakeup == nil {
		wakeup = noopWakeup{}
	}
	return &Queue{store: s, index: idx, wakeup: wakeup, logger: logger.WithField("component", "queue")}
}

// Enqueue inserts a pending Job for (eventID, platformID), due at
// now+delay. Priority jobs (the validation-first path) sort ahead of
// ordinary jobs at the same process_after.
func (q *Queue) Enqueue(ctx context.Context, eventID uuid.UUID, platformID int64, delay time.Duration, priority bool, maxRetries int) (*models.QueueJob, error) {
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}
	job := &models.QueueJob{
		EventID:      eventID,
		PlatformID:   platformID,
		Status:       models.JobStatusPending,
		MaxRetries:   maxRetries,
		IsPriority:   priority,
		ProcessAfter: time.Now().Add(delay),
	}
	if err := q.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	if q.index != nil {
		q.index.MarkReady(ctx, job.ID, job.ProcessAfter)
		q.index.IncrBacklog(ctx, platformID, 1)
	}
	q.wakeup.PublishJobReady(eventID)
	return job, nil
}

// LeaseBatch claims up to batchSize ready jobs for workerID through the
// authoritative conditional Store query. The Index is not read here; the
// leased jobs are only removed from it afterwards.
func (q *Queue) LeaseBatch(ctx context.Context, workerID string, batchSize, leaseSecs int) ([]models.QueueJob, error) {
	jobs, err := q.store.LeaseBatch(ctx, workerID, batchSize, leaseSecs, time.Now())
	if err != nil {
		return nil, err
	}
	if q.index != nil {
		for _, j := range jobs {
			q.index.ForgetReady(ctx, j.ID)
		}
	}
	return jobs, nil
}

// Release returns a job to pending, e.g. when a worker is shutting down
// mid-batch and must give up its unprocessed leases.
func (q *Queue) Release(ctx context.Context, job models.QueueJob) error {
	if err := q.store.ReleaseJob(ctx, job.ID); err != nil {
		return err
	}
	if q.index != nil {
		q.index.MarkReady(ctx, job.ID, time.Now())
	}
	return nil
}

// Complete terminally completes a job held by workerID. Attempts is bumped
// here too: it counts every send the job made, not just the ones that
// triggered a retry, so a job that succeeds on its third send ends with
// attempts=3.
func (q *Queue) Complete(ctx context.Context, job models.QueueJob, workerID string, responseCode int, responseBody string, revenue *float64, revenueStatus string) error {
	if err := q.store.CompleteJob(ctx, job.ID, workerID, responseCode, responseBody, revenue, revenueStatus); err != nil {
		return err
	}
	if q.index != nil {
		q.index.IncrBacklog(ctx, job.PlatformID, -1)
	}
	return nil
}

// FailOrRetry decides whether to reschedule a failed job with exponential
// backoff or terminally fail it, based on remaining retry budget. Returns
// true if the job was retried (not terminally failed). The backoff is
// computed from the job's attempts *before* RetryJob's increment: the
// first failure (attempts=0) schedules the minimum 5-minute delay, the
// second (attempts=1) schedules 10 minutes, and so on.
func (q *Queue) FailOrRetry(ctx context.Context, job models.QueueJob, workerID string, lastErr string, responseCode int, responseBody string) (retried bool, err error) {
	if job.CanRetry() {
		processAfter := models.NextBackoff(time.Now(), job.Attempts)
		if err := q.store.RetryJob(ctx, job.ID, workerID, lastErr, responseCode, responseBody, processAfter); err != nil {
			return false, err
		}
		if q.index != nil {
			q.index.MarkReady(ctx, job.ID, processAfter)
		}
		return true, nil
	}
	if err := q.store.FailJob(ctx, job.ID, workerID, lastErr, responseCode, responseBody); err != nil {
		return false, err
	}
	if q.index != nil {
		q.index.IncrBacklog(ctx, job.PlatformID, -1)
	}
	return false, nil
}

// Skip terminally skips a job, e.g. because its platform's conditions are
// no longer met or a sibling's validation verdict cancelled it.
func (q *Queue) Skip(ctx context.Context, job models.QueueJob, reason string) error {
	if err := q.store.SkipJob(ctx, job.ID, reason); err != nil {
		return err
	}
	if q.index != nil {
		q.index.IncrBacklog(ctx, job.PlatformID, -1)
	}
	return nil
}

// CancelSiblings skips every other non-terminal job for eventID, reporting
// the number actually affected (rows-affected, not a follow-up count
// query, which would race against concurrent workers).
func (q *Queue) CancelSiblings(ctx context.Context, eventID uuid.UUID, exceptJobID int64, reason string) (int64, error) {
	return q.store.CancelSiblings(ctx, eventID, exceptJobID, reason)
}

// ReapStuck recovers leases abandoned by crashed workers: jobs whose
// locked_until has passed are returned to pending.
func (q *Queue) ReapStuck(ctx context.Context) (int64, error) {
	return q.store.ReapStuck(ctx, time.Now())
}

// RetryFailed re-queues terminal-failed jobs in the window that still have
// retry budget; an operator-triggered recovery, not part of the normal
// state machine.
func (q *Queue) RetryFailed(ctx context.Context, since time.Time, platformCode string, limit int) (int64, error) {
	return q.store.RetryFailed(ctx, since, platformCode, limit)
}

// Cleanup deletes terminal jobs older than olderThan.
func (q *Queue) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	return q.store.Cleanup(ctx, olderThan)
}

// AppendLog records one adapter attempt for auditability.
func (q *Queue) AppendLog(ctx context.Context, l *models.ProcessingLog) error {
	return q.store.AppendLog(ctx, l)
}

// CountPending sums pending jobs across all platforms, for the
// queue_backlog_pending gauge sampled once per batch.
func (q *Queue) CountPending(ctx context.Context) (int64, error) {
	byPlatform, err := q.store.CountPendingByPlatform(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, n := range byPlatform {
		total += n
	}
	return total, nil
}
