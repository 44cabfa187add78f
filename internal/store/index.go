package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Index is a best-effort accelerator over the Store. Every method degrades
// to a no-op (reporting a cache miss) when Redis is unreachable — nothing
// in the router or queue may depend on the Index for correctness, only for
// latency.
type Index struct {
	client *redis.Client
	logger *logrus.Entry
}

// NewIndex wraps an already-connected *redis.Client. A nil client is valid
// and turns every operation into a permanent miss.
func NewIndex(client *redis.Client, logger *logrus.Logger) *Index {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Index{client: client, logger: logger.WithField("component", "index")}
}

const (
	backlogKeyPrefix   = "ue:backlog:platform:"
	quotaKeyPrefix     = "ue:quota:"
	pendingLeaseZSet   = "ue:pending:lease_order"
)

// IncrBacklog adjusts the cached pending-job count for a platform. Called
// alongside (never instead of) the authoritative Store counts.
func (idx *Index) IncrBacklog(ctx context.Context, platformID int64, delta int64) {
	if idx.client == nil {
		return
	}
	key := fmt.Sprintf("%s%d", backlogKeyPrefix, platformID)
	if err := idx.client.IncrBy(ctx, key, delta).Err(); err != nil {
		idx.logger.WithError(err).Debug("index backlog incr failed")
	}
}

// Backlog returns the cached pending count for a platform, or (0, false) on
// a miss — callers must fall back to Store.CountPendingByPlatform.
func (idx *Index) Backlog(ctx context.Context, platformID int64) (int64, bool) {
	if idx.client == nil {
		return 0, false
	}
	key := fmt.Sprintf("%s%d", backlogKeyPrefix, platformID)
	val, err := idx.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, false
	}
	if err != nil {
		idx.logger.WithError(err).Debug("index backlog get failed")
		return 0, false
	}
	return val, true
}

// CacheQuota stores a copy of the day's validation-quota counter with a
// 36h TTL. The Processor's quota check does not call it; it reads and
// increments the Store's counter directly.
func (idx *Index) CacheQuota(ctx context.Context, date, platformCode string, count int) {
	if idx.client == nil {
		return
	}
	key := quotaKeyPrefix + date + ":" + platformCode
	if err := idx.client.Set(ctx, key, count, 36*time.Hour).Err(); err != nil {
		idx.logger.WithError(err).Debug("index quota cache set failed")
	}
}

// CachedQuota returns the cached count, or (0, false) on a miss.
func (idx *Index) CachedQuota(ctx context.Context, date, platformCode string) (int, bool) {
	if idx.client == nil {
		return 0, false
	}
	key := quotaKeyPrefix + date + ":" + platformCode
	val, err := idx.client.Get(ctx, key).Int()
	if err != nil {
		return 0, false
	}
	return val, true
}

// MarkReady records a job's process_after time in a sorted set so the
// worker can peek the next wake-up time without hitting Postgres. This is
// advisory only: LeaseBatch always re-validates against the Store.
func (idx *Index) MarkReady(ctx context.Context, jobID int64, processAfter time.Time) {
	if idx.client == nil {
		return
	}
	idx.client.ZAdd(ctx, pendingLeaseZSet, redis.Z{
		Score:  float64(processAfter.Unix()),
		Member: jobID,
	})
}

// NextReadyAt returns the earliest process_after time tracked in the index.
// The worker loop does not call it; it sleeps its poll interval or wakes
// on a NATS signal.
func (idx *Index) NextReadyAt(ctx context.Context) (time.Time, bool) {
	if idx.client == nil {
		return time.Time{}, false
	}
	res, err := idx.client.ZRangeWithScores(ctx, pendingLeaseZSet, 0, 0).Result()
	if err != nil || len(res) == 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(res[0].Score), 0), true
}

// ForgetReady drops a job from the ready-set once it has been leased,
// completed, or skipped.
func (idx *Index) ForgetReady(ctx context.Context, jobID int64) {
	if idx.client == nil {
		return
	}
	idx.client.ZRem(ctx, pendingLeaseZSet, jobID)
}
