package worker

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/cflagle/unified-events/internal/metrics"
	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/queue"
	"github.com/cflagle/unified-events/internal/router"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var c Config
	c.applyDefaults()
	assert.Equal(t, 1, c.Workers)
	assert.Equal(t, 100, c.BatchSize)
	assert.Equal(t, models.DefaultLeaseSecs, c.LeaseSeconds)
	assert.Equal(t, 5*time.Second, c.SleepInterval)
	assert.Equal(t, 60*time.Second, c.ReaperInterval)
	assert.Equal(t, 25, c.StuckRecoveryAlertMin)
}

func TestConfig_ApplyDefaults_PreservesExplicitValues(t *testing.T) {
	c := Config{Workers: 8, BatchSize: 50, LeaseSeconds: 120, SleepInterval: 2 * time.Second, ReaperInterval: 30 * time.Second, StuckRecoveryAlertMin: 5}
	c.applyDefaults()
	assert.Equal(t, 8, c.Workers)
	assert.Equal(t, 50, c.BatchSize)
	assert.Equal(t, 120, c.LeaseSeconds)
	assert.Equal(t, 2*time.Second, c.SleepInterval)
	assert.Equal(t, 30*time.Second, c.ReaperInterval)
	assert.Equal(t, 5, c.StuckRecoveryAlertMin)
}

func TestWorkerID_Format(t *testing.T) {
	id := WorkerID()
	assert.Regexp(t, regexp.MustCompile(`^.+-\d+-[0-9a-f]{4}$`), id)
}

func TestWorkerID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		seen[WorkerID()] = true
	}
	assert.Greater(t, len(seen), 1, "expected at least some variation across calls")
}

func TestQuotaObserver_NilAlertsIsSafe(t *testing.T) {
	m := metrics.New()
	o := quotaObserver{alerts: nil, metrics: m}
	assert.NotPanics(t, func() {
		o.AlertQuotaThreshold(context.Background(), "zerobounce", 9500, 10000)
		o.ObserveQuotaUsage("zerobounce", 9500, 10000)
	})
}

type fakePlatformStore struct {
	platforms []models.PlatformDefinition
}

func (f *fakePlatformStore) ListActivePlatforms(ctx context.Context) ([]models.PlatformDefinition, error) {
	return f.platforms, nil
}
func (f *fakePlatformStore) GetPlatform(ctx context.Context, id int64) (*models.PlatformDefinition, error) {
	return nil, nil
}
func (f *fakePlatformStore) GetPlatformByCode(ctx context.Context, code string) (*models.PlatformDefinition, error) {
	return nil, nil
}
func (f *fakePlatformStore) ListActiveRulesForEventType(ctx context.Context, eventType models.EventType) ([]models.RoutingRule, error) {
	return nil, nil
}

func TestPool_PlatformCode_KnownAndUnknown(t *testing.T) {
	ps := &fakePlatformStore{platforms: []models.PlatformDefinition{
		{ID: 1, PlatformCode: "crm-a", IsActive: true},
	}}
	r, err := router.New(context.Background(), ps)
	require.NoError(t, err)

	p := &Pool{router: r}
	assert.Equal(t, "crm-a", p.platformCode(1))
	assert.Equal(t, "unknown", p.platformCode(999))
}

type fakeReleaseQueueStore struct {
	released map[int64]bool
}

func (f *fakeReleaseQueueStore) CreateJob(ctx context.Context, j *models.QueueJob) error { return nil }
func (f *fakeReleaseQueueStore) LeaseBatch(ctx context.Context, workerID string, batchSize, leaseSecs int, now time.Time) ([]models.QueueJob, error) {
	return nil, nil
}
func (f *fakeReleaseQueueStore) GetJob(ctx context.Context, id int64) (*models.QueueJob, error) {
	return nil, nil
}
func (f *fakeReleaseQueueStore) ReleaseJob(ctx context.Context, id int64) error {
	f.released[id] = true
	return nil
}
func (f *fakeReleaseQueueStore) CompleteJob(ctx context.Context, id int64, lockedBy string, responseCode int, responseBody string, revenue *float64, revenueStatus string) error {
	return nil
}
func (f *fakeReleaseQueueStore) FailJob(ctx context.Context, id int64, lockedBy, lastErr string, responseCode int, responseBody string) error {
	return nil
}
func (f *fakeReleaseQueueStore) RetryJob(ctx context.Context, id int64, lockedBy, lastErr string, responseCode int, responseBody string, processAfter time.Time) error {
	return nil
}
func (f *fakeReleaseQueueStore) SkipJob(ctx context.Context, id int64, reason string) error {
	return nil
}
func (f *fakeReleaseQueueStore) CancelSiblings(ctx context.Context, eventID uuid.UUID, exceptJobID int64, reason string) (int64, error) {
	return 0, nil
}
func (f *fakeReleaseQueueStore) ReapStuck(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeReleaseQueueStore) RetryFailed(ctx context.Context, since time.Time, platformCode string, limit int) (int64, error) {
	return 0, nil
}
func (f *fakeReleaseQueueStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeReleaseQueueStore) CountPendingByPlatform(ctx context.Context) (map[int64]int64, error) {
	return nil, nil
}
func (f *fakeReleaseQueueStore) AppendLog(ctx context.Context, l *models.ProcessingLog) error {
	return nil
}
func (f *fakeReleaseQueueStore) RecentFailureRate(ctx context.Context, since time.Time) (float64, error) {
	return 0, nil
}

func TestPool_ReleaseRemaining_ReleasesEveryJob(t *testing.T) {
	s := &fakeReleaseQueueStore{released: map[int64]bool{}}
	q := queue.New(s, nil, nil, nil)
	p := &Pool{queue: q, logger: logrus.NewEntry(logrus.New())}

	jobs := []models.QueueJob{{ID: 1}, {ID: 2}, {ID: 3}}
	p.releaseRemaining(context.Background(), jobs, "worker-1")

	assert.True(t, s.released[1])
	assert.True(t, s.released[2])
	assert.True(t, s.released[3])
}
