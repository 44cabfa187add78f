package processor

import (
	"context"
	"testing"
	"time"

	"github.com/cflagle/unified-events/internal/linker"
	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/queue"
	"github.com/cflagle/unified-events/internal/registries"
	"github.com/cflagle/unified-events/internal/router"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/cflagle/unified-events/internal/validator"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore backs every Store interface the processor tests touch, in
// memory, so Intake can be exercised end to end without a database.
type fakeStore struct {
	events        map[uuid.UUID]*models.Event
	jobs          []*models.QueueJob
	relationships []*models.EventRelationship
	revenue       []*models.RevenueRecord
	quota         map[string]int
	botEntry      *models.BotEntry
	emailEntry    *models.EmailValidationEntry
	platforms     []models.PlatformDefinition
	rules         map[models.EventType][]models.RoutingRule
	nextJobID     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events: map[uuid.UUID]*models.Event{},
		quota:  map[string]int{},
		rules:  map[models.EventType][]models.RoutingRule{},
	}
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) CreateEvent(ctx context.Context, e *models.Event) error {
	e.ID = uuid.New()
	f.events[e.EventID] = e
	return nil
}

func (f *fakeStore) GetEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	return f.events[eventID], nil
}

func (f *fakeStore) UpdateEvent(ctx context.Context, e *models.Event) error {
	f.events[e.EventID] = e
	return nil
}

func (f *fakeStore) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status models.EventStatus, reason string) error {
	if e, ok := f.events[eventID]; ok {
		e.Status = status
		e.BlockedReason = reason
	}
	return nil
}

func (f *fakeStore) FindRecentLeadByEmailOrPhone(ctx context.Context, email, phone string, since time.Time) (*models.Event, error) {
	return nil, nil
}

func (f *fakeStore) CreateJob(ctx context.Context, j *models.QueueJob) error {
	f.nextJobID++
	j.ID = f.nextJobID
	f.jobs = append(f.jobs, j)
	return nil
}

func (f *fakeStore) LeaseBatch(ctx context.Context, workerID string, batchSize, leaseSecs int, now time.Time) ([]models.QueueJob, error) {
	return nil, nil
}

func (f *fakeStore) findJob(id int64) *models.QueueJob {
	for _, j := range f.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

func (f *fakeStore) GetJob(ctx context.Context, id int64) (*models.QueueJob, error) {
	return f.findJob(id), nil
}
func (f *fakeStore) ReleaseJob(ctx context.Context, id int64) error { return nil }
func (f *fakeStore) CompleteJob(ctx context.Context, id int64, lockedBy string, code int, body string, revenue *float64, revenueStatus string) error {
	if j := f.findJob(id); j != nil {
		j.Status = models.JobStatusCompleted
		j.Attempts++
	}
	return nil
}
func (f *fakeStore) FailJob(ctx context.Context, id int64, lockedBy, lastErr string, code int, body string) error {
	if j := f.findJob(id); j != nil {
		j.Status = models.JobStatusFailed
		j.LastError = lastErr
	}
	return nil
}
func (f *fakeStore) RetryJob(ctx context.Context, id int64, lockedBy, lastErr string, code int, body string, processAfter time.Time) error {
	if j := f.findJob(id); j != nil {
		j.Status = models.JobStatusPending
		j.Attempts++
		j.LastError = lastErr
		j.ProcessAfter = processAfter
	}
	return nil
}
func (f *fakeStore) SkipJob(ctx context.Context, id int64, reason string) error {
	if j := f.findJob(id); j != nil {
		j.Status = models.JobStatusSkipped
		j.LastError = reason
	}
	return nil
}
func (f *fakeStore) CancelSiblings(ctx context.Context, eventID uuid.UUID, exceptJobID int64, reason string) (int64, error) {
	return 0, nil
}
func (f *fakeStore) ReapStuck(ctx context.Context, now time.Time) (int64, error) { return 0, nil }
func (f *fakeStore) RetryFailed(ctx context.Context, since time.Time, platformCode string, limit int) (int64, error) {
	return 0, nil
}
func (f *fakeStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) { return 0, nil }
func (f *fakeStore) CountPendingByPlatform(ctx context.Context) (map[int64]int64, error) {
	return nil, nil
}
func (f *fakeStore) AppendLog(ctx context.Context, l *models.ProcessingLog) error { return nil }
func (f *fakeStore) RecentFailureRate(ctx context.Context, since time.Time) (float64, error) {
	return 0, nil
}

func (f *fakeStore) ListActivePlatforms(ctx context.Context) ([]models.PlatformDefinition, error) {
	return f.platforms, nil
}
func (f *fakeStore) GetPlatform(ctx context.Context, id int64) (*models.PlatformDefinition, error) {
	for _, p := range f.platforms {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}
func (f *fakeStore) GetPlatformByCode(ctx context.Context, code string) (*models.PlatformDefinition, error) {
	for _, p := range f.platforms {
		if p.PlatformCode == code {
			return &p, nil
		}
	}
	return nil, nil
}
func (f *fakeStore) ListActiveRulesForEventType(ctx context.Context, et models.EventType) ([]models.RoutingRule, error) {
	return f.rules[et], nil
}

func (f *fakeStore) FindBotEntryByIdentifiers(ctx context.Context, email, phone, ip string) (*models.BotEntry, error) {
	return f.botEntry, nil
}
func (f *fakeStore) UpsertBotHit(ctx context.Context, hit store.BotHit, now time.Time) error {
	return nil
}
func (f *fakeStore) FindEmailValidation(ctx context.Context, emailMD5 string) (*models.EmailValidationEntry, error) {
	return f.emailEntry, nil
}
func (f *fakeStore) UpsertEmailValidation(ctx context.Context, e *models.EmailValidationEntry) error {
	return nil
}

func (f *fakeStore) CreateRelationship(ctx context.Context, r *models.EventRelationship) error {
	f.relationships = append(f.relationships, r)
	return nil
}
func (f *fakeStore) FindLeadForPurchase(ctx context.Context, email, phone string) (*models.Event, error) {
	var newest *models.Event
	for _, e := range f.events {
		if e.EventType == models.EventTypeLead && e.Email == email {
			if newest == nil || e.CreatedAt.After(newest.CreatedAt) {
				newest = e
			}
		}
	}
	return newest, nil
}

func (f *fakeStore) CreateRevenueRecord(ctx context.Context, r *models.RevenueRecord) error {
	f.revenue = append(f.revenue, r)
	return nil
}

func (f *fakeStore) IncrementQuota(ctx context.Context, date, platformCode string, by int) (int, error) {
	key := date + "|" + platformCode
	f.quota[key] += by
	return f.quota[key], nil
}
func (f *fakeStore) GetQuota(ctx context.Context, date, platformCode string) (int, error) {
	return f.quota[date+"|"+platformCode], nil
}

func (f *fakeStore) EventCounts(ctx context.Context, since time.Time) (int64, int64, int64, error) {
	return 0, 0, 0, nil
}
func (f *fakeStore) PlatformAttemptStats(ctx context.Context, since time.Time) ([]store.PlatformStats, error) {
	return nil, nil
}
func (f *fakeStore) TotalRevenue(ctx context.Context, since time.Time) (float64, error) {
	return 0, nil
}

func newTestProcessor(t *testing.T, s *fakeStore) *Processor {
	t.Helper()
	bots := registries.NewBotRegistry(s, nil)
	emails := registries.NewEmailRegistry(s, 30, nil)
	v := validator.New(bots, emails, validator.Config{})
	lk := linker.New(s, s, nil)
	r, err := router.New(context.Background(), s)
	require.NoError(t, err)
	q := queue.New(s, nil, nil, nil)
	return New(s, s, s, 0, v, lk, r, q, nil)
}

func TestIntake_CleanLeadQueuesMatchingPlatforms(t *testing.T) {
	s := newFakeStore()
	s.platforms = []models.PlatformDefinition{
		{ID: 1, PlatformCode: "crm-a", IsActive: true, MaxRetries: 3},
	}
	s.rules = map[models.EventType][]models.RoutingRule{
		models.EventTypeLead: {
			{ID: 1, PlatformID: 1, IsActive: true, Conditions: []byte(`{}`)},
		},
	}
	p := newTestProcessor(t, s)

	result, err := p.Intake(context.Background(), models.EventTypeLead, map[string]interface{}{
		"email": "jane@example.com", "phone": "5551234567",
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.Blocked)
	assert.Equal(t, 1, result.QueuedPlatforms)
	require.Len(t, s.jobs, 1)
	assert.Equal(t, int64(1), s.jobs[0].PlatformID)

	ev := s.events[result.EventID]
	require.NotNil(t, ev)
	assert.Equal(t, models.EventStatusPending, ev.Status)
}

func TestIntake_PhoneIsCanonicalizedBeforePersist(t *testing.T) {
	s := newFakeStore()
	p := newTestProcessor(t, s)

	result, err := p.Intake(context.Background(), models.EventTypeLead, map[string]interface{}{
		"email": "new@example.com", "phone": "8005550100", "campaign": "c1",
	})

	require.NoError(t, err)
	ev := s.events[result.EventID]
	require.NotNil(t, ev)
	assert.Equal(t, "18005550100", ev.Phone)
}

func TestIntake_HoneypotBlocksAndPersistsNoJobs(t *testing.T) {
	s := newFakeStore()
	s.platforms = []models.PlatformDefinition{{ID: 1, PlatformCode: "crm-a", IsActive: true}}
	s.rules = map[models.EventType][]models.RoutingRule{
		models.EventTypeLead: {{ID: 1, PlatformID: 1, IsActive: true, Conditions: []byte(`{}`)}},
	}
	p := newTestProcessor(t, s)

	result, err := p.Intake(context.Background(), models.EventTypeLead, map[string]interface{}{
		"email": "jane@example.com", "zipcode": "90210",
	})

	require.NoError(t, err)
	assert.True(t, result.Blocked)
	assert.Contains(t, result.BlockedReason, "bot_detected")
	assert.Empty(t, s.jobs)

	ev := s.events[result.EventID]
	require.NotNil(t, ev)
	assert.Equal(t, models.EventStatusBlocked, ev.Status)
}

func TestIntake_PurchaseLinksToPriorLead(t *testing.T) {
	s := newFakeStore()
	p := newTestProcessor(t, s)

	leadResult, err := p.Intake(context.Background(), models.EventTypeLead, map[string]interface{}{
		"email": "jane@example.com", "acq_source": "google",
	})
	require.NoError(t, err)

	purchaseResult, err := p.Intake(context.Background(), models.EventTypePurchase, map[string]interface{}{
		"email": "jane@example.com", "purchase_amount": 99.5,
	})
	require.NoError(t, err)

	require.Len(t, s.relationships, 1)
	assert.Equal(t, leadResult.EventID, s.relationships[0].FromEventID)
	assert.Equal(t, purchaseResult.EventID, s.relationships[0].ToEventID)

	purchaseEvent := s.events[purchaseResult.EventID]
	assert.Equal(t, "google", purchaseEvent.AcqSource)
}

func TestIntake_NeedsRevalidationEnqueuesPriorityJob(t *testing.T) {
	s := newFakeStore()
	s.platforms = []models.PlatformDefinition{
		{ID: 1, PlatformCode: "zerobounce", PlatformType: models.PlatformValidation, IsActive: true, MaxRetries: 3},
	}
	s.emailEntry = &models.EmailValidationEntry{
		Status: models.EmailValidationValid, ValidatedAt: time.Now().Add(-60 * 24 * time.Hour),
	}
	p := newTestProcessor(t, s)

	result, err := p.Intake(context.Background(), models.EventTypeLead, map[string]interface{}{
		"email": "jane@example.com",
	})

	require.NoError(t, err)
	assert.False(t, result.Blocked)
	require.Len(t, s.jobs, 1)
	assert.True(t, s.jobs[0].IsPriority)
	assert.Equal(t, int64(1), s.jobs[0].PlatformID)
}

func TestIntake_ResidualFieldsStashedInEventData(t *testing.T) {
	s := newFakeStore()
	p := newTestProcessor(t, s)

	result, err := p.Intake(context.Background(), models.EventTypeLead, map[string]interface{}{
		"email": "jane@example.com", "custom_field": "custom_value",
	})
	require.NoError(t, err)

	ev := s.events[result.EventID]
	require.NotNil(t, ev)
	assert.Contains(t, string(ev.EventData), "custom_value")
}
