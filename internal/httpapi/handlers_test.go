package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cflagle/unified-events/internal/linker"
	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/processor"
	"github.com/cflagle/unified-events/internal/queue"
	"github.com/cflagle/unified-events/internal/registries"
	"github.com/cflagle/unified-events/internal/router"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/cflagle/unified-events/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore backs every Store interface Handlers and its collaborators
// touch, in memory.
type fakeStore struct {
	events     map[uuid.UUID]*models.Event
	pingErr    error
	failRate   float64
	leads      int64
	purchases  int64
	blocked    int64
	revenue    float64
	platStats  []store.PlatformStats
	statsErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: map[uuid.UUID]*models.Event{}}
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeStore) CreateEvent(ctx context.Context, e *models.Event) error {
	f.events[e.EventID] = e
	return nil
}
func (f *fakeStore) GetEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	return f.events[eventID], nil
}
func (f *fakeStore) UpdateEvent(ctx context.Context, e *models.Event) error { return nil }
func (f *fakeStore) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status models.EventStatus, blockedReason string) error {
	return nil
}
func (f *fakeStore) FindRecentLeadByEmailOrPhone(ctx context.Context, email, phone string, since time.Time) (*models.Event, error) {
	return nil, nil
}

func (f *fakeStore) CreateJob(ctx context.Context, j *models.QueueJob) error { return nil }
func (f *fakeStore) LeaseBatch(ctx context.Context, workerID string, batchSize, leaseSecs int, now time.Time) ([]models.QueueJob, error) {
	return nil, nil
}
func (f *fakeStore) GetJob(ctx context.Context, id int64) (*models.QueueJob, error) { return nil, nil }
func (f *fakeStore) ReleaseJob(ctx context.Context, id int64) error                 { return nil }
func (f *fakeStore) CompleteJob(ctx context.Context, id int64, lockedBy string, responseCode int, responseBody string, revenue *float64, revenueStatus string) error {
	return nil
}
func (f *fakeStore) FailJob(ctx context.Context, id int64, lockedBy, lastErr string, responseCode int, responseBody string) error {
	return nil
}
func (f *fakeStore) RetryJob(ctx context.Context, id int64, lockedBy, lastErr string, responseCode int, responseBody string, processAfter time.Time) error {
	return nil
}
func (f *fakeStore) SkipJob(ctx context.Context, id int64, reason string) error { return nil }
func (f *fakeStore) CancelSiblings(ctx context.Context, eventID uuid.UUID, exceptJobID int64, reason string) (int64, error) {
	return 0, nil
}
func (f *fakeStore) ReapStuck(ctx context.Context, now time.Time) (int64, error) { return 0, nil }
func (f *fakeStore) RetryFailed(ctx context.Context, since time.Time, platformCode string, limit int) (int64, error) {
	return 0, nil
}
func (f *fakeStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) { return 0, nil }
func (f *fakeStore) CountPendingByPlatform(ctx context.Context) (map[int64]int64, error) {
	return map[int64]int64{1: 3}, nil
}
func (f *fakeStore) AppendLog(ctx context.Context, l *models.ProcessingLog) error { return nil }
func (f *fakeStore) RecentFailureRate(ctx context.Context, since time.Time) (float64, error) {
	return f.failRate, nil
}

func (f *fakeStore) ListActivePlatforms(ctx context.Context) ([]models.PlatformDefinition, error) {
	return []models.PlatformDefinition{{ID: 1, PlatformCode: "crm-a", IsActive: true}}, nil
}
func (f *fakeStore) GetPlatform(ctx context.Context, id int64) (*models.PlatformDefinition, error) {
	return nil, nil
}
func (f *fakeStore) GetPlatformByCode(ctx context.Context, code string) (*models.PlatformDefinition, error) {
	return nil, nil
}
func (f *fakeStore) ListActiveRulesForEventType(ctx context.Context, eventType models.EventType) ([]models.RoutingRule, error) {
	return nil, nil
}

func (f *fakeStore) FindBotEntryByIdentifiers(ctx context.Context, email, phone, ip string) (*models.BotEntry, error) {
	return nil, nil
}
func (f *fakeStore) UpsertBotHit(ctx context.Context, hit store.BotHit, now time.Time) error {
	return nil
}
func (f *fakeStore) FindEmailValidation(ctx context.Context, emailMD5 string) (*models.EmailValidationEntry, error) {
	return nil, nil
}
func (f *fakeStore) UpsertEmailValidation(ctx context.Context, e *models.EmailValidationEntry) error {
	return nil
}

func (f *fakeStore) CreateRelationship(ctx context.Context, r *models.EventRelationship) error {
	return nil
}
func (f *fakeStore) FindLeadForPurchase(ctx context.Context, email, phone string) (*models.Event, error) {
	return nil, nil
}

func (f *fakeStore) CreateRevenueRecord(ctx context.Context, r *models.RevenueRecord) error {
	return nil
}

func (f *fakeStore) IncrementQuota(ctx context.Context, date, platformCode string, by int) (int, error) {
	return by, nil
}
func (f *fakeStore) GetQuota(ctx context.Context, date, platformCode string) (int, error) {
	return 0, nil
}

func (f *fakeStore) EventCounts(ctx context.Context, since time.Time) (leads, purchases, blocked int64, err error) {
	return f.leads, f.purchases, f.blocked, f.statsErr
}
func (f *fakeStore) PlatformAttemptStats(ctx context.Context, since time.Time) ([]store.PlatformStats, error) {
	return f.platStats, f.statsErr
}
func (f *fakeStore) TotalRevenue(ctx context.Context, since time.Time) (float64, error) {
	return f.revenue, f.statsErr
}

func newTestHandlers(t *testing.T, s *fakeStore) *Handlers {
	t.Helper()
	bots := registries.NewBotRegistry(s, nil)
	emails := registries.NewEmailRegistry(s, 30, nil)
	v := validator.New(bots, emails, validator.Config{})
	lk := linker.New(s, s, nil)
	r, err := router.New(context.Background(), s)
	require.NoError(t, err)
	q := queue.New(s, nil, nil, nil)
	proc := processor.New(s, s, s, 0, v, lk, r, q, nil)
	return New(proc, q, r, s, nil, "", "https://example.com/thanks", nil)
}

func TestWantsRedirect(t *testing.T) {
	noAccept := httptest.NewRequest(http.MethodPost, "/events/lead", nil)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = noAccept
	assert.True(t, wantsRedirect(c))

	jsonReq := httptest.NewRequest(http.MethodPost, "/events/lead", nil)
	jsonReq.Header.Set("Accept", "application/json")
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = jsonReq
	assert.False(t, wantsRedirect(c2))

	htmlReq := httptest.NewRequest(http.MethodPost, "/events/lead", nil)
	htmlReq.Header.Set("Accept", "text/html,application/xhtml+xml")
	c3, _ := gin.CreateTestContext(httptest.NewRecorder())
	c3.Request = htmlReq
	assert.True(t, wantsRedirect(c3))
}

func TestDiskUsageFraction_RootPath(t *testing.T) {
	frac, err := diskUsageFraction("/")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, frac, 0.0)
	assert.LessOrEqual(t, frac, 1.0)
}

func TestHandlers_Health_Healthy(t *testing.T) {
	s := newFakeStore()
	h := newTestHandlers(t, s)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	h.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestHandlers_Health_UnhealthyOnPingFailure(t *testing.T) {
	s := newFakeStore()
	s.pingErr = assert.AnError
	h := newTestHandlers(t, s)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	h.Health(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)
}

func TestHandlers_Health_DegradedOnHighFailureRate(t *testing.T) {
	s := newFakeStore()
	s.failRate = 0.5
	h := newTestHandlers(t, s)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	h.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestHandlers_Stats_InvalidPeriod(t *testing.T) {
	s := newFakeStore()
	h := newTestHandlers(t, s)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/stats?period=3y", nil)
	h.Stats(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_Stats_Success(t *testing.T) {
	s := newFakeStore()
	s.leads, s.purchases, s.blocked = 10, 4, 2
	s.revenue = 199.5
	s.platStats = []store.PlatformStats{{PlatformCode: "crm-a", Attempts: 5, Successes: 4, Failures: 1}}
	h := newTestHandlers(t, s)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/stats?period=7d", nil)
	h.Stats(c)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"leads":10`)
	assert.Contains(t, body, `"revenue":199.5`)
	assert.Contains(t, body, "crm-a")
}

func TestHandlers_Lead_JSONClientGetsStructuredResponse(t *testing.T) {
	s := newFakeStore()
	h := newTestHandlers(t, s)

	body := `{"email":"person@example.com","phone":"5551234567","first_name":"A","last_name":"B"}`
	req := httptest.NewRequest(http.MethodPost, "/events/lead", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set("correlation_id", "test-correlation")
	h.Lead(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
}

func TestHandlers_Lead_BrowserNavigationRedirects(t *testing.T) {
	s := newFakeStore()
	h := newTestHandlers(t, s)

	body := `{"email":"person@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/events/lead", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	h.Lead(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "https://example.com/thanks")
}

func TestHandlers_Lead_InvalidBodyReturnsBadRequest(t *testing.T) {
	s := newFakeStore()
	h := newTestHandlers(t, s)

	req := httptest.NewRequest(http.MethodPost, "/events/lead", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	h.Lead(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
