// Package store provides the persistence layer: a Postgres-backed Store of
// record, and an optional Redis Index that accelerates hot lookups without
// ever being required for correctness.
package store

import (
	"context"
	"time"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/google/uuid"
)

// EventStore persists and retrieves Events.
type EventStore interface {
	// Ping verifies the underlying connection is reachable, for the
	// /health handler's database check.
	Ping(ctx context.Context) error
	CreateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	UpdateEvent(ctx context.Context, e *models.Event) error
	UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status models.EventStatus, blockedReason string) error
	FindRecentLeadByEmailOrPhone(ctx context.Context, email, phone string, since time.Time) (*models.Event, error)
}

// QueueStore persists QueueJobs and their processing history.
type QueueStore interface {
	CreateJob(ctx context.Context, j *models.QueueJob) error
	LeaseBatch(ctx context.Context, workerID string, batchSize int, leaseSecs int, now time.Time) ([]models.QueueJob, error)
	GetJob(ctx context.Context, id int64) (*models.QueueJob, error)
	ReleaseJob(ctx context.Context, id int64) error
	// CompleteJob, FailJob, and RetryJob are scoped by lockedBy: a holder
	// whose lease already expired and was re-leased to another worker
	// must not be able to overwrite the new holder's state, so every
	// write here is conditioned on "locked_by = lockedBy".
	CompleteJob(ctx context.Context, id int64, lockedBy string, responseCode int, responseBody string, revenue *float64, revenueStatus string) error
	// FailJob terminally fails a job (attempts exhausted or non-retriable).
	FailJob(ctx context.Context, id int64, lockedBy string, lastError string, responseCode int, responseBody string) error
	// RetryJob bumps attempts and reschedules a job for processAfter; the
	// caller (Queue) is responsible for enforcing attempts < max_retries
	// before calling this.
	RetryJob(ctx context.Context, id int64, lockedBy string, lastError string, responseCode int, responseBody string, processAfter time.Time) error
	SkipJob(ctx context.Context, id int64, reason string) error
	CancelSiblings(ctx context.Context, eventID uuid.UUID, exceptJobID int64, reason string) (int64, error)
	ReapStuck(ctx context.Context, now time.Time) (int64, error)
	RetryFailed(ctx context.Context, since time.Time, platformCode string, limit int) (int64, error)
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
	CountPendingByPlatform(ctx context.Context) (map[int64]int64, error)
	AppendLog(ctx context.Context, l *models.ProcessingLog) error
	// RecentFailureRate reports the fraction of ProcessingLog rows with
	// success=false since `since`, for the /health rollup's degraded
	// threshold. Returns 0 when no rows exist in the window.
	RecentFailureRate(ctx context.Context, since time.Time) (float64, error)
}

// PlatformStore persists platform definitions and routing rules.
type PlatformStore interface {
	ListActivePlatforms(ctx context.Context) ([]models.PlatformDefinition, error)
	GetPlatform(ctx context.Context, id int64) (*models.PlatformDefinition, error)
	GetPlatformByCode(ctx context.Context, code string) (*models.PlatformDefinition, error)
	ListActiveRulesForEventType(ctx context.Context, eventType models.EventType) ([]models.RoutingRule, error)
}

// BotHit describes one submission's identifiers, passed to UpsertBotHit so
// the associated-identifier sets can be widened on every repeat offense.
type BotHit struct {
	PrimaryType     models.IdentifierType
	PrimaryValue    string
	DetectionMethod string
	HoneypotFields  []string
	Email           string
	Phone           string
	IP              string
}

// RegistryStore persists bot and email-validation registries.
type RegistryStore interface {
	// FindBotEntryByIdentifiers looks for a BotEntry keyed on any of
	// email/phone/ip, or carrying any of them in its associated sets.
	FindBotEntryByIdentifiers(ctx context.Context, email, phone, ip string) (*models.BotEntry, error)
	UpsertBotHit(ctx context.Context, hit BotHit, now time.Time) error
	FindEmailValidation(ctx context.Context, emailMD5 string) (*models.EmailValidationEntry, error)
	UpsertEmailValidation(ctx context.Context, e *models.EmailValidationEntry) error
}

// RelationshipStore persists cross-event relationships.
type RelationshipStore interface {
	CreateRelationship(ctx context.Context, r *models.EventRelationship) error
	FindLeadForPurchase(ctx context.Context, email, phone string) (*models.Event, error)
}

// RevenueStore persists settlement records.
type RevenueStore interface {
	CreateRevenueRecord(ctx context.Context, r *models.RevenueRecord) error
}

// QuotaStore persists per-day, per-platform validation call counters.
type QuotaStore interface {
	IncrementQuota(ctx context.Context, date, platformCode string, by int) (int, error)
	GetQuota(ctx context.Context, date, platformCode string) (int, error)
}

// PlatformStats summarizes delivery attempts for one platform over a
// /stats?period= window.
type PlatformStats struct {
	PlatformCode string
	Attempts     int64
	Successes    int64
	Failures     int64
}

// StatsStore answers the summary counters behind GET /stats.
type StatsStore interface {
	EventCounts(ctx context.Context, since time.Time) (leads, purchases, blocked int64, err error)
	PlatformAttemptStats(ctx context.Context, since time.Time) ([]PlatformStats, error)
	TotalRevenue(ctx context.Context, since time.Time) (float64, error)
}

// Store is the full persistence surface the rest of the module depends on.
type Store interface {
	EventStore
	QueueStore
	PlatformStore
	RegistryStore
	RelationshipStore
	RevenueStore
	QuotaStore
	StatsStore
}
