package store

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostgresStore is the GORM-backed Store of record.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore wraps an already-connected *gorm.DB.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping verifies the underlying connection is reachable, for the /health
// handler's database check.
func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate runs AutoMigrate across every model owned by this store.
// AutoMigrate only adds tables, columns, and indexes; it never drops or
// alters existing data, so it is safe to run on every process start.
func Migrate(db *gorm.DB) error {
	modelsToMigrate := []interface{}{
		&models.Event{},
		&models.QueueJob{},
		&models.ProcessingLog{},
		&models.ValidationQuota{},
		&models.PlatformDefinition{},
		&models.RoutingRule{},
		&models.BotEntry{},
		&models.EmailValidationEntry{},
		&models.EventRelationship{},
		&models.RevenueRecord{},
	}
	for _, m := range modelsToMigrate {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	return nil
}

// --- EventStore ---

func (s *PostgresStore) CreateEvent(ctx context.Context, e *models.Event) error {
	return s.db.WithContext(ctx).Create(e).Error
}

func (s *PostgresStore) GetEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	var e models.Event
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) UpdateEvent(ctx context.Context, e *models.Event) error {
	return s.db.WithContext(ctx).Save(e).Error
}

func (s *PostgresStore) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status models.EventStatus, blockedReason string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if blockedReason != "" {
		updates["blocked_reason"] = blockedReason
	}
	return s.db.WithContext(ctx).Model(&models.Event{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error
}

func (s *PostgresStore) FindRecentLeadByEmailOrPhone(ctx context.Context, email, phone string, since time.Time) (*models.Event, error) {
	var e models.Event
	q := s.db.WithContext(ctx).
		Where("event_type = ?", models.EventTypeLead).
		Where("created_at >= ?", since).
		Order("created_at DESC")

	switch {
	case email != "" && phone != "":
		q = q.Where("email = ? OR phone = ?", email, phone)
	case email != "":
		q = q.Where("email = ?", email)
	case phone != "":
		q = q.Where("phone = ?", phone)
	default:
		return nil, nil
	}

	err := q.First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// --- QueueStore ---

func (s *PostgresStore) CreateJob(ctx context.Context, j *models.QueueJob) error {
	return s.db.WithContext(ctx).Create(j).Error
}

// LeaseBatch atomically claims up to batchSize pending (or lease-expired)
// jobs for workerID. The UPDATE...RETURNING-shaped flow below uses a
// conditional WHERE against the lock fields so two workers racing on the
// same row both attempt the update but only one affects it.
func (s *PostgresStore) LeaseBatch(ctx context.Context, workerID string, batchSize int, leaseSecs int, now time.Time) ([]models.QueueJob, error) {
	var claimed []models.QueueJob

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []models.QueueJob
		err := tx.
			Where("status = ? AND process_after <= ?", models.JobStatusPending, now).
			Or("status = ? AND locked_until < ?", models.JobStatusProcessing, now).
			Order("is_priority DESC, process_after ASC").
			Limit(batchSize).
			Clauses(lockingClause()).
			Find(&candidates).Error
		if err != nil {
			return err
		}

		lockedUntil := now.Add(time.Duration(leaseSecs) * time.Second)
		for _, c := range candidates {
			res := tx.Model(&models.QueueJob{}).
				Where("id = ? AND (status = ? OR (status = ? AND locked_until < ?))",
					c.ID, models.JobStatusPending, models.JobStatusProcessing, now).
				Updates(map[string]interface{}{
					"status":       models.JobStatusProcessing,
					"locked_until": lockedUntil,
					"locked_by":    workerID,
					"updated_at":   now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Lost the race to another worker; skip it.
				continue
			}
			c.Status = models.JobStatusProcessing
			c.LockedUntil = &lockedUntil
			c.LockedBy = workerID
			claimed = append(claimed, c)
		}
		return nil
	})
	return claimed, err
}

func (s *PostgresStore) GetJob(ctx context.Context, id int64) (*models.QueueJob, error) {
	var j models.QueueJob
	err := s.db.WithContext(ctx).First(&j, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) ReleaseJob(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Model(&models.QueueJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.JobStatusPending,
			"locked_until": nil,
			"locked_by":    "",
			"updated_at":   time.Now(),
		}).Error
}

// CompleteJob terminally completes a job held by lockedBy. attempts is
// incremented here as well as in RetryJob: it counts every send the job
// made, not just the ones that led to a retry.
func (s *PostgresStore) CompleteJob(ctx context.Context, id int64, lockedBy string, responseCode int, responseBody string, revenue *float64, revenueStatus string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.QueueJob{}).
		Where("id = ? AND locked_by = ?", id, lockedBy).
		Updates(map[string]interface{}{
			"status":         models.JobStatusCompleted,
			"attempts":       gorm.Expr("attempts + 1"),
			"response_code":  responseCode,
			"response_body":  responseBody,
			"revenue_amount": revenue,
			"revenue_status": revenueStatus,
			"locked_until":   nil,
			"locked_by":      "",
			"processed_at":   &now,
			"updated_at":     now,
		}).Error
}

// FailJob terminally fails a job. Attempts is not incremented here, so the
// final failed send is not counted: a job that exhausted its retry budget
// ends with attempts equal to max_retries (0 in the zero-retry case).
func (s *PostgresStore) FailJob(ctx context.Context, id int64, lockedBy string, lastError string, responseCode int, responseBody string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.QueueJob{}).
		Where("id = ? AND locked_by = ?", id, lockedBy).
		Updates(map[string]interface{}{
			"status":        models.JobStatusFailed,
			"last_error":    lastError,
			"response_code": responseCode,
			"response_body": responseBody,
			"locked_until":  nil,
			"locked_by":     "",
			"processed_at":  &now,
			"updated_at":    now,
		}).Error
}

// RetryJob bumps attempts, clears the lease, and reschedules the job for
// processAfter per the backoff the Queue computed. When called from
// RetryFailed (an operator-triggered retry of a terminal job, not a live
// lease), lockedBy is empty and the scoping clause is skipped.
func (s *PostgresStore) RetryJob(ctx context.Context, id int64, lockedBy string, lastError string, responseCode int, responseBody string, processAfter time.Time) error {
	now := time.Now()
	q := s.db.WithContext(ctx).Model(&models.QueueJob{}).Where("id = ?", id)
	if lockedBy != "" {
		q = q.Where("locked_by = ?", lockedBy)
	}
	return q.Updates(map[string]interface{}{
		"status":        models.JobStatusPending,
		"attempts":      gorm.Expr("attempts + 1"),
		"last_error":    lastError,
		"response_code": responseCode,
		"response_body": responseBody,
		"locked_until":  nil,
		"locked_by":     "",
		"process_after": processAfter,
		"updated_at":    now,
	}).Error
}

func (s *PostgresStore) SkipJob(ctx context.Context, id int64, reason string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.QueueJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.JobStatusSkipped,
			"skip_reason":  reason,
			"locked_until": nil,
			"locked_by":    "",
			"processed_at": &now,
			"updated_at":   now,
		}).Error
}

// CancelSiblings marks every other non-terminal job for the same event as
// skipped. Used by the distinguished validation-first adapter path: an
// invalid-email verdict cancels every sibling job so no platform spends
// money delivering a bad lead.
func (s *PostgresStore) CancelSiblings(ctx context.Context, eventID uuid.UUID, exceptJobID int64, reason string) (int64, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.QueueJob{}).
		Where("event_id = ? AND id != ? AND status IN ?", eventID, exceptJobID, []models.QueueJobStatus{models.JobStatusPending, models.JobStatusProcessing}).
		Updates(map[string]interface{}{
			"status":       models.JobStatusSkipped,
			"skip_reason":  reason,
			"locked_until": nil,
			"locked_by":    "",
			"processed_at": &now,
			"updated_at":   now,
		})
	return res.RowsAffected, res.Error
}

// ReapStuck releases leases that expired without the owning worker
// completing, failing, or releasing the job — a crashed-worker recovery.
func (s *PostgresStore) ReapStuck(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.QueueJob{}).
		Where("status = ? AND locked_until < ?", models.JobStatusProcessing, now).
		Updates(map[string]interface{}{
			"status":       models.JobStatusPending,
			"locked_until": nil,
			"locked_by":    "",
			"updated_at":   now,
		})
	return res.RowsAffected, res.Error
}

// RetryFailed re-invokes retry semantics (attempts+1, backoff schedule) for
// every terminal-failed job in the window that still has retry budget.
// Jobs already at max_retries are left failed.
func (s *PostgresStore) RetryFailed(ctx context.Context, since time.Time, platformCode string, limit int) (int64, error) {
	q := s.db.WithContext(ctx).
		Where("status = ? AND updated_at >= ? AND attempts < max_retries", models.JobStatusFailed, since)

	if platformCode != "" {
		var platform models.PlatformDefinition
		if err := s.db.WithContext(ctx).Where("platform_code = ?", platformCode).First(&platform).Error; err != nil {
			return 0, err
		}
		q = q.Where("platform_id = ?", platform.ID)
	}

	var candidates []models.QueueJob
	q = q.Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&candidates).Error; err != nil {
		return 0, err
	}

	now := time.Now()
	var retried int64
	for _, job := range candidates {
		processAfter := models.NextBackoff(now, job.Attempts)
		if err := s.RetryJob(ctx, job.ID, "", job.LastError, job.ResponseCode, job.ResponseBody, processAfter); err != nil {
			return retried, err
		}
		retried++
	}
	return retried, nil
}

// RecentFailureRate reports the fraction of ProcessingLog attempts that
// failed since `since`.
func (s *PostgresStore) RecentFailureRate(ctx context.Context, since time.Time) (float64, error) {
	var total, failed int64
	if err := s.db.WithContext(ctx).Model(&models.ProcessingLog{}).Where("created_at >= ?", since).Count(&total).Error; err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.ProcessingLog{}).Where("created_at >= ? AND success = ?", since, false).Count(&failed).Error; err != nil {
		return 0, err
	}
	return float64(failed) / float64(total), nil
}

// EventCounts reports how many lead/purchase events were accepted and how
// many (of either type) were blocked, since the given time.
func (s *PostgresStore) EventCounts(ctx context.Context, since time.Time) (leads, purchases, blocked int64, err error) {
	base := s.db.WithContext(ctx).Model(&models.Event{}).Where("created_at >= ?", since)
	if err = base.Session(&gorm.Session{}).Where("event_type = ?", models.EventTypeLead).Count(&leads).Error; err != nil {
		return
	}
	if err = base.Session(&gorm.Session{}).Where("event_type = ?", models.EventTypePurchase).Count(&purchases).Error; err != nil {
		return
	}
	err = base.Session(&gorm.Session{}).Where("status = ?", models.EventStatusBlocked).Count(&blocked).Error
	return
}

// PlatformAttemptStats groups processing_log rows by platform for the
// given window, for the /stats endpoint's per-platform breakdown.
func (s *PostgresStore) PlatformAttemptStats(ctx context.Context, since time.Time) ([]PlatformStats, error) {
	type row struct {
		PlatformID int64
		Attempts   int64
		Successes  int64
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.ProcessingLog{}).
		Select("platform_id, count(*) as attempts, sum(case when success then 1 else 0 end) as successes").
		Where("created_at >= ?", since).
		Group("platform_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	var platforms []models.PlatformDefinition
	if err := s.db.WithContext(ctx).Find(&platforms).Error; err != nil {
		return nil, err
	}
	codeByID := make(map[int64]string, len(platforms))
	for _, p := range platforms {
		codeByID[p.ID] = p.PlatformCode
	}

	out := make([]PlatformStats, 0, len(rows))
	for _, r := range rows {
		code := codeByID[r.PlatformID]
		if code == "" {
			code = fmt.Sprintf("platform_%d", r.PlatformID)
		}
		out = append(out, PlatformStats{
			PlatformCode: code,
			Attempts:     r.Attempts,
			Successes:    r.Successes,
			Failures:     r.Attempts - r.Successes,
		})
	}
	return out, nil
}

// TotalRevenue sums confirmed+pending revenue records since the given time.
func (s *PostgresStore) TotalRevenue(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := s.db.WithContext(ctx).Model(&models.RevenueRecord{}).
		Where("created_at >= ?", since).
		Where("status IN ?", []models.RevenueStatus{models.RevenueStatusConfirmed, models.RevenueStatusPending}).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// Cleanup removes terminal jobs older than olderThan. RevenueRecords and
// ProcessingLogs are left intact, per their own retention.
func (s *PostgresStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []models.QueueJobStatus{models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusSkipped}, olderThan).
		Delete(&models.QueueJob{})
	return res.RowsAffected, res.Error
}

func (s *PostgresStore) CountPendingByPlatform(ctx context.Context) (map[int64]int64, error) {
	type row struct {
		PlatformID int64
		Count      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.QueueJob{}).
		Select("platform_id, count(*) as count").
		Where("status = ?", models.JobStatusPending).
		Group("platform_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(rows))
	for _, r := range rows {
		out[r.PlatformID] = r.Count
	}
	return out, nil
}

func (s *PostgresStore) AppendLog(ctx context.Context, l *models.ProcessingLog) error {
	return s.db.WithContext(ctx).Create(l).Error
}

// --- PlatformStore ---

func (s *PostgresStore) ListActivePlatforms(ctx context.Context) ([]models.PlatformDefinition, error) {
	var platforms []models.PlatformDefinition
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("priority ASC").Find(&platforms).Error
	return platforms, err
}

func (s *PostgresStore) GetPlatform(ctx context.Context, id int64) (*models.PlatformDefinition, error) {
	var p models.PlatformDefinition
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetPlatformByCode(ctx context.Context, code string) (*models.PlatformDefinition, error) {
	var p models.PlatformDefinition
	err := s.db.WithContext(ctx).Where("platform_code = ?", code).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListActiveRulesForEventType(ctx context.Context, eventType models.EventType) ([]models.RoutingRule, error) {
	var rules []models.RoutingRule
	err := s.db.WithContext(ctx).
		Where("event_type = ? AND is_active = ?", eventType, true).
		Order("priority ASC").
		Find(&rules).Error
	return rules, err
}

// --- RegistryStore ---

func (s *PostgresStore) FindBotEntryByIdentifiers(ctx context.Context, email, phone, ip string) (*models.BotEntry, error) {
	if email == "" && phone == "" && ip == "" {
		return nil, nil
	}

	// 1. Primary-key lookups, cheapest first.
	for _, pair := range []struct {
		t models.IdentifierType
		v string
	}{
		{models.IdentifierEmail, email},
		{models.IdentifierPhone, phone},
		{models.IdentifierIP, ip},
	} {
		if pair.v == "" {
			continue
		}
		var entry models.BotEntry
		err := s.db.WithContext(ctx).
			Where("identifier_type = ? AND identifier_value = ?", pair.t, pair.v).
			First(&entry).Error
		if err == nil {
			return &entry, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	// 2. Fall back to a containment scan of the associated-identifier sets.
	for col, v := range map[string]string{
		"associated_emails": email,
		"associated_phones": phone,
		"associated_ips":    ip,
	} {
		if v == "" {
			continue
		}
		var entry models.BotEntry
		literal := fmt.Sprintf(`["%s"]`, v)
		err := s.db.WithContext(ctx).
			Where(col+" @> ?::jsonb", literal).
			First(&entry).Error
		if err == nil {
			return &entry, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

// UpsertBotHit creates or widens a BotEntry keyed on hit.PrimaryType/Value,
// merging the submission's other identifiers into the associated sets and
// escalating severity by the running attempt count.
func (s *PostgresStore) UpsertBotHit(ctx context.Context, hit BotHit, now time.Time) error {
	if hit.PrimaryValue == "" {
		return nil
	}
	honeypotJSON, _ := json.Marshal(hit.HoneypotFields)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.BotEntry
		err := tx.Where("identifier_type = ? AND identifier_value = ?", hit.PrimaryType, hit.PrimaryValue).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry := models.BotEntry{
				IdentifierType:   hit.PrimaryType,
				IdentifierValue:  hit.PrimaryValue,
				DetectionMethod:  hit.DetectionMethod,
				HoneypotFields:   honeypotJSON,
				AssociatedEmails: singletonSet(hit.Email),
				AssociatedPhones: singletonSet(hit.Phone),
				AssociatedIPs:    singletonSet(hit.IP),
				AttemptCount:     1,
				Severity:         models.SeverityForCount(1),
				FirstSeenAt:      now,
				LastSeenAt:       now,
			}
			return tx.Create(&entry).Error
		}
		if err != nil {
			return err
		}

		newCount := existing.AttemptCount + 1
		emails := models.AssociatedSet(existing.AssociatedEmails)
		phones := models.AssociatedSet(existing.AssociatedPhones)
		ips := models.AssociatedSet(existing.AssociatedIPs)
		if hit.Email != "" {
			emails[hit.Email] = true
		}
		if hit.Phone != "" {
			phones[hit.Phone] = true
		}
		if hit.IP != "" {
			ips[hit.IP] = true
		}

		return tx.Model(&existing).Updates(map[string]interface{}{
			"attempt_count":     newCount,
			"severity":          models.SeverityForCount(newCount),
			"detection_method":  hit.DetectionMethod,
			"honeypot_fields":   honeypotJSON,
			"associated_emails": models.EncodeAssociatedSet(emails),
			"associated_phones": models.EncodeAssociatedSet(phones),
			"associated_ips":    models.EncodeAssociatedSet(ips),
			"last_seen_at":      now,
			"updated_at":        now,
		}).Error
	})
}

func singletonSet(v string) []byte {
	if v == "" {
		b, _ := json.Marshal([]string{})
		return b
	}
	b, _ := json.Marshal([]string{v})
	return b
}

func (s *PostgresStore) FindEmailValidation(ctx context.Context, emailMD5 string) (*models.EmailValidationEntry, error) {
	var e models.EmailValidationEntry
	err := s.db.WithContext(ctx).Where("email_md5 = ?", emailMD5).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) UpsertEmailValidation(ctx context.Context, e *models.EmailValidationEntry) error {
	return s.db.WithContext(ctx).
		Where("email_md5 = ?", e.EmailMD5).
		Assign(map[string]interface{}{
			"status":         e.Status,
			"sub_status":     e.SubStatus,
			"zb_last_active": e.ZBLastActive,
			"validated_at":   e.ValidatedAt,
			"updated_at":     time.Now(),
		}).
		FirstOrCreate(e).Error
}

// --- RelationshipStore ---

func (s *PostgresStore) CreateRelationship(ctx context.Context, r *models.EventRelationship) error {
	return s.db.WithContext(ctx).Create(r).Error
}

// FindLeadForPurchase looks up the newest lead sharing the purchase's
// email, per §4.6's attribution rule. phone is accepted but unused: the
// linker keys strictly on email, never on phone, so a purchase can't be
// mis-attributed to a lead that merely shares a phone number.
func (s *PostgresStore) FindLeadForPurchase(ctx context.Context, email, phone string) (*models.Event, error) {
	if email == "" {
		return nil, nil
	}
	var e models.Event
	q := s.db.WithContext(ctx).
		Where("event_type = ? AND email = ?", models.EventTypeLead, email).
		Order("created_at DESC")
	err := q.First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// --- RevenueStore ---

func (s *PostgresStore) CreateRevenueRecord(ctx context.Context, r *models.RevenueRecord) error {
	return s.db.WithContext(ctx).Create(r).Error
}

// --- QuotaStore ---

func (s *PostgresStore) IncrementQuota(ctx context.Context, date, platformCode string, by int) (int, error) {
	var newCount int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.ValidationQuota
		err := tx.Where("date = ? AND platform_code = ?", date, platformCode).First(&q).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			q = models.ValidationQuota{Date: date, PlatformCode: platformCode, Count: by}
			if err := tx.Create(&q).Error; err != nil {
				return err
			}
			newCount = q.Count
			return nil
		}
		if err != nil {
			return err
		}
		newCount = q.Count + by
		return tx.Model(&q).Updates(map[string]interface{}{
			"count":      newCount,
			"updated_at": time.Now(),
		}).Error
	})
	return newCount, err
}

func (s *PostgresStore) GetQuota(ctx context.Context, date, platformCode string) (int, error) {
	var q models.ValidationQuota
	err := s.db.WithContext(ctx).Where("date = ? AND platform_code = ?", date, platformCode).First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return q.Count, nil
}

// EmailMD5 computes the lowercase-hex MD5 digest used to key validation
// caches and bot lookups without storing raw email addresses twice.
func EmailMD5(email string) string {
	sum := md5.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}
