package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/cflagle/unified-events/internal/adapter"
	"github.com/cflagle/unified-events/internal/models"
	"github.com/sirupsen/logrus"
)

// ExecStatus is the outcome category of one executeJob call, used by the
// Worker to update its batch counters.
type ExecStatus string

const (
	ExecCompleted ExecStatus = "completed"
	ExecRetried   ExecStatus = "retried"
	ExecFailed    ExecStatus = "failed"
	ExecSkipped   ExecStatus = "skipped"
)

// emailRegistry is the narrow slice of *registries.EmailRegistry that the
// validation path needs, declared here so execute.go depends on the exact
// method it calls rather than the concrete registries package type.
type emailRegistry interface {
	RecordValidation(ctx context.Context, email, emailMD5 string, status models.EmailValidationStatus, subStatus string, zbLastActive *int)
}

// quotaAlerter receives a best-effort notice when a platform's daily
// validation quota crosses 90% of its configured limit, and an observation
// of every quota check for gauge reporting. Nil-safe: callers that have not
// wired an alert/metrics sink simply pass nil.
type quotaAlerter interface {
	AlertQuotaThreshold(ctx context.Context, platformCode string, count, limit int)
	ObserveQuotaUsage(platformCode string, count, limit int)
}

// ExecuteJob runs one leased job to completion: adapter dispatch, the
// distinguished validation path, and the success/retry/fail/skip state
// transition.
func (p *Processor) ExecuteJob(ctx context.Context, job models.QueueJob, workerID string, adapters *adapter.Registry, emailReg emailRegistry, alerter quotaAlerter) (ExecStatus, error) {
	event, err := p.events.GetEvent(ctx, job.EventID)
	if err != nil {
		return ExecFailed, fmt.Errorf("executeJob: get event: %w", err)
	}
	if event == nil {
		return ExecFailed, fmt.Errorf("executeJob: event %s not found", job.EventID)
	}

	platform := p.router.GetPlatformByID(job.PlatformID)
	if platform == nil {
		return ExecFailed, fmt.Errorf("executeJob: platform %d not found", job.PlatformID)
	}

	a, err := adapters.Get(ctx, platform)
	if err != nil {
		return ExecFailed, fmt.Errorf("executeJob: construct adapter %s: %w", platform.PlatformCode, err)
	}

	if platform.PlatformType == models.PlatformValidation {
		exhausted, err := p.checkAndConsumeQuota(ctx, platform.PlatformCode, alerter)
		if err != nil {
			p.logger.WithError(err).WithField("platform", platform.PlatformCode).Warn("quota check failed, proceeding without it")
		} else if exhausted {
			if err := p.queue.Skip(ctx, job, "daily_quota_exhausted"); err != nil {
				return ExecFailed, err
			}
			return ExecSkipped, nil
		}
		return p.validationPath(ctx, event, platform, a, job, workerID, emailReg)
	}

	if p.shouldSkip(event, platform) {
		if err := p.queue.Skip(ctx, job, "Platform conditions not met"); err != nil {
			return ExecFailed, err
		}
		return ExecSkipped, nil
	}

	result, sendErr := a.Send(ctx, event)
	p.appendLog(ctx, job, platform.ID, result, sendErr)

	if sendErr == nil && result != nil && result.Success {
		if err := p.queue.Complete(ctx, job, workerID, result.ResponseCode, result.ResponseBody, result.Revenue, result.RevenueStatus); err != nil {
			return ExecFailed, err
		}
		if result.Revenue != nil && *result.Revenue > 0 {
			p.recordRevenue(ctx, event, platform, job, result)
		}
		p.applyPostResponseUpdates(ctx, event, platform.PlatformCode, result)
		return ExecCompleted, nil
	}

	lastErr := errString(sendErr, result)
	retried, err := p.queue.FailOrRetry(ctx, job, workerID, lastErr, responseCode(result), responseBody(result))
	if err != nil {
		return ExecFailed, err
	}
	if retried {
		return ExecRetried, nil
	}
	return ExecFailed, nil
}

// checkAndConsumeQuota increments the validation platform's per-day counter
// and reports whether it has already reached the configured daily limit.
// Crossing 90% of the limit fires a best-effort alert.
func (p *Processor) checkAndConsumeQuota(ctx context.Context, platformCode string, alerter quotaAlerter) (bool, error) {
	if p.quota == nil {
		return false, nil
	}
	date := time.Now().UTC().Format("2006-01-02")
	before, err := p.quota.GetQuota(ctx, date, platformCode)
	if err != nil {
		return false, err
	}
	if before >= p.dailyQuotaLimit {
		return true, nil
	}
	count, err := p.quota.IncrementQuota(ctx, date, platformCode, 1)
	if err != nil {
		return false, err
	}
	if alerter != nil {
		alerter.ObserveQuotaUsage(platformCode, count, p.dailyQuotaLimit)
		if count >= (p.dailyQuotaLimit*9)/10 {
			alerter.AlertQuotaThreshold(ctx, platformCode, count, p.dailyQuotaLimit)
		}
	}
	return false, nil
}

// shouldSkip reports whether platform conditions rule out sending this
// event at all (invalid email gating, SMS with no phone on file).
func (p *Processor) shouldSkip(event *models.Event, platform *models.PlatformDefinition) bool {
	if event.EmailValidationStatus != nil && *event.EmailValidationStatus == models.EmailValidationInvalid && platform.RequiresValidEmail {
		return true
	}
	if platform.PlatformType == models.PlatformSMS && event.Phone == "" {
		return true
	}
	return false
}

// validationPath runs the distinguished validation adapter; its outcome
// gates every sibling job for the event.
func (p *Processor) validationPath(ctx context.Context, event *models.Event, platform *models.PlatformDefinition, a adapter.Adapter, job models.QueueJob, workerID string, emailReg emailRegistry) (ExecStatus, error) {
	result, sendErr := a.Send(ctx, event)
	p.appendLog(ctx, job, platform.ID, result, sendErr)

	if sendErr != nil || result == nil || !result.Success {
		lastErr := errString(sendErr, result)
		retried, err := p.queue.FailOrRetry(ctx, job, workerID, lastErr, responseCode(result), responseBody(result))
		if err != nil {
			return ExecFailed, err
		}
		if retried {
			return ExecRetried, nil
		}
		return ExecFailed, nil
	}

	status, subStatus, zbLastActive := validationVerdict(result)
	isValid := status == models.EmailValidationValid || status == models.EmailValidationCatchAll || status == models.EmailValidationUnknown

	event.EmailValidationStatus = &status
	event.ZBLastActive = zbLastActive
	if err := p.events.UpdateEvent(ctx, event); err != nil {
		p.logger.WithError(err).WithField("event_id", event.EventID).Warn("validation status persist failed")
	}
	if emailReg != nil && event.Email != "" {
		emailReg.RecordValidation(ctx, event.Email, event.EmailMD5, status, subStatus, zbLastActive)
	}

	if !isValid {
		if _, err := p.queue.CancelSiblings(ctx, event.EventID, job.ID, "email_invalid"); err != nil {
			p.logger.WithError(err).WithField("event_id", event.EventID).Warn("cancel siblings failed")
		}
	}

	if err := p.queue.Complete(ctx, job, workerID, result.ResponseCode, result.ResponseBody, nil, ""); err != nil {
		return ExecFailed, err
	}
	return ExecCompleted, nil
}

// applyPostResponseUpdates writes a debug log entry when a platform
// returned provider data. It does not copy that data into event_data or
// persist it anywhere.
func (p *Processor) applyPostResponseUpdates(ctx context.Context, event *models.Event, platformCode string, result *adapter.Result) {
	if result == nil || len(result.ProviderData) == 0 {
		return
	}
	p.logger.WithFields(logrus.Fields{
		"event_id":      event.EventID,
		"platform_code": platformCode,
	}).Debug("post-response provider data recorded")
}

func (p *Processor) recordRevenue(ctx context.Context, event *models.Event, platform *models.PlatformDefinition, job models.QueueJob, result *adapter.Result) {
	if p.revenue == nil {
		return
	}
	record := &models.RevenueRecord{
		EventID:     event.EventID,
		PlatformID:  platform.ID,
		JobID:       job.ID,
		Amount:      *result.Revenue,
		Status:      models.RevenueStatus(result.RevenueStatus),
		RawResponse: result.ResponseBody,
		CreatedAt:   time.Now(),
	}
	if record.Status == "" {
		record.Status = models.RevenueStatusConfirmed
	}
	if err := p.revenue.CreateRevenueRecord(ctx, record); err != nil {
		p.logger.WithError(err).WithField("event_id", event.EventID).Warn("revenue record persist failed")
	}
}

func (p *Processor) appendLog(ctx context.Context, job models.QueueJob, platformID int64, result *adapter.Result, sendErr error) {
	log := &models.ProcessingLog{
		EventID:    job.EventID,
		PlatformID: platformID,
		JobID:      job.ID,
		Attempt:    job.Attempts + 1,
		Success:    sendErr == nil && result != nil && result.Success,
		CreatedAt:  time.Now(),
	}
	if result != nil {
		log.ResponseCode = result.ResponseCode
		log.ResponseBody = result.ResponseBody
	}
	if sendErr != nil {
		log.Error = sendErr.Error()
	}
	if err := p.queue.AppendLog(ctx, log); err != nil {
		p.logger.WithError(err).WithField("event_id", job.EventID).Warn("processing log append failed")
	}
}

// rawStatusMap is the canonical verdict mapping: the validation platform's
// raw status vocabulary is wider than the Event's EmailValidationStatus,
// and several raw statuses collapse onto "invalid".
var rawStatusMap = map[string]models.EmailValidationStatus{
	"valid":       models.EmailValidationValid,
	"invalid":     models.EmailValidationInvalid,
	"catch-all":   models.EmailValidationCatchAll,
	"unknown":     models.EmailValidationUnknown,
	"role":        models.EmailValidationRole,
	"disposable":  models.EmailValidationDisposable,
	"spamtrap":    models.EmailValidationInvalid,
	"abuse":       models.EmailValidationInvalid,
	"do_not_mail": models.EmailValidationInvalid,
	"toxic":       models.EmailValidationInvalid,
}

// mapStatus maps a validation platform's raw status string onto the
// canonical verdict; anything not in rawStatusMap maps to "unknown".
func mapStatus(raw string) models.EmailValidationStatus {
	if status, ok := rawStatusMap[raw]; ok {
		return status
	}
	return models.EmailValidationUnknown
}

func validationVerdict(result *adapter.Result) (models.EmailValidationStatus, string, *int) {
	status := models.EmailValidationUnknown
	subStatus := ""
	var zbLastActive *int
	if s, ok := result.ProviderData["status"].(string); ok {
		status = mapStatus(s)
	}
	if s, ok := result.ProviderData["sub_status"].(string); ok {
		subStatus = s
	}
	if days, ok := result.ProviderData["active_in_days"].(int); ok {
		zbLastActive = &days
	}
	return status, subStatus, zbLastActive
}

func errString(err error, result *adapter.Result) string {
	if err != nil {
		return err.Error()
	}
	if result != nil {
		return result.ResponseBody
	}
	return "unknown error"
}

func responseCode(result *adapter.Result) int {
	if result == nil {
		return 0
	}
	return result.ResponseCode
}

func responseBody(result *adapter.Result) string {
	if result == nil {
		return ""
	}
	return result.ResponseBody
}
