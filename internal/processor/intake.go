// Package processor orchestrates the two halves of the pipeline: intake
// (validate → persist → link → route → enqueue) and job execution
// (adapter send → state transition → post-effects).
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cflagle/unified-events/internal/linker"
	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/queue"
	"github.com/cflagle/unified-events/internal/router"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/cflagle/unified-events/internal/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IntakeResult is returned to the HTTP layer.
type IntakeResult struct {
	Success         bool
	EventID         uuid.UUID
	Blocked         bool
	BlockedReason   string
	QueuedPlatforms int
}

// Processor drives both halves of the pipeline.
type Processor struct {
	events          store.EventStore
	revenue         store.RevenueStore
	quota           store.QuotaStore
	dailyQuotaLimit int
	validator       *validator.Validator
	linker          *linker.Linker
	router          *router.Router
	queue           *queue.Queue
	logger          *logrus.Entry
}

// DefaultDailyQuotaLimit mirrors ZEROBOUNCE_DAILY_LIMIT's documented default.
const DefaultDailyQuotaLimit = 10000

func New(events store.EventStore, revenue store.RevenueStore, quota store.QuotaStore, dailyQuotaLimit int, v *validator.Validator, l *linker.Linker, r *router.Router, q *queue.Queue, logger *logrus.Logger) *Processor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if dailyQuotaLimit <= 0 {
		dailyQuotaLimit = DefaultDailyQuotaLimit
	}
	return &Processor{events: events, revenue: revenue, quota: quota, dailyQuotaLimit: dailyQuotaLimit, validator: v, linker: l, router: r, queue: q, logger: logger.WithField("component", "processor")}
}

// knownFields are the raw submission keys the Processor maps onto typed
// Event columns; everything else is stashed into event_data.
var knownFields = map[string]bool{
	"event_type": true, "email": true, "phone": true, "name": true,
	"first_name": true, "last_name": true, "ip": true,
	"acq_source": true, "acq_campaign": true, "acq_term": true, "acq_date": true, "acq_form_title": true,
	"cur_source": true, "cur_medium": true, "cur_campaign": true, "cur_content": true, "cur_term": true,
	"gclid": true, "ga_client_id": true,
	"purchase_offer": true, "purchase_publisher": true, "purchase_amount": true, "purchase_traffic_source": true,
	"zipcode": true, "phonenumber": true,
}

// Intake builds an Event from raw, validates it, persists it, links it
// (if a purchase), routes it, and enqueues one Job per target.
func (p *Processor) Intake(ctx context.Context, eventType models.EventType, raw map[string]interface{}) (IntakeResult, error) {
	event := p.buildEvent(eventType, raw)

	sub := validator.Submission{
		Email:    event.Email,
		Phone:    event.Phone,
		IP:       event.IP,
		EmailMD5: event.EmailMD5,
		Raw:      raw,
	}
	verdict := p.validator.Validate(ctx, sub)

	if verdict.EmailStatus != "" {
		status := verdict.EmailStatus
		event.EmailValidationStatus = &status
	}
	if verdict.CanonicalPhone != "" {
		event.Phone = verdict.CanonicalPhone
	}

	if !verdict.Valid {
		reason := blockedReason(verdict)
		event.Status = models.EventStatusBlocked
		event.BlockedReason = reason
		if err := p.events.CreateEvent(ctx, &event); err != nil {
			return IntakeResult{}, fmt.Errorf("intake: persist blocked event: %w", err)
		}
		return IntakeResult{Success: true, EventID: event.EventID, Blocked: true, BlockedReason: reason}, nil
	}

	event.Status = models.EventStatusPending
	if err := p.events.CreateEvent(ctx, &event); err != nil {
		return IntakeResult{}, fmt.Errorf("intake: persist event: %w", err)
	}

	if event.EventType == models.EventTypePurchase {
		p.linker.Link(ctx, &event)
	}

	targets := p.router.GetRoutesForEvent(&event)
	queued := 0
	for _, platform := range targets {
		if _, err := p.queue.Enqueue(ctx, event.EventID, platform.ID, 0, false, platform.MaxRetries); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"event_id": event.EventID, "platform": platform.PlatformCode,
			}).Error("enqueue failed")
			continue
		}
		queued++
	}

	if verdict.NeedsRevalidation && event.Email != "" {
		if validationPlatform := p.router.GetValidationPlatform(); validationPlatform != nil {
			if _, err := p.queue.Enqueue(ctx, event.EventID, validationPlatform.ID, 0, true, validationPlatform.MaxRetries); err != nil {
				p.logger.WithError(err).WithField("event_id", event.EventID).Error("priority revalidation enqueue failed")
			} else {
				queued++
			}
		}
	}

	return IntakeResult{Success: true, EventID: event.EventID, QueuedPlatforms: queued}, nil
}

func (p *Processor) buildEvent(eventType models.EventType, raw map[string]interface{}) models.Event {
	event := models.Event{
		EventID:   uuid.New(),
		EventType: eventType,
	}

	event.Email = strings.TrimSpace(strField(raw, "email"))
	if event.Email != "" {
		event.EmailMD5 = store.EmailMD5(strings.ToLower(event.Email))
	}
	event.Phone = strField(raw, "phone")
	event.IP = strField(raw, "ip")

	if name := strField(raw, "name"); name != "" {
		parts := strings.SplitN(name, " ", 2)
		event.FirstName = parts[0]
		if len(parts) > 1 {
			event.LastName = parts[1]
		}
	}
	if v := strField(raw, "first_name"); v != "" {
		event.FirstName = v
	}
	if v := strField(raw, "last_name"); v != "" {
		event.LastName = v
	}

	event.CurSource = strField(raw, "cur_source")
	event.CurMedium = strField(raw, "cur_medium")
	event.CurCampaign = strField(raw, "cur_campaign")
	event.CurContent = strField(raw, "cur_content")
	event.CurTerm = strField(raw, "cur_term")
	event.GCLID = strField(raw, "gclid")
	event.GAClientID = strField(raw, "ga_client_id")

	switch eventType {
	case models.EventTypeLead:
		event.AcqSource = strField(raw, "acq_source")
		event.AcqCampaign = strField(raw, "acq_campaign")
		event.AcqTerm = strField(raw, "acq_term")
		event.AcqDate = strField(raw, "acq_date")
		event.AcqFormTitle = strField(raw, "acq_form_title")
	case models.EventTypePurchase:
		event.AcqSource = strField(raw, "acq_source")
		event.AcqCampaign = strField(raw, "acq_campaign")
		event.AcqTerm = strField(raw, "acq_term")
		event.AcqDate = strField(raw, "acq_date")
		event.AcqFormTitle = strField(raw, "acq_form_title")
		event.PurchaseOffer = strField(raw, "purchase_offer")
		event.PurchasePublisher = strField(raw, "purchase_publisher")
		event.PurchaseAmount = floatField(raw, "purchase_amount")
		event.PurchaseTrafficSource = strField(raw, "purchase_traffic_source")
	}

	residual := map[string]interface{}{}
	for k, v := range raw {
		if !knownFields[k] {
			residual[k] = v
		}
	}
	if len(residual) > 0 {
		if encoded, err := json.Marshal(residual); err == nil {
			event.EventData = encoded
		}
	}

	event.CreatedAt = time.Now()
	return event
}

func strField(raw map[string]interface{}, key string) string {
	if v, ok := raw[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func floatField(raw map[string]interface{}, key string) float64 {
	if v, ok := raw[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return 0
}

func blockedReason(v validator.Verdict) string {
	if v.IsBot {
		return "bot_detected:" + v.BotReason
	}
	return "validation_failed:" + strings.Join(v.Errors, ",")
}

