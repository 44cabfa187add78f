package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/cflagle/unified-events/internal/models"
)

// analyticsEvent is the envelope published to the analytics topic. The
// mandatory identify/event pair carries the full attribution set; sms_opt_in
// and co_branding are published as separate, best-effort sub-events so a
// downstream failure on either never blocks the primary event.
type analyticsEvent struct {
	Kind       string                 `json:"kind"`
	EventID    string                 `json:"event_id"`
	EventType  string                 `json:"event_type"`
	Email      string                 `json:"email"`
	Phone      string                 `json:"phone"`
	Properties map[string]interface{} `json:"properties"`
	Timestamp  time.Time              `json:"timestamp"`
}

// AnalyticsAdapter publishes identify/event (and opportunistic sub-events)
// to a Google Cloud Pub/Sub topic.
type AnalyticsAdapter struct {
	client  *pubsub.Client
	topic   *pubsub.Topic
	smsOptIn bool
	coBrand  bool
}

func NewAnalyticsAdapter(ctx context.Context, cfg Config) (*AnalyticsAdapter, error) {
	projectID := cfg.str("project_id")
	topicID := cfg.str("topic_id")
	if projectID == "" || topicID == "" {
		return nil, errMissingConfig("analytics", "project_id/topic_id")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("analytics: pubsub client: %w", err)
	}
	return &AnalyticsAdapter{
		client:   client,
		topic:    client.Topic(topicID),
		smsOptIn: boolConfig(cfg, "sms_opt_in_enabled"),
		coBrand:  boolConfig(cfg, "co_branding_enabled"),
	}, nil
}

func boolConfig(cfg Config, key string) bool {
	if v, ok := cfg.Raw[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func (a *AnalyticsAdapter) Name() string { return "analytics" }

func (a *AnalyticsAdapter) Send(ctx context.Context, event *models.Event) (*Result, error) {
	now := time.Now().UTC()
	props := map[string]interface{}{
		"acq_source":     event.AcqSource,
		"acq_campaign":   event.AcqCampaign,
		"cur_source":     event.CurSource,
		"cur_medium":     event.CurMedium,
		"purchase_offer": event.PurchaseOffer,
	}
	if event.EventType == models.EventTypePurchase {
		props["purchase_amount"] = event.PurchaseAmount
	}

	identify := analyticsEvent{Kind: "identify", EventID: event.EventID.String(), EventType: string(event.EventType), Email: event.Email, Phone: event.Phone, Properties: props, Timestamp: now}
	track := analyticsEvent{Kind: "event", EventID: event.EventID.String(), EventType: string(event.EventType), Email: event.Email, Phone: event.Phone, Properties: props, Timestamp: now}

	if err := a.publish(ctx, identify); err != nil {
		return nil, fmt.Errorf("analytics: publish identify: %w", err)
	}
	if err := a.publish(ctx, track); err != nil {
		return nil, fmt.Errorf("analytics: publish event: %w", err)
	}

	var suberrors []string
	if a.smsOptIn && event.Phone != "" {
		if err := a.publish(ctx, analyticsEvent{Kind: "sms_opt_in", EventID: event.EventID.String(), EventType: string(event.EventType), Phone: event.Phone, Timestamp: now}); err != nil {
			suberrors = append(suberrors, fmt.Sprintf("sms_opt_in: %v", err))
		}
	}
	if a.coBrand {
		if err := a.publish(ctx, analyticsEvent{Kind: "co_branding", EventID: event.EventID.String(), EventType: string(event.EventType), Email: event.Email, Timestamp: now}); err != nil {
			suberrors = append(suberrors, fmt.Sprintf("co_branding: %v", err))
		}
	}

	return &Result{
		Success:      true,
		ResponseCode: 200,
		ResponseBody: "published",
		ProviderData: map[string]interface{}{"sub_event_errors": suberrors},
	}, nil
}

func (a *AnalyticsAdapter) publish(ctx context.Context, e analyticsEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	result := a.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: e.EventID,
		Attributes:  map[string]string{"kind": e.Kind, "event_type": e.EventType},
	})
	_, err = result.Get(ctx)
	return err
}
