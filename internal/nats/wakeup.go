package nats

import (
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// WakeupSubject is the fire-and-forget channel enqueue publishes on so an
// idle worker can skip its poll-interval sleep.
const WakeupSubject = "unified-events.jobs.ready"

// PublishJobReady publishes a wake-up hint. Failures are logged and
// swallowed: the worker's poll loop is the correctness backstop.
func (c *Client) PublishJobReady(eventID uuid.UUID) {
	if c == nil || c.conn == nil {
		return
	}
	if err := c.conn.Publish(WakeupSubject, []byte(eventID.String())); err != nil {
		c.logger.WithError(err).Debug("wake-up publish failed")
	}
}

// SubscribeJobReady invokes handler for every wake-up hint until the
// subscription is unsubscribed or the connection closes. The handler
// receives no guarantee of delivery or ordering — it's a hint to re-poll,
// not an instruction to process a specific job.
func (c *Client) SubscribeJobReady(handler func()) (*Subscription, error) {
	if c == nil || c.conn == nil {
		return nil, nil
	}
	sub, err := c.conn.Subscribe(WakeupSubject, func(msg *nats.Msg) {
		handler()
	})
	if err != nil {
		return nil, err
	}
	return &Subscription{sub: sub}, nil
}

// Subscription wraps a live NATS subscription so callers don't need to
// import nats.go directly.
type Subscription struct {
	sub *nats.Subscription
}

func (s *Subscription) Unsubscribe() error {
	if s == nil || s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}
