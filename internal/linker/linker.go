// Package linker attributes a purchase back to the lead that acquired the
// same person, carrying over acquisition attribution and recording a
// directed relationship between the two events.
package linker

import (
	"context"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/sirupsen/logrus"
)

type Linker struct {
	store  store.RelationshipStore
	events store.EventStore
	logger *logrus.Entry
}

func New(events store.EventStore, relationships store.RelationshipStore, logger *logrus.Logger) *Linker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Linker{store: relationships, events: events, logger: logger.WithField("component", "linker")}
}

// Link attaches purchase to the newest prior lead sharing its email, if one
// exists. Failures are logged and swallowed — linking is a best-effort
// enrichment step, never a blocker for the purchase's own fanout.
func (l *Linker) Link(ctx context.Context, purchase *models.Event) {
	if purchase.EventType != models.EventTypePurchase || purchase.Email == "" {
		return
	}

	lead, err := l.store.FindLeadForPurchase(ctx, purchase.Email, purchase.Phone)
	if err != nil {
		l.logger.WithError(err).WithField("event_id", purchase.EventID).Warn("lead lookup failed")
		return
	}
	if lead == nil || lead.ID == purchase.ID {
		return
	}

	if purchase.Acquisition().IsEmpty() {
		purchase.SetAcquisition(lead.Acquisition())
		if err := l.events.UpdateEvent(ctx, purchase); err != nil {
			l.logger.WithError(err).WithField("event_id", purchase.EventID).Warn("attribution carry-over persist failed")
		}
	}

	rel := &models.EventRelationship{
		FromEventID:      lead.EventID,
		ToEventID:        purchase.EventID,
		RelationshipType: models.RelationshipPurchaseOfLead,
		MatchedOnEmail:   lead.Email != "" && lead.Email == purchase.Email,
		MatchedOnIP:      lead.IP != "" && lead.IP == purchase.IP,
	}
	if err := l.store.CreateRelationship(ctx, rel); err != nil {
		l.logger.WithError(err).WithField("event_id", purchase.EventID).Warn("relationship persist failed")
	}
}
