// Package registries wraps the Store's bot and email-validation tables
// with the domain semantics the Validator needs: honeypot recording,
// known-bot lookup across primary and associated identifiers, and
// cached-validity lookup with TTL/permanent-invalid rules.
package registries

import (
	"context"
	"time"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/sirupsen/logrus"
)

// BotRegistry answers "is this submission from a known bad actor" and
// records new honeypot hits.
type BotRegistry struct {
	store  store.RegistryStore
	logger *logrus.Entry
}

func NewBotRegistry(s store.RegistryStore, logger *logrus.Logger) *BotRegistry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BotRegistry{store: s, logger: logger.WithField("component", "bot_registry")}
}

// RecordHoneypot upserts a BotEntry keyed on the submission's primary
// identifier (email if present, else IP, else phone), merging the other identifiers
// into the entry's associated sets. Side-effect failures are logged but
// never returned as a hard error — a registry outage must never block
// intake from deciding the event is a bot.
func (r *BotRegistry) RecordHoneypot(ctx context.Context, email, phone, ip string, honeypotFields []string) {
	primaryType := models.IdentifierPhone
	primaryValue := phone
	switch {
	case email != "":
		primaryType, primaryValue = models.IdentifierEmail, email
	case ip != "":
		primaryType, primaryValue = models.IdentifierIP, ip
	case phone != "":
		primaryType, primaryValue = models.IdentifierPhone, phone
	default:
		return
	}

	hit := store.BotHit{
		PrimaryType:     primaryType,
		PrimaryValue:    primaryValue,
		DetectionMethod: "honeypot_triggered",
		HoneypotFields:  honeypotFields,
		Email:           email,
		Phone:           phone,
		IP:              ip,
	}
	if err := r.store.UpsertBotHit(ctx, hit, time.Now()); err != nil {
		r.logger.WithError(err).Warn("failed to record honeypot hit")
	}
}

// IsKnownBot reports whether any of email/phone/ip matches an existing
// BotEntry's primary key or associated sets.
func (r *BotRegistry) IsKnownBot(ctx context.Context, email, phone, ip string) (bool, string, error) {
	entry, err := r.store.FindBotEntryByIdentifiers(ctx, email, phone, ip)
	if err != nil {
		return false, "", err
	}
	if entry == nil {
		return false, "", nil
	}
	return true, "known_bot", nil
}
