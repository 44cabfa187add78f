package registries

import (
	"context"
	"time"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/sirupsen/logrus"
)

// EmailValidationResult is the outcome of a cache lookup, folded into the
// Validator's verdict.
type EmailValidationResult struct {
	Found             bool
	EmailValid        bool
	Status            models.EmailValidationStatus
	NeedsRevalidation bool
}

// EmailRegistry caches ZeroBounce-shaped validation verdicts by email
// fingerprint so repeat submissions of the same address skip the
// platform round trip.
type EmailRegistry struct {
	store     store.RegistryStore
	cacheDays int
	logger    *logrus.Entry
}

func NewEmailRegistry(s store.RegistryStore, cacheDays int, logger *logrus.Logger) *EmailRegistry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cacheDays <= 0 {
		cacheDays = 30
	}
	return &EmailRegistry{store: s, cacheDays: cacheDays, logger: logger.WithField("component", "email_registry")}
}

// emailValidSet holds statuses the Validator treats as "deliverable enough
// to proceed."
var emailValidSet = map[models.EmailValidationStatus]bool{
	models.EmailValidationValid:    true,
	models.EmailValidationCatchAll: true,
	models.EmailValidationUnknown:  true,
	models.EmailValidationRole:     true,
}

// Lookup returns the cached verdict for emailMD5, or Found=false on a miss.
func (r *EmailRegistry) Lookup(ctx context.Context, emailMD5 string) (EmailValidationResult, error) {
	entry, err := r.store.FindEmailValidation(ctx, emailMD5)
	if err != nil {
		return EmailValidationResult{}, err
	}
	if entry == nil {
		return EmailValidationResult{}, nil
	}
	return EmailValidationResult{
		Found:             true,
		EmailValid:        emailValidSet[entry.Status],
		Status:            entry.Status,
		NeedsRevalidation: entry.IsStale(time.Now(), r.cacheDays),
	}, nil
}

// RecordValidation upserts the registry entry after a fresh validation
// platform call. Best-effort: logged, never fails the caller's job.
func (r *EmailRegistry) RecordValidation(ctx context.Context, email, emailMD5 string, status models.EmailValidationStatus, subStatus string, zbLastActive *int) {
	entry := &models.EmailValidationEntry{
		EmailMD5:     emailMD5,
		Email:        email,
		Status:       status,
		SubStatus:    subStatus,
		ZBLastActive: zbLastActive,
		ValidatedAt:  time.Now(),
	}
	if err := r.store.UpsertEmailValidation(ctx, entry); err != nil {
		r.logger.WithError(err).Warn("failed to record email validation")
	}
}
