package validator

import (
	"context"
	"testing"
	"time"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/registries"
	"github.com/cflagle/unified-events/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistryStore is an in-memory store.RegistryStore for exercising the
// Validator pipeline without a database.
type fakeRegistryStore struct {
	botEntry      *models.BotEntry
	emailEntry    *models.EmailValidationEntry
	hits          []store.BotHit
	upsertedEmail []*models.EmailValidationEntry
}

func (f *fakeRegistryStore) FindBotEntryByIdentifiers(ctx context.Context, email, phone, ip string) (*models.BotEntry, error) {
	return f.botEntry, nil
}

func (f *fakeRegistryStore) UpsertBotHit(ctx context.Context, hit store.BotHit, now time.Time) error {
	f.hits = append(f.hits, hit)
	return nil
}

func (f *fakeRegistryStore) FindEmailValidation(ctx context.Context, emailMD5 string) (*models.EmailValidationEntry, error) {
	return f.emailEntry, nil
}

func (f *fakeRegistryStore) UpsertEmailValidation(ctx context.Context, e *models.EmailValidationEntry) error {
	f.upsertedEmail = append(f.upsertedEmail, e)
	return nil
}

func newTestValidator(s *fakeRegistryStore) *Validator {
	bots := registries.NewBotRegistry(s, nil)
	emails := registries.NewEmailRegistry(s, 30, nil)
	return New(bots, emails, Config{})
}

func TestValidate_HoneypotTriggered(t *testing.T) {
	s := &fakeRegistryStore{}
	v := newTestValidator(s)

	verdict := v.Validate(context.Background(), Submission{
		Email: "real@example.com",
		Raw:   map[string]interface{}{"zipcode": "90210"},
	})

	assert.False(t, verdict.Valid)
	assert.True(t, verdict.IsBot)
	assert.Equal(t, "honeypot_triggered", verdict.BotReason)
	require.Len(t, s.hits, 1)
	assert.Equal(t, models.IdentifierEmail, s.hits[0].PrimaryType)
}

func TestValidate_HoneypotIgnoresBlankValue(t *testing.T) {
	s := &fakeRegistryStore{}
	v := newTestValidator(s)

	verdict := v.Validate(context.Background(), Submission{
		Email: "real@example.com",
		Raw:   map[string]interface{}{"zipcode": "   "},
	})

	assert.True(t, verdict.Valid)
	assert.False(t, verdict.IsBot)
	assert.Empty(t, s.hits)
}

func TestValidate_KnownBot(t *testing.T) {
	s := &fakeRegistryStore{botEntry: &models.BotEntry{}}
	v := newTestValidator(s)

	verdict := v.Validate(context.Background(), Submission{Email: "bad@example.com"})

	assert.False(t, verdict.Valid)
	assert.True(t, verdict.IsBot)
	assert.Equal(t, "known_bot", verdict.BotReason)
}

func TestValidate_CachedEmailInvalid(t *testing.T) {
	s := &fakeRegistryStore{
		emailEntry: &models.EmailValidationEntry{
			Status:      models.EmailValidationInvalid,
			ValidatedAt: time.Now(),
		},
	}
	v := newTestValidator(s)

	verdict := v.Validate(context.Background(), Submission{
		Email:    "bad@example.com",
		EmailMD5: "deadbeef",
	})

	require.NotNil(t, verdict.EmailValid)
	assert.False(t, *verdict.EmailValid)
	assert.False(t, verdict.Valid)
	assert.Equal(t, "cache", verdict.EmailValidationSource)
	assert.Contains(t, verdict.Errors, "Email address is invalid")
}

func TestValidate_CachedEmailValidStatusesPass(t *testing.T) {
	for _, status := range []models.EmailValidationStatus{
		models.EmailValidationValid, models.EmailValidationCatchAll,
		models.EmailValidationUnknown, models.EmailValidationRole,
	} {
		t.Run(string(status), func(t *testing.T) {
			s := &fakeRegistryStore{
				emailEntry: &models.EmailValidationEntry{Status: status, ValidatedAt: time.Now()},
			}
			v := newTestValidator(s)
			verdict := v.Validate(context.Background(), Submission{Email: "ok@example.com", EmailMD5: "abc"})
			require.NotNil(t, verdict.EmailValid)
			assert.True(t, *verdict.EmailValid)
			assert.True(t, verdict.Valid)
		})
	}
}

func TestValidate_MalformedEmailFormat(t *testing.T) {
	s := &fakeRegistryStore{}
	v := newTestValidator(s)

	verdict := v.Validate(context.Background(), Submission{Email: "not-an-email"})

	assert.False(t, verdict.Valid)
	require.NotNil(t, verdict.EmailValid)
	assert.False(t, *verdict.EmailValid)
	assert.Contains(t, verdict.Errors, "Email address format is invalid")
}

func TestValidate_BadPhoneRecordsErrorButStaysValid(t *testing.T) {
	s := &fakeRegistryStore{}
	v := newTestValidator(s)

	verdict := v.Validate(context.Background(), Submission{Email: "ok@example.com", Phone: "123"})

	assert.True(t, verdict.Valid)
	require.Len(t, verdict.Errors, 1)
	assert.Contains(t, verdict.Errors[0], "phone:")
}

func TestValidate_CleanSubmissionPasses(t *testing.T) {
	s := &fakeRegistryStore{}
	v := newTestValidator(s)

	verdict := v.Validate(context.Background(), Submission{
		Email: "jane@example.com", Phone: "5551234567", IP: "203.0.113.5",
	})

	assert.True(t, verdict.Valid)
	assert.False(t, verdict.IsBot)
	assert.Empty(t, verdict.Errors)
}

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"ten digits", "555-123-4567", "15551234567", false},
		{"eleven digits leading one", "1 (555) 123-4567", "15551234567", false},
		{"formatted with parens and dots", "(555).123.4567", "15551234567", false},
		{"eleven digits not leading one", "25551234567", "", true},
		{"too short", "12345", "", true},
		{"too long", "123456789012", "", true},
		{"empty", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CanonicalizePhone(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
