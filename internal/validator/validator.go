// Package validator runs the pre-persistence bot-detection and
// email/phone validity pipeline over an incoming submission.
package validator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/cflagle/unified-events/internal/registries"
)

// DefaultHoneypotFields are the form fields a real submitter never fills
// in; any non-empty value here is treated as a bot signature.
var DefaultHoneypotFields = []string{"zipcode", "phonenumber"}

var emailFormatRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Verdict is the Validator's output, folded into the Processor's intake
// decision.
type Verdict struct {
	Valid                 bool
	IsBot                 bool
	BotReason             string
	EmailValid            *bool
	EmailStatus           models.EmailValidationStatus
	EmailValidationSource string // "cache" or ""
	NeedsRevalidation     bool
	CanonicalPhone        string
	Errors                []string
}

// Validator runs the honeypot/known-bot/cached-validity/format/phone
// pipeline.
type Validator struct {
	bots            *registries.BotRegistry
	emails          *registries.EmailRegistry
	honeypotFields  []string
}

// Config customizes the honeypot field set; zero value uses the default.
type Config struct {
	HoneypotFields []string
}

func New(bots *registries.BotRegistry, emails *registries.EmailRegistry, cfg Config) *Validator {
	fields := cfg.HoneypotFields
	if len(fields) == 0 {
		fields = DefaultHoneypotFields
	}
	return &Validator{bots: bots, emails: emails, honeypotFields: fields}
}

// Submission is the raw map the Processor is about to turn into an Event.
type Submission struct {
	Email    string
	Phone    string
	IP       string
	EmailMD5 string
	Raw      map[string]interface{}
}

// Validate runs the full pipeline and returns a verdict. It never returns
// an error: registry outages are folded into the verdict as best-effort
// misses rather than blocking the submission.
func (v *Validator) Validate(ctx context.Context, sub Submission) Verdict {
	verdict := Verdict{Valid: true}

	var triggered []string
	for _, field := range v.honeypotFields {
		if val, ok := sub.Raw[field]; ok {
			if s, ok := val.(string); ok && strings.TrimSpace(s) != "" {
				triggered = append(triggered, field)
			}
		}
	}
	if len(triggered) > 0 {
		verdict.Valid = false
		verdict.IsBot = true
		verdict.BotReason = "honeypot_triggered"
		v.bots.RecordHoneypot(ctx, sub.Email, sub.Phone, sub.IP, triggered)
		return verdict
	}

	if known, reason, err := v.bots.IsKnownBot(ctx, sub.Email, sub.Phone, sub.IP); err == nil && known {
		verdict.Valid = false
		verdict.IsBot = true
		verdict.BotReason = reason
		return verdict
	}

	if sub.Email != "" && sub.EmailMD5 != "" {
		result, err := v.emails.Lookup(ctx, sub.EmailMD5)
		if err == nil && result.Found {
			emailValid := result.EmailValid
			verdict.EmailValid = &emailValid
			verdict.EmailStatus = result.Status
			verdict.EmailValidationSource = "cache"
			verdict.NeedsRevalidation = result.NeedsRevalidation
			if !emailValid {
				verdict.Valid = false
				verdict.Errors = append(verdict.Errors, "Email address is invalid")
			}
		}
	}

	if sub.Email != "" && !emailFormatRe.MatchString(sub.Email) {
		verdict.Valid = false
		falseVal := false
		verdict.EmailValid = &falseVal
		verdict.Errors = append(verdict.Errors, "Email address format is invalid")
	}

	if sub.Phone != "" {
		if canonical, err := CanonicalizePhone(sub.Phone); err != nil {
			verdict.Errors = append(verdict.Errors, fmt.Sprintf("phone: %v", err))
		} else {
			verdict.CanonicalPhone = canonical
		}
	}

	return verdict
}

// CanonicalizePhone reduces a phone string to its digits and normalizes
// to an 11-digit, leading-1 form. Ten digits get a leading 1 prepended;
// eleven digits not already leading with 1 are rejected as ambiguous.
func CanonicalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	d := digits.String()
	switch len(d) {
	case 10:
		return "1" + d, nil
	case 11:
		if d[0] == '1' {
			return d, nil
		}
		return "", fmt.Errorf("11-digit phone must lead with 1: %q", raw)
	default:
		return "", fmt.Errorf("cannot canonicalize phone %q: expected 10 or 11 digits, got %d", raw, len(d))
	}
}
