package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// BotSeverity is the escalation level assigned to a repeat offender.
type BotSeverity string

const (
	BotSeverityLow    BotSeverity = "low"
	BotSeverityMedium BotSeverity = "medium"
	BotSeverityHigh   BotSeverity = "high"
)

const (
	BotSeverityMediumThreshold = 5
	BotSeverityHighThreshold   = 10
)

// IdentifierType names which field of a submission a BotEntry is keyed on.
type IdentifierType string

const (
	IdentifierEmail IdentifierType = "email"
	IdentifierPhone IdentifierType = "phone"
	IdentifierIP    IdentifierType = "ip"
)

// BotEntry is a known-offender record keyed by (identifier_type,
// identifier_value). Repeat submissions bump attempt_count, widen the
// associated-identifier sets, and escalate severity.
type BotEntry struct {
	ID               int64          `json:"id" gorm:"primary_key;autoIncrement"`
	IdentifierType   IdentifierType `json:"identifierType" gorm:"type:varchar(10);not null;uniqueIndex:idx_bot_identifier"`
	IdentifierValue  string         `json:"identifierValue" gorm:"type:varchar(255);not null;uniqueIndex:idx_bot_identifier"`
	DetectionMethod  string         `json:"detectionMethod" gorm:"type:varchar(50)"`
	HoneypotFields   datatypes.JSON `json:"honeypotFields" gorm:"type:jsonb"`
	AssociatedEmails datatypes.JSON `json:"associatedEmails" gorm:"type:jsonb"`
	AssociatedPhones datatypes.JSON `json:"associatedPhones" gorm:"type:jsonb"`
	AssociatedIPs    datatypes.JSON `json:"associatedIps" gorm:"type:jsonb"`
	AttemptCount     int            `json:"attemptCount" gorm:"default:1"`
	Severity         BotSeverity    `json:"severity" gorm:"type:varchar(20);not null;default:'low'"`
	FirstSeenAt      time.Time      `json:"firstSeenAt"`
	LastSeenAt       time.Time      `json:"lastSeenAt"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

func (BotEntry) TableName() string { return "bot_registry" }

// SeverityForCount derives the severity tier for an accumulated attempt count.
func SeverityForCount(count int) BotSeverity {
	switch {
	case count >= BotSeverityHighThreshold:
		return BotSeverityHigh
	case count >= BotSeverityMediumThreshold:
		return BotSeverityMedium
	default:
		return BotSeverityLow
	}
}

// AssociatedSet decodes one of the three associated-identifier columns
// into a string set, treating an empty column as an empty set.
func AssociatedSet(raw datatypes.JSON) map[string]bool {
	out := map[string]bool{}
	if len(raw) == 0 {
		return out
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return out
	}
	for _, v := range list {
		out[v] = true
	}
	return out
}

// EncodeAssociatedSet re-encodes a string set back to JSON for storage.
func EncodeAssociatedSet(set map[string]bool) datatypes.JSON {
	list := make([]string, 0, len(set))
	for v := range set {
		list = append(list, v)
	}
	b, _ := json.Marshal(list)
	return datatypes.JSON(b)
}

// ContainsAssociated reports whether value is present among the decoded set.
func ContainsAssociated(raw datatypes.JSON, value string) bool {
	if value == "" {
		return false
	}
	return AssociatedSet(raw)[value]
}

// EmailValidationEntry caches a prior validation verdict for an email,
// keyed by its MD5 so the validator can short-circuit a fresh platform
// call.
type EmailValidationEntry struct {
	ID           int64                 `json:"id" gorm:"primary_key;autoIncrement"`
	EmailMD5     string                `json:"emailMd5" gorm:"type:varchar(32);not null;uniqueIndex"`
	Email        string                `json:"email" gorm:"type:varchar(255)"`
	Status       EmailValidationStatus `json:"status" gorm:"type:varchar(20);not null"`
	SubStatus    string                `json:"subStatus" gorm:"type:varchar(100)"`
	ZBLastActive *int                  `json:"zbLastActive"`
	ValidationCount int                `json:"validationCount" gorm:"default:1"`
	ValidatedAt  time.Time             `json:"validatedAt"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

func (EmailValidationEntry) TableName() string { return "email_validation_registry" }

// permanentInvalidSubStatuses are sub-statuses that never warrant
// revalidation regardless of cache age.
var permanentInvalidSubStatuses = map[string]bool{
	"mailbox_not_found": true,
	"mailbox_invalid":   true,
	"no_dns_entries":    true,
}

// IsPermanentlyInvalid reports whether this cached verdict should never
// be revalidated, independent of cache-age rules.
func (e *EmailValidationEntry) IsPermanentlyInvalid() bool {
	return e.Status == EmailValidationInvalid && permanentInvalidSubStatuses[e.SubStatus]
}

// IsStale reports whether the cached verdict is older than the given
// number of days and thus eligible for revalidation.
func (e *EmailValidationEntry) IsStale(now time.Time, cacheDays int) bool {
	if e.IsPermanentlyInvalid() {
		return false
	}
	return now.Sub(e.ValidatedAt) > time.Duration(cacheDays)*24*time.Hour
}
