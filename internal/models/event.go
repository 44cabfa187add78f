package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventType identifies the kind of submission an Event records.
type EventType string

const (
	EventTypeLead       EventType = "lead"
	EventTypePurchase   EventType = "purchase"
	EventTypeEmailOpen  EventType = "email_open"
	EventTypeEmailClick EventType = "email_click"
)

// EventStatus is the lifecycle state of an Event.
type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusProcessing EventStatus = "processing"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusFailed     EventStatus = "failed"
	EventStatusBlocked    EventStatus = "blocked"
)

// EmailValidationStatus is the canonical verdict recorded on an Event.
type EmailValidationStatus string

const (
	EmailValidationValid      EmailValidationStatus = "valid"
	EmailValidationInvalid    EmailValidationStatus = "invalid"
	EmailValidationCatchAll   EmailValidationStatus = "catch-all"
	EmailValidationUnknown    EmailValidationStatus = "unknown"
	EmailValidationRole       EmailValidationStatus = "role"
	EmailValidationDisposable EmailValidationStatus = "disposable"
)

// AcquisitionBlock is the first-touch attribution recorded with an Event.
type AcquisitionBlock struct {
	Source    string `json:"acq_source,omitempty"`
	Campaign  string `json:"acq_campaign,omitempty"`
	Term      string `json:"acq_term,omitempty"`
	Date      string `json:"acq_date,omitempty"`
	FormTitle string `json:"acq_form_title,omitempty"`
}

// IsEmpty reports whether every field of the block is unset, the condition
// the linker uses to decide whether to carry over a lead's attribution.
func (a AcquisitionBlock) IsEmpty() bool {
	return a.Source == "" && a.Campaign == "" && a.Term == "" && a.Date == "" && a.FormTitle == ""
}

// CurrentBlock is the current-touch attribution for this specific event.
type CurrentBlock struct {
	Source      string `json:"cur_source,omitempty"`
	Medium      string `json:"cur_medium,omitempty"`
	Campaign    string `json:"cur_campaign,omitempty"`
	Content     string `json:"cur_content,omitempty"`
	Term        string `json:"cur_term,omitempty"`
	GCLID       string `json:"gclid,omitempty"`
	GAClientID  string `json:"ga_client_id,omitempty"`
}

// PurchaseBlock holds purchase-only attributes, present iff EventType=purchase.
type PurchaseBlock struct {
	Offer         string  `json:"purchase_offer,omitempty"`
	Publisher     string  `json:"purchase_publisher,omitempty"`
	Amount        float64 `json:"purchase_amount,omitempty"`
	TrafficSource string  `json:"purchase_traffic_source,omitempty"`
}

// Event is the unit of intake: a single lead or purchase submission.
type Event struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventID uuid.UUID `json:"eventId" gorm:"type:uuid;not null;uniqueIndex"`

	EventType EventType `json:"eventType" gorm:"type:varchar(20);not null;index"`

	Email       string `json:"email" gorm:"type:varchar(255);index"`
	EmailMD5    string `json:"emailMd5" gorm:"type:varchar(32);index:idx_email_md5"`
	Phone       string `json:"phone" gorm:"type:varchar(20)"`
	FirstName   string `json:"firstName" gorm:"type:varchar(255)"`
	LastName    string `json:"lastName" gorm:"type:varchar(255)"`
	IP          string `json:"ip" gorm:"type:varchar(64)"`

	AcqSource    string `json:"acqSource" gorm:"type:varchar(255)"`
	AcqCampaign  string `json:"acqCampaign" gorm:"type:varchar(255)"`
	AcqTerm      string `json:"acqTerm" gorm:"type:varchar(255)"`
	AcqDate      string `json:"acqDate" gorm:"type:varchar(64)"`
	AcqFormTitle string `json:"acqFormTitle" gorm:"type:varchar(255)"`

	CurSource     string `json:"curSource" gorm:"type:varchar(255)"`
	CurMedium     string `json:"curMedium" gorm:"type:varchar(255)"`
	CurCampaign   string `json:"curCampaign" gorm:"type:varchar(255)"`
	CurContent    string `json:"curContent" gorm:"type:varchar(255)"`
	CurTerm       string `json:"curTerm" gorm:"type:varchar(255)"`
	GCLID         string `json:"gclid" gorm:"type:varchar(255)"`
	GAClientID    string `json:"gaClientId" gorm:"type:varchar(255)"`

	PurchaseOffer         string  `json:"purchaseOffer" gorm:"type:varchar(255)"`
	PurchasePublisher     string  `json:"purchasePublisher" gorm:"type:varchar(255)"`
	PurchaseAmount        float64 `json:"purchaseAmount" gorm:"type:decimal(12,2)"`
	PurchaseTrafficSource string  `json:"purchaseTrafficSource" gorm:"type:varchar(255)"`

	EmailValidationStatus *EmailValidationStatus `json:"emailValidationStatus" gorm:"type:varchar(20)"`
	ZBLastActive          *int                   `json:"zbLastActive"`

	EventData datatypes.JSON `json:"eventData" gorm:"type:jsonb"`

	Status        EventStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	BlockedReason string      `json:"blockedReason" gorm:"type:text"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Event) TableName() string { return "events" }

// Acquisition returns the event's acquisition block as a value type.
func (e *Event) Acquisition() AcquisitionBlock {
	return AcquisitionBlock{
		Source:    e.AcqSource,
		Campaign:  e.AcqCampaign,
		Term:      e.AcqTerm,
		Date:      e.AcqDate,
		FormTitle: e.AcqFormTitle,
	}
}

// SetAcquisition writes an acquisition block back onto the event.
func (e *Event) SetAcquisition(a AcquisitionBlock) {
	e.AcqSource = a.Source
	e.AcqCampaign = a.Campaign
	e.AcqTerm = a.Term
	e.AcqDate = a.Date
	e.AcqFormTitle = a.FormTitle
}

// IsTerminal reports whether the event has reached a terminal lifecycle state.
func (e *Event) IsTerminal() bool {
	return e.Status == EventStatusCompleted || e.Status == EventStatusBlocked || e.Status == EventStatusFailed
}

// EmailDomain returns the part of the email after '@', lowercased.
func (e *Event) EmailDomain() string {
	at := -1
	for i := 0; i < len(e.Email); i++ {
		if e.Email[i] == '@' {
			at = i
			break
		}
	}
	if at < 0 || at == len(e.Email)-1 {
		return ""
	}
	return toLower(e.Email[at+1:])
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
