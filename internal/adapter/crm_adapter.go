package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cflagle/unified-events/internal/models"
	"github.com/sendgrid/sendgrid-go"
)

// CRMAdapter syncs a lead/purchase into SendGrid's marketing contacts list.
// Every send upserts the full contact (names, phone, acquisition source and
// campaign), whether or not it already exists; a contact that already
// existed additionally gets a second, narrower call that only sets
// last_submission_at.
type CRMAdapter struct {
	apiKey string
	host   string
}

func NewCRMAdapter(cfg Config) (*CRMAdapter, error) {
	apiKey := cfg.str("api_key")
	if apiKey == "" {
		return nil, errMissingConfig("crm", "api_key")
	}
	return &CRMAdapter{
		apiKey: apiKey,
		host:   cfg.strDefault("host", "https://api.sendgrid.com"),
	}, nil
}

func (a *CRMAdapter) Name() string { return "crm" }

type sgContact struct {
	Email        string                 `json:"email"`
	FirstName    string                 `json:"first_name,omitempty"`
	LastName     string                 `json:"last_name,omitempty"`
	PhoneNumber  string                 `json:"phone_number,omitempty"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty"`
}

type sgContactsRequest struct {
	Contacts []sgContact `json:"contacts"`
}

type sgSearchRequest struct {
	Query string `json:"query"`
}

type sgSearchResponse struct {
	ContactCount int `json:"contact_count"`
}

func (a *CRMAdapter) Send(ctx context.Context, event *models.Event) (*Result, error) {
	existed, err := a.contactExists(event.Email)
	if err != nil {
		return nil, fmt.Errorf("crm: lookup existing contact: %w", err)
	}

	contact := sgContact{
		Email:       event.Email,
		FirstName:   event.FirstName,
		LastName:    event.LastName,
		PhoneNumber: event.Phone,
		CustomFields: map[string]interface{}{
			"acq_source":   event.AcqSource,
			"acq_campaign": event.AcqCampaign,
		},
	}
	code, body, err := a.upsert([]sgContact{contact})
	if err != nil {
		return nil, fmt.Errorf("crm: upsert contact: %w", err)
	}

	if existed {
		// Second, narrower call: bump last_submission_at without
		// clobbering any fields the contact has picked up since.
		touch := sgContact{
			Email: event.Email,
			CustomFields: map[string]interface{}{
				"last_submission_at": time.Now().UTC().Format(time.RFC3339),
			},
		}
		if _, _, err := a.upsert([]sgContact{touch}); err != nil {
			return nil, fmt.Errorf("crm: touch last_submission_at: %w", err)
		}
	}

	return &Result{
		Success:      code >= 200 && code < 300,
		ResponseCode: code,
		ResponseBody: body,
		ProviderData: map[string]interface{}{"existed": existed},
	}, nil
}

func (a *CRMAdapter) upsert(contacts []sgContact) (int, string, error) {
	payload, err := json.Marshal(sgContactsRequest{Contacts: contacts})
	if err != nil {
		return 0, "", err
	}
	req := sendgrid.GetRequest(a.apiKey, "/v3/marketing/contacts", a.host)
	req.Method = "PUT"
	req.Body = payload
	resp, err := sendgrid.API(req)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, resp.Body, nil
}

func (a *CRMAdapter) contactExists(email string) (bool, error) {
	query := fmt.Sprintf("email LIKE '%s'", strings.ReplaceAll(email, "'", ""))
	payload, err := json.Marshal(sgSearchRequest{Query: query})
	if err != nil {
		return false, err
	}
	req := sendgrid.GetRequest(a.apiKey, "/v3/marketing/contacts/search", a.host)
	req.Method = "POST"
	req.Body = payload
	resp, err := sendgrid.API(req)
	if err != nil {
		return false, err
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("sendgrid search error: %d - %s", resp.StatusCode, resp.Body)
	}
	var search sgSearchResponse
	if err := json.Unmarshal([]byte(resp.Body), &search); err != nil {
		return false, err
	}
	return search.ContactCount > 0, nil
}
