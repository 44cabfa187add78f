package adapter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cflagle/unified-events/internal/models"
)

// EmailListAdapter syncs a contact into a Mautic list via its REST API.
type EmailListAdapter struct {
	baseURL    string
	username   string
	password   string
	segmentID  int
	httpClient *http.Client
}

func NewEmailListAdapter(cfg Config) (*EmailListAdapter, error) {
	baseURL := cfg.str("base_url")
	username := cfg.str("username")
	password := cfg.str("password")
	if baseURL == "" || username == "" || password == "" {
		return nil, errMissingConfig("emaillist", "base_url/username/password")
	}
	segmentID := 0
	if v, ok := cfg.Raw["segment_id"]; ok {
		if f, ok := v.(float64); ok {
			segmentID = int(f)
		}
	}
	return &EmailListAdapter{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		username:   username,
		password:   password,
		segmentID:  segmentID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *EmailListAdapter) Name() string { return "emaillist" }

type mauticContactResponse struct {
	Contact struct {
		ID int `json:"id"`
	} `json:"contact"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

func (a *EmailListAdapter) Send(ctx context.Context, event *models.Event) (*Result, error) {
	contactID, code, body, err := a.upsertContact(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("emaillist: upsert contact: %w", err)
	}

	if a.segmentID > 0 {
		if err := a.addToSegment(ctx, contactID); err != nil {
			return &Result{
				Success:      false,
				ResponseCode: code,
				ResponseBody: body,
				ProviderData: map[string]interface{}{"segment_error": err.Error()},
			}, nil
		}
	}

	return &Result{
		Success:      true,
		ResponseCode: code,
		ResponseBody: body,
		ProviderData: map[string]interface{}{"contact_id": contactID},
	}, nil
}

func (a *EmailListAdapter) upsertContact(ctx context.Context, event *models.Event) (int, int, string, error) {
	payload := map[string]interface{}{
		"email":              event.Email,
		"firstname":          event.FirstName,
		"lastname":           event.LastName,
		"phone":              event.Phone,
		"overwriteWithBlank": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/contacts/new", bytes.NewReader(body))
	if err != nil {
		return 0, 0, "", err
	}
	a.setAuthHeader(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, 0, "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, "", err
	}
	if resp.StatusCode >= 400 {
		return 0, resp.StatusCode, string(respBody), fmt.Errorf("mautic API error: %d - %s", resp.StatusCode, respBody)
	}

	var parsed mauticContactResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return 0, resp.StatusCode, string(respBody), err
	}
	if len(parsed.Errors) > 0 {
		return 0, resp.StatusCode, string(respBody), fmt.Errorf("mautic error: %s", parsed.Errors[0].Message)
	}
	return parsed.Contact.ID, resp.StatusCode, string(respBody), nil
}

func (a *EmailListAdapter) addToSegment(ctx context.Context, contactID int) error {
	endpoint := fmt.Sprintf("%s/api/segments/%d/contact/%d/add", a.baseURL, a.segmentID, contactID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	a.setAuthHeader(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("segment add error: %d - %s", resp.StatusCode, body)
	}
	return nil
}

func (a *EmailListAdapter) setAuthHeader(req *http.Request) {
	auth := base64.StdEncoding.EncodeToString([]byte(a.username + ":" + a.password))
	req.Header.Set("Authorization", "Basic "+auth)
}
