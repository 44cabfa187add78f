package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cflagle/unified-events/internal/models"
)

// ValidationResponse is ZeroBounce's validate-email response shape.
type ValidationResponse struct {
	Address      string `json:"address"`
	Status       string `json:"status"`
	SubStatus    string `json:"sub_status"`
	ZBLastActive string `json:"active_in_days"`
}

// ValidationAdapter calls a ZeroBounce-shaped email verification API via a
// plain GET request. No ZeroBounce Go SDK is available as a dependency, and
// the API surface used here is a single query-string GET with a JSON
// response — not enough to justify adding one regardless.
type ValidationAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewValidationAdapter(cfg Config) (*ValidationAdapter, error) {
	apiKey := cfg.str("api_key")
	if apiKey == "" {
		return nil, errMissingConfig("validation", "api_key")
	}
	return &ValidationAdapter{
		apiKey:     apiKey,
		baseURL:    cfg.strDefault("base_url", "https://api.zerobounce.net/v2/validate"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (a *ValidationAdapter) Name() string { return "validation" }

func (a *ValidationAdapter) Send(ctx context.Context, event *models.Event) (*Result, error) {
	q := url.Values{}
	q.Set("api_key", a.apiKey)
	q.Set("email", event.Email)
	if event.IP != "" {
		q.Set("ip_address", event.IP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("validation: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return &Result{Success: false, ResponseCode: resp.StatusCode, ResponseBody: string(body)}, nil
	}

	var parsed ValidationResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("validation: decode response: %w", err)
	}

	data := map[string]interface{}{
		"status":     parsed.Status,
		"sub_status": parsed.SubStatus,
	}
	if days, err := strconv.Atoi(parsed.ZBLastActive); err == nil {
		data["active_in_days"] = days
	}

	return &Result{
		Success:      true,
		ResponseCode: resp.StatusCode,
		ResponseBody: string(body),
		ProviderData: data,
	}, nil
}
