package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cflagle/unified-events/internal/models"
)

// MonetizationAdapter posts a purchase to a pay-per-lead platform whose API
// replies with a raw "Success"/other string body rather than structured
// JSON. Revenue is recorded only on the literal "Success" response, at the
// platform's configured revenue_per_lead.
type MonetizationAdapter struct {
	endpoint       string
	revenuePerLead float64
	httpClient     *http.Client
}

func NewMonetizationAdapter(cfg Config) (*MonetizationAdapter, error) {
	endpoint := cfg.str("endpoint")
	if endpoint == "" {
		return nil, errMissingConfig("monetization", "endpoint")
	}
	return &MonetizationAdapter{
		endpoint:       endpoint,
		revenuePerLead: cfg.RevenuePerLead,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (a *MonetizationAdapter) Name() string { return "monetization" }

func (a *MonetizationAdapter) Send(ctx context.Context, event *models.Event) (*Result, error) {
	form := url.Values{}
	form.Set("email", event.Email)
	form.Set("phone", event.Phone)
	form.Set("first_name", event.FirstName)
	form.Set("last_name", event.LastName)
	form.Set("ip", event.IP)
	form.Set("offer", event.PurchaseOffer)
	form.Set("amount", fmt.Sprintf("%.2f", event.PurchaseAmount))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monetization: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	bodyStr := strings.TrimSpace(string(body))

	result := &Result{
		Success:      resp.StatusCode >= 200 && resp.StatusCode < 300,
		ResponseCode: resp.StatusCode,
		ResponseBody: bodyStr,
	}
	if bodyStr == "Success" {
		revenue := a.revenuePerLead
		result.Revenue = &revenue
		result.RevenueStatus = "confirmed"
	} else {
		result.RevenueStatus = "declined"
	}
	return result, nil
}
