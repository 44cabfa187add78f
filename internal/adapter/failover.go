package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// SMSLeg is one provider in the SMS adapter's failover chain.
type SMSLeg interface {
	Name() string
	send(ctx context.Context, phone, body string) (*Result, error)
}

// FailoverChain tries each leg in order, stopping at the first success,
// accumulating errors from every leg that didn't.
type FailoverChain struct {
	legs []SMSLeg
}

func NewFailoverChain(legs []SMSLeg) *FailoverChain {
	return &FailoverChain{legs: legs}
}

func (f *FailoverChain) Send(ctx context.Context, phone, body string) (*Result, error) {
	if len(f.legs) == 0 {
		return nil, fmt.Errorf("sms failover: no legs configured")
	}

	start := time.Now()
	var allErrors []string
	for _, leg := range f.legs {
		result, err := leg.send(ctx, phone, body)
		if err == nil && result != nil && result.Success {
			if result.ProviderData == nil {
				result.ProviderData = map[string]interface{}{}
			}
			result.ProviderData["failover_provider"] = leg.Name()
			result.ProviderData["failover_total_duration"] = time.Since(start).String()
			if len(allErrors) > 0 {
				result.ProviderData["failover_attempts"] = allErrors
			}
			return result, nil
		}
		if err != nil {
			allErrors = append(allErrors, fmt.Sprintf("%s: %v", leg.Name(), err))
		} else if result != nil {
			allErrors = append(allErrors, fmt.Sprintf("%s: %s", leg.Name(), result.ResponseBody))
		}
	}

	return nil, fmt.Errorf("sms failover: all legs failed: %v", allErrors)
}

// TwilioLeg sends SMS via a plain REST call to Twilio's Messages API. No
// Twilio SDK is wired into this module's dependency set, so this talks to
// the API directly over net/http.
type TwilioLeg struct {
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
}

func NewTwilioLeg(accountSID, authToken, from string) *TwilioLeg {
	return &TwilioLeg{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (l *TwilioLeg) Name() string { return "Twilio" }

func (l *TwilioLeg) send(ctx context.Context, phone, body string) (*Result, error) {
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", l.accountSID)

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", l.from)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(l.accountSID, l.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !success {
		return &Result{Success: false, ResponseCode: resp.StatusCode, ResponseBody: string(respBody)}, nil
	}
	return &Result{
		Success:      true,
		ResponseCode: resp.StatusCode,
		ResponseBody: string(respBody),
		ProviderData: map[string]interface{}{"provider": "twilio"},
	}, nil
}
