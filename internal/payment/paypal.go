package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PayPal REST endpoints per environment.
const (
	paypalLiveBase    = "https://api-m.paypal.com"
	paypalSandboxBase = "https://api-m.sandbox.paypal.com"
)

// PayPalConfig carries the credentials and environment selection for the
// PayPal client. WebhookID identifies the webhook subscription whose
// deliveries we verify.
type PayPalConfig struct {
	ClientID  string
	Secret    string
	WebhookID string
	Live      bool
}

// PayPalClient implements Gateway against the PayPal Orders v2 API.
type PayPalClient struct {
	cfg  PayPalConfig
	base string
	http *http.Client
}

// NewPayPalClient constructs a PayPalClient. The HTTP client carries a
// timeout so a stalled provider call cannot hold a checkout forever.
func NewPayPalClient(cfg PayPalConfig) *PayPalClient {
	base := paypalSandboxBase
	if cfg.Live {
		base = paypalLiveBase
	}
	return &PayPalClient{
		cfg:  cfg,
		base: base,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// accessToken requests an OAuth token via the client-credentials grant.
func (p *PayPalClient) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.base+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.cfg.ClientID, p.cfg.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("paypal token error: %d %s", resp.StatusCode, body)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (p *PayPalClient) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("paypal %s %s: %d %s", method, path, resp.StatusCode, data)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// FormatAmount renders a minor-unit amount the way the PayPal API expects
// ("12.50" for 1250 cents).
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// ParseAmount converts a provider decimal amount string back into minor
// units. Amounts with more than two decimals are rejected.
func ParseAmount(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, found := strings.Cut(value, ".")
	neg := strings.HasPrefix(whole, "-")
	whole = strings.TrimPrefix(whole, "-")
	var minor int64
	if whole != "" {
		n, err := parseDigits(whole)
		if err != nil {
			return 0, fmt.Errorf("bad amount %q", value)
		}
		minor = n * 100
	}
	if found {
		if len(frac) > 2 {
			return 0, fmt.Errorf("bad amount %q", value)
		}
		for len(frac) < 2 {
			frac += "0"
		}
		n, err := parseDigits(frac)
		if err != nil {
			return 0, fmt.Errorf("bad amount %q", value)
		}
		minor += n
	}
	if neg {
		minor = -minor
	}
	return minor, nil
}

func parseDigits(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit")
		}
		n = n*10 + int64(r-'0')
	}
	return n, nil
}

// CreateSession creates a CAPTURE-intent PayPal order. The application
// context asks for an immediate-pay flow with the billing landing page and
// no shipping, and reference_id ties the session to the internal order.
func (p *PayPalClient) CreateSession(ctx context.Context, params CreateSessionParams) (Session, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": params.ReferenceID,
			"amount": map[string]any{
				"currency_code": params.Currency,
				"value":         FormatAmount(params.AmountMinor),
			},
		}},
		"application_context": map[string]any{
			"return_url":          params.ReturnURL,
			"cancel_url":          params.CancelURL,
			"user_action":         "PAY_NOW",
			"landing_page":        "BILLING",
			"shipping_preference": "NO_SHIPPING",
		},
	}
	var out struct {
		ID    string `json:"id"`
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := p.doJSON(ctx, http.MethodPost, "/v2/checkout/orders", body, &out); err != nil {
		return Session{}, err
	}
	approval := ""
	for _, l := range out.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			approval = l.Href
			break
		}
	}
	if approval == "" {
		// The checkoutweb signup URL works for sessions where the API
		// response carries no approve link.
		approval = "https://www.paypal.com/checkoutweb/signup?token=" + out.ID
	}
	return Session{ProviderOrderID: out.ID, ApprovalURL: approval}, nil
}

// captureResponse mirrors the parts of the capture response we consume:
// capture records can appear under purchase_units[].payments.captures or
// at the top level depending on the flow.
type captureResponse struct {
	PurchaseUnits []struct {
		Payments struct {
			Captures []captureRecord `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Payments struct {
		Captures []captureRecord `json:"captures"`
	} `json:"payments"`
}

type captureRecord struct {
	ID     string `json:"id"`
	Amount struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	} `json:"amount"`
}

// Capture executes the capture of an approved PayPal order and collects
// every capture record from the response.
func (p *PayPalClient) Capture(ctx context.Context, providerOrderID string) ([]Capture, error) {
	var out captureResponse
	path := "/v2/checkout/orders/" + url.PathEscape(providerOrderID) + "/capture"
	if err := p.doJSON(ctx, http.MethodPost, path, struct{}{}, &out); err != nil {
		return nil, err
	}

	var records []captureRecord
	for _, pu := range out.PurchaseUnits {
		records = append(records, pu.Payments.Captures...)
	}
	records = append(records, out.Payments.Captures...)

	captures := make([]Capture, 0, len(records))
	for _, rec := range records {
		minor, err := ParseAmount(rec.Amount.Value)
		if err != nil {
			minor = 0
		}
		captures = append(captures, Capture{
			CaptureID:   rec.ID,
			AmountMinor: minor,
			Currency:    rec.Amount.CurrencyCode,
		})
	}
	return captures, nil
}

// VerifyWebhookSignature calls PayPal's verify-webhook-signature endpoint
// with the transmission headers and the raw delivery body. Without a
// configured webhook id nothing can be verified, so every delivery is
// rejected.
func (p *PayPalClient) VerifyWebhookSignature(ctx context.Context, h WebhookHeaders, rawBody []byte) (bool, error) {
	if p.cfg.WebhookID == "" {
		return false, fmt.Errorf("paypal webhook id not configured")
	}
	body := map[string]any{
		"transmission_id":   h.TransmissionID,
		"transmission_time": h.TransmissionTime,
		"transmission_sig":  h.TransmissionSig,
		"cert_url":          h.CertURL,
		"auth_algo":         h.AuthAlgo,
		"webhook_id":        p.cfg.WebhookID,
		"webhook_event":     json.RawMessage(rawBody),
	}
	var out struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := p.doJSON(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", body, &out); err != nil {
		return false, err
	}
	return out.VerificationStatus == "SUCCESS", nil
}
