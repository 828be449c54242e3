package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "12.50", FormatAmount(1250))
	assert.Equal(t, "100.00", FormatAmount(10000))
	assert.Equal(t, "-3.07", FormatAmount(-307))
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"0.00", 0},
		{"12.50", 1250},
		{"12.5", 1250},
		{"100", 10000},
		{"0.05", 5},
		{"-3.07", -307},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "abc", "1.234", "12,50", "1.2x"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}

// newTestClient spins up a stub PayPal API and points a client at it. The
// token endpoint is always served; everything else is delegated.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*PayPalClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/oauth2/token" {
			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "client-id", user)
			assert.Equal(t, "client-secret", pass)
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
			return
		}
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewPayPalClient(PayPalConfig{
		ClientID:  "client-id",
		Secret:    "client-secret",
		WebhookID: "WH-1",
	})
	client.base = srv.URL
	return client, srv
}

func TestCreateSession(t *testing.T) {
	var gotBody map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/checkout/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "PP-123",
			"links": []map[string]string{
				{"rel": "self", "href": "https://api.example/self"},
				{"rel": "approve", "href": "https://www.example/approve/PP-123"},
			},
		})
	})

	session, err := client.CreateSession(context.Background(), CreateSessionParams{
		Email:       "buyer@example.com",
		AmountMinor: 12550,
		Currency:    "USD",
		ReturnURL:   "https://shop.example/checkout/complete?orderId=o1",
		CancelURL:   "https://shop.example/checkout/cancel?orderId=o1",
		ReferenceID: "o1",
	})
	require.NoError(t, err)
	assert.Equal(t, "PP-123", session.ProviderOrderID)
	assert.Equal(t, "https://www.example/approve/PP-123", session.ApprovalURL)

	assert.Equal(t, "CAPTURE", gotBody["intent"])
	units := gotBody["purchase_units"].([]any)
	require.Len(t, units, 1)
	unit := units[0].(map[string]any)
	assert.Equal(t, "o1", unit["reference_id"])
	amount := unit["amount"].(map[string]any)
	assert.Equal(t, "USD", amount["currency_code"])
	assert.Equal(t, "125.50", amount["value"])
	appCtx := gotBody["application_context"].(map[string]any)
	assert.Equal(t, "PAY_NOW", appCtx["user_action"])
	assert.Equal(t, "NO_SHIPPING", appCtx["shipping_preference"])
}

func TestCreateSessionFallbackApprovalURL(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "PP-456"})
	})
	session, err := client.CreateSession(context.Background(), CreateSessionParams{
		AmountMinor: 100, Currency: "USD", ReferenceID: "o2",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://www.paypal.com/checkoutweb/signup?token=PP-456", session.ApprovalURL)
}

func TestCapture(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/checkout/orders/PP-123/capture", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"purchase_units": []map[string]any{{
				"payments": map[string]any{
					"captures": []map[string]any{{
						"id":     "CAP-1",
						"amount": map[string]string{"currency_code": "USD", "value": "125.50"},
					}},
				},
			}},
		})
	})

	captures, err := client.Capture(context.Background(), "PP-123")
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, "CAP-1", captures[0].CaptureID)
	assert.Equal(t, int64(12550), captures[0].AmountMinor)
	assert.Equal(t, "USD", captures[0].Currency)
}

func TestCaptureTopLevelPayments(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payments": map[string]any{
				"captures": []map[string]any{{
					"id":     "CAP-2",
					"amount": map[string]string{"currency_code": "USD", "value": "10.00"},
				}},
			},
		})
	})

	captures, err := client.Capture(context.Background(), "PP-123")
	require.NoError(t, err)
	require.Len(t, captures, 1)
	assert.Equal(t, "CAP-2", captures[0].CaptureID)
	assert.Equal(t, int64(1000), captures[0].AmountMinor)
}

func TestCaptureErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY"}`))
	})
	_, err := client.Capture(context.Background(), "PP-123")
	assert.Error(t, err)
}

func TestVerifyWebhookSignature(t *testing.T) {
	headers := WebhookHeaders{
		TransmissionID:   "tid",
		TransmissionTime: "2026-08-30T12:00:00Z",
		TransmissionSig:  "sig",
		CertURL:          "https://api.example/cert",
		AuthAlgo:         "SHA256withRSA",
	}
	rawBody := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED"}`)

	t.Run("success", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/notifications/verify-webhook-signature", r.URL.Path)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "tid", body["transmission_id"])
			assert.Equal(t, "WH-1", body["webhook_id"])
			assert.NotNil(t, body["webhook_event"])
			_ = json.NewEncoder(w).Encode(map[string]string{"verification_status": "SUCCESS"})
		})
		ok, err := client.VerifyWebhookSignature(context.Background(), headers, rawBody)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("failure status", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"verification_status": "FAILURE"})
		})
		ok, err := client.VerifyWebhookSignature(context.Background(), headers, rawBody)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing webhook id", func(t *testing.T) {
		client := NewPayPalClient(PayPalConfig{ClientID: "a", Secret: "b"})
		ok, err := client.VerifyWebhookSignature(context.Background(), headers, rawBody)
		assert.Error(t, err)
		assert.False(t, ok)
	})
}
