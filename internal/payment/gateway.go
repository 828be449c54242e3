// Package payment wraps the external payment provider behind a minimal
// gateway interface: create a checkout session, capture it, and verify
// webhook signatures. The checkout service depends only on the interface;
// the PayPal client in this package is the one production implementation.
package payment

import "context"

// CreateSessionParams describes the session to open with the provider.
// ReferenceID carries the internal order id so provider events can be
// correlated back, and AmountMinor is in the currency's minor unit.
type CreateSessionParams struct {
	Email       string
	AmountMinor int64
	Currency    string
	ReturnURL   string
	CancelURL   string
	ReferenceID string
}

// Session is the provider-side checkout session: the id used for capture
// and webhook correlation, plus the URL the buyer is redirected to.
type Session struct {
	ProviderOrderID string
	ApprovalURL     string
}

// Capture is one unit of money captured by the provider.
type Capture struct {
	CaptureID   string
	AmountMinor int64
	Currency    string
}

// Gateway is the boundary to the payment provider. Every method performs
// network I/O and honours the passed context.
type Gateway interface {
	// CreateSession opens a provider checkout session for the given amount
	// and returns its id and approval link.
	CreateSession(ctx context.Context, p CreateSessionParams) (Session, error)

	// Capture executes the capture of an approved session and returns the
	// capture records the provider reports.
	Capture(ctx context.Context, providerOrderID string) ([]Capture, error)

	// VerifyWebhookSignature checks a webhook delivery against the provider
	// before any payload field is trusted.
	VerifyWebhookSignature(ctx context.Context, headers WebhookHeaders, rawBody []byte) (bool, error)
}

// WebhookHeaders are the transmission headers the provider attaches to
// every webhook delivery.
type WebhookHeaders struct {
	TransmissionID   string
	TransmissionTime string
	TransmissionSig  string
	CertURL          string
	AuthAlgo         string
}
