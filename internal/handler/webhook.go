package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nodorajosh/manilasbkoverdose/internal/payment"
	"github.com/nodorajosh/manilasbkoverdose/internal/service"
)

// PayPal webhook event types this service reacts to.
const (
	eventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	eventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	eventOrderVoided      = "CHECKOUT.ORDER.VOIDED"
)

// WebhookHandler receives provider callbacks. It verifies the delivery
// signature before trusting a single payload field, resolves the order
// exclusively through the stored provider session id, and funnels into
// the same idempotent reconcile entry point as the user-return path.
type WebhookHandler struct {
	svc     *service.CheckoutService
	gateway payment.Gateway
}

// NewWebhookHandler constructs a WebhookHandler.
func NewWebhookHandler(svc *service.CheckoutService, gateway payment.Gateway) *WebhookHandler {
	if svc == nil || gateway == nil {
		panic("nil dependency passed to NewWebhookHandler")
	}
	return &WebhookHandler{svc: svc, gateway: gateway}
}

// webhookEvent mirrors the parts of a PayPal webhook body we consume.
// The provider session id is found under supplementary_data for capture
// events and as the resource id for order-level events.
type webhookEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
		Amount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	} `json:"resource"`
}

// Handle processes POST /v1/paypal/webhook. Verification or processing
// failures return non-2xx so the provider retries delivery; an event for
// an unknown order is acknowledged because retrying cannot fix it.
func (h *WebhookHandler) Handle(c echo.Context) error {
	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}

	headers := payment.WebhookHeaders{
		TransmissionID:   c.Request().Header.Get("Paypal-Transmission-Id"),
		TransmissionTime: c.Request().Header.Get("Paypal-Transmission-Time"),
		TransmissionSig:  c.Request().Header.Get("Paypal-Transmission-Sig"),
		CertURL:          c.Request().Header.Get("Paypal-Cert-Url"),
		AuthAlgo:         c.Request().Header.Get("Paypal-Auth-Algo"),
	}
	verified, err := h.gateway.VerifyWebhookSignature(c.Request().Context(), headers, rawBody)
	if err != nil || !verified {
		log.Printf("webhook: signature verification failed: verified=%v err=%v", verified, err)
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false})
	}

	var ev webhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payload"})
	}

	var outcome service.Outcome
	providerOrderID := ev.Resource.SupplementaryData.RelatedIDs.OrderID
	switch ev.EventType {
	case eventCaptureCompleted:
		minor, perr := payment.ParseAmount(ev.Resource.Amount.Value)
		if perr != nil {
			minor = 0
		}
		outcome = service.CapturedOutcome([]payment.Capture{{
			CaptureID:   ev.Resource.ID,
			AmountMinor: minor,
			Currency:    ev.Resource.Amount.CurrencyCode,
		}})
	case eventCaptureDenied:
		outcome = service.DeniedOutcome()
	case eventOrderVoided:
		providerOrderID = ev.Resource.ID
		outcome = service.CancelledOutcome()
	default:
		// Not an event we act on; acknowledge so it is not redelivered.
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	}
	if providerOrderID == "" {
		providerOrderID = ev.Resource.ID
	}

	if _, err := h.svc.Reconcile(c.Request().Context(), providerOrderID, outcome); err != nil {
		var notFound *service.NotFoundError
		if errors.As(err, &notFound) {
			log.Printf("webhook: no order for provider session %s", providerOrderID)
			return c.JSON(http.StatusOK, echo.Map{"ok": true})
		}
		log.Printf("webhook: reconcile failed for %s: %v", providerOrderID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
