package service

import (
	"context"
	"errors"
	"log"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
	"github.com/nodorajosh/manilasbkoverdose/internal/payment"
	"github.com/nodorajosh/manilasbkoverdose/internal/repository"
)

// OutcomeKind tags the reconciliation outcome variants.
type OutcomeKind int

const (
	// OutcomeCaptured means the provider captured payment for the session.
	OutcomeCaptured OutcomeKind = iota + 1
	// OutcomeDenied means the provider refused the capture.
	OutcomeDenied
	// OutcomeCancelled means the buyer abandoned or cancelled the session.
	OutcomeCancelled
)

// Outcome is the tagged variant fed into Reconcile. Both reconciliation
// sources (the user-return capture path and the provider webhook) build
// one of these instead of branching on ad hoc event-type strings, so a
// single idempotent transition implementation serves both.
type Outcome struct {
	Kind     OutcomeKind
	Captures []payment.Capture
}

// CapturedOutcome builds the outcome for a completed capture.
func CapturedOutcome(captures []payment.Capture) Outcome {
	return Outcome{Kind: OutcomeCaptured, Captures: captures}
}

// DeniedOutcome builds the outcome for a refused capture.
func DeniedOutcome() Outcome { return Outcome{Kind: OutcomeDenied} }

// CancelledOutcome builds the outcome for an abandoned session.
func CancelledOutcome() Outcome { return Outcome{Kind: OutcomeCancelled} }

// Reconcile drives the order identified by the provider session id to the
// terminal state matching the outcome. It is idempotent: an order already
// in a status consistent with the outcome is returned unchanged and no
// notification fires again. Capture records are deduplicated by provider
// capture id, so the user completing capture and the webhook later
// reporting the same capture results in exactly one recorded capture and
// at most one payment-confirmed notification.
//
// Inventory was reserved when the order was created, so a captured
// outcome performs no further inventory mutation; only cancellation
// releases the reserved units here.
func (s *CheckoutService) Reconcile(ctx context.Context, providerOrderID string, outcome Outcome) (*model.Order, error) {
	order, err := s.orders.FindByProviderOrderID(ctx, providerOrderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Kind: "order", ID: providerOrderID}
	}
	if err != nil {
		return nil, err
	}

	switch outcome.Kind {
	case OutcomeCaptured:
		return s.reconcileCaptured(ctx, order, outcome.Captures)
	case OutcomeDenied:
		return s.reconcileTo(ctx, order, model.OrderStatusFailed)
	case OutcomeCancelled:
		return s.reconcileCancelled(ctx, order)
	default:
		return nil, &ValidationError{Msg: "unknown reconciliation outcome"}
	}
}

func (s *CheckoutService) reconcileCaptured(ctx context.Context, order *model.Order, captures []payment.Capture) (*model.Order, error) {
	switch order.Status {
	case model.OrderStatusPending:
		if err := s.orders.UpdateStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusPaid); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// The other reconciliation path won the race; re-read and
				// fall through to the idempotent append below.
				refreshed, ferr := s.orders.FindByID(ctx, order.ID)
				if ferr != nil {
					return nil, ferr
				}
				if refreshed.Status != model.OrderStatusPaid && refreshed.Status != model.OrderStatusFulfilled {
					return nil, &InvalidTransitionError{OrderID: order.ID, From: refreshed.Status, To: model.OrderStatusPaid}
				}
				order = refreshed
				break
			}
			return nil, err
		}
		order.Status = model.OrderStatusPaid
	case model.OrderStatusPaid, model.OrderStatusFulfilled:
		// Already consistent with the outcome; only capture dedup below.
	default:
		return nil, &InvalidTransitionError{OrderID: order.ID, From: order.Status, To: model.OrderStatusPaid}
	}

	// Append-only capture records, deduped by provider capture id. The
	// payment-confirmed notification fires only for a capture id recorded
	// for the first time.
	for _, c := range captures {
		inserted, err := s.orders.AppendCapture(ctx, model.Capture{
			CaptureID:   c.CaptureID,
			OrderID:     order.ID,
			AmountMinor: c.AmountMinor,
			Currency:    c.Currency,
		})
		if err != nil {
			return nil, err
		}
		if inserted {
			if nerr := s.notifier.OrderPaid(ctx, order, c.CaptureID); nerr != nil {
				log.Printf("reconcile: payment-confirmed notification failed for order %s: %v", order.ID, nerr)
			}
		}
	}
	return s.orders.FindByID(ctx, order.ID)
}

func (s *CheckoutService) reconcileCancelled(ctx context.Context, order *model.Order) (*model.Order, error) {
	if order.Status == model.OrderStatusCancelled {
		return order, nil
	}
	return s.cancelOrder(ctx, order, "payment cancelled")
}

// reconcileTo moves the order to the target status, treating an order
// already there as a successful no-op.
func (s *CheckoutService) reconcileTo(ctx context.Context, order *model.Order, to model.OrderStatus) (*model.Order, error) {
	if order.Status == to {
		return order, nil
	}
	if !model.CanTransition(order.Status, to) {
		return nil, &InvalidTransitionError{OrderID: order.ID, From: order.Status, To: to}
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, order.Status, to); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost the race; the winner is responsible for side effects.
			return s.orders.FindByID(ctx, order.ID)
		}
		return nil, err
	}
	return s.orders.FindByID(ctx, order.ID)
}

// CaptureApprovedOrder is the user-return reconciliation path: the owner
// came back from the provider with an approved session and asks us to
// capture it. The provider session id stored on the order is
// authoritative; the one submitted by the client must match it.
func (s *CheckoutService) CaptureApprovedOrder(ctx context.Context, caller Identity, orderID, providerOrderID string) (*model.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, &ValidationError{Msg: "not your order"}
	}
	if order.ProviderOrderID == "" || order.ProviderOrderID != providerOrderID {
		return nil, &ValidationError{Msg: "payment session does not match this order"}
	}

	captures, err := s.gateway.Capture(ctx, order.ProviderOrderID)
	if err != nil {
		return nil, &GatewayError{Op: "capture", Err: err}
	}
	return s.Reconcile(ctx, order.ProviderOrderID, CapturedOutcome(captures))
}

// Cancel cancels an order on behalf of its owner. Owners may cancel only
// while the order is pending; administrators use AdminSetStatus for
// anything else. Cancelling releases the reserved inventory and fires the
// cancellation notification. Cancelling an already-cancelled order is a
// no-op.
func (s *CheckoutService) Cancel(ctx context.Context, caller Identity, orderID, reason string) (*model.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, &ValidationError{Msg: "not your order"}
	}
	if order.Status == model.OrderStatusCancelled {
		return order, nil
	}
	if order.Status != model.OrderStatusPending {
		return nil, &InvalidTransitionError{OrderID: order.ID, From: order.Status, To: model.OrderStatusCancelled}
	}
	return s.cancelOrder(ctx, order, reason)
}

// cancelOrder performs the pending -> cancelled move, releases every
// reserved unit exactly once (the compare-and-set on the status guarantees
// a single winner) and notifies.
func (s *CheckoutService) cancelOrder(ctx context.Context, order *model.Order, reason string) (*model.Order, error) {
	if err := s.orders.UpdateStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusCancelled); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.orders.FindByID(ctx, order.ID)
		}
		return nil, err
	}
	if err := s.releaseOrderInventory(ctx, order); err != nil {
		return nil, err
	}
	if nerr := s.notifier.OrderCancelled(ctx, order, reason); nerr != nil {
		log.Printf("cancel: notification failed for order %s: %v", order.ID, nerr)
	}
	return s.orders.FindByID(ctx, order.ID)
}

// AdminSetStatus applies an administrative status change subject to the
// legal-transition table. Refund and cancellation free the reserved
// inventory; fulfilment has no inventory effect.
func (s *CheckoutService) AdminSetStatus(ctx context.Context, caller Identity, orderID string, target model.OrderStatus) (*model.Order, error) {
	if !caller.IsAdmin() {
		return nil, &ValidationError{Msg: "administrator role required"}
	}
	if !target.Valid() {
		return nil, &ValidationError{Msg: "unknown order status"}
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Kind: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	if order.Status == target {
		return order, nil
	}
	if !model.CanTransition(order.Status, target) {
		return nil, &InvalidTransitionError{OrderID: order.ID, From: order.Status, To: target}
	}
	if target == model.OrderStatusCancelled {
		return s.cancelOrder(ctx, order, "cancelled by administrator")
	}
	if err := s.orders.UpdateStatus(ctx, order.ID, order.Status, target); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &InvalidTransitionError{OrderID: order.ID, From: order.Status, To: target}
		}
		return nil, err
	}
	if target == model.OrderStatusRefunded {
		if err := s.releaseOrderInventory(ctx, order); err != nil {
			return nil, err
		}
	}
	return s.orders.FindByID(ctx, order.ID)
}

// releaseOrderInventory returns every reserved unit of the order to the
// ledger. A failed release is a fatal inconsistency: the counters no
// longer match reality and an operator has to intervene.
func (s *CheckoutService) releaseOrderInventory(ctx context.Context, order *model.Order) error {
	for i := range order.Items {
		it := &order.Items[i]
		if err := s.tickets.Release(ctx, it.TicketID, it.Quantity); err != nil {
			return s.inconsistency(order.ID, err)
		}
	}
	return nil
}
