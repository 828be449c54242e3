package service

import (
	"errors"
	"fmt"

	"github.com/nodorajosh/manilasbkoverdose/internal/model"
)

// ValidationError reports malformed or missing input. It is a user-facing
// 4xx-class outcome and is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports a missing ticket, discount or order by id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Discount inapplicability reasons. Each failed validation names exactly
// one of these so the user learns which constraint broke.
const (
	DiscountReasonNotFound   = "not_found"
	DiscountReasonInactive   = "inactive"
	DiscountReasonExpired    = "expired"
	DiscountReasonUsageLimit = "usage_limit_reached"
	DiscountReasonNotAllowed = "not_allowed_for_this_item"
)

// DiscountInapplicableError reports why a discount code cannot be applied
// to a line of the cart.
type DiscountInapplicableError struct {
	Code     string
	TicketID string
	Reason   string
}

func (e *DiscountInapplicableError) Error() string {
	return fmt.Sprintf("discount %s not applicable to ticket %s: %s", e.Code, e.TicketID, e.Reason)
}

// GatewayError wraps a payment-provider failure. The order involved is
// marked failed and surfaced for manual follow-up, never silently retried.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// InvalidTransitionError reports an attempted illegal order state-machine
// move. The order is left unchanged.
type InvalidTransitionError struct {
	OrderID string
	From    model.OrderStatus
	To      model.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: invalid transition %s -> %s", e.OrderID, e.From, e.To)
}

// InconsistencyError means a compensation step itself failed, so the
// atomic counters may no longer match reality. This is the only error
// class that should page an operator; it is always logged and never
// swallowed.
type InconsistencyError struct {
	OrderID string
	Err     error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("inventory inconsistency for order %s: %v", e.OrderID, e.Err)
}

func (e *InconsistencyError) Unwrap() error { return e.Err }

// IsUserFacing reports whether an error belongs to the expected,
// synchronously returned taxonomy rather than the operator-alerting class.
func IsUserFacing(err error) bool {
	var inc *InconsistencyError
	return !errors.As(err, &inc)
}
